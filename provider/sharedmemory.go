// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/go-kairei/kairei/internal/xmaps"
	"github.com/go-kairei/kairei/types"
)

// StorageErrorKind discriminates shared-memory storage failures.
type StorageErrorKind int

const (
	// StorageNamespaceNotFound is a lookup in an unknown namespace.
	StorageNamespaceNotFound StorageErrorKind = iota
	// StorageKeyNotFound is a read of an absent or expired key.
	StorageKeyNotFound
	// StorageCapacityExceeded is a set beyond the namespace's max_keys.
	StorageCapacityExceeded
	// StorageSerialization is an encode/decode failure or an invalid key
	// pattern.
	StorageSerialization
)

var storageErrorCodes = map[StorageErrorKind]string{
	StorageNamespaceNotFound: "STORAGE_0001",
	StorageKeyNotFound:       "STORAGE_0002",
	StorageCapacityExceeded:  "STORAGE_0003",
	StorageSerialization:     "STORAGE_0004",
}

// StorageError is a structured shared-memory failure.
type StorageError struct {
	Kind      StorageErrorKind
	Namespace string
	Key       string
	Message   string
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("[%s] shared memory %s/%s: %s", storageErrorCodes[e.Kind], e.Namespace, e.Key, e.Message)
}

// IsCapacityExceeded reports whether err is a capacity failure.
func IsCapacityExceeded(err error) bool {
	e, ok := err.(*StorageError)
	return ok && e.Kind == StorageCapacityExceeded
}

// IsKeyNotFound reports whether err is a missing-key failure.
func IsKeyNotFound(err error) bool {
	e, ok := err.(*StorageError)
	return ok && e.Kind == StorageKeyNotFound
}

// EntryMetadata describes one stored entry for external backends.
type EntryMetadata struct {
	CreatedAt    time.Time         `json:"created_at"`
	LastModified time.Time         `json:"last_modified"`
	ContentType  string            `json:"content_type"`
	Size         int               `json:"size"`
	Tags         map[string]string `json:"tags,omitempty"`
}

// sharedEntry is one stored value with metadata and optional expiry.
type sharedEntry struct {
	value    types.Value
	metadata EntryMetadata
	// expiry is zero when the entry does not expire.
	expiry time.Time
}

// SharedMemoryConfig tunes one [SharedMemoryPlugin] namespace.
type SharedMemoryConfig struct {
	// Namespace isolates this plugin's key space. Case-sensitive.
	Namespace string
	// MaxKeys bounds the namespace; zero means unbounded.
	MaxKeys int
	// DefaultTTL applies to Set calls; zero means no expiry.
	DefaultTTL time.Duration
}

// SharedMemoryPlugin is a namespaced, TTL-bounded key/value store with
// pattern queries. Set and Delete are atomic per key; ListKeys returns a
// consistent snapshot of the key set at call time. Namespaces are mutually
// isolated.
type SharedMemoryPlugin struct {
	mu      sync.RWMutex
	entries map[string]*sharedEntry
	config  SharedMemoryConfig

	now func() time.Time
}

var _ Plugin = (*SharedMemoryPlugin)(nil)

// NewSharedMemoryPlugin returns a plugin owning the configured namespace.
// Use a [SharedMemoryRegistry] to guarantee one instance per namespace.
func NewSharedMemoryPlugin(config SharedMemoryConfig) *SharedMemoryPlugin {
	return &SharedMemoryPlugin{
		entries: make(map[string]*sharedEntry),
		config:  config,
		now:     time.Now,
	}
}

// Name implements [Plugin].
func (p *SharedMemoryPlugin) Name() string {
	return "shared_memory:" + p.config.Namespace
}

// Priority implements [Plugin].
func (p *SharedMemoryPlugin) Priority() int { return 50 }

// Capability implements [Plugin].
func (p *SharedMemoryPlugin) Capability() Capability { return CapabilitySharedMemory }

// GenerateSection implements [Plugin]. The store contributes no prompt
// section; it serves handlers and sibling plugins through its API.
func (p *SharedMemoryPlugin) GenerateSection(ctx context.Context, pctx *PluginContext) (*Section, error) {
	return nil, nil
}

// ProcessResponse implements [Plugin].
func (p *SharedMemoryPlugin) ProcessResponse(ctx context.Context, pctx *PluginContext, resp *LLMResponse) error {
	return nil
}

// Namespace returns the namespace the plugin owns.
func (p *SharedMemoryPlugin) Namespace() string { return p.config.Namespace }

// Set stores value under key with the configured default TTL.
func (p *SharedMemoryPlugin) Set(key string, value types.Value) error {
	return p.SetWithTTL(key, value, p.config.DefaultTTL)
}

// SetWithTTL stores value under key. A set on a new key beyond capacity
// fails with a capacity error and inserts nothing; ttl zero means no
// expiry.
func (p *SharedMemoryPlugin) SetWithTTL(key string, value types.Value, ttl time.Duration) error {
	encoded, err := sonic.Marshal(types.ToAny(value))
	if err != nil {
		return &StorageError{
			Kind:      StorageSerialization,
			Namespace: p.config.Namespace,
			Key:       key,
			Message:   err.Error(),
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	existing, exists := p.entries[key]
	if exists && p.expired(existing, now) {
		delete(p.entries, key)
		exists = false
	}
	if !exists && p.config.MaxKeys > 0 && len(p.entries) >= p.config.MaxKeys {
		return &StorageError{
			Kind:      StorageCapacityExceeded,
			Namespace: p.config.Namespace,
			Key:       key,
			Message:   fmt.Sprintf("namespace holds %d keys, max_keys is %d", len(p.entries), p.config.MaxKeys),
		}
	}
	entry := &sharedEntry{
		value: value,
		metadata: EntryMetadata{
			CreatedAt:    now,
			LastModified: now,
			ContentType:  value.TypeInfo().String(),
			Size:         len(encoded),
		},
	}
	if exists {
		entry.metadata.CreatedAt = existing.metadata.CreatedAt
	}
	if ttl > 0 {
		entry.expiry = now.Add(ttl)
	}
	p.entries[key] = entry
	return nil
}

// Get returns the value stored under key. Expired entries are removed on
// read and reported as missing.
func (p *SharedMemoryPlugin) Get(key string) (types.Value, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[key]
	if !ok {
		return nil, p.keyNotFound(key)
	}
	if p.expired(entry, p.now()) {
		delete(p.entries, key)
		return nil, p.keyNotFound(key)
	}
	return entry.value, nil
}

// Metadata returns the metadata of the entry stored under key.
func (p *SharedMemoryPlugin) Metadata(key string) (EntryMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[key]
	if !ok || p.expired(entry, p.now()) {
		return EntryMetadata{}, p.keyNotFound(key)
	}
	return entry.metadata, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (p *SharedMemoryPlugin) Delete(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, key)
	return nil
}

// Exists reports whether key holds an unexpired entry.
func (p *SharedMemoryPlugin) Exists(key string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	entry, ok := p.entries[key]
	if !ok {
		return false
	}
	if p.expired(entry, p.now()) {
		delete(p.entries, key)
		return false
	}
	return true
}

// ListKeys returns the keys matching a *-glob pattern, sorted. Expired
// entries are eagerly removed before matching.
func (p *SharedMemoryPlugin) ListKeys(pattern string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	var out []string
	for key, entry := range p.entries {
		if p.expired(entry, now) {
			delete(p.entries, key)
			continue
		}
		matched, err := path.Match(pattern, key)
		if err != nil {
			return nil, &StorageError{
				Kind:      StorageSerialization,
				Namespace: p.config.Namespace,
				Key:       key,
				Message:   fmt.Sprintf("invalid pattern %q: %v", pattern, err),
			}
		}
		if matched {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Len returns the number of unexpired keys.
func (p *SharedMemoryPlugin) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := p.now()
	n := 0
	for key, entry := range p.entries {
		if p.expired(entry, now) {
			delete(p.entries, key)
			continue
		}
		n++
	}
	return n
}

// Snapshot encodes the namespace in the external persistence format:
// key -> {value, metadata, expiry?}.
func (p *SharedMemoryPlugin) Snapshot() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]map[string]any, len(p.entries))
	now := p.now()
	for key, entry := range p.entries {
		if p.expired(entry, now) {
			continue
		}
		record := map[string]any{
			"value":    types.ToAny(entry.value),
			"metadata": entry.metadata,
		}
		if !entry.expiry.IsZero() {
			record["expiry"] = entry.expiry
		}
		out[key] = record
	}
	data, err := sonic.Marshal(out)
	if err != nil {
		return nil, &StorageError{
			Kind:      StorageSerialization,
			Namespace: p.config.Namespace,
			Message:   err.Error(),
		}
	}
	return data, nil
}

func (p *SharedMemoryPlugin) expired(entry *sharedEntry, now time.Time) bool {
	return !entry.expiry.IsZero() && now.After(entry.expiry)
}

func (p *SharedMemoryPlugin) keyNotFound(key string) error {
	return &StorageError{
		Kind:      StorageKeyNotFound,
		Namespace: p.config.Namespace,
		Key:       key,
		Message:   "key not found",
	}
}

// SharedMemoryRegistry guarantees one plugin instance per namespace: two
// lookups of the same namespace return the identical instance.
type SharedMemoryRegistry struct {
	mu        sync.Mutex
	instances map[string]*SharedMemoryPlugin
}

// NewSharedMemoryRegistry returns an empty registry.
func NewSharedMemoryRegistry() *SharedMemoryRegistry {
	return &SharedMemoryRegistry{instances: make(map[string]*SharedMemoryPlugin)}
}

// Get returns the namespace's plugin, creating it with config on first use.
// The config of an existing namespace is not altered.
func (r *SharedMemoryRegistry) Get(config SharedMemoryConfig) *SharedMemoryPlugin {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.instances[config.Namespace]; ok {
		return p
	}
	p := NewSharedMemoryPlugin(config)
	r.instances[config.Namespace] = p
	return p
}

// Namespaces returns the registered namespaces, sorted.
func (r *SharedMemoryRegistry) Namespaces() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return xmaps.SortedKeys(r.instances)
}
