// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-kairei/kairei/internal/xmaps"
)

// ErrProviderNotFound is returned when a named provider is not registered.
var ErrProviderNotFound = errors.New("provider not found")

// Registry exclusively owns provider instances. Callers retrieve a shared
// view; mutation happens only through Register and Shutdown.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	primary   string
}

// NewRegistry returns an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register initializes and stores a provider. The first registered provider
// becomes the primary one.
func (r *Registry) Register(ctx context.Context, p Provider) error {
	if err := p.Initialize(ctx); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[p.Name()]; exists {
		return fmt.Errorf("provider %q is already registered", p.Name())
	}
	r.providers[p.Name()] = p
	if r.primary == "" {
		r.primary = p.Name()
	}
	return nil
}

// Get returns the named provider.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// Primary returns the primary provider.
func (r *Registry) Primary() (Provider, error) {
	r.mu.RLock()
	primary := r.primary
	r.mu.RUnlock()
	if primary == "" {
		return nil, fmt.Errorf("%w: no primary provider", ErrProviderNotFound)
	}
	return r.Get(primary)
}

// SetPrimary selects the primary provider by name.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	r.primary = name
	return nil
}

// List returns the registered provider names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return xmaps.SortedKeys(r.providers)
}

// Shutdown stops every provider and empties the registry. The first error
// is returned after all providers were attempted.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	providers := r.providers
	r.providers = make(map[string]Provider)
	r.primary = ""
	r.mu.Unlock()

	var firstErr error
	for _, p := range providers {
		if err := p.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
