// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-kairei/kairei/types"
)

// ContextStrategy selects how long-term memories are picked for a request.
type ContextStrategy int

const (
	// StrategyRecency returns the most recent long-term memories.
	StrategyRecency ContextStrategy = iota
	// StrategyActivityRelevance interleaves topic groups round-robin,
	// removing exhausted topics so selection terminates.
	StrategyActivityRelevance
)

// TopicMetadataKey is the memory metadata key the activity-relevance
// strategy groups by.
const TopicMetadataKey = "topic"

// MemoryConfig tunes the [MemoryPlugin].
type MemoryConfig struct {
	// MaxShortTerm bounds the short-term deque.
	MaxShortTerm int
	// MaxLongTerm bounds the long-term store.
	MaxLongTerm int
	// ImportanceThreshold routes responses scoring at or above it to
	// long-term memory.
	ImportanceThreshold float64
	// RetrieveTopN is how many long-term memories a retrieval returns.
	RetrieveTopN int

	// Strategy selects the long-term retrieval strategy.
	Strategy ContextStrategy
}

// DefaultMemoryConfig returns the default memory plugin configuration.
func DefaultMemoryConfig() MemoryConfig {
	return MemoryConfig{
		MaxShortTerm:        10,
		MaxLongTerm:         100,
		ImportanceThreshold: 0.7,
		RetrieveTopN:        5,
	}
}

// Memory is one remembered response with its importance score in [0, 1].
type Memory struct {
	Content    string
	Timestamp  time.Time
	Importance float64
	Metadata   map[string]types.Value
}

// MemoryPlugin keeps short-term and long-term memories of responses and
// contributes a previous-context section to outgoing prompts.
type MemoryPlugin struct {
	mu        sync.RWMutex
	shortTerm []Memory
	longTerm  []Memory
	config    MemoryConfig

	now func() time.Time
}

var _ Plugin = (*MemoryPlugin)(nil)

// NewMemoryPlugin returns a memory plugin with the given configuration.
func NewMemoryPlugin(config MemoryConfig) *MemoryPlugin {
	if config.MaxShortTerm <= 0 {
		config.MaxShortTerm = DefaultMemoryConfig().MaxShortTerm
	}
	if config.MaxLongTerm <= 0 {
		config.MaxLongTerm = DefaultMemoryConfig().MaxLongTerm
	}
	if config.RetrieveTopN <= 0 {
		config.RetrieveTopN = DefaultMemoryConfig().RetrieveTopN
	}
	return &MemoryPlugin{config: config, now: time.Now}
}

// Name implements [Plugin].
func (p *MemoryPlugin) Name() string { return "memory" }

// Priority implements [Plugin]. Memory runs late so context sections land
// close to the query.
func (p *MemoryPlugin) Priority() int { return 100 }

// Capability implements [Plugin].
func (p *MemoryPlugin) Capability() Capability { return CapabilityMemory }

// GenerateSection implements [Plugin]: the short-term window plus the top-N
// long-term matches, formatted as a previous-context section.
func (p *MemoryPlugin) GenerateSection(ctx context.Context, pctx *PluginContext) (*Section, error) {
	memories := p.retrieveRelevant()
	if len(memories) == 0 {
		return nil, nil
	}
	var b strings.Builder
	b.WriteString("Previous Context:\n")
	for _, m := range memories {
		fmt.Fprintf(&b, "- %s (Importance: %.2f)\n", m.Content, m.Importance)
	}
	return &Section{Content: b.String(), Priority: p.Priority()}, nil
}

// retrieveRelevant returns the whole short-term window plus the top-N
// long-term matches selected by the configured strategy. The similarity
// measure is pluggable in principle; the default is recency.
func (p *MemoryPlugin) retrieveRelevant() []Memory {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Memory, 0, len(p.shortTerm)+p.config.RetrieveTopN)
	out = append(out, p.shortTerm...)
	switch p.config.Strategy {
	case StrategyActivityRelevance:
		out = append(out, selectByActivityRelevance(p.longTerm, p.config.RetrieveTopN)...)
	default:
		n := p.config.RetrieveTopN
		for i := len(p.longTerm) - 1; i >= 0 && n > 0; i-- {
			out = append(out, p.longTerm[i])
			n--
		}
	}
	return out
}

// selectByActivityRelevance groups memories by topic and takes one from each
// group in round-robin order, most recent first within a group. Exhausted
// topics are removed from the rotation; without that removal a short group
// would keep the loop from terminating.
func selectByActivityRelevance(memories []Memory, n int) []Memory {
	groups := make(map[string][]Memory)
	var topics []string
	for i := len(memories) - 1; i >= 0; i-- {
		m := memories[i]
		topic := ""
		if v, ok := m.Metadata[TopicMetadataKey]; ok {
			topic = v.String()
		}
		if _, seen := groups[topic]; !seen {
			topics = append(topics, topic)
		}
		groups[topic] = append(groups[topic], m)
	}
	out := make([]Memory, 0, n)
	for len(out) < n && len(topics) > 0 {
		remaining := topics[:0]
		for _, topic := range topics {
			if len(out) >= n {
				break
			}
			group := groups[topic]
			out = append(out, group[0])
			group = group[1:]
			if len(group) == 0 {
				continue
			}
			groups[topic] = group
			remaining = append(remaining, topic)
		}
		topics = remaining
	}
	return out
}

// ProcessResponse implements [Plugin]: the response is scored and stored.
func (p *MemoryPlugin) ProcessResponse(ctx context.Context, pctx *PluginContext, resp *LLMResponse) error {
	metadata := map[string]types.Value{
		"query": types.StringValue(pctx.Request.Input.Query),
		"model": types.StringValue(resp.Metadata.Model),
	}
	p.store(Memory{
		Content:    resp.Content,
		Timestamp:  p.now(),
		Importance: p.calculateImportance(resp),
		Metadata:   metadata,
	})
	return nil
}

// store routes by importance: at or above the threshold the memory goes
// long-term, evicting the lowest-importance entry on capacity; below it the
// memory goes short-term, evicting the oldest.
func (p *MemoryPlugin) store(m Memory) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.Importance >= p.config.ImportanceThreshold {
		if len(p.longTerm) >= p.config.MaxLongTerm {
			minIdx := 0
			for i := 1; i < len(p.longTerm); i++ {
				if p.longTerm[i].Importance < p.longTerm[minIdx].Importance {
					minIdx = i
				}
			}
			p.longTerm = append(p.longTerm[:minIdx], p.longTerm[minIdx+1:]...)
		}
		p.longTerm = append(p.longTerm, m)
		return
	}
	if len(p.shortTerm) >= p.config.MaxShortTerm {
		p.shortTerm = p.shortTerm[1:]
	}
	p.shortTerm = append(p.shortTerm, m)
}

// importantKeywords raise a response's score when present.
var importantKeywords = []string{"critical", "important", "urgent", "key", "essential"}

// calculateImportance scores a response in [0, 1] from its length, its
// finish-reason metadata, and keyword presence.
func (p *MemoryPlugin) calculateImportance(resp *LLMResponse) float64 {
	importance := 0.5

	switch l := len(resp.Content); {
	case l > 1000:
		importance += 0.2
	case l > 500:
		importance += 0.1
	case l < 50:
		importance -= 0.1
	}

	if strings.Contains(strings.ToLower(resp.Metadata.FinishReason), "timeout") {
		importance -= 0.2
	}

	content := strings.ToLower(resp.Content)
	for _, kw := range importantKeywords {
		if strings.Contains(content, kw) {
			importance += 0.1
		}
	}

	return min(max(importance, 0.0), 1.0)
}

// Counts returns the current short-term and long-term sizes.
func (p *MemoryPlugin) Counts() (shortTerm, longTerm int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.shortTerm), len(p.longTerm)
}
