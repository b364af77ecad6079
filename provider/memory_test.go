// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/go-kairei/kairei/types"
)

func testMemoryPlugin() *MemoryPlugin {
	return NewMemoryPlugin(MemoryConfig{
		MaxShortTerm:        3,
		MaxLongTerm:         5,
		ImportanceThreshold: 0.7,
		RetrieveTopN:        2,
	})
}

func respOf(content, finishReason string) *LLMResponse {
	return &LLMResponse{
		Content:  content,
		Metadata: ResponseMetadata{Model: "fake", FinishReason: finishReason},
	}
}

func TestMemoryImportanceScoring(t *testing.T) {
	p := testMemoryPlugin()
	tests := []struct {
		name string
		resp *LLMResponse
		want func(float64) bool
	}{
		{"baseline", respOf(strings.Repeat("x", 100), "stop"), func(v float64) bool { return v == 0.5 }},
		{"long response bonus", respOf(strings.Repeat("x", 1500), "stop"), func(v float64) bool { return v == 0.7 }},
		{"medium response bonus", respOf(strings.Repeat("x", 600), "stop"), func(v float64) bool { return v == 0.6 }},
		{"short response penalty", respOf("tiny", "stop"), func(v float64) bool { return v < 0.5 }},
		{"timeout penalty", respOf(strings.Repeat("x", 100), "timeout"), func(v float64) bool { return v < 0.5 }},
		{"keyword bonus", respOf("this is critical and important "+strings.Repeat("x", 100), "stop"), func(v float64) bool { return v > 0.6 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.calculateImportance(tt.resp)
			if got < 0 || got > 1 {
				t.Fatalf("importance %v out of [0, 1]", got)
			}
			if !tt.want(got) {
				t.Errorf("importance = %v", got)
			}
		})
	}
}

func TestMemoryRouting(t *testing.T) {
	p := testMemoryPlugin()
	pctx := NewPluginContext(&ProviderRequest{Input: RequestInput{Query: "q"}})

	// Below threshold: short-term.
	if err := p.ProcessResponse(t.Context(), pctx, respOf("short answer text", "stop")); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	shortCount, longCount := p.Counts()
	if shortCount != 1 || longCount != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", shortCount, longCount)
	}

	// At or above threshold: long-term.
	important := strings.Repeat("critical important detail ", 60)
	if err := p.ProcessResponse(t.Context(), pctx, respOf(important, "stop")); err != nil {
		t.Fatalf("ProcessResponse: %v", err)
	}
	_, longCount = p.Counts()
	if longCount != 1 {
		t.Fatalf("long-term count = %d, want 1", longCount)
	}
}

func TestMemoryShortTermEvictsOldest(t *testing.T) {
	p := testMemoryPlugin()
	for _, content := range []string{"first answer", "second answer", "third answer", "fourth answer"} {
		p.store(Memory{Content: content, Importance: 0.5})
	}
	shortCount, _ := p.Counts()
	if shortCount != 3 {
		t.Fatalf("short-term count = %d, want 3", shortCount)
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.shortTerm[0].Content != "second answer" {
		t.Errorf("oldest retained = %q, want the first evicted", p.shortTerm[0].Content)
	}
}

func TestMemoryLongTermEvictsLeastImportant(t *testing.T) {
	p := testMemoryPlugin()
	for i, importance := range []float64{0.9, 0.7, 0.75, 0.95, 0.8} {
		p.store(Memory{Content: strings.Repeat("x", i+1), Importance: importance})
	}
	// Capacity 5 reached; the next important memory evicts the 0.7 entry.
	p.store(Memory{Content: "newcomer", Importance: 0.85})
	p.mu.RLock()
	defer p.mu.RUnlock()
	if len(p.longTerm) != 5 {
		t.Fatalf("long-term count = %d, want 5", len(p.longTerm))
	}
	for _, m := range p.longTerm {
		if m.Importance == 0.7 {
			t.Error("lowest-importance entry should have been evicted")
		}
	}
}

func TestMemorySectionFormat(t *testing.T) {
	p := testMemoryPlugin()
	p.store(Memory{Content: "remembered fact", Importance: 0.5})
	section, err := p.GenerateSection(t.Context(), NewPluginContext(&ProviderRequest{}))
	if err != nil {
		t.Fatalf("GenerateSection: %v", err)
	}
	if !strings.HasPrefix(section.Content, "Previous Context:") {
		t.Errorf("section = %q", section.Content)
	}
	if !strings.Contains(section.Content, "remembered fact (Importance: 0.50)") {
		t.Errorf("section = %q", section.Content)
	}

	empty := testMemoryPlugin()
	section, err = empty.GenerateSection(t.Context(), NewPluginContext(&ProviderRequest{}))
	if err != nil || section != nil {
		t.Errorf("empty memory should contribute no section, got %v, %v", section, err)
	}
}

func TestMemoryRetrievalWindow(t *testing.T) {
	p := testMemoryPlugin()
	p.store(Memory{Content: "short one", Importance: 0.5})
	for _, content := range []string{"old long", "mid long", "new long"} {
		p.store(Memory{Content: content, Importance: 0.9})
	}
	memories := p.retrieveRelevant()
	// One short-term plus top-2 most recent long-term.
	if len(memories) != 3 {
		t.Fatalf("retrieved = %d, want 3", len(memories))
	}
	if memories[1].Content != "new long" || memories[2].Content != "mid long" {
		t.Errorf("long-term window = %q, %q; want most recent first", memories[1].Content, memories[2].Content)
	}
}

func TestMemoryActivityRelevanceRoundRobin(t *testing.T) {
	p := NewMemoryPlugin(MemoryConfig{
		MaxShortTerm:        3,
		MaxLongTerm:         20,
		ImportanceThreshold: 0.7,
		RetrieveTopN:        4,
		Strategy:            StrategyActivityRelevance,
	})
	add := func(content, topic string) {
		p.store(Memory{
			Content:    content,
			Importance: 0.9,
			Metadata:   map[string]types.Value{TopicMetadataKey: types.StringValue(topic)},
		})
	}
	add("travel-1", "travel")
	add("travel-2", "travel")
	add("travel-3", "travel")
	add("food-1", "food")

	memories := p.retrieveRelevant()
	if len(memories) != 4 {
		t.Fatalf("retrieved = %d, want 4", len(memories))
	}
	// Topics interleave; the exhausted food topic drops out of rotation and
	// selection still terminates with the remaining travel entries.
	got := make([]string, len(memories))
	for i, m := range memories {
		got[i] = m.Content
	}
	want := []string{"food-1", "travel-3", "travel-2", "travel-1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("selection mismatch (-want +got):\n%s", diff)
	}
}

func TestMemoryActivityRelevanceTerminatesWhenShort(t *testing.T) {
	p := NewMemoryPlugin(MemoryConfig{
		MaxShortTerm:        3,
		MaxLongTerm:         20,
		ImportanceThreshold: 0.7,
		RetrieveTopN:        10,
		Strategy:            StrategyActivityRelevance,
	})
	p.store(Memory{Content: "only one", Importance: 0.9})
	memories := p.retrieveRelevant()
	if len(memories) != 1 {
		t.Fatalf("retrieved = %d, want 1 (fewer than top-N available)", len(memories))
	}
}

func TestMemoryGraph(t *testing.T) {
	g := NewMemoryGraph()
	g.AddNode("paris", "Paris trip")
	g.AddNode("food", "restaurants")
	g.AddNode("trains", "rail passes")
	g.Connect("paris", "food", "mentions", 0.4)
	g.Connect("paris", "trains", "mentions", 0.9)

	if g.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", g.Len())
	}
	if got := g.Neighbors("paris"); len(got) != 2 || got[0] != "trains" || got[1] != "food" {
		t.Errorf("Neighbors(paris) = %v, want strongest first", got)
	}
	// The reverse edge is recorded as incoming, not outgoing.
	if got := g.Neighbors("food"); len(got) != 0 {
		t.Errorf("Neighbors(food) = %v, want none outgoing", got)
	}
	node, ok := g.Node("food")
	if !ok || len(node.Connections) != 1 || node.Connections[0].IsOutgoing {
		t.Errorf("food node = %+v, want one incoming connection", node)
	}
	// Connecting unknown ids creates arena entries.
	g.Connect("food", "wine", "pairs", 0.5)
	if _, ok := g.Node("wine"); !ok {
		t.Error("unknown target should be created in the arena")
	}
}

