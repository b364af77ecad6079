// Copyright 2025 The Go Kairei Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"sort"
	"sync"
)

// Connection links two memory-graph nodes. Connections are stored by target
// id rather than by pointer, so the graph stays an index-based arena with no
// owning back-edges.
type Connection struct {
	TargetID     string
	RelationType string
	Strength     float64
	IsOutgoing   bool
}

// GraphNode is one node of a memory knowledge graph.
type GraphNode struct {
	ID          string
	Label       string
	Connections []Connection
}

// MemoryGraph is an arena of nodes keyed by id. Memory plugins build these
// to relate remembered content; traversal resolves ids through the arena.
type MemoryGraph struct {
	mu    sync.RWMutex
	nodes map[string]*GraphNode
}

// NewMemoryGraph returns an empty graph.
func NewMemoryGraph() *MemoryGraph {
	return &MemoryGraph{nodes: make(map[string]*GraphNode)}
}

// AddNode inserts a node; an existing id keeps its connections and updates
// its label.
func (g *MemoryGraph) AddNode(id, label string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if node, ok := g.nodes[id]; ok {
		node.Label = label
		return
	}
	g.nodes[id] = &GraphNode{ID: id, Label: label}
}

// Node returns the node stored under id.
func (g *MemoryGraph) Node(id string) (*GraphNode, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	return node, ok
}

// Len returns the node count.
func (g *MemoryGraph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Connect records a relation from one node to another, mirrored on the
// target as an incoming connection. Unknown ids are created with empty
// labels.
func (g *MemoryGraph) Connect(fromID, toID, relationType string, strength float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	from := g.ensure(fromID)
	to := g.ensure(toID)
	from.Connections = append(from.Connections, Connection{
		TargetID:     toID,
		RelationType: relationType,
		Strength:     strength,
		IsOutgoing:   true,
	})
	to.Connections = append(to.Connections, Connection{
		TargetID:     fromID,
		RelationType: relationType,
		Strength:     strength,
		IsOutgoing:   false,
	})
}

func (g *MemoryGraph) ensure(id string) *GraphNode {
	if node, ok := g.nodes[id]; ok {
		return node
	}
	node := &GraphNode{ID: id}
	g.nodes[id] = node
	return node
}

// Neighbors returns the ids a node connects to outgoing, strongest first.
func (g *MemoryGraph) Neighbors(id string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	node, ok := g.nodes[id]
	if !ok {
		return nil
	}
	conns := make([]Connection, 0, len(node.Connections))
	for _, c := range node.Connections {
		if c.IsOutgoing {
			conns = append(conns, c)
		}
	}
	sort.SliceStable(conns, func(i, j int) bool { return conns[i].Strength > conns[j].Strength })
	out := make([]string, len(conns))
	for i, c := range conns {
		out[i] = c.TargetID
	}
	return out
}
