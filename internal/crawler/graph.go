package crawler

import (
	"sort"
	"sync"
)

// Graph accumulates the internal link structure of a crawl. Every edge is
// stored in both directions under one lock.
type Graph struct {
	mu  sync.RWMutex
	out map[string]map[string]struct{}
	in  map[string]map[string]struct{}
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		out: make(map[string]map[string]struct{}),
		in:  make(map[string]map[string]struct{}),
	}
}

// AddEdge records a link from source to target
func (g *Graph) AddEdge(source, target string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.out[source] == nil {
		g.out[source] = make(map[string]struct{})
	}
	g.out[source][target] = struct{}{}

	if g.in[target] == nil {
		g.in[target] = make(map[string]struct{})
	}
	g.in[target][source] = struct{}{}
}

// InDegree is the number of distinct pages linking to url
func (g *Graph) InDegree(url string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.in[url])
}

// OutDegree is the number of distinct pages url links to
func (g *Graph) OutDegree(url string) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.out[url])
}

// InEdges returns the sorted sources linking to url
func (g *Graph) InEdges(url string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.in[url])
}

// OutEdges returns the sorted targets url links to
func (g *Graph) OutEdges(url string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return sortedKeys(g.out[url])
}

// Edges returns every edge sorted by source then target
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var edges []Edge
	for _, source := range sortedKeys(g.out) {
		for _, target := range sortedKeys(g.out[source]) {
			edges = append(edges, Edge{Source: source, Target: target})
		}
	}
	return edges
}

// EdgeCount returns the number of distinct edges
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := 0
	for _, targets := range g.out {
		n += len(targets)
	}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
