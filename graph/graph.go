// Package graph builds the dependency graph over source entities and
// computes the deterministic creation order. Edges point from a dependent
// entity to the entity it needs; creation follows a topological order of
// that graph.
package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/c360studio/tagmirror/entity"
)

// EdgeKind labels why an edge exists. Kinds are diagnostic hints; ordering
// derives from the edge set alone.
type EdgeKind string

const (
	EdgeTagTrigger         EdgeKind = "TAG_TRIGGER"
	EdgeTagSetupTag        EdgeKind = "TAG_SETUP_TAG"
	EdgeTagTeardownTag     EdgeKind = "TAG_TEARDOWN_TAG"
	EdgeTagConfigTag       EdgeKind = "TAG_CONFIG_TAG"
	EdgeTagVariable        EdgeKind = "TAG_VARIABLE"
	EdgeTagTemplate        EdgeKind = "TAG_TEMPLATE"
	EdgeTriggerVariable    EdgeKind = "TRIGGER_VARIABLE"
	EdgeTriggerCustomEvent EdgeKind = "TRIGGER_CUSTOM_EVENT"
	EdgeVariableVariable   EdgeKind = "VARIABLE_VARIABLE"
	EdgeVariableTemplate   EdgeKind = "VARIABLE_TEMPLATE"
)

// Edge is one dependency: From needs To.
type Edge struct {
	From string   `json:"from"`
	To   string   `json:"to"`
	Kind EdgeKind `json:"kind"`
}

// Graph is the dependency graph over entity node keys.
type Graph struct {
	nodes map[string]entity.Header
	out   map[string]map[string]EdgeKind // from → to → kind
	in    map[string]map[string]EdgeKind // to → from → kind
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes: make(map[string]entity.Header),
		out:   make(map[string]map[string]EdgeKind),
		in:    make(map[string]map[string]EdgeKind),
	}
}

// AddNode registers an entity header as a graph node.
func (g *Graph) AddNode(h entity.Header) {
	g.nodes[h.Key()] = h
}

// HasNode reports whether the key is a registered node.
func (g *Graph) HasNode(key string) bool {
	_, ok := g.nodes[key]
	return ok
}

// Node returns the header for a key.
func (g *Graph) Node(key string) (entity.Header, bool) {
	h, ok := g.nodes[key]
	return h, ok
}

// AddEdge records that from depends on to. Both endpoints must already be
// nodes. Re-adding an existing edge keeps the first kind.
func (g *Graph) AddEdge(from, to string, kind EdgeKind) error {
	if !g.HasNode(from) {
		return fmt.Errorf("edge source not in graph: %s", from)
	}
	if !g.HasNode(to) {
		return fmt.Errorf("edge target not in graph: %s", to)
	}
	if g.out[from] == nil {
		g.out[from] = make(map[string]EdgeKind)
	}
	if _, exists := g.out[from][to]; exists {
		return nil
	}
	g.out[from][to] = kind
	if g.in[to] == nil {
		g.in[to] = make(map[string]EdgeKind)
	}
	g.in[to][from] = kind
	return nil
}

// RemoveEdge deletes an edge if present.
func (g *Graph) RemoveEdge(from, to string) {
	delete(g.out[from], to)
	delete(g.in[to], from)
}

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, tos := range g.out {
		n += len(tos)
	}
	return n
}

// Dependencies returns the keys this node depends on, sorted.
func (g *Graph) Dependencies(key string) []string {
	out := make([]string, 0, len(g.out[key]))
	for to := range g.out[key] {
		out = append(out, to)
	}
	sort.Strings(out)
	return out
}

// Dependents returns the keys depending on this node, sorted.
func (g *Graph) Dependents(key string) []string {
	out := make([]string, 0, len(g.in[key]))
	for from := range g.in[key] {
		out = append(out, from)
	}
	sort.Strings(out)
	return out
}

// Edges returns every edge, sorted by (from, to) for determinism.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for from, tos := range g.out {
		for to, kind := range tos {
			edges = append(edges, Edge{From: from, To: to, Kind: kind})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].From != edges[j].From {
			return edges[i].From < edges[j].From
		}
		return edges[i].To < edges[j].To
	})
	return edges
}

// CycleError reports a dependency cycle. Nodes holds the cycle path with
// the starting node repeated at the end, e.g. [A B A].
type CycleError struct {
	Nodes []entity.Header
}

// Error implements the error interface.
func (e *CycleError) Error() string {
	names := make([]string, 0, len(e.Nodes))
	for _, n := range e.Nodes {
		names = append(names, n.Name)
	}
	return fmt.Sprintf("circular dependency: %s", strings.Join(names, " -> "))
}

// SameKind reports whether every node in the cycle shares one kind. Such
// cycles indicate an encoding error in the source and are fatal.
func (e *CycleError) SameKind() bool {
	if len(e.Nodes) == 0 {
		return true
	}
	kind := e.Nodes[0].Kind
	for _, n := range e.Nodes[1:] {
		if n.Kind != kind {
			return false
		}
	}
	return true
}
