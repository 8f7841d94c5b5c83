// Package multigraph holds the directed multigraph that flow edges accumulate into.
//
// Nodes are created implicitly by the first edge that references them and are
// identified by exact string equality. Parallel edges between the same ordered
// pair are kept apart by relation kind and insertion order; nothing is merged.
//
// A Graph has two states. While building, Insert appends edges from a single
// writer. Seal moves it to built, after which the graph is read-only and every
// query is safe for concurrent readers.
package multigraph

import (
	"errors"
	"sort"
	"strconv"
	"sync"

	"flowgraph/pkg/models"
)

var (
	// ErrSealed is returned by Insert once the graph has been sealed.
	ErrSealed = errors.New("multigraph: graph is sealed")

	// ErrUnknownRelation is returned for an edge outside the six relation kinds.
	ErrUnknownRelation = errors.New("multigraph: unknown relation kind")
)

// edgeIDPrefix gives stable IDs "e1", "e2", ... in insertion order.
const edgeIDPrefix = "e"

// Node is a graph vertex.
type Node struct {
	ID string
	// Kinds records every role the node was referenced under.
	Kinds models.NodeKinds
	// Order is the 0-based position at which the node was first referenced.
	Order    int
	InCount  int
	OutCount int
}

// Ambiguous reports whether the node was referenced under more than one kind.
func (n Node) Ambiguous() bool {
	return len(n.Kinds.List()) > 1
}

// Graph is a directed multigraph of typed edges.
type Graph struct {
	mu     sync.RWMutex
	sealed bool

	nodes map[string]*Node
	order []string
	edges []models.Edge

	// out[from][to] lists edge indexes in insertion order.
	out map[string]map[string][]int
	in  map[string][]int

	byRelation map[models.RelationKind][]int
}

// New creates an empty graph in the building state.
func New() *Graph {
	return &Graph{
		nodes:      make(map[string]*Node),
		out:        make(map[string]map[string][]int),
		in:         make(map[string][]int),
		byRelation: make(map[models.RelationKind][]int),
	}
}

// Insert appends an edge and returns its assigned ID. Inserting the same edge twice
// yields two parallel edges. O(1) amortized.
func (g *Graph) Insert(e models.Edge) (string, error) {
	if !e.Relation.Valid() {
		return "", ErrUnknownRelation
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.sealed {
		return "", ErrSealed
	}

	idx := len(g.edges)
	e.ID = edgeIDPrefix + strconv.Itoa(idx+1)

	fromKind := e.FromKind
	if fromKind == 0 {
		fromKind = models.NodeEndpoint
	}
	g.touch(e.From, fromKind).OutCount++
	g.touch(e.To, e.ToKind).InCount++

	g.edges = append(g.edges, e)

	inner, ok := g.out[e.From]
	if !ok {
		inner = make(map[string][]int)
		g.out[e.From] = inner
	}
	inner[e.To] = append(inner[e.To], idx)
	g.in[e.To] = append(g.in[e.To], idx)
	g.byRelation[e.Relation] = append(g.byRelation[e.Relation], idx)

	return e.ID, nil
}

func (g *Graph) touch(id string, kind models.NodeKind) *Node {
	n, ok := g.nodes[id]
	if !ok {
		n = &Node{ID: id, Order: len(g.order)}
		g.nodes[id] = n
		g.order = append(g.order, id)
	}
	if kind != 0 {
		n.Kinds = n.Kinds.With(kind)
	}
	return n
}

// Seal ends the building state. Sealing twice is a no-op.
func (g *Graph) Seal() {
	g.mu.Lock()
	g.sealed = true
	g.mu.Unlock()
}

// Sealed reports whether Seal has been called.
func (g *Graph) Sealed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.sealed
}

// NodeCount returns the number of distinct nodes.
func (g *Graph) NodeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// EdgeCount returns the number of edges, parallel edges included.
func (g *Graph) EdgeCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// RelationKinds returns the relation kinds present, in canonical order.
func (g *Graph) RelationKinds() []models.RelationKind {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]models.RelationKind, 0, len(g.byRelation))
	for _, k := range models.Relations {
		if len(g.byRelation[k]) > 0 {
			out = append(out, k)
		}
	}
	return out
}

// RelationCount returns the number of edges of one kind.
func (g *Graph) RelationCount(kind models.RelationKind) int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.byRelation[kind])
}

// HasNode reports whether id is a node.
func (g *Graph) HasNode(id string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, ok := g.nodes[id]
	return ok
}

// Node returns a copy of one node.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[id]
	if !ok {
		return Node{}, false
	}
	return *n, true
}

// Nodes returns copies of all nodes in first-seen order.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, *g.nodes[id])
	}
	return out
}

// Edges returns all edges in insertion order. Attribute maps are shared with the
// graph and must not be modified.
func (g *Graph) Edges() []models.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]models.Edge(nil), g.edges...)
}

// OutEdges returns edges leaving id in insertion order.
func (g *Graph) OutEdges(id string) []models.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var idxs []int
	for _, list := range g.out[id] {
		idxs = append(idxs, list...)
	}
	return g.collectSorted(idxs)
}

// InEdges returns edges entering id in insertion order.
func (g *Graph) InEdges(id string) []models.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.in[id])
}

// EdgesBetween returns every edge from -> to, of any relation, in insertion order.
func (g *Graph) EdgesBetween(from, to string) []models.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.out[from][to])
}

// EdgesByRelation returns the edges of one kind in insertion order.
func (g *Graph) EdgesByRelation(kind models.RelationKind) []models.Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.collect(g.byRelation[kind])
}

func (g *Graph) collect(idxs []int) []models.Edge {
	out := make([]models.Edge, 0, len(idxs))
	for _, i := range idxs {
		out = append(out, g.edges[i])
	}
	return out
}

// collectSorted is collect for index lists gathered across map buckets.
func (g *Graph) collectSorted(idxs []int) []models.Edge {
	sort.Ints(idxs)
	return g.collect(idxs)
}
