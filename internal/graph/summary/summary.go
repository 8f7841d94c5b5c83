// Package summary reports counts over a built graph.
package summary

import (
	"fmt"
	"strings"

	"flowgraph/internal/graph/multigraph"
	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

// Report is a read-only snapshot of graph size.
type Report struct {
	RunID         string                      `json:"run_id,omitempty"`
	Nodes         int                         `json:"nodes"`
	Edges         int                         `json:"edges"`
	RelationKinds []models.RelationKind       `json:"relation_kinds"`
	PerRelation   map[models.RelationKind]int `json:"per_relation"`
	PerNodeKind   map[string]int              `json:"per_node_kind"`
	// AmbiguousNodes counts nodes referenced under more than one kind.
	AmbiguousNodes int `json:"ambiguous_nodes"`
}

// Summarize reads g without modifying it.
func Summarize(g *multigraph.Graph) Report {
	r := Report{
		Nodes:         g.NodeCount(),
		Edges:         g.EdgeCount(),
		RelationKinds: g.RelationKinds(),
		PerRelation:   make(map[models.RelationKind]int),
		PerNodeKind:   make(map[string]int),
	}
	for _, k := range r.RelationKinds {
		r.PerRelation[k] = g.RelationCount(k)
	}
	for _, n := range g.Nodes() {
		for _, name := range n.Kinds.Names() {
			r.PerNodeKind[name]++
		}
		if n.Ambiguous() {
			r.AmbiguousNodes++
		}
	}
	return r
}

// HasRelation reports whether kind is in the relation-kind set.
func (r Report) HasRelation(kind models.RelationKind) bool {
	for _, k := range r.RelationKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Headline is the one-line size summary.
func (r Report) Headline() string {
	return fmt.Sprintf("Graph built with %d nodes and %d edges.", r.Nodes, r.Edges)
}

// KindsLine lists the relation kinds present.
func (r Report) KindsLine() string {
	names := make([]string, 0, len(r.RelationKinds))
	for _, k := range r.RelationKinds {
		names = append(names, string(k))
	}
	return fmt.Sprintf("Edge types (views) include: {%s}", strings.Join(names, ", "))
}

// Log writes the report through the logger.
func (r Report) Log() {
	logger.Infof("%s", r.Headline())
	logger.Infof("%s", r.KindsLine())
	for _, k := range r.RelationKinds {
		logger.Debugf("relation %s: %d edges", k, r.PerRelation[k])
	}
	if r.AmbiguousNodes > 0 {
		logger.Warnf("%d nodes were referenced under more than one node kind", r.AmbiguousNodes)
	}
}
