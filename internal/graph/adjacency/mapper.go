// Package adjacency flattens a built multigraph into vertex and edge rows for export.
package adjacency

import (
	"flowgraph/internal/graph/multigraph"
	"flowgraph/pkg/models"
)

// Mapper converts graph elements into adjacency rows.
type Mapper struct {
	writeVertexRows bool
	includeEdgeData bool
}

// MapperOptions controls mapper output size and fidelity.
type MapperOptions struct {
	WriteVertexRows bool
	IncludeEdgeData bool
}

// NewMapper creates a mapper.
func NewMapper(opts MapperOptions) *Mapper {
	return &Mapper{
		writeVertexRows: opts.WriteVertexRows,
		includeEdgeData: opts.IncludeEdgeData,
	}
}

// Map converts the whole graph: vertex rows in first-seen order, then edge rows in
// insertion order.
func (m *Mapper) Map(runID string, g *multigraph.Graph) []*models.AdjacencyRow {
	if g == nil {
		return nil
	}
	nodes := g.Nodes()
	edges := g.Edges()

	rows := make([]*models.AdjacencyRow, 0, len(nodes)+len(edges))
	if m.writeVertexRows {
		for _, n := range nodes {
			rows = append(rows, m.MapNode(runID, n))
		}
	}
	for _, e := range edges {
		rows = append(rows, m.MapEdge(runID, e))
	}
	return rows
}

// MapNode converts one node into a vertex row.
func (m *Mapper) MapNode(runID string, n multigraph.Node) *models.AdjacencyRow {
	return &models.AdjacencyRow{
		RunID:      runID,
		RecordType: models.RecordVertex,
		Type:       vertexType(n.Kinds),
		VertexID:   n.ID,
		Kinds:      n.Kinds.Names(),
		Data: map[string]interface{}{
			"order":      n.Order,
			"in_degree":  n.InCount,
			"out_degree": n.OutCount,
		},
	}
}

// MapEdge converts one edge into an edge row. Missing attributes become nil.
func (m *Mapper) MapEdge(runID string, e models.Edge) *models.AdjacencyRow {
	row := &models.AdjacencyRow{
		RunID:      runID,
		RecordType: models.RecordEdge,
		Type:       string(e.Relation),
		VertexID:   e.From,
		AdjacentID: e.To,
		EdgeID:     e.ID,
		Row:        e.Row,
	}
	if m.includeEdgeData && len(e.Attrs) > 0 {
		data := make(map[string]interface{}, len(e.Attrs))
		for name, v := range e.Attrs {
			data[name] = v.Interface()
		}
		row.Data = data
	}
	if len(e.IoaTags) > 0 {
		row.IoaTags = append([]models.IoaTag(nil), e.IoaTags...)
	}
	return row
}

// vertexType names the node by its single kind, or "mixed" when it was referenced
// under several.
func vertexType(kinds models.NodeKinds) string {
	list := kinds.List()
	switch len(list) {
	case 0:
		return "unknown"
	case 1:
		return list[0].String()
	default:
		return "mixed"
	}
}
