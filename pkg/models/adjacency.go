package models

// AdjacencyRow is one exported graph record: a vertex row or an edge row.
type AdjacencyRow struct {
	RunID      string                 `json:"run_id,omitempty"`
	RecordType string                 `json:"record_type"` // vertex or edge
	Type       string                 `json:"type"`
	VertexID   string                 `json:"vertex_id"`
	AdjacentID string                 `json:"adjacent_id,omitempty"`
	EdgeID     string                 `json:"edge_id,omitempty"`
	Row        int                    `json:"row,omitempty"`
	Kinds      []string               `json:"kinds,omitempty"`
	Data       map[string]interface{} `json:"data,omitempty"`
	IoaTags    []IoaTag               `json:"ioa_tags,omitempty"`
}

const (
	RecordVertex = "vertex"
	RecordEdge   = "edge"
)
