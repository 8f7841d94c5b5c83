package rules

import "flowgraph/pkg/models"

// Engine tags flow records with rule matches.
type Engine interface {
	Apply(record *models.FlowRecord) []models.IoaTag
}

// NoopEngine returns no tags.
type NoopEngine struct{}

// Apply returns an empty tag list.
func (n *NoopEngine) Apply(record *models.FlowRecord) []models.IoaTag {
	return nil
}
