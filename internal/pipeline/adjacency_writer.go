package pipeline

import (
	"context"

	"flowgraph/pkg/models"
)

// AdjacencyWriter writes exported graph rows.
type AdjacencyWriter interface {
	WriteRows(ctx context.Context, rows []*models.AdjacencyRow) error
	Close() error
}
