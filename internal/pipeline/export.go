package pipeline

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"flowgraph/internal/graph/adjacency"
	"flowgraph/internal/logger"
)

const defaultExportBatch = 1000

// Exporter writes a built graph to an AdjacencyWriter in batches.
type Exporter struct {
	mapper    *adjacency.Mapper
	writer    AdjacencyWriter
	batchSize int
}

// NewExporter creates an exporter. batchSize <= 0 uses the default.
func NewExporter(mapper *adjacency.Mapper, writer AdjacencyWriter, batchSize int) *Exporter {
	if batchSize <= 0 {
		batchSize = defaultExportBatch
	}
	return &Exporter{mapper: mapper, writer: writer, batchSize: batchSize}
}

// Export maps res.Graph to rows and flushes them. Export never alters the graph.
func (e *Exporter) Export(ctx context.Context, res *Result) (int, error) {
	if res == nil || res.Graph == nil {
		return 0, fmt.Errorf("export: no graph")
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.export")
	defer span.End()
	span.SetAttributes(attribute.String("flowgraph.run_id", res.RunID))

	rows := e.mapper.Map(res.RunID, res.Graph)
	written := 0
	for start := 0; start < len(rows); start += e.batchSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		end := start + e.batchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := e.writer.WriteRows(ctx, rows[start:end]); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return written, fmt.Errorf("write adjacency rows: %w", err)
		}
		written = end
	}

	span.SetAttributes(attribute.Int("flowgraph.rows", written))
	logger.Infof("Exported %d adjacency rows (run=%s)", written, res.RunID)
	return written, nil
}

// Close releases the writer.
func (e *Exporter) Close() error {
	if e.writer == nil {
		return nil
	}
	if err := e.writer.Close(); err != nil {
		logger.Errorf("Failed to close adjacency writer: %v", err)
		return err
	}
	return nil
}
