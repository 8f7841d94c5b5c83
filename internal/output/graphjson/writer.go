package graphjson

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

// Config configures the JSON lines writer.
type Config struct {
	Path string
	// Append keeps existing file content instead of truncating it.
	Append bool
}

// Writer outputs adjacency rows to a JSON lines file.
type Writer struct {
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for adjacency rows.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("output path is required")
	}
	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if cfg.Append {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(cfg.Path, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	logger.Infof("Graph JSON writer initialized: %s", cfg.Path)
	return &Writer{
		file:    f,
		encoder: json.NewEncoder(f),
	}, nil
}

// WriteRows writes a batch of adjacency rows, one JSON object per line.
func (w *Writer) WriteRows(ctx context.Context, rows []*models.AdjacencyRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, row := range rows {
		if err := w.encoder.Encode(row); err != nil {
			return fmt.Errorf("failed to encode adjacency row: %w", err)
		}
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		err := w.file.Close()
		w.file = nil
		return err
	}
	return nil
}
