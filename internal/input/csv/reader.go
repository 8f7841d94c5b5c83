package csv

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"flowgraph/internal/input"
	"flowgraph/internal/transform/flowrow"
	"flowgraph/pkg/models"
)

// Config configures the CSV reader.
type Config struct {
	Path string
	// NAValues overrides the cell strings treated as missing. Nil keeps the defaults.
	NAValues []string
}

// Reader streams flow records from a CSV file with a header row.
type Reader struct {
	name      string
	r         *csv.Reader
	closer    io.Closer
	header    []string
	converter *flowrow.Converter
	row       int
}

// Open opens a CSV file and reads its header.
func Open(cfg Config) (*Reader, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	f, err := os.Open(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open csv input: %w", err)
	}
	r, err := NewReader(cfg.Path, f, cfg.NAValues)
	if err != nil {
		f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader wraps an io.Reader. name is only used in error messages.
func NewReader(name string, src io.Reader, naValues []string) (*Reader, error) {
	cr := csv.NewReader(src)
	cr.ReuseRecord = false
	// Short rows are padded by the converter; long rows fail there.
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, input.Malformed(name, 0, fmt.Errorf("missing header row"))
	}
	if err != nil {
		return nil, input.Malformed(name, 0, err)
	}
	if len(header) > 0 {
		header[0] = trimBOM(header[0])
	}

	return &Reader{
		name:      name,
		r:         cr,
		header:    flowrow.DedupeHeader(header),
		converter: flowrow.NewConverter(naValues),
	}, nil
}

// Header returns the column names.
func (r *Reader) Header() []string {
	return append([]string(nil), r.header...)
}

// Next returns the next record or io.EOF.
func (r *Reader) Next(ctx context.Context) (*models.FlowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	cells, err := r.r.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	r.row++
	if err != nil {
		return nil, input.Malformed(r.name, r.row, err)
	}
	record, err := r.converter.FromCells(r.row, r.header, cells)
	if err != nil {
		return nil, input.Malformed(r.name, r.row, err)
	}
	return record, nil
}

// Close closes the underlying file, if the reader opened it.
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func trimBOM(s string) string {
	if len(s) >= 3 && s[0] == 0xEF && s[1] == 0xBB && s[2] == 0xBF {
		return s[3:]
	}
	return s
}
