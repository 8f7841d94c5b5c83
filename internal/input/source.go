// Package input defines the record source contract shared by the CSV and Redis readers.
package input

import (
	"context"
	"errors"
	"fmt"
	"io"

	"flowgraph/pkg/models"
)

// ErrMalformedSource marks input that cannot be read as tabular data at all.
var ErrMalformedSource = errors.New("input: malformed source")

// Source yields flow records in source order. Next returns io.EOF after the last record.
type Source interface {
	Next(ctx context.Context) (*models.FlowRecord, error)
	Close() error
}

// MalformedSourceError describes where a source stopped being parseable.
type MalformedSourceError struct {
	Source string
	Row    int
	Err    error
}

func (e *MalformedSourceError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("malformed source %s at row %d: %v", e.Source, e.Row, e.Err)
	}
	return fmt.Sprintf("malformed source %s: %v", e.Source, e.Err)
}

func (e *MalformedSourceError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match ErrMalformedSource.
func (e *MalformedSourceError) Is(target error) bool {
	return target == ErrMalformedSource
}

// Malformed wraps err as a MalformedSourceError.
func Malformed(source string, row int, err error) error {
	return &MalformedSourceError{Source: source, Row: row, Err: err}
}

// SliceSource serves records from memory. Rows are renumbered from 1 when unset.
type SliceSource struct {
	records []*models.FlowRecord
	pos     int
}

// NewSliceSource wraps records as a Source.
func NewSliceSource(records []*models.FlowRecord) *SliceSource {
	for i, r := range records {
		if r != nil && r.Row == 0 {
			r.Row = i + 1
		}
	}
	return &SliceSource{records: records}
}

// Next returns the next record.
func (s *SliceSource) Next(ctx context.Context) (*models.FlowRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for s.pos < len(s.records) {
		r := s.records[s.pos]
		s.pos++
		if r != nil {
			return r, nil
		}
	}
	return nil, io.EOF
}

// Close is a no-op.
func (s *SliceSource) Close() error {
	return nil
}
