// Package flowrow converts raw tabular or JSON rows into typed flow records.
package flowrow

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"flowgraph/pkg/models"
)

// DefaultNAValues are the cell strings treated as missing. The set matches what the
// labeled flow datasets were produced with; "-" is deliberately absent because it
// is a real value in Zeek-derived columns.
var DefaultNAValues = []string{
	"", "#N/A", "#N/A N/A", "#NA", "-1.#IND", "-1.#QNAN", "-NaN", "-nan",
	"1.#IND", "1.#QNAN", "<NA>", "N/A", "NA", "NULL", "NaN", "None", "n/a", "nan", "null",
}

// columnAliases maps Zeek log field names onto the flat schema. An alias is only
// used when the canonical column is absent from the row.
var columnAliases = map[string]string{
	"id.orig_h":  models.ColSrcIP,
	"id.resp_h":  models.ColDstIP,
	"orig_bytes": models.ColSrcBytes,
	"resp_bytes": models.ColDstBytes,
}

// ZeekAliases returns a copy of the Zeek field name to flat column mapping.
func ZeekAliases() map[string]string {
	out := make(map[string]string, len(columnAliases))
	for alias, canonical := range columnAliases {
		out[alias] = canonical
	}
	return out
}

// Converter turns raw rows into FlowRecords.
type Converter struct {
	na map[string]struct{}
}

// NewConverter creates a converter. A nil naValues uses DefaultNAValues.
func NewConverter(naValues []string) *Converter {
	if naValues == nil {
		naValues = DefaultNAValues
	}
	na := make(map[string]struct{}, len(naValues))
	for _, v := range naValues {
		na[v] = struct{}{}
	}
	return &Converter{na: na}
}

// Cell converts one raw cell into a Value.
func (c *Converter) Cell(raw string) models.Value {
	if _, ok := c.na[raw]; ok {
		return models.Missing
	}
	return models.Present(raw)
}

// FromCells builds a record from a header and one row of cells. A short row is
// padded with missing values; a row longer than the header is an error.
func (c *Converter) FromCells(row int, header, cells []string) (*models.FlowRecord, error) {
	if len(cells) > len(header) {
		return nil, fmt.Errorf("row %d: expected %d fields, got %d", row, len(header), len(cells))
	}
	record := &models.FlowRecord{Row: row}
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		seen[name] = true
		record.Set(name, c.cellAt(cells, i))
	}
	for i, name := range header {
		if canonical, ok := columnAliases[name]; ok && !seen[canonical] {
			record.Set(canonical, c.cellAt(cells, i))
		}
	}
	return record, nil
}

func (c *Converter) cellAt(cells []string, i int) models.Value {
	if i >= len(cells) {
		return models.Missing
	}
	return c.Cell(cells[i])
}

// DedupeHeader renames repeated column names to name.1, name.2, ... in order of
// appearance, skipping suffixes that are already taken.
func DedupeHeader(header []string) []string {
	out := make([]string, len(header))
	taken := make(map[string]bool, len(header))
	for _, name := range header {
		taken[name] = true
	}
	used := make(map[string]bool, len(header))
	counts := make(map[string]int, len(header))
	for i, name := range header {
		if !used[name] {
			used[name] = true
			out[i] = name
			continue
		}
		var renamed string
		for {
			counts[name]++
			renamed = name + "." + strconv.Itoa(counts[name])
			if !taken[renamed] && !used[renamed] {
				break
			}
		}
		used[renamed] = true
		out[i] = renamed
	}
	return out
}

// FromMap builds a record from a decoded JSON object.
func (c *Converter) FromMap(row int, raw map[string]interface{}) *models.FlowRecord {
	record := &models.FlowRecord{Row: row}
	for name, v := range raw {
		record.Set(name, c.fromInterface(v))
	}
	for alias, canonical := range columnAliases {
		if _, ok := raw[canonical]; ok {
			continue
		}
		if v, ok := raw[alias]; ok {
			record.Set(canonical, c.fromInterface(v))
		}
	}
	return record
}

// Parse decodes a JSON object payload into a record. Numbers keep their literal text.
func (c *Converter) Parse(row int, data []byte) (*models.FlowRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("row %d: payload is not a JSON object", row)
	}
	return c.FromMap(row, raw), nil
}

func (c *Converter) fromInterface(v interface{}) models.Value {
	switch val := v.(type) {
	case nil:
		return models.Missing
	case string:
		return c.Cell(val)
	case json.Number:
		return c.Cell(val.String())
	case fmt.Stringer:
		return c.Cell(val.String())
	case int:
		return models.Present(fmt.Sprintf("%d", val))
	case int64:
		return models.Present(fmt.Sprintf("%d", val))
	case float64:
		if math.IsNaN(val) {
			return models.Missing
		}
		return models.Present(strconv.FormatFloat(val, 'f', -1, 64))
	case bool:
		if val {
			return models.Present("true")
		}
		return models.Present("false")
	case []interface{}:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			if text, ok := c.fromInterface(item).Get(); ok {
				parts = append(parts, text)
			}
		}
		return models.Present(strings.Join(parts, ","))
	default:
		return models.Present(fmt.Sprintf("%v", val))
	}
}
