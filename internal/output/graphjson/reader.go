package graphjson

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

// ReadRows loads adjacency rows from a JSONL export. Undecodable lines are skipped.
func ReadRows(path string) ([]*models.AdjacencyRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer f.Close()

	rows := make([]*models.AdjacencyRow, 0, 4096)
	s := bufio.NewScanner(f)
	buf := make([]byte, 0, 1024*1024)
	s.Buffer(buf, 8*1024*1024)

	line := 0
	skipped := 0
	for s.Scan() {
		line++
		text := strings.TrimSpace(s.Text())
		if text == "" {
			continue
		}
		var row models.AdjacencyRow
		if err := json.Unmarshal([]byte(text), &row); err != nil {
			skipped++
			logger.Debugf("Skipping line %d of %s: %v", line, path, err)
			continue
		}
		rows = append(rows, &row)
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	if skipped > 0 {
		logger.Warnf("Skipped %d undecodable lines in %s", skipped, path)
	}
	return rows, nil
}
