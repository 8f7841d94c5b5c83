// Package graphneo4j writes exported graph rows into Neo4j with batched UNWIND queries.
package graphneo4j

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

const nodeLabel = "Node"

// Config configures the Neo4j connection.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Runner executes a Cypher query with parameters.
type Runner interface {
	Run(ctx context.Context, query string, params map[string]interface{}) error
}

// Executor is a Runner backed by the Neo4j driver.
type Executor struct {
	Driver neo4j.DriverWithContext
	DBName string
}

// NewExecutor creates a driver and verifies connectivity.
func NewExecutor(ctx context.Context, cfg Config) (*Executor, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("could not create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Executor{Driver: driver, DBName: cfg.Database}, nil
}

// Run executes query in a managed write transaction.
func (e *Executor) Run(ctx context.Context, query string, params map[string]interface{}) error {
	_, err := neo4j.ExecuteQuery(ctx, e.Driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(e.DBName),
	)
	if err != nil {
		return fmt.Errorf("error executing neo4j query: %w", err)
	}
	return nil
}

// Close closes the driver.
func (e *Executor) Close(ctx context.Context) error {
	return e.Driver.Close(ctx)
}

// Writer turns adjacency rows into Node merges and typed relationship creates.
type Writer struct {
	runner Runner
	closer func() error
}

// NewWriter connects to Neo4j and returns a writer that owns the driver.
func NewWriter(ctx context.Context, cfg Config) (*Writer, error) {
	exec, err := NewExecutor(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Infof("Graph Neo4j writer initialized: %s (database=%s)", cfg.URI, cfg.Database)
	return &Writer{
		runner: exec,
		closer: func() error { return exec.Close(context.Background()) },
	}, nil
}

// NewWriterWithRunner wraps an existing Runner. Close does not release it.
func NewWriterWithRunner(runner Runner) *Writer {
	return &Writer{runner: runner}
}

// WriteRows issues one UNWIND for the vertex rows of the batch and one per relation
// kind for its edge rows. Nodes are merged by id; edges are always created.
func (w *Writer) WriteRows(ctx context.Context, rows []*models.AdjacencyRow) error {
	var vertices []map[string]interface{}
	edges := make(map[string][]map[string]interface{})

	for _, row := range rows {
		if row == nil {
			continue
		}
		switch row.RecordType {
		case models.RecordVertex:
			vertices = append(vertices, vertexParams(row))
		case models.RecordEdge:
			edges[row.Type] = append(edges[row.Type], edgeParams(row))
		}
	}

	if len(vertices) > 0 {
		if err := w.runner.Run(ctx, vertexQuery(), map[string]interface{}{"rows": vertices}); err != nil {
			return fmt.Errorf("merge %d nodes: %w", len(vertices), err)
		}
	}

	relations := make([]string, 0, len(edges))
	for rel := range edges {
		relations = append(relations, rel)
	}
	sort.Strings(relations)
	for _, rel := range relations {
		batch := edges[rel]
		if err := w.runner.Run(ctx, edgeQuery(rel), map[string]interface{}{"rows": batch}); err != nil {
			return fmt.Errorf("create %d %s edges: %w", len(batch), rel, err)
		}
	}
	return nil
}

// Close releases the driver when the writer created it.
func (w *Writer) Close() error {
	if w.closer == nil {
		return nil
	}
	return w.closer()
}

// Nodes are keyed by (id, run_id) so runs sharing a database stay separate.
func vertexQuery() string {
	return "UNWIND $rows AS row " +
		"MERGE (n:" + nodeLabel + " {id: row.id, run_id: row.run_id}) " +
		"SET n.kinds = row.kinds, n.type = row.type"
}

func edgeQuery(relation string) string {
	return "UNWIND $rows AS row " +
		"MERGE (a:" + nodeLabel + " {id: row.from, run_id: row.run_id}) " +
		"MERGE (b:" + nodeLabel + " {id: row.to, run_id: row.run_id}) " +
		"CREATE (a)-[r:" + relationshipType(relation) + " {edge_id: row.edge_id, run_id: row.run_id, row: row.row}]->(b) " +
		"SET r += row.props"
}

// relationshipType upper-cases a relation kind into a Cypher relationship type.
// Relation kinds are a closed lowercase set, so no quoting is needed.
func relationshipType(relation string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(relation) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "RELATED"
	}
	return b.String()
}

func vertexParams(row *models.AdjacencyRow) map[string]interface{} {
	kinds := row.Kinds
	if kinds == nil {
		kinds = []string{}
	}
	return map[string]interface{}{
		"id":     row.VertexID,
		"type":   row.Type,
		"kinds":  kinds,
		"run_id": row.RunID,
	}
}

// edgeParams drops nil attributes; Neo4j has no null-valued properties.
func edgeParams(row *models.AdjacencyRow) map[string]interface{} {
	props := make(map[string]interface{}, len(row.Data)+1)
	for k, v := range row.Data {
		if v != nil {
			props[k] = v
		}
	}
	if len(row.IoaTags) > 0 {
		ids := make([]string, 0, len(row.IoaTags))
		for _, tag := range row.IoaTags {
			ids = append(ids, tag.ID)
		}
		props["ioa_ids"] = ids
	}
	return map[string]interface{}{
		"from":    row.VertexID,
		"to":      row.AdjacentID,
		"edge_id": row.EdgeID,
		"run_id":  row.RunID,
		"row":     int64(row.Row),
		"props":   props,
	}
}
