// Package graphredis persists exported graph rows in Redis and reads them back.
//
// Key layout under <prefix>:<run_id>:
//
//	node:<id>       hash of node fields, plus ioa_count for tagged sources
//	edge:<edge_id>  hash of edge fields, attributes JSON-encoded
//	out:<id>        list of outgoing edge IDs in insertion order
//	relations       hash of relation kind to edge count
//	tagged          set of nodes that sourced a tagged edge
//
// <prefix>:runs is the set of run IDs written.
package graphredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	redis "github.com/redis/go-redis/v9"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

const defaultPrefix = "flowgraph:graph"

// Config configures Redis access for graph persistence.
type Config struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// EdgeState is one edge read back from Redis.
type EdgeState struct {
	ID       string
	From     string
	To       string
	Relation string
	Row      int
	Data     map[string]interface{}
	IoaCount int
}

// Store writes adjacency rows into Redis keys.
type Store struct {
	client *redis.Client
	prefix string
}

// NewStore constructs a Redis-backed graph store.
func NewStore(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.Addr) == "" {
		cfg.Addr = "127.0.0.1:6379"
	}
	if strings.TrimSpace(cfg.KeyPrefix) == "" {
		cfg.KeyPrefix = defaultPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis graph store: %w", err)
	}

	logger.Infof("Graph Redis store initialized: %s (prefix=%s)", cfg.Addr, cfg.KeyPrefix)
	return &Store{client: client, prefix: strings.TrimSpace(cfg.KeyPrefix)}, nil
}

// WriteRows stores a batch of vertex and edge rows in one pipeline.
func (s *Store) WriteRows(ctx context.Context, rows []*models.AdjacencyRow) error {
	if len(rows) == 0 {
		return nil
	}
	pipe := s.client.Pipeline()
	runs := make(map[string]struct{})

	for _, row := range rows {
		if row == nil {
			continue
		}
		runs[row.RunID] = struct{}{}
		switch row.RecordType {
		case models.RecordVertex:
			s.queueVertex(ctx, pipe, row)
		case models.RecordEdge:
			if err := s.queueEdge(ctx, pipe, row); err != nil {
				pipe.Discard()
				return err
			}
		}
	}
	for run := range runs {
		pipe.SAdd(ctx, s.runsKey(), run)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("update graph redis keys: %w", err)
	}
	return nil
}

func (s *Store) queueVertex(ctx context.Context, pipe redis.Pipeliner, row *models.AdjacencyRow) {
	fields := []interface{}{
		"id", row.VertexID,
		"type", row.Type,
		"kinds", strings.Join(row.Kinds, "|"),
	}
	for _, name := range []string{"order", "in_degree", "out_degree"} {
		if v, ok := row.Data[name]; ok {
			fields = append(fields, name, fmt.Sprint(v))
		}
	}
	pipe.HSet(ctx, s.nodeKey(row.RunID, row.VertexID), fields...)
}

func (s *Store) queueEdge(ctx context.Context, pipe redis.Pipeliner, row *models.AdjacencyRow) error {
	data, err := json.Marshal(row.Data)
	if err != nil {
		return fmt.Errorf("encode edge %s data: %w", row.EdgeID, err)
	}
	pipe.HSet(ctx, s.edgeKey(row.RunID, row.EdgeID),
		"id", row.EdgeID,
		"from", row.VertexID,
		"to", row.AdjacentID,
		"relation", row.Type,
		"row", strconv.Itoa(row.Row),
		"data", string(data),
		"ioa_count", strconv.Itoa(len(row.IoaTags)),
	)
	pipe.RPush(ctx, s.outKey(row.RunID, row.VertexID), row.EdgeID)
	pipe.HIncrBy(ctx, s.relationsKey(row.RunID), row.Type, 1)

	if len(row.IoaTags) > 0 {
		pipe.HIncrBy(ctx, s.nodeKey(row.RunID, row.VertexID), "ioa_count", int64(len(row.IoaTags)))
		pipe.SAdd(ctx, s.taggedKey(row.RunID), row.VertexID)
	}
	return nil
}

// Runs returns the run IDs written under this prefix.
func (s *Store) Runs(ctx context.Context) ([]string, error) {
	runs, err := s.client.SMembers(ctx, s.runsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("read graph runs: %w", err)
	}
	return runs, nil
}

// Node returns the stored hash of one node, or nil if it was never written.
func (s *Store) Node(ctx context.Context, runID, id string) (map[string]string, error) {
	hash, err := s.client.HGetAll(ctx, s.nodeKey(runID, id)).Result()
	if err != nil {
		return nil, fmt.Errorf("read node %s: %w", id, err)
	}
	if len(hash) == 0 {
		return nil, nil
	}
	return hash, nil
}

// OutEdges returns the edges leaving id in insertion order.
func (s *Store) OutEdges(ctx context.Context, runID, id string) ([]EdgeState, error) {
	ids, err := s.client.LRange(ctx, s.outKey(runID, id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read out edges of %s: %w", id, err)
	}
	edges := make([]EdgeState, 0, len(ids))
	for _, edgeID := range ids {
		hash, err := s.client.HGetAll(ctx, s.edgeKey(runID, edgeID)).Result()
		if err != nil || len(hash) == 0 {
			continue
		}
		st := EdgeState{
			ID:       edgeID,
			From:     hash["from"],
			To:       hash["to"],
			Relation: hash["relation"],
		}
		st.Row, _ = strconv.Atoi(hash["row"])
		st.IoaCount, _ = strconv.Atoi(hash["ioa_count"])
		if raw := hash["data"]; raw != "" && raw != "null" {
			if err := json.Unmarshal([]byte(raw), &st.Data); err != nil {
				logger.Warnf("Skipping undecodable data on edge %s: %v", edgeID, err)
			}
		}
		edges = append(edges, st)
	}
	return edges, nil
}

// RelationCounts returns the edge count per relation kind for a run.
func (s *Store) RelationCounts(ctx context.Context, runID string) (map[string]int64, error) {
	hash, err := s.client.HGetAll(ctx, s.relationsKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read relation counts: %w", err)
	}
	out := make(map[string]int64, len(hash))
	for k, v := range hash {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// TaggedNodes returns the nodes that sourced at least one tagged edge.
func (s *Store) TaggedNodes(ctx context.Context, runID string) ([]string, error) {
	nodes, err := s.client.SMembers(ctx, s.taggedKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read tagged nodes: %w", err)
	}
	return nodes, nil
}

// Close closes Redis resources.
func (s *Store) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}

func (s *Store) runKey(runID string) string {
	return s.prefix + ":" + runID
}

func (s *Store) nodeKey(runID, id string) string {
	return s.runKey(runID) + ":node:" + id
}

func (s *Store) edgeKey(runID, id string) string {
	return s.runKey(runID) + ":edge:" + id
}

func (s *Store) outKey(runID, id string) string {
	return s.runKey(runID) + ":out:" + id
}

func (s *Store) relationsKey(runID string) string {
	return s.runKey(runID) + ":relations"
}

func (s *Store) taggedKey(runID string) string {
	return s.runKey(runID) + ":tagged"
}

func (s *Store) runsKey() string {
	return s.prefix + ":runs"
}
