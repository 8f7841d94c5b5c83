package graphredis

import (
	"context"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgraph/pkg/models"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	s, err := NewStore(Config{Addr: mr.Addr(), KeyPrefix: "test"})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, mr
}

func sampleRows() []*models.AdjacencyRow {
	return []*models.AdjacencyRow{
		{RunID: "r1", RecordType: models.RecordVertex, Type: "endpoint", VertexID: "10.0.0.1", Kinds: []string{"endpoint"},
			Data: map[string]interface{}{"order": 0, "in_degree": 0, "out_degree": 2}},
		{RunID: "r1", RecordType: models.RecordEdge, Type: "flow", VertexID: "10.0.0.1", AdjacentID: "10.0.0.2", EdgeID: "e1", Row: 1,
			Data: map[string]interface{}{"proto": "tcp", "duration": nil}},
		{RunID: "r1", RecordType: models.RecordEdge, Type: "dns_query", VertexID: "10.0.0.1", AdjacentID: "c2.example", EdgeID: "e2", Row: 1,
			IoaTags: []models.IoaTag{{ID: "rule-1"}}},
	}
}

func TestWriteRowsAndReadBack(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRows(ctx, sampleRows()))

	node, err := s.Node(ctx, "r1", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, "endpoint", node["kinds"])
	assert.Equal(t, "2", node["out_degree"])
	assert.Equal(t, "1", node["ioa_count"])

	edges, err := s.OutEdges(ctx, "r1", "10.0.0.1")
	require.NoError(t, err)
	require.Len(t, edges, 2)
	assert.Equal(t, "e1", edges[0].ID)
	assert.Equal(t, "flow", edges[0].Relation)
	assert.Equal(t, "10.0.0.2", edges[0].To)
	assert.Equal(t, 1, edges[0].Row)
	assert.Equal(t, "tcp", edges[0].Data["proto"])
	assert.Nil(t, edges[0].Data["duration"])
	assert.Equal(t, "dns_query", edges[1].Relation)
	assert.Equal(t, 1, edges[1].IoaCount)
	assert.Nil(t, edges[1].Data)

	counts, err := s.RelationCounts(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"flow": 1, "dns_query": 1}, counts)

	tagged, err := s.TaggedNodes(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1"}, tagged)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, runs)
}

func TestRunsAreKeptApart(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.WriteRows(ctx, sampleRows()))

	second := sampleRows()
	for _, r := range second {
		r.RunID = "r2"
	}
	require.NoError(t, s.WriteRows(ctx, second[:2]))

	counts, err := s.RelationCounts(ctx, "r2")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"flow": 1}, counts)

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	sort.Strings(runs)
	assert.Equal(t, []string{"r1", "r2"}, runs)
}

func TestNodeNotFound(t *testing.T) {
	s, _ := newTestStore(t)
	node, err := s.Node(context.Background(), "r1", "nope")
	require.NoError(t, err)
	assert.Nil(t, node)
}

func TestWriteRowsEmptyBatch(t *testing.T) {
	s, mr := newTestStore(t)
	require.NoError(t, s.WriteRows(context.Background(), nil))
	assert.Empty(t, mr.Keys())
}

func TestNewStoreFailsWithoutServer(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewStore(Config{Addr: addr})
	assert.Error(t, err)
}
