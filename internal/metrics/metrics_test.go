package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgraph/pkg/models"
)

func value(t *testing.T, metric prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, metric.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestCountersAccumulate(t *testing.T) {
	m := New()
	m.RecordRead(false)
	m.RecordRead(true)
	m.EdgeInserted(models.RelationFlow)
	m.EdgeInserted(models.RelationFlow)
	m.EdgeInserted(models.RelationDNSQuery)
	m.EdgesDropped(3)
	m.EdgesDropped(0)
	m.MalformedSource()
	m.BuildFinished(5, 7, 20*time.Millisecond)

	assert.Equal(t, 2.0, value(t, m.recordsRead))
	assert.Equal(t, 1.0, value(t, m.recordsTagged))
	assert.Equal(t, 2.0, value(t, m.edges.WithLabelValues("flow")))
	assert.Equal(t, 1.0, value(t, m.edges.WithLabelValues("dns_query")))
	assert.Equal(t, 3.0, value(t, m.edgesDropped))
	assert.Equal(t, 1.0, value(t, m.malformed))
	assert.Equal(t, 5.0, value(t, m.graphNodes))
	assert.Equal(t, 7.0, value(t, m.graphEdges))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordRead(true)
	m.EdgeInserted(models.RelationFlow)
	m.EdgesDropped(1)
	m.MalformedSource()
	m.BuildFinished(1, 1, time.Second)
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.EdgeInserted(models.RelationHTTPRequest)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `flowgraph_edges_total{relation="http_request"} 1`)
}
