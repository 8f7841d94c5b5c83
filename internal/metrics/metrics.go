// Package metrics exposes graph build counters through Prometheus.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

const namespace = "flowgraph"

// Metrics holds the build collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	recordsRead   prometheus.Counter
	recordsTagged prometheus.Counter
	edges         *prometheus.CounterVec
	edgesDropped  prometheus.Counter
	malformed     prometheus.Counter
	buildSeconds  prometheus.Histogram
	graphNodes    prometheus.Gauge
	graphEdges    prometheus.Gauge
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordsRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_read_total",
			Help:      "Flow records read from the source.",
		}),
		recordsTagged: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_tagged_total",
			Help:      "Flow records that matched at least one rule.",
		}),
		edges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_total",
			Help:      "Edges inserted into the graph by relation kind.",
		}, []string{"relation"}),
		edgesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_dropped_total",
			Help:      "Edges discarded because an endpoint was missing.",
		}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_sources_total",
			Help:      "Builds aborted on a malformed source.",
		}),
		buildSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Wall time of a full graph build.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		graphNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_nodes",
			Help:      "Nodes in the last built graph.",
		}),
		graphEdges: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "graph_edges",
			Help:      "Edges in the last built graph.",
		}),
	}
	m.registry.MustRegister(
		m.recordsRead,
		m.recordsTagged,
		m.edges,
		m.edgesDropped,
		m.malformed,
		m.buildSeconds,
		m.graphNodes,
		m.graphEdges,
	)
	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRead counts one source record.
func (m *Metrics) RecordRead(tagged bool) {
	if m == nil {
		return
	}
	m.recordsRead.Inc()
	if tagged {
		m.recordsTagged.Inc()
	}
}

// EdgeInserted counts one inserted edge.
func (m *Metrics) EdgeInserted(kind models.RelationKind) {
	if m == nil {
		return
	}
	m.edges.WithLabelValues(string(kind)).Inc()
}

// EdgesDropped counts edges discarded by the endpoint policy.
func (m *Metrics) EdgesDropped(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.edgesDropped.Add(float64(n))
}

// MalformedSource counts an aborted build.
func (m *Metrics) MalformedSource() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

// BuildFinished records the final graph size and build time.
func (m *Metrics) BuildFinished(nodes, edges int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.graphNodes.Set(float64(nodes))
	m.graphEdges.Set(float64(edges))
	m.buildSeconds.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("Metrics server shutdown: %v", err)
		}
	}()

	logger.Infof("Metrics listening on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
