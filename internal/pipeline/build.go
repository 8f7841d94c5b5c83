package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"flowgraph/internal/graph/classifier"
	"flowgraph/internal/graph/multigraph"
	"flowgraph/internal/graph/summary"
	"flowgraph/internal/input"
	"flowgraph/internal/logger"
	"flowgraph/internal/metrics"
	"flowgraph/internal/rules"
	"flowgraph/pkg/models"
)

const tracerName = "flowgraph/pipeline"

// Options configures a graph build.
type Options struct {
	Graph   classifier.Options
	Engine  rules.Engine
	Metrics *metrics.Metrics
	// Workers above 1 classifies records concurrently. Insertion order is unchanged.
	Workers int
	// RunID tags the build; a random UUID is used when empty.
	RunID string
}

// Result is a sealed graph and its summary.
type Result struct {
	RunID   string
	Graph   *multigraph.Graph
	Report  summary.Report
	Records int
	Tagged  int
	Dropped int
	Elapsed time.Duration
}

// Builder turns a record source into a sealed multigraph.
type Builder struct {
	classifier *classifier.Classifier
	engine     rules.Engine
	metrics    *metrics.Metrics
	workers    int
	runID      string
}

type job struct {
	seq    int
	record *models.FlowRecord
}

type classified struct {
	seq    int
	tagged bool
	result classifier.Result
}

type buildStats struct {
	records int
	tagged  int
	dropped int
}

// NewBuilder validates opts and creates a builder.
func NewBuilder(opts Options) (*Builder, error) {
	c, err := classifier.New(opts.Graph)
	if err != nil {
		return nil, fmt.Errorf("create classifier: %w", err)
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Builder{
		classifier: c,
		engine:     opts.Engine,
		metrics:    opts.Metrics,
		workers:    workers,
		runID:      runID,
	}, nil
}

// Build consumes src to the end and returns the sealed graph. Any source error,
// including a malformed source, aborts the build and no graph is returned.
func Build(ctx context.Context, src input.Source, opts Options) (*Result, error) {
	b, err := NewBuilder(opts)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, src)
}

// RunID returns the identifier stamped on this builder's output.
func (b *Builder) RunID() string {
	return b.runID
}

// Build consumes src to the end and returns the sealed graph.
func (b *Builder) Build(ctx context.Context, src input.Source) (*Result, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "pipeline.build", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(
		attribute.String("flowgraph.run_id", b.runID),
		attribute.Int("flowgraph.workers", b.workers),
		attribute.String("flowgraph.policy", string(b.classifier.Policy())),
	)

	logger.Infof("Graph build started (run=%s, workers=%d, policy=%s)", b.runID, b.workers, b.classifier.Policy())
	start := time.Now()

	g := multigraph.New()
	var stats buildStats
	var err error
	if b.workers > 1 {
		err = b.buildParallel(ctx, src, g, &stats)
	} else {
		err = b.buildSequential(ctx, src, g, &stats)
	}
	if err != nil {
		if errors.Is(err, input.ErrMalformedSource) {
			b.metrics.MalformedSource()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Errorf("Graph build aborted after %d records: %v", stats.records, err)
		return nil, fmt.Errorf("build graph: %w", err)
	}

	g.Seal()
	elapsed := time.Since(start)

	report := summary.Summarize(g)
	report.RunID = b.runID
	b.metrics.BuildFinished(report.Nodes, report.Edges, elapsed)
	span.SetAttributes(
		attribute.Int("flowgraph.records", stats.records),
		attribute.Int("flowgraph.nodes", report.Nodes),
		attribute.Int("flowgraph.edges", report.Edges),
	)
	logger.Infof("Graph build finished in %s (records=%d, tagged=%d, dropped_edges=%d)",
		elapsed.Round(time.Millisecond), stats.records, stats.tagged, stats.dropped)

	return &Result{
		RunID:   b.runID,
		Graph:   g,
		Report:  report,
		Records: stats.records,
		Tagged:  stats.tagged,
		Dropped: stats.dropped,
		Elapsed: elapsed,
	}, nil
}

func (b *Builder) buildSequential(ctx context.Context, src input.Source, g *multigraph.Graph, stats *buildStats) error {
	for seq := 0; ; seq++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		record, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := b.insert(g, b.classify(seq, record), stats); err != nil {
			return err
		}
	}
}

// buildParallel reads on one goroutine, classifies on b.workers goroutines and
// inserts on one writer that restores source order before each insert.
func (b *Builder) buildParallel(ctx context.Context, src input.Source, g *multigraph.Graph, stats *buildStats) error {
	grp, gctx := errgroup.WithContext(ctx)
	jobs := make(chan job, b.workers*4)
	results := make(chan classified, b.workers*4)

	grp.Go(func() error {
		defer close(jobs)
		for seq := 0; ; seq++ {
			record, err := src.Next(gctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return err
			}
			select {
			case jobs <- job{seq: seq, record: record}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var workers sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		workers.Add(1)
		grp.Go(func() error {
			defer workers.Done()
			for j := range jobs {
				select {
				case results <- b.classify(j.seq, j.record):
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	grp.Go(func() error {
		workers.Wait()
		close(results)
		return nil
	})

	grp.Go(func() error {
		pending := make(map[int]classified)
		next := 0
		for c := range results {
			pending[c.seq] = c
			for {
				ready, ok := pending[next]
				if !ok {
					break
				}
				delete(pending, next)
				if err := b.insert(g, ready, stats); err != nil {
					return err
				}
				next++
			}
		}
		return nil
	})

	return grp.Wait()
}

func (b *Builder) classify(seq int, record *models.FlowRecord) classified {
	tagged := false
	if b.engine != nil {
		record.IoaTags = b.engine.Apply(record)
		tagged = len(record.IoaTags) > 0
	}
	return classified{seq: seq, tagged: tagged, result: b.classifier.Classify(record)}
}

func (b *Builder) insert(g *multigraph.Graph, c classified, stats *buildStats) error {
	stats.records++
	if c.tagged {
		stats.tagged++
	}
	stats.dropped += c.result.Dropped
	b.metrics.RecordRead(c.tagged)
	b.metrics.EdgesDropped(c.result.Dropped)

	for _, e := range c.result.Edges {
		if _, err := g.Insert(e); err != nil {
			return fmt.Errorf("insert %s edge: %w", e.Relation, err)
		}
		b.metrics.EdgeInserted(e.Relation)
	}
	return nil
}
