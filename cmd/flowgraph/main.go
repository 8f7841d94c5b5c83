package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"flowgraph/config"
	"flowgraph/internal/graph/adjacency"
	"flowgraph/internal/graph/classifier"
	"flowgraph/internal/input"
	inputcsv "flowgraph/internal/input/csv"
	inputredis "flowgraph/internal/input/redis"
	"flowgraph/internal/logger"
	"flowgraph/internal/metrics"
	"flowgraph/internal/output/graphjson"
	"flowgraph/internal/output/graphneo4j"
	"flowgraph/internal/output/graphredis"
	"flowgraph/internal/pipeline"
	"flowgraph/internal/rules"
)

const defaultConfigName = "flowgraph.yml"

func findConfigFile(configArg string) string {
	if configArg != "" {
		path := configArg
		if _, err := os.Stat(path); err == nil {
			return path
		}
		log.Printf("Warning: config file not found at %s, trying default locations", path)
	}

	if _, err := os.Stat(defaultConfigName); err == nil {
		return defaultConfigName
	}

	exePath, err := os.Executable()
	if err == nil {
		exeDir := filepath.Dir(exePath)
		path := filepath.Join(exeDir, defaultConfigName)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// loadConfig reads the discovered config file. Without one, flags alone drive the
// build and logging goes to the console.
func loadConfig(configArg string) (*config.Config, string, error) {
	path := findConfigFile(configArg)
	if path == "" {
		cfg := &config.Config{}
		cfg.FlowGraph.Logging.Enabled = true
		cfg.FlowGraph.Logging.Console = true
		return cfg, "", nil
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

type buildFlags struct {
	config  string
	input   string
	workers int
	policy  string
	output  string
	rules   string
}

func (f *buildFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.config, "config", "", "Path to flowgraph.yml")
	fs.StringVar(&f.input, "input", "", "CSV input path (overrides input.csv.path and selects csv input)")
	fs.IntVar(&f.workers, "workers", 0, "Classification workers (overrides pipeline.workers)")
	fs.StringVar(&f.policy, "policy", "", "Missing endpoint policy: drop|keep-with-sentinel")
	fs.StringVar(&f.output, "output", "", "Export mode: none|file|redis|neo4j")
	fs.StringVar(&f.rules, "rules", "", "Sigma rule file or directory (enables rule tagging)")
}

func (f *buildFlags) apply(cfg *config.Config) {
	fg := &cfg.FlowGraph
	if f.input != "" {
		fg.Input.Mode = "csv"
		fg.Input.CSV.Path = f.input
	}
	if f.workers > 0 {
		fg.Pipeline.Workers = f.workers
	}
	if f.policy != "" {
		fg.Graph.MissingEndpointPolicy = f.policy
	}
	if f.output != "" {
		fg.Output.Mode = f.output
	}
	if f.rules != "" {
		fg.Rules.Enabled = true
		fg.Rules.Path = f.rules
	}
}

func setup(flags *buildFlags) (*config.Config, error) {
	cfg, path, err := loadConfig(flags.config)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	flags.apply(cfg)
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	lc := cfg.FlowGraph.Logging
	if err := logger.Init(logger.Options{Enabled: lc.Enabled, Level: lc.Level, File: lc.File, Console: lc.Console}); err != nil {
		return nil, fmt.Errorf("initialize logger: %w", err)
	}
	if path != "" {
		logger.Infof("Config loaded from: %s", path)
	}
	return cfg, nil
}

func openSource(cfg *config.Config) (input.Source, error) {
	in := cfg.FlowGraph.Input
	switch in.Mode {
	case "csv":
		r, err := inputcsv.Open(inputcsv.Config{Path: in.CSV.Path, NAValues: in.NAValues})
		if err != nil {
			return nil, err
		}
		logger.Infof("Input mode: csv (%s, %d columns)", in.CSV.Path, len(r.Header()))
		return r, nil
	case "redis":
		c, err := inputredis.NewConsumer(inputredis.Config{
			Addr:     in.Redis.Addr,
			Password: in.Redis.Password,
			DB:       in.Redis.DB,
			Key:      in.Redis.Key,
			NAValues: in.NAValues,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Input mode: redis (%s key=%s)", in.Redis.Addr, in.Redis.Key)
		return c, nil
	}
	return nil, fmt.Errorf("unknown input mode: %s", in.Mode)
}

func loadRules(cfg *config.Config) (rules.Engine, error) {
	rc := cfg.FlowGraph.Rules
	if !rc.Enabled {
		return nil, nil
	}
	sigmaEngine, stats, err := rules.NewSigmaEngine(rc.Path)
	if err != nil {
		return nil, fmt.Errorf("load sigma rules from %s: %w", rc.Path, err)
	}
	logger.Infof("Sigma rules loaded: loaded=%d skipped_complex=%d skipped_datasource=%d skipped_invalid=%d files=%d",
		stats.Loaded,
		stats.SkippedComplex,
		stats.SkippedDatasource,
		stats.SkippedInvalid,
		stats.TotalFiles,
	)
	if stats.Loaded == 0 {
		logger.Warnf("No compatible Sigma rules loaded; IOA tagging is effectively disabled")
		return nil, nil
	}
	return sigmaEngine, nil
}

func openWriter(ctx context.Context, cfg *config.Config) (pipeline.AdjacencyWriter, error) {
	out := cfg.FlowGraph.Output
	switch out.Mode {
	case "none":
		return nil, nil
	case "file":
		w, err := graphjson.NewWriter(graphjson.Config{Path: out.File.Path, Append: out.File.Append})
		if err != nil {
			return nil, err
		}
		logger.Infof("Output mode: file (%s)", out.File.Path)
		return w, nil
	case "redis":
		s, err := graphredis.NewStore(graphredis.Config{
			Addr:      out.Redis.Addr,
			Password:  out.Redis.Password,
			DB:        out.Redis.DB,
			KeyPrefix: out.Redis.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Output mode: redis (%s prefix=%s)", out.Redis.Addr, out.Redis.KeyPrefix)
		return s, nil
	case "neo4j":
		w, err := graphneo4j.NewWriter(ctx, graphneo4j.Config{
			URI:      out.Neo4j.URI,
			Username: out.Neo4j.Username,
			Password: out.Neo4j.Password,
			Database: out.Neo4j.Database,
		})
		if err != nil {
			return nil, err
		}
		logger.Infof("Output mode: neo4j (%s/%s)", out.Neo4j.URI, out.Neo4j.Database)
		return w, nil
	}
	return nil, fmt.Errorf("unknown output mode: %s", out.Mode)
}

// build runs the shared part of both subcommands: source, rules, metrics and the
// graph build itself.
func build(ctx context.Context, cfg *config.Config) (*pipeline.Result, error) {
	fg := cfg.FlowGraph

	var m *metrics.Metrics
	if fg.Metrics.Enabled {
		m = metrics.New()
		go func() {
			if err := m.Serve(ctx, fg.Metrics.Listen); err != nil {
				logger.Errorf("Metrics server error: %v", err)
			}
		}()
	}

	engine, err := loadRules(cfg)
	if err != nil {
		return nil, err
	}

	src, err := openSource(cfg)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	policy, err := classifier.ParsePolicy(fg.Graph.MissingEndpointPolicy)
	if err != nil {
		return nil, err
	}
	builder, err := pipeline.NewBuilder(pipeline.Options{
		Graph:   classifier.Options{Policy: policy, Sentinel: fg.Graph.Sentinel},
		Engine:  engine,
		Metrics: m,
		Workers: fg.Pipeline.Workers,
	})
	if err != nil {
		return nil, err
	}
	logger.SetPrefix("run=" + builder.RunID())
	return builder.Build(ctx, src)
}

func runBuild(args []string) int {
	fs := flag.NewFlagSet("build", flag.ContinueOnError)
	var flags buildFlags
	flags.register(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := setup(&flags)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Infof("FlowGraph starting")
	writer, err := openWriter(ctx, cfg)
	if err != nil {
		logger.Errorf("Failed to create graph writer: %v", err)
		return 1
	}

	res, err := build(ctx, cfg)
	if err != nil {
		logger.Errorf("Build failed: %v", err)
		if writer != nil {
			writer.Close()
		}
		if errors.Is(err, input.ErrMalformedSource) {
			return 3
		}
		return 1
	}
	res.Report.Log()

	if writer == nil {
		return 0
	}
	gc := cfg.FlowGraph.Graph
	exporter := pipeline.NewExporter(adjacency.NewMapper(adjacency.MapperOptions{
		WriteVertexRows: gc.WriteVertexRows,
		IncludeEdgeData: gc.IncludeEdgeData,
	}), writer, cfg.FlowGraph.Pipeline.BatchSize)
	defer exporter.Close()

	if _, err := exporter.Export(ctx, res); err != nil {
		logger.Errorf("Export failed: %v", err)
		return 1
	}
	logger.Infof("FlowGraph finished")
	return 0
}

func runSummary(args []string) int {
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	var flags buildFlags
	flags.register(fs)
	format := fs.String("format", "text", "Summary format: text|json")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := setup(&flags)
	if err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer logger.Close()
	if lc := cfg.FlowGraph.Logging; lc.Enabled && lc.Console && lc.File == "" {
		// stdout carries the summary itself
		logger.SetOutput(os.Stderr, logger.ParseLevel(lc.Level))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := build(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "build failed: %v\n", err)
		if errors.Is(err, input.ErrMalformedSource) {
			return 3
		}
		return 1
	}

	switch strings.ToLower(*format) {
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res.Report); err != nil {
			fmt.Fprintf(os.Stderr, "encode summary: %v\n", err)
			return 1
		}
	default:
		fmt.Println(res.Report.Headline())
		fmt.Println(res.Report.KindsLine())
	}
	return 0
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: flowgraph <build|summary> [flags]\n")
	fmt.Fprintf(os.Stderr, "run 'flowgraph <command> -h' for command flags\n")
}

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "build":
			os.Exit(runBuild(os.Args[2:]))
		case "summary":
			os.Exit(runSummary(os.Args[2:]))
		case "-h", "-help", "--help", "help":
			usage()
			return
		default:
			if strings.HasPrefix(os.Args[1], "-") {
				os.Exit(runBuild(os.Args[1:]))
			}
			usage()
			os.Exit(2)
		}
	}

	os.Exit(runBuild(nil))
}
