package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	FlowGraph FlowGraphConfig `yaml:"flowgraph"`
}

// FlowGraphConfig is the project configuration.
type FlowGraphConfig struct {
	Input    InputConfig    `yaml:"input"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Graph    GraphConfig    `yaml:"graph"`
	Rules    RulesConfig    `yaml:"rules"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Output   OutputConfig   `yaml:"output"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InputConfig selects and configures the record source.
type InputConfig struct {
	Mode  string      `yaml:"mode"` // csv|redis
	CSV   CSVConfig   `yaml:"csv"`
	Redis RedisConfig `yaml:"redis"`
	// NAValues replaces the strings treated as missing in every source.
	NAValues []string `yaml:"na_values"`
}

// CSVConfig controls CSV input.
type CSVConfig struct {
	Path string `yaml:"path"`
}

// RedisConfig controls Redis input.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// PipelineConfig controls build behavior.
type PipelineConfig struct {
	Workers   int `yaml:"workers"`
	BatchSize int `yaml:"batch_size"`
}

// GraphConfig controls edge classification and export fidelity.
type GraphConfig struct {
	MissingEndpointPolicy string `yaml:"missing_endpoint_policy"` // drop|keep-with-sentinel
	Sentinel              string `yaml:"sentinel"`
	WriteVertexRows       bool   `yaml:"write_vertex_rows"`
	IncludeEdgeData       bool   `yaml:"include_edge_data"`
}

// RulesConfig controls IOA rules.
type RulesConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// OutputConfig controls graph export.
type OutputConfig struct {
	Mode  string            `yaml:"mode"` // none|file|redis|neo4j
	File  FileOutputConfig  `yaml:"file"`
	Redis RedisOutputConfig `yaml:"redis"`
	Neo4j Neo4jOutputConfig `yaml:"neo4j"`
}

// FileOutputConfig config for local JSON output.
type FileOutputConfig struct {
	Path   string `yaml:"path"`
	Append bool   `yaml:"append"`
}

// RedisOutputConfig config for the Redis graph store.
type RedisOutputConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// Neo4jOutputConfig config for the Neo4j graph writer.
type Neo4jOutputConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LoggingConfig controls logging output.
type LoggingConfig struct {
	Enabled bool   `yaml:"enabled"`
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// LoadConfig reads and parses a YAML config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML config bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills every unset field with its default.
func ApplyDefaults(cfg *Config) {
	fg := &cfg.FlowGraph

	if fg.Input.Mode == "" {
		fg.Input.Mode = "csv"
	}
	if fg.Input.Redis.Addr == "" {
		fg.Input.Redis.Addr = "127.0.0.1:6379"
	}
	if fg.Input.Redis.Key == "" {
		fg.Input.Redis.Key = "flow_records"
	}

	if fg.Pipeline.Workers <= 0 {
		fg.Pipeline.Workers = 1
	}
	if fg.Pipeline.BatchSize <= 0 {
		fg.Pipeline.BatchSize = 1000
	}

	if fg.Graph.MissingEndpointPolicy == "" {
		fg.Graph.MissingEndpointPolicy = "keep-with-sentinel"
	}
	if fg.Graph.Sentinel == "" {
		fg.Graph.Sentinel = "<missing>"
	}

	if fg.Metrics.Listen == "" {
		fg.Metrics.Listen = ":9464"
	}

	if fg.Output.Mode == "" {
		fg.Output.Mode = "none"
	}
	if fg.Output.File.Path == "" {
		fg.Output.File.Path = "output/graph.jsonl"
	}
	if fg.Output.Redis.Addr == "" {
		fg.Output.Redis.Addr = fg.Input.Redis.Addr
	}
	if fg.Output.Redis.KeyPrefix == "" {
		fg.Output.Redis.KeyPrefix = "flowgraph:graph"
	}
	if fg.Output.Neo4j.URI == "" {
		fg.Output.Neo4j.URI = "neo4j://localhost:7687"
	}
	if fg.Output.Neo4j.Database == "" {
		fg.Output.Neo4j.Database = "neo4j"
	}

	if fg.Logging.Level == "" {
		fg.Logging.Level = "info"
	}
}

// Validate rejects unknown modes and incomplete settings. Call after ApplyDefaults.
func Validate(cfg *Config) error {
	fg := cfg.FlowGraph

	switch fg.Input.Mode {
	case "csv":
		if strings.TrimSpace(fg.Input.CSV.Path) == "" {
			return fmt.Errorf("input.csv.path is required for csv input")
		}
	case "redis":
	default:
		return fmt.Errorf("unknown input mode: %s", fg.Input.Mode)
	}

	switch fg.Graph.MissingEndpointPolicy {
	case "keep-with-sentinel", "drop":
	default:
		return fmt.Errorf("unknown graph.missing_endpoint_policy: %s", fg.Graph.MissingEndpointPolicy)
	}

	if fg.Rules.Enabled && strings.TrimSpace(fg.Rules.Path) == "" {
		return fmt.Errorf("rules.path is required when rules are enabled")
	}

	switch fg.Output.Mode {
	case "none", "file", "redis", "neo4j":
	default:
		return fmt.Errorf("unknown output mode: %s", fg.Output.Mode)
	}

	switch strings.ToLower(fg.Logging.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logging level: %s", fg.Logging.Level)
	}
	return nil
}
