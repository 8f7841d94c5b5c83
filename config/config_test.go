package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
flowgraph:
  input:
    mode: csv
    csv:
      path: data/flows.csv
    na_values: ["", "-"]
  pipeline:
    workers: 4
  graph:
    missing_endpoint_policy: drop
    write_vertex_rows: true
  rules:
    enabled: true
    path: rules/
  output:
    mode: redis
    redis:
      key_prefix: test:graph
  logging:
    level: debug
    console: true
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flowgraph.yml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	ApplyDefaults(cfg)
	require.NoError(t, Validate(cfg))

	fg := cfg.FlowGraph
	assert.Equal(t, "data/flows.csv", fg.Input.CSV.Path)
	assert.Equal(t, []string{"", "-"}, fg.Input.NAValues)
	assert.Equal(t, 4, fg.Pipeline.Workers)
	assert.Equal(t, "drop", fg.Graph.MissingEndpointPolicy)
	assert.Equal(t, "<missing>", fg.Graph.Sentinel)
	assert.True(t, fg.Graph.WriteVertexRows)
	assert.Equal(t, "test:graph", fg.Output.Redis.KeyPrefix)
	assert.Equal(t, "127.0.0.1:6379", fg.Output.Redis.Addr)
	assert.Equal(t, "debug", fg.Logging.Level)
}

func TestApplyDefaultsOnEmptyConfig(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	fg := cfg.FlowGraph
	assert.Equal(t, "csv", fg.Input.Mode)
	assert.Equal(t, "flow_records", fg.Input.Redis.Key)
	assert.Equal(t, 1, fg.Pipeline.Workers)
	assert.Equal(t, "keep-with-sentinel", fg.Graph.MissingEndpointPolicy)
	assert.Equal(t, "none", fg.Output.Mode)
	assert.Equal(t, "output/graph.jsonl", fg.Output.File.Path)
	assert.Equal(t, "neo4j", fg.Output.Neo4j.Database)
	assert.Equal(t, "info", fg.Logging.Level)
	assert.Nil(t, fg.Input.NAValues)
}

func TestValidateRejectsBadSettings(t *testing.T) {
	cases := map[string]func(*Config){
		"input mode":  func(c *Config) { c.FlowGraph.Input.Mode = "kafka" },
		"csv path":    func(c *Config) { c.FlowGraph.Input.CSV.Path = "" },
		"policy":      func(c *Config) { c.FlowGraph.Graph.MissingEndpointPolicy = "ignore" },
		"rules path":  func(c *Config) { c.FlowGraph.Rules.Enabled = true },
		"output mode": func(c *Config) { c.FlowGraph.Output.Mode = "http" },
		"log level":   func(c *Config) { c.FlowGraph.Logging.Level = "verbose" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := &Config{}
			cfg.FlowGraph.Input.CSV.Path = "flows.csv"
			ApplyDefaults(cfg)
			mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestValidateRedisInputNeedsNoPath(t *testing.T) {
	cfg := &Config{}
	cfg.FlowGraph.Input.Mode = "redis"
	ApplyDefaults(cfg)
	assert.NoError(t, Validate(cfg))
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yml"))
	assert.Error(t, err)

	_, err = Parse([]byte("flowgraph: ["))
	assert.Error(t, err)
}
