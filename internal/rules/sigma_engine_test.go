package rules

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgraph/pkg/models"
)

const dnsRule = `title: Known C2 domain lookup
id: 5b2d0c43-6a3e-4b1e-9a53-7e8c7c2a1f10
level: high
tags:
  - attack.command_and_control
  - attack.t1071.004
logsource:
  product: zeek
  service: dns
detection:
  selection:
    dns_query: c2.evil.example
  condition: selection
`

const zeekHTTPRule = `title: Suspicious user agent to admin path
id: 7f3a9e21-0c4b-4d8e-b6a1-2e5f9d0c7b33
level: medium
logsource:
  product: zeek
  service: http
detection:
  selection:
    id.resp_h: 10.0.0.2
    uri|startswith: /admin
    user_agent|contains: sqlmap
  condition: selection
`

const zeekDNSRule = `title: Zeek C2 lookup
id: 1c9d7e55-3b2a-4f60-8d14-95a0b6e2c7d8
level: high
logsource:
  product: zeek
  service: dns
detection:
  selection:
    query: c2.evil.example
  condition: selection
`

const windowsRule = `title: Windows only
id: 00000000-0000-0000-0000-000000000001
logsource:
  product: windows
  service: sysmon
detection:
  selection:
    Image: cmd.exe
  condition: selection
`

func writeRule(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
}

func TestNewSigmaEngineLoadsCompatibleRules(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "dns.yml", dnsRule)
	writeRule(t, dir, "windows.yaml", windowsRule)
	writeRule(t, dir, "broken.yml", "title: [unterminated")
	writeRule(t, dir, "README.md", "not a rule")

	engine, stats, err := NewSigmaEngine(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, 1, stats.Loaded)
	assert.Equal(t, 1, stats.SkippedDatasource)
	assert.Equal(t, 1, stats.SkippedInvalid)
	assert.Equal(t, 1, engine.Len())
}

func TestSigmaEngineTagsMatchingRecord(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "dns.yml", dnsRule)
	engine, _, err := NewSigmaEngine(filepath.Join(dir, "dns.yml"))
	require.NoError(t, err)

	hit := &models.FlowRecord{SrcIP: models.Present("10.0.0.1"), DNSQuery: models.Present("c2.evil.example")}
	tags := engine.Apply(hit)
	require.Len(t, tags, 1)
	assert.Equal(t, "5b2d0c43-6a3e-4b1e-9a53-7e8c7c2a1f10", tags[0].ID)
	assert.Equal(t, "Known C2 domain lookup", tags[0].Name)
	assert.Equal(t, "high", tags[0].Severity)
	assert.Equal(t, "command-and-control", tags[0].Tactic)
	assert.Equal(t, "T1071/004", tags[0].Technique)

	miss := &models.FlowRecord{SrcIP: models.Present("10.0.0.1"), DNSQuery: models.Present("example.com")}
	assert.Nil(t, engine.Apply(miss))
	assert.Nil(t, engine.Apply(&models.FlowRecord{}))
}

func TestSigmaEngineMatchesZeekFieldNames(t *testing.T) {
	dir := t.TempDir()
	writeRule(t, dir, "dns.yml", zeekDNSRule)
	writeRule(t, dir, "http.yml", zeekHTTPRule)
	engine, stats, err := NewSigmaEngine(dir)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Loaded)

	dns := &models.FlowRecord{SrcIP: models.Present("10.0.0.1"), DNSQuery: models.Present("c2.evil.example")}
	tags := engine.Apply(dns)
	require.Len(t, tags, 1)
	assert.Equal(t, "1c9d7e55-3b2a-4f60-8d14-95a0b6e2c7d8", tags[0].ID)

	web := &models.FlowRecord{
		SrcIP:         models.Present("10.0.0.1"),
		DstIP:         models.Present("10.0.0.2"),
		HTTPURI:       models.Present("/admin/login.php"),
		HTTPUserAgent: models.Present("sqlmap/1.7"),
	}
	tags = engine.Apply(web)
	require.Len(t, tags, 1)
	assert.Equal(t, "7f3a9e21-0c4b-4d8e-b6a1-2e5f9d0c7b33", tags[0].ID)

	web.DstIP = models.Present("10.0.0.9")
	assert.Nil(t, engine.Apply(web))
}

func TestZeekViewKeepsServiceFieldsApart(t *testing.T) {
	flat := map[string]interface{}{
		models.ColSrcIP:       "10.0.0.1",
		models.ColHTTPVersion: "1.1",
		models.ColSSLVersion:  "TLSv12",
	}

	ssl := zeekView(flat, "ssl")
	assert.Equal(t, "TLSv12", ssl["version"])
	assert.Equal(t, "10.0.0.1", ssl["id.orig_h"])
	assert.Equal(t, "10.0.0.1", ssl[models.ColSrcIP])

	unscoped := zeekView(flat, "")
	assert.Equal(t, "1.1", unscoped["version"])
	_, ok := unscoped["query"]
	assert.False(t, ok, "absent columns stay absent")
}

func TestNewSigmaEngineRejectsNonYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rule.txt")
	require.NoError(t, os.WriteFile(path, []byte(dnsRule), 0644))
	_, _, err := NewSigmaEngine(path)
	assert.Error(t, err)
}

func TestNewSigmaEngineMissingPath(t *testing.T) {
	_, _, err := NewSigmaEngine(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestNilEngineAppliesNothing(t *testing.T) {
	var engine *SigmaEngine
	assert.Nil(t, engine.Apply(&models.FlowRecord{}))
	assert.Zero(t, engine.Len())
	assert.Nil(t, (&NoopEngine{}).Apply(&models.FlowRecord{}))
}

func TestParseAttackTags(t *testing.T) {
	tactic, technique := parseAttackTags([]string{"attack.initial_access", "attack.t1190", "cve.2021-44228"})
	assert.Equal(t, "initial-access", tactic)
	assert.Equal(t, "T1190", technique)
}
