package classifier

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

func newClassifier(t *testing.T, opts Options) *Classifier {
	t.Helper()
	c, err := New(opts)
	require.NoError(t, err)
	return c
}

func loginRecord() *models.FlowRecord {
	return &models.FlowRecord{
		Row:        1,
		SrcIP:      models.Present("10.0.0.1"),
		DstIP:      models.Present("10.0.0.2"),
		Proto:      models.Present("tcp"),
		Label:      models.Present("1"),
		Type:       models.Present("dos"),
		HTTPURI:    models.Present("/login"),
		HTTPMethod: models.Present("POST"),
	}
}

func fullRecord() *models.FlowRecord {
	return &models.FlowRecord{
		Row:            4,
		SrcIP:          models.Present("192.168.1.5"),
		DstIP:          models.Present("8.8.8.8"),
		Proto:          models.Present("udp"),
		DNSQuery:       models.Present("example.com"),
		DNSQType:       models.Present("1"),
		HTTPURI:        models.Present("/index.html"),
		SSLSubject:     models.Present("CN=example.com"),
		SSLIssuer:      models.Present("CN=Example CA"),
		SSLVersion:     models.Present("TLSv12"),
		SSLCipher:      models.Present("TLS_ECDHE_RSA_WITH_AES_128_GCM_SHA256"),
		WeirdName:      models.Present("bad_TCP_checksum"),
		WeirdNotice:    models.Present("F"),
		SSLEstablished: models.Present("T"),
	}
}

func relations(edges []models.Edge) []models.RelationKind {
	out := make([]models.RelationKind, 0, len(edges))
	for _, e := range edges {
		out = append(out, e.Relation)
	}
	return out
}

func TestClassifyLoginScenario(t *testing.T) {
	c := newClassifier(t, Options{})
	res := c.Classify(loginRecord())

	require.Len(t, res.Edges, 2)
	assert.Zero(t, res.Dropped)

	flow := res.Edges[0]
	assert.Equal(t, models.RelationFlow, flow.Relation)
	assert.Equal(t, "10.0.0.1", flow.From)
	assert.Equal(t, "10.0.0.2", flow.To)
	assert.Equal(t, models.Present("1"), flow.Attrs.Get("label"))
	assert.Equal(t, models.Present("dos"), flow.Attrs.Get("attack_type"))
	assert.Equal(t, models.Present("tcp"), flow.Attrs.Get("proto"))
	assert.True(t, flow.Attrs.Get("duration").IsMissing())
	assert.Equal(t, 1, flow.Row)

	http := res.Edges[1]
	assert.Equal(t, models.RelationHTTPRequest, http.Relation)
	assert.Equal(t, "10.0.0.1", http.From)
	assert.Equal(t, "/login", http.To)
	assert.Equal(t, models.Present("POST"), http.Attrs.Get("method"))
	assert.True(t, http.Attrs.Get("status_code").IsMissing())
	assert.Equal(t, models.NodeHTTPTarget, http.ToKind)
}

func TestClassifyAllGatesFire(t *testing.T) {
	c := newClassifier(t, Options{})
	res := c.Classify(fullRecord())

	require.Len(t, res.Edges, 6)
	assert.Equal(t, []models.RelationKind{
		models.RelationFlow,
		models.RelationDNSQuery,
		models.RelationHTTPRequest,
		models.RelationSSLSubject,
		models.RelationSSLIssuer,
		models.RelationProtocolViolation,
	}, relations(res.Edges))

	subject, issuer := res.Edges[3], res.Edges[4]
	assert.Equal(t, "CN=example.com", subject.To)
	assert.Equal(t, "CN=Example CA", issuer.To)
	assert.Equal(t, subject.From, issuer.From)
	assert.Equal(t, subject.Attrs, issuer.Attrs, "ssl edges share the same payload")
	assert.NotEqual(t, subject.Relation, issuer.Relation)
}

func TestClassifyFlowOnlyWhenNoGatesPresent(t *testing.T) {
	c := newClassifier(t, Options{})
	res := c.Classify(&models.FlowRecord{SrcIP: models.Present("a"), DstIP: models.Present("b")})
	require.Len(t, res.Edges, 1)
	assert.Equal(t, models.RelationFlow, res.Edges[0].Relation)
	for _, name := range AttributeNames(models.RelationFlow) {
		assert.True(t, res.Edges[0].Attrs.Get(name).IsMissing(), name)
	}
}

func TestClassifySSLGatesAreIndependent(t *testing.T) {
	c := newClassifier(t, Options{})
	rec := &models.FlowRecord{
		SrcIP:      models.Present("a"),
		DstIP:      models.Present("b"),
		SSLIssuer:  models.Present("CN=CA"),
		SSLVersion: models.Present("TLSv13"),
	}
	res := c.Classify(rec)
	require.Len(t, res.Edges, 2)
	assert.Equal(t, models.RelationSSLIssuer, res.Edges[1].Relation)
	assert.Equal(t, models.Present("TLSv13"), res.Edges[1].Attrs.Get("ssl_version"))
}

func TestClassifyEdgesCarryOnlyTheirOwnAttributes(t *testing.T) {
	c := newClassifier(t, Options{})
	for _, e := range c.Classify(fullRecord()).Edges {
		assert.ElementsMatch(t, AttributeNames(e.Relation), e.Attrs.Keys(), "relation %s", e.Relation)
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	c := newClassifier(t, Options{})
	rec := fullRecord()
	first := c.Classify(rec)
	second := c.Classify(rec)
	assert.Equal(t, first, second)
}

func TestClassifyMissingEndpointsKeepWithSentinel(t *testing.T) {
	c := newClassifier(t, Options{Policy: PolicyKeepWithSentinel})
	rec := &models.FlowRecord{DNSQuery: models.Present("example.com")}
	res := c.Classify(rec)

	require.Len(t, res.Edges, 2)
	assert.Equal(t, DefaultSentinel, res.Edges[0].From)
	assert.Equal(t, DefaultSentinel, res.Edges[0].To)
	assert.Equal(t, DefaultSentinel, res.Edges[1].From)
	assert.Equal(t, "example.com", res.Edges[1].To)
	assert.Zero(t, res.Dropped)
}

func TestClassifyCustomSentinel(t *testing.T) {
	c := newClassifier(t, Options{Sentinel: "unknown-host"})
	res := c.Classify(&models.FlowRecord{SrcIP: models.Present("a")})
	require.Len(t, res.Edges, 1)
	assert.Equal(t, "unknown-host", res.Edges[0].To)
}

func TestClassifyMissingEndpointsDrop(t *testing.T) {
	c := newClassifier(t, Options{Policy: PolicyDrop})

	res := c.Classify(&models.FlowRecord{DNSQuery: models.Present("example.com")})
	assert.Empty(t, res.Edges)
	assert.Equal(t, 2, res.Dropped)

	res = c.Classify(&models.FlowRecord{SrcIP: models.Present("a"), WeirdName: models.Present("w")})
	require.Len(t, res.Edges, 1)
	assert.Equal(t, models.RelationProtocolViolation, res.Edges[0].Relation)
	assert.Equal(t, 1, res.Dropped)
}

func TestClassifyAttachesRuleTagsToEveryEdge(t *testing.T) {
	c := newClassifier(t, Options{})
	rec := loginRecord()
	rec.IoaTags = []models.IoaTag{{ID: "r1", Name: "Login brute force"}}

	res := c.Classify(rec)
	for _, e := range res.Edges {
		require.Len(t, e.IoaTags, 1)
		assert.Equal(t, "r1", e.IoaTags[0].ID)
	}
	res.Edges[0].IoaTags[0].ID = "changed"
	assert.Equal(t, "r1", rec.IoaTags[0].ID, "tags are copied, not shared")
}

func TestClassifyNilRecord(t *testing.T) {
	c := newClassifier(t, Options{})
	assert.Empty(t, c.Classify(nil).Edges)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyKeepWithSentinel, p)

	p, err = ParsePolicy("DROP")
	require.NoError(t, err)
	assert.Equal(t, PolicyDrop, p)

	_, err = ParsePolicy("skip")
	assert.Error(t, err)

	_, err = New(Options{Policy: "skip"})
	assert.Error(t, err)
}

func TestSentinelValuedEndpointIsCountedAndLogged(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf, logger.Warn)

	c, err := New(Options{})
	require.NoError(t, err)

	rec := &models.FlowRecord{SrcIP: models.Present(DefaultSentinel), DstIP: models.Present("10.0.0.2")}
	c.Classify(rec)
	c.Classify(rec)
	c.Classify(&models.FlowRecord{DstIP: models.Present("10.0.0.2")})

	assert.Equal(t, int64(2), c.SentinelCollisions())
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("equals the missing-endpoint sentinel")))

	drop, err := New(Options{Policy: PolicyDrop})
	require.NoError(t, err)
	drop.Classify(rec)
	assert.Zero(t, drop.SentinelCollisions())
}
