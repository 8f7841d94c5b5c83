// Package classifier turns one flow record into the typed edges it implies.
//
// Every record yields one flow edge. Five presence gates each add one more edge
// when their gate column is present; gates are independent, so a record yields
// between one and six edges.
package classifier

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"flowgraph/internal/logger"
	"flowgraph/pkg/models"
)

// Policy decides what happens to edges whose source or target endpoint is missing.
type Policy string

const (
	// PolicyKeepWithSentinel substitutes the sentinel node for a missing endpoint.
	PolicyKeepWithSentinel Policy = "keep-with-sentinel"
	// PolicyDrop discards any edge with a missing endpoint.
	PolicyDrop Policy = "drop"
)

// DefaultSentinel is the node ID standing in for a missing endpoint.
const DefaultSentinel = "<missing>"

// ParsePolicy parses a policy name. Empty means keep-with-sentinel.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyKeepWithSentinel:
		return PolicyKeepWithSentinel, nil
	case PolicyDrop:
		return PolicyDrop, nil
	}
	return "", fmt.Errorf("unknown missing endpoint policy %q", s)
}

// Options configures a Classifier.
type Options struct {
	Policy   Policy
	Sentinel string
}

type attribute struct {
	name   string
	column string
}

// gate is one row of the presence-gate table: the gate column both decides whether
// the edge fires and names its target node.
type gate struct {
	relation   models.RelationKind
	column     string
	targetKind models.NodeKind
	attrs      []attribute
}

var flowAttrs = []attribute{
	{"proto", models.ColProto},
	{"service", models.ColService},
	{"duration", models.ColDuration},
	{"src_bytes", models.ColSrcBytes},
	{"dst_bytes", models.ColDstBytes},
	{"conn_state", models.ColConnState},
	{"label", models.ColLabel},
	{"attack_type", models.ColType},
}

var sslAttrs = []attribute{
	{"ssl_version", models.ColSSLVersion},
	{"ssl_cipher", models.ColSSLCipher},
	{"ssl_resumed", models.ColSSLResumed},
	{"ssl_established", models.ColSSLEstablished},
}

var gates = []gate{
	{
		relation:   models.RelationDNSQuery,
		column:     models.ColDNSQuery,
		targetKind: models.NodeDomain,
		attrs: []attribute{
			{"qclass", models.ColDNSQClass},
			{"qtype", models.ColDNSQType},
			{"rcode", models.ColDNSRcode},
			{"dns_AA", models.ColDNSAA},
			{"dns_RD", models.ColDNSRD},
			{"dns_RA", models.ColDNSRA},
			{"dns_rejected", models.ColDNSRejected},
		},
	},
	{
		relation:   models.RelationHTTPRequest,
		column:     models.ColHTTPURI,
		targetKind: models.NodeHTTPTarget,
		attrs: []attribute{
			{"method", models.ColHTTPMethod},
			{"version", models.ColHTTPVersion},
			{"status_code", models.ColHTTPStatusCode},
			{"trans_depth", models.ColHTTPTransDepth},
			{"req_body_len", models.ColHTTPReqBodyLen},
			{"resp_body_len", models.ColHTTPRespBodyLen},
			{"user_agent", models.ColHTTPUserAgent},
			{"orig_mime", models.ColHTTPOrigMimeType},
			{"resp_mime", models.ColHTTPRespMimeType},
		},
	},
	{
		relation:   models.RelationSSLSubject,
		column:     models.ColSSLSubject,
		targetKind: models.NodeCertificateSubject,
		attrs:      sslAttrs,
	},
	{
		relation:   models.RelationSSLIssuer,
		column:     models.ColSSLIssuer,
		targetKind: models.NodeCertificateIssuer,
		attrs:      sslAttrs,
	},
	{
		relation:   models.RelationProtocolViolation,
		column:     models.ColWeirdName,
		targetKind: models.NodeAnomalyName,
		attrs: []attribute{
			{"weird_addl", models.ColWeirdAddl},
			{"weird_notice", models.ColWeirdNotice},
		},
	},
}

// AttributeNames returns the fixed attribute names of a relation kind.
func AttributeNames(kind models.RelationKind) []string {
	var attrs []attribute
	if kind == models.RelationFlow {
		attrs = flowAttrs
	}
	for _, g := range gates {
		if g.relation == kind {
			attrs = g.attrs
		}
	}
	names := make([]string, 0, len(attrs))
	for _, a := range attrs {
		names = append(names, a.name)
	}
	return names
}

// Result is the classifier output for one record.
type Result struct {
	Edges []models.Edge
	// Dropped counts edges discarded by PolicyDrop.
	Dropped int
}

// Classifier maps records to edges. Classify is safe for concurrent use.
type Classifier struct {
	policy   Policy
	sentinel string

	collisions   atomic.Int64
	collisionLog sync.Once
}

// New creates a classifier.
func New(opts Options) (*Classifier, error) {
	policy, err := ParsePolicy(string(opts.Policy))
	if err != nil {
		return nil, err
	}
	sentinel := opts.Sentinel
	if sentinel == "" {
		sentinel = DefaultSentinel
	}
	return &Classifier{policy: policy, sentinel: sentinel}, nil
}

// SentinelCollisions counts present endpoint values equal to the sentinel. Such
// values share the sentinel node with missing endpoints.
func (c *Classifier) SentinelCollisions() int64 {
	return c.collisions.Load()
}

// Policy returns the configured missing-endpoint policy.
func (c *Classifier) Policy() Policy {
	return c.policy
}

// Classify returns the edges implied by one record, flow edge first and then the
// gated edges in table order.
func (c *Classifier) Classify(record *models.FlowRecord) Result {
	var res Result
	if record == nil {
		return res
	}

	src, srcOK := c.endpoint(record.SrcIP)
	dst, dstOK := c.endpoint(record.DstIP)

	res.Edges = make([]models.Edge, 0, 1+len(gates))
	if srcOK && dstOK {
		res.Edges = append(res.Edges, c.edge(record, models.RelationFlow, src, dst, models.NodeEndpoint, flowAttrs))
	} else {
		res.Dropped++
	}

	for _, g := range gates {
		target, ok := record.Field(g.column).Get()
		if !ok {
			continue
		}
		if !srcOK {
			res.Dropped++
			continue
		}
		res.Edges = append(res.Edges, c.edge(record, g.relation, src, target, g.targetKind, g.attrs))
	}
	return res
}

func (c *Classifier) endpoint(v models.Value) (string, bool) {
	if text, ok := v.Get(); ok {
		if text == c.sentinel && c.policy == PolicyKeepWithSentinel {
			c.collisions.Add(1)
			c.collisionLog.Do(func() {
				logger.Warnf("Endpoint value %q equals the missing-endpoint sentinel; both map to one node", text)
			})
		}
		return text, true
	}
	if c.policy == PolicyDrop {
		return "", false
	}
	return c.sentinel, true
}

func (c *Classifier) edge(record *models.FlowRecord, kind models.RelationKind, from, to string, toKind models.NodeKind, attrs []attribute) models.Edge {
	payload := make(models.Attributes, len(attrs))
	for _, a := range attrs {
		payload[a.name] = record.Field(a.column)
	}
	e := models.Edge{
		From:     from,
		To:       to,
		Relation: kind,
		FromKind: models.NodeEndpoint,
		ToKind:   toKind,
		Attrs:    payload,
		Row:      record.Row,
	}
	if len(record.IoaTags) > 0 {
		e.IoaTags = append([]models.IoaTag(nil), record.IoaTags...)
	}
	return e
}
