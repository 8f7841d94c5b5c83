package models

import (
	"sort"
	"strings"
)

// RelationKind is the closed set of edge relations.
type RelationKind string

const (
	RelationFlow              RelationKind = "flow"
	RelationDNSQuery          RelationKind = "dns_query"
	RelationHTTPRequest       RelationKind = "http_request"
	RelationSSLSubject        RelationKind = "ssl_subject"
	RelationSSLIssuer         RelationKind = "ssl_issuer"
	RelationProtocolViolation RelationKind = "protocol_violation"
)

// Relations lists every relation kind in classification order.
var Relations = []RelationKind{
	RelationFlow,
	RelationDNSQuery,
	RelationHTTPRequest,
	RelationSSLSubject,
	RelationSSLIssuer,
	RelationProtocolViolation,
}

// Valid reports whether k is one of the six relation kinds.
func (k RelationKind) Valid() bool {
	switch k {
	case RelationFlow, RelationDNSQuery, RelationHTTPRequest, RelationSSLSubject, RelationSSLIssuer, RelationProtocolViolation:
		return true
	}
	return false
}

// NodeKind is the role a node plays for the edge that referenced it.
type NodeKind uint8

const (
	NodeEndpoint NodeKind = 1 << iota
	NodeDomain
	NodeCertificateSubject
	NodeCertificateIssuer
	NodeAnomalyName
	NodeHTTPTarget
)

var nodeKindNames = []struct {
	kind NodeKind
	name string
}{
	{NodeEndpoint, "endpoint"},
	{NodeDomain, "domain"},
	{NodeCertificateSubject, "certificate_subject"},
	{NodeCertificateIssuer, "certificate_issuer"},
	{NodeAnomalyName, "anomaly_name"},
	{NodeHTTPTarget, "http_target"},
}

// NodeKinds is a set of NodeKind flags.
type NodeKinds uint8

// Has reports whether k is in the set.
func (s NodeKinds) Has(k NodeKind) bool {
	return s&NodeKinds(k) != 0
}

// With returns the set with k added.
func (s NodeKinds) With(k NodeKind) NodeKinds {
	return s | NodeKinds(k)
}

// List returns the kinds in the set in declaration order.
func (s NodeKinds) List() []NodeKind {
	var out []NodeKind
	for _, nk := range nodeKindNames {
		if s.Has(nk.kind) {
			out = append(out, nk.kind)
		}
	}
	return out
}

// Names returns the kind names in declaration order.
func (s NodeKinds) Names() []string {
	var out []string
	for _, k := range s.List() {
		out = append(out, k.String())
	}
	return out
}

func (s NodeKinds) String() string {
	return strings.Join(s.Names(), "|")
}

func (k NodeKind) String() string {
	for _, nk := range nodeKindNames {
		if nk.kind == k {
			return nk.name
		}
	}
	return "unknown"
}

// Attributes is the per-edge attribute payload. Keys are fixed per relation kind.
type Attributes map[string]Value

// Get returns an attribute, or Missing if the key is not set.
func (a Attributes) Get(name string) Value {
	if a == nil {
		return Missing
	}
	return a[name]
}

// Keys returns the attribute names sorted.
func (a Attributes) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Edge is a directed, typed relation between two nodes.
type Edge struct {
	// ID is assigned by the graph on insert ("e1", "e2", ...).
	ID       string       `json:"id,omitempty"`
	From     string       `json:"from"`
	To       string       `json:"to"`
	Relation RelationKind `json:"relation"`
	FromKind NodeKind     `json:"-"`
	ToKind   NodeKind     `json:"-"`
	Attrs    Attributes   `json:"attrs"`
	// Row is the source row the edge was classified from.
	Row     int      `json:"row"`
	IoaTags []IoaTag `json:"ioa_tags,omitempty"`
}
