package models

// Column names of the flat flow table.
const (
	ColSrcIP     = "src_ip"
	ColDstIP     = "dst_ip"
	ColProto     = "proto"
	ColService   = "service"
	ColDuration  = "duration"
	ColSrcBytes  = "src_bytes"
	ColDstBytes  = "dst_bytes"
	ColConnState = "conn_state"
	ColLabel     = "label"
	ColType      = "type"

	ColDNSQuery    = "dns_query"
	ColDNSQClass   = "dns_qclass"
	ColDNSQType    = "dns_qtype"
	ColDNSRcode    = "dns_rcode"
	ColDNSAA       = "dns_AA"
	ColDNSRD       = "dns_RD"
	ColDNSRA       = "dns_RA"
	ColDNSRejected = "dns_rejected"

	ColHTTPURI          = "http_uri"
	ColHTTPMethod       = "http_method"
	ColHTTPVersion      = "http_version"
	ColHTTPStatusCode   = "http_status_code"
	ColHTTPTransDepth   = "http_trans_depth"
	ColHTTPReqBodyLen   = "http_request_body_len"
	ColHTTPRespBodyLen  = "http_response_body_len"
	ColHTTPUserAgent    = "http_user_agent"
	ColHTTPOrigMimeType = "http_orig_mime_types"
	ColHTTPRespMimeType = "http_resp_mime_types"

	ColSSLSubject     = "ssl_subject"
	ColSSLIssuer      = "ssl_issuer"
	ColSSLVersion     = "ssl_version"
	ColSSLCipher      = "ssl_cipher"
	ColSSLResumed     = "ssl_resumed"
	ColSSLEstablished = "ssl_established"

	ColWeirdName   = "weird_name"
	ColWeirdAddl   = "weird_addl"
	ColWeirdNotice = "weird_notice"
)

// FlowRecord is one row of the flow table. Every named column is a Value so that
// absence survives untouched from the source to the edge attributes.
type FlowRecord struct {
	// Row is the 1-based data row number in the source.
	Row int `json:"row"`

	SrcIP     Value `json:"src_ip"`
	DstIP     Value `json:"dst_ip"`
	Proto     Value `json:"proto"`
	Service   Value `json:"service"`
	Duration  Value `json:"duration"`
	SrcBytes  Value `json:"src_bytes"`
	DstBytes  Value `json:"dst_bytes"`
	ConnState Value `json:"conn_state"`
	Label     Value `json:"label"`
	Type      Value `json:"type"`

	DNSQuery    Value `json:"dns_query"`
	DNSQClass   Value `json:"dns_qclass"`
	DNSQType    Value `json:"dns_qtype"`
	DNSRcode    Value `json:"dns_rcode"`
	DNSAA       Value `json:"dns_AA"`
	DNSRD       Value `json:"dns_RD"`
	DNSRA       Value `json:"dns_RA"`
	DNSRejected Value `json:"dns_rejected"`

	HTTPURI          Value `json:"http_uri"`
	HTTPMethod       Value `json:"http_method"`
	HTTPVersion      Value `json:"http_version"`
	HTTPStatusCode   Value `json:"http_status_code"`
	HTTPTransDepth   Value `json:"http_trans_depth"`
	HTTPReqBodyLen   Value `json:"http_request_body_len"`
	HTTPRespBodyLen  Value `json:"http_response_body_len"`
	HTTPUserAgent    Value `json:"http_user_agent"`
	HTTPOrigMimeType Value `json:"http_orig_mime_types"`
	HTTPRespMimeType Value `json:"http_resp_mime_types"`

	SSLSubject     Value `json:"ssl_subject"`
	SSLIssuer      Value `json:"ssl_issuer"`
	SSLVersion     Value `json:"ssl_version"`
	SSLCipher      Value `json:"ssl_cipher"`
	SSLResumed     Value `json:"ssl_resumed"`
	SSLEstablished Value `json:"ssl_established"`

	WeirdName   Value `json:"weird_name"`
	WeirdAddl   Value `json:"weird_addl"`
	WeirdNotice Value `json:"weird_notice"`

	// Extra holds columns outside the flow schema. They are visible to rule
	// evaluation but never copied onto edges.
	Extra map[string]Value `json:"extra,omitempty"`

	IoaTags []IoaTag `json:"ioa_tags,omitempty"`
}

var columnFields = map[string]func(r *FlowRecord) *Value{
	ColSrcIP:     func(r *FlowRecord) *Value { return &r.SrcIP },
	ColDstIP:     func(r *FlowRecord) *Value { return &r.DstIP },
	ColProto:     func(r *FlowRecord) *Value { return &r.Proto },
	ColService:   func(r *FlowRecord) *Value { return &r.Service },
	ColDuration:  func(r *FlowRecord) *Value { return &r.Duration },
	ColSrcBytes:  func(r *FlowRecord) *Value { return &r.SrcBytes },
	ColDstBytes:  func(r *FlowRecord) *Value { return &r.DstBytes },
	ColConnState: func(r *FlowRecord) *Value { return &r.ConnState },
	ColLabel:     func(r *FlowRecord) *Value { return &r.Label },
	ColType:      func(r *FlowRecord) *Value { return &r.Type },

	ColDNSQuery:    func(r *FlowRecord) *Value { return &r.DNSQuery },
	ColDNSQClass:   func(r *FlowRecord) *Value { return &r.DNSQClass },
	ColDNSQType:    func(r *FlowRecord) *Value { return &r.DNSQType },
	ColDNSRcode:    func(r *FlowRecord) *Value { return &r.DNSRcode },
	ColDNSAA:       func(r *FlowRecord) *Value { return &r.DNSAA },
	ColDNSRD:       func(r *FlowRecord) *Value { return &r.DNSRD },
	ColDNSRA:       func(r *FlowRecord) *Value { return &r.DNSRA },
	ColDNSRejected: func(r *FlowRecord) *Value { return &r.DNSRejected },

	ColHTTPURI:          func(r *FlowRecord) *Value { return &r.HTTPURI },
	ColHTTPMethod:       func(r *FlowRecord) *Value { return &r.HTTPMethod },
	ColHTTPVersion:      func(r *FlowRecord) *Value { return &r.HTTPVersion },
	ColHTTPStatusCode:   func(r *FlowRecord) *Value { return &r.HTTPStatusCode },
	ColHTTPTransDepth:   func(r *FlowRecord) *Value { return &r.HTTPTransDepth },
	ColHTTPReqBodyLen:   func(r *FlowRecord) *Value { return &r.HTTPReqBodyLen },
	ColHTTPRespBodyLen:  func(r *FlowRecord) *Value { return &r.HTTPRespBodyLen },
	ColHTTPUserAgent:    func(r *FlowRecord) *Value { return &r.HTTPUserAgent },
	ColHTTPOrigMimeType: func(r *FlowRecord) *Value { return &r.HTTPOrigMimeType },
	ColHTTPRespMimeType: func(r *FlowRecord) *Value { return &r.HTTPRespMimeType },

	ColSSLSubject:     func(r *FlowRecord) *Value { return &r.SSLSubject },
	ColSSLIssuer:      func(r *FlowRecord) *Value { return &r.SSLIssuer },
	ColSSLVersion:     func(r *FlowRecord) *Value { return &r.SSLVersion },
	ColSSLCipher:      func(r *FlowRecord) *Value { return &r.SSLCipher },
	ColSSLResumed:     func(r *FlowRecord) *Value { return &r.SSLResumed },
	ColSSLEstablished: func(r *FlowRecord) *Value { return &r.SSLEstablished },

	ColWeirdName:   func(r *FlowRecord) *Value { return &r.WeirdName },
	ColWeirdAddl:   func(r *FlowRecord) *Value { return &r.WeirdAddl },
	ColWeirdNotice: func(r *FlowRecord) *Value { return &r.WeirdNotice },
}

// IsSchemaColumn reports whether name is one of the flow table columns.
func IsSchemaColumn(name string) bool {
	_, ok := columnFields[name]
	return ok
}

// Field returns the value of a column by name. Unknown columns are looked up in
// Extra; absent columns are missing.
func (r *FlowRecord) Field(name string) Value {
	if r == nil {
		return Missing
	}
	if get, ok := columnFields[name]; ok {
		return *get(r)
	}
	if v, ok := r.Extra[name]; ok {
		return v
	}
	return Missing
}

// Set assigns a column by name. Unknown columns go to Extra.
func (r *FlowRecord) Set(name string, v Value) {
	if get, ok := columnFields[name]; ok {
		*get(r) = v
		return
	}
	if r.Extra == nil {
		r.Extra = make(map[string]Value)
	}
	r.Extra[name] = v
}

// Fields returns all present columns as a flat map, suitable for rule matching.
func (r *FlowRecord) Fields() map[string]interface{} {
	out := make(map[string]interface{}, len(columnFields)+len(r.Extra))
	for name, get := range columnFields {
		if text, ok := get(r).Get(); ok {
			out[name] = text
		}
	}
	for name, v := range r.Extra {
		if text, ok := v.Get(); ok {
			out[name] = text
		}
	}
	return out
}
