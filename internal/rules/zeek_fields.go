package rules

import (
	"flowgraph/internal/transform/flowrow"
	"flowgraph/pkg/models"
)

// zeekServiceOrder decides which service wins a shared field name, such as
// "version", for rules without a logsource service.
var zeekServiceOrder = []string{"conn", "dns", "http", "ssl", "weird"}

// zeekFields maps Zeek log field names onto flat columns, per log service.
var zeekFields = map[string]map[string]string{
	"conn": connFields(),
	"dns": {
		"query":    models.ColDNSQuery,
		"qclass":   models.ColDNSQClass,
		"qtype":    models.ColDNSQType,
		"rcode":    models.ColDNSRcode,
		"AA":       models.ColDNSAA,
		"RD":       models.ColDNSRD,
		"RA":       models.ColDNSRA,
		"rejected": models.ColDNSRejected,
	},
	"http": {
		"method":            models.ColHTTPMethod,
		"uri":               models.ColHTTPURI,
		"version":           models.ColHTTPVersion,
		"status_code":       models.ColHTTPStatusCode,
		"trans_depth":       models.ColHTTPTransDepth,
		"request_body_len":  models.ColHTTPReqBodyLen,
		"response_body_len": models.ColHTTPRespBodyLen,
		"user_agent":        models.ColHTTPUserAgent,
		"orig_mime_types":   models.ColHTTPOrigMimeType,
		"resp_mime_types":   models.ColHTTPRespMimeType,
	},
	"ssl": {
		"subject":     models.ColSSLSubject,
		"issuer":      models.ColSSLIssuer,
		"version":     models.ColSSLVersion,
		"cipher":      models.ColSSLCipher,
		"resumed":     models.ColSSLResumed,
		"established": models.ColSSLEstablished,
	},
	"weird": {
		"name":   models.ColWeirdName,
		"addl":   models.ColWeirdAddl,
		"notice": models.ColWeirdNotice,
	},
}

func connFields() map[string]string {
	fields := flowrow.ZeekAliases()
	fields["proto"] = models.ColProto
	fields["service"] = models.ColService
	fields["duration"] = models.ColDuration
	fields["conn_state"] = models.ColConnState
	return fields
}

// zeekView returns the flat fields plus their Zeek names for service. Connection
// fields are visible to every service. Flat names are never shadowed.
func zeekView(flat map[string]interface{}, service string) map[string]interface{} {
	view := make(map[string]interface{}, len(flat)*2)
	for name, v := range flat {
		view[name] = v
	}
	services := zeekServiceOrder
	if service != "" {
		services = []string{"conn", service}
	}
	for _, svc := range services {
		for zeekName, column := range zeekFields[svc] {
			if _, taken := view[zeekName]; taken {
				continue
			}
			if v, ok := flat[column]; ok {
				view[zeekName] = v
			}
		}
	}
	return view
}
