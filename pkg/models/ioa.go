package models

// IoaTag is a rule match annotation carried by every edge of the matching record.
type IoaTag struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Severity  string `json:"severity,omitempty"`
	Tactic    string `json:"tactic,omitempty"`
	Technique string `json:"technique,omitempty"`
}
