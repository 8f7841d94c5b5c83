package models

import (
	"encoding/json"
	"strconv"
)

// Value is a single cell of a flow record: either a present text value or missing.
// The zero Value is missing.
type Value struct {
	text    string
	present bool
}

// Missing is the missing-value marker.
var Missing = Value{}

// Present wraps a non-missing cell value. An empty string is still a present value;
// deciding which raw cells count as missing is the job of the row transform.
func Present(text string) Value {
	return Value{text: text, present: true}
}

// IsMissing reports whether the value is the missing marker.
func (v Value) IsMissing() bool {
	return !v.present
}

// Get returns the text and whether it is present.
func (v Value) Get() (string, bool) {
	return v.text, v.present
}

// String returns the raw text, or "<missing>" for the missing marker.
func (v Value) String() string {
	if !v.present {
		return "<missing>"
	}
	return v.text
}

// Interface returns nil for a missing value and the text otherwise.
func (v Value) Interface() interface{} {
	if !v.present {
		return nil
	}
	return v.text
}

// Int parses the value as an integer. Floats with no fractional part are accepted
// since tabular sources often widen integer columns that contain nulls.
func (v Value) Int() (int64, bool) {
	if !v.present {
		return 0, false
	}
	if n, err := strconv.ParseInt(v.text, 10, 64); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil || f != float64(int64(f)) {
		return 0, false
	}
	return int64(f), true
}

// Float parses the value as a float.
func (v Value) Float() (float64, bool) {
	if !v.present {
		return 0, false
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// MarshalJSON encodes a missing value as null and a present one as a string.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.present {
		return []byte("null"), nil
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON decodes null as missing. Numbers and booleans keep their literal text.
func (v *Value) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Missing
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = Present(s)
		return nil
	}
	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = Present(string(raw))
	return nil
}
