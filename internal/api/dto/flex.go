package dto

import (
	"bytes"
	"encoding/json"
)

// FlexValue accepts a JSON field sent either as a number or a string and
// keeps its raw textual form. Clients of the original API sent reference ids
// both ways; coercion and validation happen in the workflow, which can name
// the offending field.
type FlexValue struct {
	raw string
	set bool
}

// UnmarshalJSON records the textual form of the value; null counts as absent.
func (f *FlexValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		f.raw = s
		f.set = true
		return nil
	}
	f.raw = string(data)
	f.set = true
	return nil
}

// MarshalJSON round-trips the raw form as a string.
func (f FlexValue) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return json.Marshal(f.raw)
}

// String returns the raw textual form.
func (f FlexValue) String() string {
	return f.raw
}

// IsSet reports whether the field was present and non-null.
func (f FlexValue) IsSet() bool {
	return f.set
}
