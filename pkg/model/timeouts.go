package model

import "encoding/json"

// Timeouts holds the per-service request/response deadlines. Both fields
// are double-optional on the wire: absent means "inherit the proxy
// default", present with null means "explicitly disabled", present with a
// number means "use this value".
type Timeouts struct {
	RequestTimeout  *DoubleOptionalDuration `json:"requestTimeout,omitempty"`
	ResponseTimeout *DoubleOptionalDuration `json:"responseTimeout,omitempty"`
}

// UnmarshalJSON distinguishes "key absent" (leaves the field nil) from "key
// present" (always allocates, even for a null value) by unmarshaling into a
// raw map first.
func (t *Timeouts) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if v, ok := raw["requestTimeout"]; ok {
		var d DoubleOptionalDuration
		if err := d.UnmarshalJSON(v); err != nil {
			return err
		}
		t.RequestTimeout = &d
	}
	if v, ok := raw["responseTimeout"]; ok {
		var d DoubleOptionalDuration
		if err := d.UnmarshalJSON(v); err != nil {
			return err
		}
		t.ResponseTimeout = &d
	}
	return nil
}

// Merge overlays the non-absent fields of override onto t, returning the
// resulting effective timeouts. An explicitly-null field in override clears
// the corresponding base value.
func (t Timeouts) Merge(override Timeouts) Timeouts {
	out := t
	if override.RequestTimeout != nil {
		out.RequestTimeout = override.RequestTimeout
	}
	if override.ResponseTimeout != nil {
		out.ResponseTimeout = override.ResponseTimeout
	}
	return out
}
