package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// OptionalDuration is a millisecond duration that may be entirely absent
// from a JSON object (Go's normal pointer semantics already cover that
// case); it exists so the surrounding config structs read uniformly next
// to DoubleOptionalDuration below.
type OptionalDuration struct {
	Value *time.Duration
}

// MarshalJSON emits the duration in milliseconds, or null if unset.
func (d OptionalDuration) MarshalJSON() ([]byte, error) {
	if d.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value.Milliseconds())
}

// UnmarshalJSON parses a millisecond integer or null.
func (d *OptionalDuration) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Value = nil
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	dur := time.Duration(ms) * time.Millisecond
	d.Value = &dur
	return nil
}

// DoubleOptionalDuration distinguishes three wire states for a duration
// field: the key absent from the object, the key present with value null
// (explicit "clear the default"), and the key present with an integer
// number of milliseconds. Config structs embed *DoubleOptionalDuration so
// that a nil field pointer means "not specified, use default" while a
// non-nil field pointing at a DoubleOptionalDuration with Set=true, Value=nil
// means "explicitly cleared".
type DoubleOptionalDuration struct {
	Set   bool
	Value *time.Duration
}

// MarshalJSON emits null when explicitly cleared, the millisecond value
// otherwise. DoubleOptionalDuration is only ever marshaled when the
// containing field pointer is non-nil, so Set is always true at that point.
func (d DoubleOptionalDuration) MarshalJSON() ([]byte, error) {
	if d.Value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(d.Value.Milliseconds())
}

// UnmarshalJSON records whichever of the three states the wire payload
// represents. Absent-key detection happens one level up, in the containing
// struct's UnmarshalJSON, since encoding/json never calls this method for a
// missing key.
func (d *DoubleOptionalDuration) UnmarshalJSON(data []byte) error {
	d.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		d.Value = nil
		return nil
	}
	var ms int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return err
	}
	dur := time.Duration(ms) * time.Millisecond
	d.Value = &dur
	return nil
}
