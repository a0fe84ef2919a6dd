package httpx

import "encoding/json"

// OptionalID tells an absent JSON field from an explicit null. Present is
// false when the field was missing; Value is nil for null.
type OptionalID struct {
	Present bool
	Value   *int64
}

// UnmarshalJSON implements json.Unmarshaler.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	o.Present = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var v int64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	o.Value = &v
	return nil
}
