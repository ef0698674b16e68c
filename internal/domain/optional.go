package domain

import (
	"bytes"
	"encoding/json"
)

// Optional is a tri-state update field: absent (leave unchanged), cleared
// (explicit null) or set to a value. The zero value is absent, so a field
// missing from a JSON document stays absent.
type Optional[T any] struct {
	present bool
	null    bool
	value   T
}

// Some returns an Optional holding v
func Some[T any](v T) Optional[T] {
	return Optional[T]{present: true, value: v}
}

// Clear returns an Optional that asks for the field to be cleared
func Clear[T any]() Optional[T] {
	return Optional[T]{present: true, null: true}
}

// Absent returns an Optional that leaves the field unchanged
func Absent[T any]() Optional[T] {
	return Optional[T]{}
}

func (o Optional[T]) IsAbsent() bool  { return !o.present }
func (o Optional[T]) IsCleared() bool { return o.present && o.null }
func (o Optional[T]) IsSet() bool     { return o.present && !o.null }

// Get returns the value and whether one is set
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.IsSet()
}

func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.IsSet() {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.present = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}
