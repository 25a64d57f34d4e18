package codec

import (
	"encoding/json"
	"fmt"
	"math"

	"harvest/internal/faults"
)

// Payload asserts that data is a key/value payload.
func Payload(data any) (map[string]any, error) {
	m, ok := data.(map[string]any)
	if !ok {
		return nil, faults.Wrap(faults.ErrMissingElement, "codec", "payload",
			fmt.Sprintf("expected mapping, got %T", data), nil)
	}
	return m, nil
}

// Field extracts a required key from a deserialized payload, converting
// numeric representations produced by JSON or YAML decoders. A present key
// holding null yields the zero value.
func Field[T any](data map[string]any, key string) (T, error) {
	var zero T
	raw, ok := data[key]
	if !ok {
		return zero, faults.Missing("codec", fmt.Sprintf("field %q", key))
	}
	if raw == nil {
		return zero, nil
	}
	value, ok := convert[T](raw)
	if !ok {
		return zero, faults.Wrap(faults.ErrMissingElement, "codec", "field",
			fmt.Sprintf("%q: cannot use %T as %T", key, raw, zero), nil)
	}
	return value, nil
}

// OptionalField is Field without the presence requirement.
func OptionalField[T any](data map[string]any, key string) (T, error) {
	if _, ok := data[key]; !ok {
		var zero T
		return zero, nil
	}
	return Field[T](data, key)
}

// SliceOf converts a deserialized list into a typed slice.
func SliceOf[T any](data any) ([]T, error) {
	if data == nil {
		return nil, nil
	}
	items, ok := data.([]any)
	if !ok {
		return nil, faults.Wrap(faults.ErrMissingElement, "codec", "slice",
			fmt.Sprintf("expected list, got %T", data), nil)
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		value, ok := convert[T](item)
		if !ok {
			var zero T
			return nil, faults.Wrap(faults.ErrMissingElement, "codec", "slice",
				fmt.Sprintf("element %d: cannot use %T as %T", i, item, zero), nil)
		}
		out = append(out, value)
	}
	return out, nil
}

func convert[T any](raw any) (T, bool) {
	if value, ok := raw.(T); ok {
		return value, true
	}
	var zero T
	var out any
	switch any(zero).(type) {
	case float64:
		f, ok := toFloat(raw)
		if !ok {
			return zero, false
		}
		out = f
	case int:
		n, ok := toInt(raw)
		if !ok {
			return zero, false
		}
		out = n
	case int64:
		n, ok := toInt(raw)
		if !ok {
			return zero, false
		}
		out = int64(n)
	default:
		return zero, false
	}
	return out.(T), true
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}
