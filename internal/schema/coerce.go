package schema

import (
	"encoding/json"
	"fmt"
	"time"
)

// Coercion converts a raw field value received from the remote API into the
// value persisted locally.
type Coercion func(v any) (any, error)

// coercions maps manifest coercion names to implementations.
var coercions = map[string]Coercion{
	"date": CoerceDate,
}

// dateLayouts are tried in order for string timestamps.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// CoerceDate converts a timestamp string or a unix millisecond number to a
// time.Time. Zone-less strings are read in the local time zone.
// time.Time values pass through.
func CoerceDate(v any) (any, error) {
	switch val := v.(type) {
	case time.Time:
		return val, nil
	case string:
		for _, layout := range dateLayouts {
			if t, err := time.ParseInLocation(layout, val, time.Local); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("coerce date: unrecognized timestamp %q", val)
	case json.Number:
		ms, err := val.Int64()
		if err != nil {
			return nil, fmt.Errorf("coerce date: %w", err)
		}
		return time.UnixMilli(ms), nil
	case int64:
		return time.UnixMilli(val), nil
	case float64:
		return time.UnixMilli(int64(val)), nil
	default:
		return nil, fmt.Errorf("coerce date: unsupported type %T", v)
	}
}

// Truthy reports whether v would count as set: nil, "", false, zero numbers
// and the zero time are not.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	case json.Number:
		f, err := val.Float64()
		return err != nil || f != 0
	case float64:
		return val != 0
	case int64:
		return val != 0
	case int:
		return val != 0
	case time.Time:
		return !val.IsZero()
	default:
		return true
	}
}
