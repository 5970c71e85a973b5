package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// dateTag marks an encoded time.Time inside stored JSON so dates come back
// as time.Time instead of strings. Record keys starting with '$' are stored
// with one more '$', so server data can never look like a tag.
const dateTag = "$date"

func escapeKey(k string) string {
	if strings.HasPrefix(k, "$") {
		return "$" + k
	}
	return k
}

func unescapeKey(k string) string {
	if strings.HasPrefix(k, "$$") {
		return k[1:]
	}
	return k
}

// encodeRecord converts a Record to JSON TEXT for storage.
// Uses json.Encoder with HTML escaping disabled so markup in fields is kept
// byte for byte.
func encodeRecord(rec Record) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(tagDates(map[string]any(rec))); err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// decodeRecord parses JSON TEXT into a Record.
// Numbers are kept as json.Number to avoid float64 precision loss.
func decodeRecord(data string) (Record, error) {
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()

	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	out, err := untagDates(m)
	if err != nil {
		return nil, err
	}
	return Record(out.(map[string]any)), nil
}

func tagDates(v any) any {
	switch val := v.(type) {
	case time.Time:
		return map[string]any{dateTag: val.Format(time.RFC3339Nano)}
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[escapeKey(k)] = tagDates(elem)
		}
		return out
	case Record:
		return tagDates(map[string]any(val))
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = tagDates(elem)
		}
		return out
	default:
		return v
	}
}

func untagDates(v any) (any, error) {
	switch val := v.(type) {
	case map[string]any:
		if raw, ok := val[dateTag]; ok && len(val) == 1 {
			s, ok := raw.(string)
			if !ok {
				return nil, fmt.Errorf("unmarshal record: malformed %s value", dateTag)
			}
			t, err := time.Parse(time.RFC3339Nano, s)
			if err != nil {
				return nil, fmt.Errorf("unmarshal record: %w", err)
			}
			return t, nil
		}
		out := make(map[string]any, len(val))
		for k, elem := range val {
			v, err := untagDates(elem)
			if err != nil {
				return nil, err
			}
			out[unescapeKey(k)] = v
		}
		return out, nil
	case []any:
		for i, elem := range val {
			out, err := untagDates(elem)
			if err != nil {
				return nil, err
			}
			val[i] = out
		}
		return val, nil
	default:
		return v, nil
	}
}

// keyString renders a key field value as the stored TEXT key.
func keyString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		return val, val != ""
	case json.Number:
		return val.String(), true
	default:
		return fmt.Sprint(val), true
	}
}
