// Package mapper converts remote API payloads into local entities. Remote
// payloads are only partially specified: absent keys leave local values
// untouched, and values of an unexpected type are ignored rather than
// reported, so a malformed remote record can never corrupt local state.
package mapper

import (
	"strconv"
	"strings"
	"time"
)

// timeLayouts covers the timestamp spellings the remote service has been
// observed to emit.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	time.RFC1123,
	time.RFC1123Z,
}

// StringOf exposes the mappers' string coercion to callers that need to read
// identifiers off a raw payload: numeric values format as their decimal
// string, anything else is rejected.
func StringOf(v interface{}) (string, bool) {
	return stringValue(v)
}

func stringValue(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	default:
		return "", false
	}
}

func intValue(v interface{}) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case float32:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func int64Value(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	case string:
		parsed, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func floatValue(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func boolValue(v interface{}) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case float64:
		return b != 0, true
	case int:
		return b != 0, true
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		if err != nil {
			return false, false
		}
		return parsed, true
	default:
		return false, false
	}
}

func stringSlice(v interface{}) ([]string, bool) {
	switch s := v.(type) {
	case []interface{}:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := stringValue(item); ok {
				out = append(out, str)
			}
		}
		return out, true
	case []string:
		return s, true
	case string:
		if s == "" {
			return nil, false
		}
		parts := strings.Split(s, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func floatSlice(v interface{}) ([]float32, bool) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]float32, 0, len(items))
	for _, item := range items {
		f, ok := floatValue(item)
		if !ok {
			return nil, false
		}
		out = append(out, float32(f))
	}
	return out, true
}

func mapValue(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// timeValue parses remote timestamps: ISO-8601 strings with 'Z' or explicit
// offsets, zone-less date-times, and epoch values in seconds or milliseconds.
func timeValue(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return time.Time{}, false
		}
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, trimmed); err == nil {
				return parsed, true
			}
		}
		return time.Time{}, false
	case float64:
		return epochTime(int64(t)), true
	case int64:
		return epochTime(t), true
	case int:
		return epochTime(int64(t)), true
	default:
		return time.Time{}, false
	}
}

func epochTime(v int64) time.Time {
	// Epoch values this large can only be milliseconds.
	if v > 1e11 {
		return time.UnixMilli(v)
	}
	return time.Unix(v, 0)
}

// setString assigns payload[key] to dst when present and convertible.
func setString(payload map[string]interface{}, key string, dst *string) {
	if v, ok := payload[key]; ok {
		if s, ok := stringValue(v); ok {
			*dst = s
		}
	}
}

func setInt(payload map[string]interface{}, key string, dst *int) {
	if v, ok := payload[key]; ok {
		if n, ok := intValue(v); ok {
			*dst = n
		}
	}
}

func setInt64(payload map[string]interface{}, key string, dst *int64) {
	if v, ok := payload[key]; ok {
		if n, ok := int64Value(v); ok {
			*dst = n
		}
	}
}

func setFloat(payload map[string]interface{}, key string, dst *float64) {
	if v, ok := payload[key]; ok {
		if f, ok := floatValue(v); ok {
			*dst = f
		}
	}
}

func setBool(payload map[string]interface{}, key string, dst *bool) {
	if v, ok := payload[key]; ok {
		if b, ok := boolValue(v); ok {
			*dst = b
		}
	}
}

func setTime(payload map[string]interface{}, key string, dst **time.Time) {
	if v, ok := payload[key]; ok {
		if t, ok := timeValue(v); ok {
			*dst = &t
		}
	}
}

// firstKey returns the first present key from candidates, supporting payloads
// that spell the same field differently across endpoints.
func firstKey(payload map[string]interface{}, candidates ...string) (interface{}, bool) {
	for _, key := range candidates {
		if v, ok := payload[key]; ok {
			return v, true
		}
	}
	return nil, false
}
