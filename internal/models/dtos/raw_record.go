package dtos

import (
	"fmt"
	"strconv"
	"strings"
)

// RawRecord is a single untyped record extracted from an upstream response.
// The source changes its field names and value types without notice, so all
// access goes through tolerant helpers.
type RawRecord map[string]interface{}

// String returns the first non-empty string value among the given keys.
func (r RawRecord) String(keys ...string) string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				return s
			}
		case float64:
			// JSON numbers decode as float64; render integers without exponent
			if t == float64(int64(t)) {
				return strconv.FormatInt(int64(t), 10)
			}
			return strconv.FormatFloat(t, 'f', -1, 64)
		case int:
			return strconv.Itoa(t)
		default:
			if s := strings.TrimSpace(fmt.Sprintf("%v", t)); s != "" && s != "<nil>" {
				return s
			}
		}
	}
	return ""
}

// Strings returns the first value among the given keys that is a list of
// strings. Non-string elements are skipped.
func (r RawRecord) Strings(keys ...string) []string {
	for _, k := range keys {
		v, ok := r[k]
		if !ok || v == nil {
			continue
		}
		switch t := v.(type) {
		case []string:
			return t
		case []interface{}:
			out := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// Has reports whether any of the given keys is present with a non-nil value.
func (r RawRecord) Has(keys ...string) bool {
	for _, k := range keys {
		if v, ok := r[k]; ok && v != nil {
			return true
		}
	}
	return false
}
