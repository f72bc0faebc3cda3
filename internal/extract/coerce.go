// Package extract pulls display text out of the heterogeneous payload
// shapes produced by current and legacy analysis backends.
package extract

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DefaultJoin joins array elements when a field sets no join string.
const DefaultJoin = "\n"

// FallbackKeys are checked on nested objects after the preferred keys.
// The same list serves the session and the draft reconciler.
var FallbackKeys = []string{
	"text", "value", "content", "summary", "description", "abstract",
	"col_section", "themes", "relevant_facts", "pil_provisions",
	"col_issue", "courts_position", "obiter_dicta", "dissenting_opinions",
	"case_citation",
}

// Options tune how a value is turned into text.
type Options struct {
	// PreferredKeys are checked on objects before FallbackKeys.
	PreferredKeys []string
	// JoinWith separates array elements; empty means DefaultJoin.
	JoinWith string
	// Compact renders unmatched objects as single-line JSON.
	Compact bool
}

// CoerceValueToString renders v as text. It reports false when nothing
// usable is present (nil, blank strings, empty arrays).
func CoerceValueToString(v any, opts Options) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s := strings.TrimSpace(val)
		return s, s != ""
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32), true
	case int:
		return strconv.Itoa(val), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case json.Number:
		return val.String(), true
	case []any:
		return coerceSlice(val, opts)
	case []string:
		items := make([]any, len(val))
		for i, s := range val {
			items[i] = s
		}
		return coerceSlice(items, opts)
	case map[string]any:
		return coerceObject(val, opts)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return "", false
		}
		return CoerceValueToString(decodeGeneric(b), opts)
	}
}

func coerceSlice(items []any, opts Options) (string, bool) {
	join := opts.JoinWith
	if join == "" {
		join = DefaultJoin
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := CoerceValueToString(item, opts); ok {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, join), true
}

func coerceObject(obj map[string]any, opts Options) (string, bool) {
	if len(obj) == 0 {
		return "", false
	}
	for _, key := range opts.PreferredKeys {
		if s, ok := CoerceValueToString(obj[key], opts); ok {
			return s, true
		}
	}
	for _, key := range FallbackKeys {
		if s, ok := CoerceValueToString(obj[key], opts); ok {
			return s, true
		}
	}
	return dumpJSON(obj, opts.Compact)
}

func dumpJSON(obj map[string]any, compact bool) (string, bool) {
	var (
		b   []byte
		err error
	)
	if compact {
		b, err = json.Marshal(obj)
	} else {
		b, err = json.MarshalIndent(obj, "", "  ")
	}
	if err != nil {
		return "", false
	}
	return string(b), true
}

func decodeGeneric(b []byte) any {
	var out any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil
	}
	return out
}

// ExtractStringFromPayload returns the first candidate key whose coerced
// value is non-empty.
func ExtractStringFromPayload(payload map[string]any, candidateKeys, nestedPreferredKeys []string, joinWith string) (string, bool) {
	if payload == nil {
		return "", false
	}
	opts := Options{PreferredKeys: nestedPreferredKeys, JoinWith: joinWith}
	for _, key := range candidateKeys {
		if s, ok := CoerceValueToString(payload[key], opts); ok {
			return s, true
		}
	}
	return "", false
}
