// Package document provides a normalized tree representation for the
// loosely-shaped payment, registration and lookup payloads the system
// consumes, plus a dotted-path walker over that tree.
package document

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Doc is a parsed document: the result of decoding a JSON object body.
// Values inside the tree are map[string]any, []any, string, float64,
// bool or nil, as produced by encoding/json.
type Doc = map[string]any

// decimalWrapperKeys are the accepted spellings of the extended-JSON
// decimal wrapper, e.g. {"$numberDecimal": "12.34"}.
var decimalWrapperKeys = []string{"$numberDecimal", "numberDecimal"}

// Parse decodes a JSON object body into a Doc.
func Parse(body []byte) (Doc, error) {
	var doc Doc
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse document body: %w", err)
	}
	return doc, nil
}

// Get walks a dot-separated path through nested objects and arrays.
// Numeric segments index into arrays. A missing intermediate key, an
// out-of-range index or a scalar in the middle of the path all yield
// (nil, false), never an error.
func Get(node any, path string) (any, bool) {
	if path == "" {
		return node, node != nil
	}
	current := node
	for _, segment := range strings.Split(path, ".") {
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

// Unwrap replaces a decimal-wrapper object with its string payload.
// Any other value is returned unchanged.
func Unwrap(v any) any {
	m, ok := v.(map[string]any)
	if !ok || len(m) != 1 {
		return v
	}
	for _, key := range decimalWrapperKeys {
		if inner, ok := m[key]; ok {
			return inner
		}
	}
	return v
}

// Number coerces a resolved value to a decimal. Decimal wrappers are
// unwrapped first; numeric strings are accepted because the wrapper
// carries its payload as a string.
func Number(v any) (decimal.Decimal, bool) {
	switch n := Unwrap(v).(type) {
	case decimal.Decimal:
		return n, true
	case float64:
		return decimal.NewFromFloat(n), true
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		return d, err == nil
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

// Text renders a resolved value as a display string. Nil yields "".
func Text(v any) string {
	switch s := Unwrap(v).(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	case decimal.Decimal:
		return s.String()
	case time.Time:
		return s.Format(time.RFC3339)
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprintf("%v", s)
		}
		return string(b)
	}
}

// timeLayouts are tried in order when parsing date-ish values.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Time parses a resolved value as a timestamp. Unparsable values
// yield (zero, false).
func Time(v any) (time.Time, bool) {
	switch t := Unwrap(v).(type) {
	case time.Time:
		return t, true
	case string:
		for _, layout := range timeLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.UTC(), true
			}
		}
		return time.Time{}, false
	case float64:
		// Epoch milliseconds, the shape vendor payloads use.
		return time.UnixMilli(int64(t)).UTC(), true
	default:
		return time.Time{}, false
	}
}
