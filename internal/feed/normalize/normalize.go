// Package normalize coerces loosely-typed document fields into display-safe values.
package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"

	apperrors "feed-sync/internal/common/errors"
)

// DisplayLayout renders "3/14/2026 at 09:05 AM".
const DisplayLayout = "1/2/2006 at 03:04 PM"

var stringLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Text returns the trimmed string, or fallback when v is nil or blank.
// Numbers and booleans are rendered as text.
func Text(v interface{}, fallback string) string {
	switch t := v.(type) {
	case nil:
		return fallback
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return fallback
		}
		return trimmed
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fallback
	}
}

// NumberText renders a count field. Numbers become their decimal text,
// blank strings and other shapes fall back.
func NumberText(v interface{}, fallback string) string {
	switch t := v.(type) {
	case float64:
		return formatNumber(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case string:
		trimmed := strings.TrimSpace(t)
		if trimmed == "" {
			return fallback
		}
		return trimmed
	default:
		return fallback
	}
}

// HasText reports whether v is a string with non-whitespace content.
func HasText(v interface{}) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) != ""
}

// FirstText returns the first value that HasText, or nil.
func FirstText(values ...interface{}) interface{} {
	for _, v := range values {
		if HasText(v) {
			return v
		}
	}
	return nil
}

// String returns v when it is a string, "" otherwise.
func String(v interface{}) string {
	s, _ := v.(string)
	return s
}

// Bool mirrors JavaScript truthiness for the shapes documents carry.
func Bool(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0 && !math.IsNaN(t)
	default:
		return true
	}
}

// StringSet returns the string members of an array field.
func StringSet(v interface{}) map[string]struct{} {
	out := make(map[string]struct{})
	list, ok := v.([]interface{})
	if !ok {
		return out
	}
	for _, item := range list {
		if s, ok := item.(string); ok {
			out[s] = struct{}{}
		}
	}
	return out
}

// Time interprets a timestamp field: RFC 3339 and common date strings,
// epoch milliseconds, time.Time, or a {seconds, nanoseconds} object.
func Time(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return t, !t.IsZero()
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, !t.IsZero()
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return time.Time{}, false
		}
		return time.UnixMilli(int64(t)), true
	case int64:
		return time.UnixMilli(t), true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range stringLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
		if ms, err := strconv.ParseFloat(s, 64); err == nil {
			return time.UnixMilli(int64(ms)), true
		}
		return time.Time{}, false
	case map[string]interface{}:
		secs, ok := t["seconds"].(float64)
		if !ok {
			secs, ok = t["_seconds"].(float64)
		}
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := t["nanoseconds"].(float64)
		if nanos == 0 {
			nanos, _ = t["_nanoseconds"].(float64)
		}
		return time.Unix(int64(secs), int64(nanos)), true
	default:
		return time.Time{}, false
	}
}

// FormatDateTime renders a timestamp field in loc. A non-empty string that is
// not a recognizable time is returned verbatim. "" means nothing to show.
func FormatDateTime(v interface{}, loc *time.Location) string {
	if !Bool(v) {
		return ""
	}
	if loc == nil {
		loc = time.Local
	}
	if t, ok := Time(v); ok {
		return t.In(loc).Format(DisplayLayout)
	}
	if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
		return s
	}
	return ""
}

// DialNumber strips everything but digits and '+' and returns a tel: URI.
func DialNumber(phone string) (string, error) {
	if phone == "" {
		return "", apperrors.NewDialNumberMissingError()
	}
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	return "tel:" + b.String(), nil
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
