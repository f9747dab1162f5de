// Package timestamp converts the timestamp representations seen on raw
// order events into one canonical form: RFC3339 UTC with a literal Z
// suffix. Producers send ISO-8601 strings with and without offsets,
// dd/mm/yyyy wall-clock strings, and numeric epoch seconds; everything
// downstream only ever sees the canonical string.
package timestamp

import (
	"encoding/json"
	"math"
	"time"
)

// Layout is the canonical output layout: RFC3339 in UTC with a literal
// "Z" suffix, sub-second digits kept only when present.
const Layout = time.RFC3339Nano

// Input layouts tried for string values, in precedence order. ISO-8601
// shapes come first, then the legacy dd/mm/yyyy exports. Layouts without
// an offset are parsed as UTC wall-clock time.
var stringLayouts = []struct {
	layout  string
	hasZone bool
}{
	{time.RFC3339Nano, true},
	{"2006-01-02T15:04:05.999999999", false},
	{"2006-01-02 15:04:05", false},
	{"2006-01-02", false},
	{"02/01/2006 15:04:05", false},
	{"02/01/2006", false},
}

// Normalize converts an arbitrary timestamp representation to the
// canonical UTC string. The second return value is false when the input
// is nil or no representation matches; Normalize never panics.
func Normalize(v any) (string, bool) {
	switch ts := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if ts.IsZero() {
			return "", false
		}
		return Canonical(ts), true
	case string:
		return normalizeString(ts)
	case json.Number:
		f, err := ts.Float64()
		if err != nil {
			return "", false
		}
		return normalizeEpoch(f)
	case float64:
		return normalizeEpoch(ts)
	case float32:
		return normalizeEpoch(float64(ts))
	case int:
		return normalizeEpoch(float64(ts))
	case int32:
		return normalizeEpoch(float64(ts))
	case int64:
		return normalizeEpoch(float64(ts))
	default:
		return "", false
	}
}

// Canonical formats an instant in the canonical UTC form.
func Canonical(t time.Time) string {
	return t.UTC().Format(Layout)
}

// IsCanonical reports whether s is already a canonical UTC timestamp as
// produced by Normalize.
func IsCanonical(s string) bool {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return false
	}
	return Canonical(t) == s
}

// Parse converts a canonical string back to a time.Time. Used by
// components that compare recency; canonical strings also compare
// correctly as plain strings for whole-second precision.
func Parse(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func normalizeString(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	for _, l := range stringLayouts {
		var t time.Time
		var err error
		if l.hasZone {
			t, err = time.Parse(l.layout, s)
		} else {
			t, err = time.ParseInLocation(l.layout, s, time.UTC)
		}
		if err == nil {
			return Canonical(t), true
		}
	}
	return "", false
}

func normalizeEpoch(sec float64) (string, bool) {
	if math.IsNaN(sec) || math.IsInf(sec, 0) {
		return "", false
	}
	// Reject values time.Unix cannot represent sensibly.
	if sec < math.MinInt32 || sec > math.MaxUint32 {
		return "", false
	}
	whole, frac := math.Modf(sec)
	t := time.Unix(int64(whole), int64(math.Round(frac*1e9)))
	return Canonical(t), true
}
