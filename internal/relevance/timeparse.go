package relevance

import (
	"strconv"
	"strings"
	"time"
)

// isoLayouts are tried in order for string timestamps. Go's parser accepts a
// fractional second after the seconds field even when the layout omits it, so
// the naive layouts also cover microsecond-precision strings.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTimestamp interprets a raw metadata value as a point in time. Numbers
// are epoch seconds or milliseconds (magnitude decides); strings are tried as
// ISO-8601 first, then as a numeric epoch. Zero, negative, and unrecognized
// values report false.
func ParseTimestamp(v any) (time.Time, bool) {
	switch t := v.(type) {
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		if parsed, ok := parseISO(s); ok {
			return parsed, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return epochTime(f)
		}
		return time.Time{}, false
	default:
		if f, ok := toFloat64(v); ok {
			return epochTime(f)
		}
		return time.Time{}, false
	}
}

// SessionTime extracts the session timestamp from metadata, trying keys in
// order: lastUpdatedAt (epoch milliseconds, Cursor), start_time (ISO string,
// Claude), timestamp (number or ISO, generic). The first key present decides;
// if its value does not parse, no timestamp is reported.
func SessionTime(metadata map[string]any) (time.Time, bool) {
	if v, ok := metadata["lastUpdatedAt"]; ok && v != nil {
		return epochMillis(v)
	}
	if v, ok := metadata["start_time"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return time.Time{}, false
		}
		return parseISO(strings.TrimSpace(s))
	}
	if v, ok := metadata["timestamp"]; ok && v != nil {
		return ParseTimestamp(v)
	}
	return time.Time{}, false
}

func parseISO(s string) (time.Time, bool) {
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func epochMillis(v any) (time.Time, bool) {
	f, ok := toFloat64(v)
	if !ok || f <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(f)).UTC(), true
}

// epochTime treats magnitudes above 1e11 as milliseconds, everything else as
// seconds. 1e11 seconds is beyond year 5000, so real second values never cross
// the line.
func epochTime(f float64) (time.Time, bool) {
	if f <= 0 {
		return time.Time{}, false
	}
	if f > 1e11 {
		return time.UnixMilli(int64(f)).UTC(), true
	}
	return time.Unix(int64(f), 0).UTC(), true
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
