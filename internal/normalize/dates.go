package normalize

import (
	"math"
	"strconv"
	"strings"
	"time"
)

var zonedLayouts = []string{
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05 -0700 MST",
	time.RFC1123Z,
	time.RFC1123,
}

var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
	"1/2/2006 15:04:05",
	"1/2/2006 15:04",
	"1/2/2006",
	"02-Jan-2006",
	"2 Jan 2006",
	"Jan 2, 2006",
}

var compactLayouts = []string{
	"20060102",
	"20060102150405",
}

// ParseDate accepts the date shapes found in the exports: ISO strings with or
// without a zone, slash dates, compact YYYYMMDD stamps, epoch seconds or milliseconds, and native
// time values. Zone-less values are read in loc (UTC when nil).
func ParseDate(v any, loc *time.Location) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x, true
	case *time.Time:
		if x == nil || x.IsZero() {
			return time.Time{}, false
		}
		return *x, true
	case int:
		return fromEpoch(int64(x))
	case int32:
		return fromEpoch(int64(x))
	case int64:
		return fromEpoch(x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return time.Time{}, false
		}
		return fromEpoch(int64(x))
	case string:
		return parseDateString(x, loc)
	case []byte:
		return parseDateString(string(x), loc)
	default:
		return time.Time{}, false
	}
}

func parseDateString(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return parseDigits(s, n, loc)
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseDigits reads compact YYYYMMDD[hhmmss] stamps, then 9 to 11 digits as
// epoch seconds and 12 or more as epoch milliseconds. Anything shorter, bare
// years included, is rejected.
func parseDigits(s string, n int64, loc *time.Location) (time.Time, bool) {
	for _, layout := range compactLayouts {
		if len(s) != len(layout) {
			continue
		}
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	switch {
	case n <= 0 || len(s) < 9:
		return time.Time{}, false
	case len(s) >= 12:
		return time.UnixMilli(n).UTC(), true
	default:
		return time.Unix(n, 0).UTC(), true
	}
}

func fromEpoch(n int64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n > 1_000_000_000_000 {
		return time.UnixMilli(n).UTC(), true
	}
	return time.Unix(n, 0).UTC(), true
}

// MonthKey formats t as YYYY-MM in UTC.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}
