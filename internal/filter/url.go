package filter

import (
	"net/url"
	"strings"
	"time"
)

const (
	paramStart = "start"
	paramEnd   = "end"
	dayLayout  = "2006-01-02"
)

// Encode writes restricted dimensions as comma joined lists and date bounds
// as calendar days, so a view can be bookmarked.
func Encode(s *State) url.Values {
	out := url.Values{}
	for _, d := range s.dims {
		if vals := s.Selected(d); len(vals) > 0 {
			out.Set(d, strings.Join(vals, ","))
		}
	}
	if !s.dates.Start.IsZero() {
		out.Set(paramStart, s.dates.Start.Format(dayLayout))
	}
	if !s.dates.End.IsZero() {
		out.Set(paramEnd, s.dates.End.Format(dayLayout))
	}
	return out
}

// Decode applies query parameters onto s. Unknown keys are ignored; a
// malformed date bound is skipped. Decoded end bounds cover the whole day.
func Decode(values url.Values, s *State, loc *time.Location) {
	if loc == nil {
		loc = time.Local
	}
	for _, d := range s.dims {
		raw, ok := values[d]
		if !ok {
			continue
		}
		var parts []string
		for _, r := range raw {
			for _, p := range strings.Split(r, ",") {
				if p = strings.TrimSpace(p); p != "" {
					parts = append(parts, p)
				}
			}
		}
		if len(parts) > 0 {
			_ = s.SetValues(d, parts)
		}
	}

	var r DateRange
	if v := values.Get(paramStart); v != "" {
		if t, err := time.ParseInLocation(dayLayout, v, loc); err == nil {
			r.Start = t
		}
	}
	if v := values.Get(paramEnd); v != "" {
		if t, err := time.ParseInLocation(dayLayout, v, loc); err == nil {
			r.End = EndOfDay(t)
		}
	}
	if !r.IsZero() {
		s.dates = r
	}
}
