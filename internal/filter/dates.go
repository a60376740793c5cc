package filter

import (
	"errors"
	"fmt"
	"time"
)

var ErrUnknownPeriod = errors.New("unknown quick date period")

const (
	Last7Days     = "last-7-days"
	Last30Days    = "last-30-days"
	Last90Days    = "last-90-days"
	YearToDate    = "year-to-date"
	CurrentMonth  = "current-month"
	PreviousMonth = "previous-month"
	Last365Days   = "last-365-days"
)

// Periods lists the canonical quick range tokens in menu order.
var Periods = []string{Last7Days, Last30Days, Last90Days, YearToDate, CurrentMonth, PreviousMonth, Last365Days}

var periodAliases = map[string]string{
	"7":   Last7Days,
	"30":  Last30Days,
	"90":  Last90Days,
	"365": Last365Days,
	"ytd": YearToDate,
}

// QuickDateRange maps a period token onto a concrete range anchored at now.
// The end bound always runs through 23:59:59.999 of its last day, in now's
// location.
func QuickDateRange(period string, now time.Time) (DateRange, error) {
	if p, ok := periodAliases[period]; ok {
		period = p
	}
	loc := now.Location()
	y, m, d := now.Date()
	today := EndOfDay(now)

	switch period {
	case Last7Days:
		return DateRange{Start: now.Add(-7 * 24 * time.Hour), End: today}, nil
	case Last30Days:
		return DateRange{Start: now.Add(-30 * 24 * time.Hour), End: today}, nil
	case Last90Days:
		return DateRange{Start: now.Add(-90 * 24 * time.Hour), End: today}, nil
	case Last365Days:
		return DateRange{Start: time.Date(y-1, m, d, 0, 0, 0, 0, loc), End: today}, nil
	case YearToDate:
		return DateRange{Start: time.Date(y, time.January, 1, 0, 0, 0, 0, loc), End: today}, nil
	case CurrentMonth:
		first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return DateRange{Start: first, End: EndOfDay(first.AddDate(0, 1, -1))}, nil
	case PreviousMonth:
		first := time.Date(y, m-1, 1, 0, 0, 0, 0, loc)
		last := time.Date(y, m, 0, 0, 0, 0, 0, loc)
		return DateRange{Start: first, End: EndOfDay(last)}, nil
	default:
		return DateRange{}, fmt.Errorf("%w: %q", ErrUnknownPeriod, period)
	}
}

func (s *State) SetQuickDateRange(period string, now time.Time) error {
	r, err := QuickDateRange(period, now)
	if err != nil {
		return err
	}
	s.dates = r
	return nil
}

// EndOfDay returns 23:59:59.999 on t's calendar day.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOfDay returns midnight on t's calendar day.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
