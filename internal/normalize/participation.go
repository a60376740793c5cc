package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nes_dashboard/backend/internal/models"
)

func Participations(rows []models.RawRow, opts Options) []models.Participation {
	fields := ResolverFor(rows).Fields(ParticipationAliases)
	out := make([]models.Participation, 0, len(rows))
	for _, row := range rows {
		out = append(out, Participation(row, fields, opts))
	}
	return out
}

// Participation normalizes one participation row. Identifiers default to the
// empty string, numbers to zero. Calendar fields missing from the source are
// derived from the event date.
func Participation(row models.RawRow, fields map[string]string, opts Options) models.Participation {
	str := func(field string) string { return Text(lookup(row, fields, field)) }
	num := func(field string) float64 { return Number(lookup(row, fields, field)) }

	p := models.Participation{
		ParticipantID:    identifier(lookup(row, fields, "participant_id")),
		MemberID:         identifier(lookup(row, fields, "member_id")),
		EventID:          identifier(lookup(row, fields, "event_id")),
		ProgramName:      str("program_name"),
		CategoryName:     str("category_name"),
		SubcategoryName:  str("subcategory_name"),
		ProgramMode:      str("program_mode_name"),
		EventDescription: str("event_description"),
		OrganizationName: str("organization_name"),
		OrganizationType: str("organization_type"),
		SSOName:          str("sso_name"),
		SourceName:       str("source_name"),
		NadiName:         str("nadi_name"),
		SiteName:         str("site_name"),
		StateName:        str("state_name"),
		StateCode:        str("state_code"),
		RegionName:       str("region_name"),
		MembershipStatus: str("membership_status"),
		TargetStatus:     str("target_status"),
		TimeOfDay:        str("time_of_day"),
		AgeGroup:         str("age_group"),
		EventDate:        str("event_date"),
		EventYear:        int(num("event_year")),
		EventMonth:       int(num("event_month")),
		EventMonthName:   str("event_month_name"),
		EventQuarter:     str("event_quarter"),

		DurationHours:      num("event_duration_hours"),
		TotalParticipants:  num("event_total_participants"),
		TargetParticipants: num("target_participants"),
		AttendanceRate:     num("attendance_rate_percent"),
		TargetAchievement:  num("target_achievement_percent"),
		NewMembers:         num("total_new_member"),
		AvgParticipantAge:  num("avg_participant_age"),
		MaleCount:          num("male_count"),
		FemaleCount:        num("female_count"),
		Latitude:           num("latitude"),
		Longitude:          num("longitude"),
	}

	if ts, ok := ParseDate(lookup(row, fields, "event_date"), opts.Location); ok {
		p.EventAt = models.NewDate(ts.UTC())
		if p.EventYear == 0 {
			p.EventYear = ts.Year()
		}
		if p.EventMonth == 0 {
			p.EventMonth = int(ts.Month())
		}
	}
	if p.EventMonth >= 1 && p.EventMonth <= 12 {
		if p.EventMonthName == "" {
			p.EventMonthName = monthNames[p.EventMonth-1]
		}
		if p.EventQuarter == "" {
			p.EventQuarter = fmt.Sprintf("Q%d", (p.EventMonth-1)/3+1)
		}
	}
	switch {
	case p.EventAt.Valid:
		p.EventMonthKey = MonthKey(p.EventAt.Time)
	case p.EventYear > 0 && p.EventMonth >= 1 && p.EventMonth <= 12:
		p.EventMonthKey = fmt.Sprintf("%04d-%02d", p.EventYear, p.EventMonth)
	default:
		p.EventMonthKey = Unknown
	}
	return p
}

var monthNames = [12]string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

// Number coerces a cell to float64. Thousands separators and a trailing
// percent sign are tolerated; anything else unparsable is 0.
func Number(v any) float64 {
	var f float64
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		s := strings.TrimSpace(Text(v))
		s = strings.ReplaceAll(s, ",", "")
		s = strings.TrimSuffix(s, "%")
		if s == "" {
			return 0
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		f = n
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// identifier renders numeric ids without a trailing ".0".
func identifier(v any) string {
	if f, ok := v.(float64); ok && f == math.Trunc(f) && !math.IsInf(f, 0) {
		return strconv.FormatInt(int64(f), 10)
	}
	return Text(v)
}
