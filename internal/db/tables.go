package db

import (
	"strings"

	"github.com/nes_dashboard/backend/internal/models"
)

type Column struct {
	Name string
	Type string
}

// Table describes one dataset table: its columns in insert order, the columns
// worth indexing, and the default sort for record pages.
type Table struct {
	Name         string
	Columns      []Column
	Indexes      []string
	DefaultOrder string
}

func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return true
		}
	}
	return false
}

// IndexColumns is Indexes plus the columns of DefaultOrder, without
// duplicates.
func (t Table) IndexColumns() []string {
	out := append([]string(nil), t.Indexes...)
	seen := make(map[string]bool, len(out))
	for _, c := range out {
		seen[c] = true
	}
	for _, term := range strings.Split(t.DefaultOrder, ",") {
		fields := strings.Fields(term)
		if len(fields) == 0 || seen[fields[0]] || !t.HasColumn(fields[0]) {
			continue
		}
		seen[fields[0]] = true
		out = append(out, fields[0])
	}
	return out
}

func (t Table) columnNames() []string {
	out := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.Name
	}
	return out
}

// SafeOrder validates a user supplied ORDER BY list ("col [ASC|DESC], ...").
// Anything referencing an unknown column yields the table default.
func (t Table) SafeOrder(order string) string {
	order = strings.TrimSpace(order)
	if order == "" {
		return t.DefaultOrder
	}
	var parts []string
	for _, term := range strings.Split(order, ",") {
		fields := strings.Fields(term)
		if len(fields) == 0 || len(fields) > 2 || !t.HasColumn(fields[0]) {
			return t.DefaultOrder
		}
		if len(fields) == 2 {
			dir := strings.ToUpper(fields[1])
			if dir != "ASC" && dir != "DESC" {
				return t.DefaultOrder
			}
			parts = append(parts, fields[0]+" "+dir)
			continue
		}
		parts = append(parts, fields[0])
	}
	return strings.Join(parts, ", ")
}

var TicketsTable = Table{
	Name: "maintenance_tickets",
	Columns: []Column{
		{"title", "TEXT"},
		{"maintenance_description", "TEXT"},
		{"refid_mcmc", "TEXT"},
		{"nadi", "TEXT"},
		{"state", "TEXT"},
		{"tp", "TEXT"},
		{"dusp", "TEXT"},
		{"status", "TEXT"},
		{"requester", "TEXT"},
		{"maintenance_type", "TEXT"},
		{"phase", "TEXT"},
		{"priority", "TEXT"},
		{"registered_date", "TEXT"},
		{"updated_date", "TEXT"},
		{"registered_date_parsed", "TEXT"},
		{"updated_date_parsed", "TEXT"},
		{"registered_month", "TEXT"},
		{"image_url", "TEXT"},
		{"maintenance_actions", "TEXT"},
	},
	Indexes: []string{
		"status", "maintenance_type", "priority", "phase",
		"nadi", "state", "tp", "dusp", "registered_date_parsed", "registered_month",
	},
	DefaultOrder: "registered_date_parsed DESC, refid_mcmc",
}

func TicketRow(t models.Ticket) []any {
	return []any{
		t.Title, t.Description, t.ReferenceID, t.Nadi, t.State, t.TP, t.DUSP,
		t.Status, t.Requester, t.MaintenanceType, t.Phase, t.Priority,
		t.RegisteredDate, t.UpdatedDate, t.RegisteredAt, t.UpdatedAt,
		t.RegisteredMonth, t.ImageURL, t.Actions,
	}
}

func TicketRows(tickets []models.Ticket) [][]any {
	out := make([][]any, len(tickets))
	for i, t := range tickets {
		out[i] = TicketRow(t)
	}
	return out
}

var ParticipationTable = Table{
	Name: "nes_data",
	Columns: []Column{
		{"participant_id", "TEXT"},
		{"member_id", "TEXT"},
		{"event_id", "TEXT"},
		{"program_name", "TEXT"},
		{"category_name", "TEXT"},
		{"subcategory_name", "TEXT"},
		{"program_mode_name", "TEXT"},
		{"event_description", "TEXT"},
		{"organization_name", "TEXT"},
		{"organization_type", "TEXT"},
		{"sso_name", "TEXT"},
		{"source_name", "TEXT"},
		{"nadi_name", "TEXT"},
		{"site_name", "TEXT"},
		{"state_name", "TEXT"},
		{"state_code", "TEXT"},
		{"region_name", "TEXT"},
		{"membership_status", "TEXT"},
		{"target_status", "TEXT"},
		{"time_of_day", "TEXT"},
		{"age_group", "TEXT"},
		{"event_date", "TEXT"},
		{"parsed_event_date", "TEXT"},
		{"event_year", "INTEGER"},
		{"event_month", "INTEGER"},
		{"event_month_name", "TEXT"},
		{"event_quarter", "TEXT"},
		{"event_month_key", "TEXT"},
		{"event_duration_hours", "REAL"},
		{"event_total_participants", "REAL"},
		{"target_participants", "REAL"},
		{"attendance_rate_percent", "REAL"},
		{"target_achievement_percent", "REAL"},
		{"total_new_member", "REAL"},
		{"avg_participant_age", "REAL"},
		{"male_count", "REAL"},
		{"female_count", "REAL"},
		{"latitude", "REAL"},
		{"longitude", "REAL"},
	},
	Indexes: []string{
		"state_name", "region_name", "category_name", "program_name",
		"organization_name", "sso_name", "membership_status", "target_status",
		"time_of_day", "age_group", "event_quarter", "event_month_name",
		"event_month", "event_year", "event_month_key", "parsed_event_date",
	},
	DefaultOrder: "parsed_event_date DESC, event_id",
}

func ParticipationRow(p models.Participation) []any {
	return []any{
		p.ParticipantID, p.MemberID, p.EventID, p.ProgramName, p.CategoryName,
		p.SubcategoryName, p.ProgramMode, p.EventDescription, p.OrganizationName,
		p.OrganizationType, p.SSOName, p.SourceName, p.NadiName, p.SiteName,
		p.StateName, p.StateCode, p.RegionName, p.MembershipStatus, p.TargetStatus,
		p.TimeOfDay, p.AgeGroup, p.EventDate, p.EventAt, p.EventYear, p.EventMonth,
		p.EventMonthName, p.EventQuarter, p.EventMonthKey, p.DurationHours,
		p.TotalParticipants, p.TargetParticipants, p.AttendanceRate,
		p.TargetAchievement, p.NewMembers, p.AvgParticipantAge, p.MaleCount,
		p.FemaleCount, p.Latitude, p.Longitude,
	}
}

func ParticipationRows(ps []models.Participation) [][]any {
	out := make([][]any, len(ps))
	for i, p := range ps {
		out[i] = ParticipationRow(p)
	}
	return out
}
