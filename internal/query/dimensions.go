package query

// TicketDimensions are the filterable columns of the maintenance ticket
// dashboard.
var TicketDimensions = []Dimension{
	{Name: "status", Column: "status", Label: "Status"},
	{Name: "type", Column: "maintenance_type", Label: "Maintenance Type"},
	{Name: "priority", Column: "priority", Label: "Priority"},
	{Name: "phase", Column: "phase", Label: "Phase"},
	{Name: "nadi", Column: "nadi", Label: "NADI"},
	{Name: "state", Column: "state", Label: "State"},
	{Name: "tp", Column: "tp", Label: "TP"},
	{Name: "dusp", Column: "dusp", Label: "DUSP"},
}

const (
	TicketDateColumn  = "registered_date_parsed"
	TicketMonthColumn = "registered_month"
)

// ParticipationDimensions are the filterable columns of the NES
// participation dashboard.
var ParticipationDimensions = []Dimension{
	{Name: "state", Column: "state_name", Label: "State"},
	{Name: "region", Column: "region_name", Label: "Region"},
	{Name: "category", Column: "category_name", Label: "Category"},
	{Name: "program", Column: "program_name", Label: "Program"},
	{Name: "organization", Column: "organization_name", Label: "Organization"},
	{Name: "sso", Column: "sso_name", Label: "SSO"},
	{Name: "membershipStatus", Column: "membership_status", Label: "Membership Status"},
	{Name: "targetStatus", Column: "target_status", Label: "Target Status"},
	{Name: "timeOfDay", Column: "time_of_day", Label: "Time of Day"},
	{Name: "ageGroup", Column: "age_group", Label: "Age Group"},
	{Name: "quarter", Column: "event_quarter", Label: "Quarter"},
	{Name: "month", Column: "event_month_name", SortColumn: "event_month", Label: "Month"},
	{Name: "year", Column: "event_year", Numeric: true, Label: "Year"},
}

const (
	ParticipationDateColumn  = "parsed_event_date"
	ParticipationMonthColumn = "event_month_key"
)
