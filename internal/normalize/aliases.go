package normalize

// Canonical ticket fields and the header spellings seen in the exports.
const (
	FieldTitle           = "title"
	FieldDescription     = "maintenance_description"
	FieldReferenceID     = "refid_mcmc"
	FieldNadi            = "nadi"
	FieldState           = "state"
	FieldTP              = "tp"
	FieldDUSP            = "dusp"
	FieldStatus          = "status"
	FieldRequester       = "requester"
	FieldMaintenanceType = "maintenance_type"
	FieldPhase           = "phase"
	FieldPriority        = "priority"
	FieldRegisteredDate  = "registered_date"
	FieldUpdatedDate     = "updated_date"
	FieldImageURL        = "image_url"
	FieldActions         = "maintenance_actions"
)

var TicketAliases = map[string][]string{
	FieldTitle:           {"title", "ticket_title"},
	FieldDescription:     {"maintenance_description", "description", "desc"},
	FieldReferenceID:     {"refid_mcmc"},
	FieldNadi:            {"Nadi", "pedi_name", "nadi"},
	FieldState:           {"state"},
	FieldTP:              {"tp"},
	FieldDUSP:            {"dusp"},
	FieldStatus:          {"status", "maintenance_status", "maintenance_status_name"},
	FieldRequester:       {"requester", "requested_by", "requestor", "requester_by"},
	FieldMaintenanceType: {"maintenance_type", "maintenance_type_name", "type"},
	FieldPhase:           {"phase_by", "phase", "phase_name"},
	FieldPriority:        {"priority_name", "priority", "priorities"},
	FieldRegisteredDate:  {"registered_date", "registered", "created_at", "created", "created_date"},
	FieldUpdatedDate:     {"updated_date", "updated", "last_updated"},
	FieldImageURL:        {"image_url", "maintenance_image", "image"},
	FieldActions:         {"maintenance_actions", "actions"},
}

// ParticipationAliases covers the participation export. Most columns arrive
// under their canonical name; the extra spellings come from older CSV drops.
var ParticipationAliases = map[string][]string{
	"participant_id":             {"participant_id", "participantid"},
	"member_id":                  {"member_id", "memberid"},
	"event_id":                   {"event_id", "eventid"},
	"program_name":               {"program_name", "custom_program_name", "program"},
	"category_name":              {"category_name", "category"},
	"subcategory_name":           {"subcategory_name", "subcategory"},
	"program_mode_name":          {"program_mode_name", "program_mode"},
	"event_description":          {"event_description"},
	"organization_name":          {"organization_name", "organization"},
	"organization_type":          {"organization_type"},
	"sso_name":                   {"sso_name", "sso"},
	"source_name":                {"source_name", "source"},
	"nadi_name":                  {"nadi_name", "nadi", "site_fullname"},
	"site_name":                  {"site_name"},
	"state_name":                 {"state_name", "state"},
	"state_code":                 {"state_code"},
	"region_name":                {"region_name", "region"},
	"membership_status":          {"membership_status"},
	"target_status":              {"target_status"},
	"time_of_day":                {"time_of_day"},
	"age_group":                  {"age_group"},
	"event_date":                 {"event_date", "participation_date", "start_datetime"},
	"event_year":                 {"event_year"},
	"event_month":                {"event_month"},
	"event_month_name":           {"event_month_name"},
	"event_quarter":              {"event_quarter"},
	"event_duration_hours":       {"event_duration_hours", "duration_hours"},
	"event_total_participants":   {"event_total_participants", "actual_participants"},
	"target_participants":        {"target_participants"},
	"attendance_rate_percent":    {"attendance_rate_percent"},
	"target_achievement_percent": {"target_achievement_percent"},
	"total_new_member":           {"total_new_member", "total_new_members"},
	"avg_participant_age":        {"avg_participant_age"},
	"male_count":                 {"male_count"},
	"female_count":               {"female_count"},
	"latitude":                   {"latitude", "lat"},
	"longitude":                  {"longitude", "lng", "lon"},
}
