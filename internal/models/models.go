package models

// RawRow is one record as it came off the wire, keyed by the source's own
// header names. It never leaves the source and normalize packages.
type RawRow map[string]any

type MaintenanceAction struct {
	ID        int64    `json:"maintenance_action_id"`
	Text      string   `json:"action_text"`
	Action    string   `json:"action"`
	Files     []string `json:"files"`
	CreatedAt string   `json:"created_at"`
}

type Ticket struct {
	Title           string  `json:"title" db:"title"`
	Description     string  `json:"maintenance_description" db:"maintenance_description"`
	ReferenceID     string  `json:"refid_mcmc" db:"refid_mcmc"`
	Nadi            string  `json:"nadi" db:"nadi"`
	State           string  `json:"state" db:"state"`
	TP              string  `json:"tp" db:"tp"`
	DUSP            string  `json:"dusp" db:"dusp"`
	Status          string  `json:"status" db:"status"`
	Requester       string  `json:"requester" db:"requester"`
	MaintenanceType string  `json:"maintenance_type" db:"maintenance_type"`
	Phase           string  `json:"phase" db:"phase"`
	Priority        string  `json:"priority" db:"priority"`
	RegisteredDate  string  `json:"registered_date" db:"registered_date"`
	UpdatedDate     string  `json:"updated_date" db:"updated_date"`
	RegisteredAt    Date    `json:"registered_date_parsed" db:"registered_date_parsed"`
	UpdatedAt       Date    `json:"updated_date_parsed" db:"updated_date_parsed"`
	RegisteredMonth string  `json:"registered_month" db:"registered_month"`
	ImageURL        string  `json:"image_url,omitempty" db:"image_url"`
	Actions         Actions `json:"maintenance_actions,omitempty" db:"maintenance_actions"`
}

type Participation struct {
	ParticipantID    string `json:"participant_id" db:"participant_id"`
	MemberID         string `json:"member_id" db:"member_id"`
	EventID          string `json:"event_id" db:"event_id"`
	ProgramName      string `json:"program_name" db:"program_name"`
	CategoryName     string `json:"category_name" db:"category_name"`
	SubcategoryName  string `json:"subcategory_name" db:"subcategory_name"`
	ProgramMode      string `json:"program_mode_name" db:"program_mode_name"`
	EventDescription string `json:"event_description" db:"event_description"`
	OrganizationName string `json:"organization_name" db:"organization_name"`
	OrganizationType string `json:"organization_type" db:"organization_type"`
	SSOName          string `json:"sso_name" db:"sso_name"`
	SourceName       string `json:"source_name" db:"source_name"`
	NadiName         string `json:"nadi_name" db:"nadi_name"`
	SiteName         string `json:"site_name" db:"site_name"`
	StateName        string `json:"state_name" db:"state_name"`
	StateCode        string `json:"state_code" db:"state_code"`
	RegionName       string `json:"region_name" db:"region_name"`
	MembershipStatus string `json:"membership_status" db:"membership_status"`
	TargetStatus     string `json:"target_status" db:"target_status"`
	TimeOfDay        string `json:"time_of_day" db:"time_of_day"`
	AgeGroup         string `json:"age_group" db:"age_group"`

	EventDate      string `json:"event_date" db:"event_date"`
	EventAt        Date   `json:"parsed_event_date" db:"parsed_event_date"`
	EventYear      int    `json:"event_year" db:"event_year"`
	EventMonth     int    `json:"event_month" db:"event_month"`
	EventMonthName string `json:"event_month_name" db:"event_month_name"`
	EventQuarter   string `json:"event_quarter" db:"event_quarter"`
	EventMonthKey  string `json:"event_month_key" db:"event_month_key"`

	DurationHours      float64 `json:"event_duration_hours" db:"event_duration_hours"`
	TotalParticipants  float64 `json:"event_total_participants" db:"event_total_participants"`
	TargetParticipants float64 `json:"target_participants" db:"target_participants"`
	AttendanceRate     float64 `json:"attendance_rate_percent" db:"attendance_rate_percent"`
	TargetAchievement  float64 `json:"target_achievement_percent" db:"target_achievement_percent"`
	NewMembers         float64 `json:"total_new_member" db:"total_new_member"`
	AvgParticipantAge  float64 `json:"avg_participant_age" db:"avg_participant_age"`
	MaleCount          float64 `json:"male_count" db:"male_count"`
	FemaleCount        float64 `json:"female_count" db:"female_count"`
	Latitude           float64 `json:"latitude" db:"latitude"`
	Longitude          float64 `json:"longitude" db:"longitude"`
}

type ParticipationKPIs struct {
	TotalParticipants       int     `json:"total_participants"`
	UniqueMembers           int     `json:"unique_members"`
	TotalEvents             int     `json:"total_events"`
	TotalNadi               int     `json:"total_nadi"`
	AvgAttendanceRate       float64 `json:"avg_attendance_rate"`
	AvgTargetAchievement    float64 `json:"avg_target_achievement"`
	TotalNewMembers         int     `json:"total_new_members"`
	AvgParticipantAge       float64 `json:"avg_participant_age"`
	MalePercent             float64 `json:"male_percent"`
	FemalePercent           float64 `json:"female_percent"`
	MemberRate              float64 `json:"member_rate"`
	AvgParticipantsPerEvent float64 `json:"avg_participants_per_event"`
}

type TicketSummary struct {
	Total      int            `json:"total"`
	ByStatus   map[string]int `json:"by_status"`
	LatestDate Date           `json:"latest_date"`
}

type Count struct {
	Value string `json:"value" db:"value"`
	Count int    `json:"count" db:"count"`
}

type SeriesPoint struct {
	Period string `json:"period" db:"period"`
	Count  int    `json:"count" db:"count"`
}

type Crosstab struct {
	Rows      []string `json:"rows"`
	Cols      []string `json:"cols"`
	Cells     [][]int  `json:"cells"`
	RowTotals []int    `json:"row_totals"`
	ColTotals []int    `json:"col_totals"`
	Total     int      `json:"total"`
}

type GeoPoint struct {
	Lat          float64 `json:"lat" db:"lat"`
	Lng          float64 `json:"lng" db:"lng"`
	Name         string  `json:"name" db:"name"`
	Participants int     `json:"participants" db:"participants"`
	Events       int     `json:"events" db:"events"`
	State        string  `json:"state" db:"state"`
}

type StateMetrics struct {
	State         string  `json:"state" db:"state"`
	StateCode     string  `json:"state_code" db:"state_code"`
	Participants  int     `json:"participants" db:"participants"`
	Events        int     `json:"events" db:"events"`
	NadiCount     int     `json:"nadi_count" db:"nadi_count"`
	AvgAttendance float64 `json:"avg_attendance" db:"avg_attendance"`
}
