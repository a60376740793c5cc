package analytics

import (
	"context"
	"math"

	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/models"
	"github.com/nes_dashboard/backend/internal/query"
)

const kpiSQL = `SELECT
	COUNT(DISTINCT NULLIF(participant_id, '')) AS participants,
	COUNT(DISTINCT NULLIF(member_id, '')) AS members,
	COUNT(DISTINCT NULLIF(event_id, '')) AS events,
	COUNT(DISTINCT NULLIF(nadi_name, '')) AS nadi,
	COALESCE(AVG(attendance_rate_percent), 0) AS avg_attendance,
	COALESCE(AVG(target_achievement_percent), 0) AS avg_target,
	COALESCE(SUM(total_new_member), 0) AS new_members,
	COALESCE(AVG(avg_participant_age), 0) AS avg_age,
	COALESCE(SUM(male_count), 0) AS male,
	COALESCE(SUM(female_count), 0) AS female,
	COALESCE(SUM(CASE WHEN membership_status = 'Member' THEN 1 ELSE 0 END), 0) AS member_rows,
	COUNT(*) AS row_count
FROM %s %s`

type kpiRow struct {
	Participants  int     `db:"participants"`
	Members       int     `db:"members"`
	Events        int     `db:"events"`
	Nadi          int     `db:"nadi"`
	AvgAttendance float64 `db:"avg_attendance"`
	AvgTarget     float64 `db:"avg_target"`
	NewMembers    float64 `db:"new_members"`
	AvgAge        float64 `db:"avg_age"`
	Male          float64 `db:"male"`
	Female        float64 `db:"female"`
	MemberRows    int     `db:"member_rows"`
	Rows          int     `db:"row_count"`
}

// ParticipationKPIs summarizes the filtered participation rows.
func (e *Engine) ParticipationKPIs(ctx context.Context, clause query.Clause) (models.ParticipationKPIs, error) {
	table := db.ParticipationTable.Name
	var r kpiRow
	if err := e.Store.Get(ctx, table, &r, render(kpiSQL, table, clause)); err != nil {
		return models.ParticipationKPIs{}, e.degrade("participation_kpis", err)
	}

	gender := r.Male + r.Female
	return models.ParticipationKPIs{
		TotalParticipants:       r.Participants,
		UniqueMembers:           r.Members,
		TotalEvents:             r.Events,
		TotalNadi:               r.Nadi,
		AvgAttendanceRate:       round1(r.AvgAttendance),
		AvgTargetAchievement:    round1(r.AvgTarget),
		TotalNewMembers:         int(math.Round(r.NewMembers)),
		AvgParticipantAge:       round1(r.AvgAge),
		MalePercent:             round1(ratio(r.Male*100, gender)),
		FemalePercent:           round1(ratio(r.Female*100, gender)),
		MemberRate:              round1(ratio(float64(r.MemberRows)*100, float64(r.Rows))),
		AvgParticipantsPerEvent: round1(ratio(float64(r.Participants), float64(r.Events))),
	}, nil
}

const latestSQL = "SELECT MAX(COALESCE(NULLIF(updated_date_parsed, ''), registered_date_parsed)) AS latest FROM %s %s"

type summaryRow struct {
	Total  int         `db:"total"`
	Latest models.Date `db:"latest"`
}

// TicketSummary counts filtered tickets per status. LatestDate is the data
// freshness of the whole table: the newest update or registration date,
// whatever the filters.
func (e *Engine) TicketSummary(ctx context.Context, clause query.Clause) (models.TicketSummary, error) {
	table := db.TicketsTable.Name
	out := models.TicketSummary{ByStatus: map[string]int{}}

	var r summaryRow
	q := render("SELECT COUNT(*) AS total FROM %s %s", table, clause)
	if err := e.Store.Get(ctx, table, &r, q); err != nil {
		return out, e.degrade("ticket_summary", err)
	}
	q = render(latestSQL, table, query.Clause{})
	if err := e.Store.Get(ctx, table, &r, q); err != nil {
		return out, e.degrade("ticket_summary", err)
	}
	out.Total = r.Total
	out.LatestDate = r.Latest

	byStatus, err := e.Distribution(ctx, table, "status", clause)
	if err != nil {
		return out, err
	}
	for _, c := range byStatus {
		out.ByStatus[c.Value] = c.Count
	}
	return out, nil
}
