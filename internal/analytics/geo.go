package analytics

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/models"
	"github.com/nes_dashboard/backend/internal/query"
	"github.com/nes_dashboard/backend/internal/utils"
)

const DefaultGeoLimit = 500

// GeoPoints groups participation rows by site coordinates. Rows with missing
// or zero coordinates are excluded.
func (e *Engine) GeoPoints(ctx context.Context, clause query.Clause, limit int) ([]models.GeoPoint, error) {
	if limit <= 0 {
		limit = DefaultGeoLimit
	}
	table := db.ParticipationTable.Name
	clause = clause.And(
		"latitude IS NOT NULL", "longitude IS NOT NULL",
		"latitude <> 0", "longitude <> 0",
	)
	q := fmt.Sprintf(`SELECT latitude AS lat, longitude AS lng,
	COALESCE(NULLIF(nadi_name, ''), NULLIF(site_name, ''), 'Unknown') AS name,
	COUNT(DISTINCT NULLIF(participant_id, '')) AS participants,
	COUNT(DISTINCT NULLIF(event_id, '')) AS events,
	COALESCE(NULLIF(state_name, ''), 'Unknown') AS state
FROM %s %s
GROUP BY latitude, longitude, nadi_name, site_name, state_name
ORDER BY participants DESC, name ASC
LIMIT %d`, table, clause.String(), limit)

	out := []models.GeoPoint{}
	if err := e.Store.Select(ctx, table, &out, q); err != nil {
		return []models.GeoPoint{}, e.degrade("geo_points", err)
	}
	return lo.Filter(out, func(p models.GeoPoint, _ int) bool {
		return utils.LatLng{Lat: p.Lat, Lng: p.Lng}.Usable()
	}), nil
}

// MergeNearby folds points lying within radiusKm of a larger point into it,
// summing their counts. The largest point of each group keeps its name and
// position. A non-positive radius returns the points unchanged.
func MergeNearby(points []models.GeoPoint, radiusKm float64) []models.GeoPoint {
	if radiusKm <= 0 || len(points) < 2 {
		return append([]models.GeoPoint(nil), points...)
	}
	sorted := append([]models.GeoPoint(nil), points...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Participants > sorted[j].Participants })

	var merged []models.GeoPoint
	for _, p := range sorted {
		joined := false
		for i := range merged {
			if utils.DistanceKm(utils.LatLng{Lat: merged[i].Lat, Lng: merged[i].Lng}, utils.LatLng{Lat: p.Lat, Lng: p.Lng}) <= radiusKm {
				merged[i].Participants += p.Participants
				merged[i].Events += p.Events
				joined = true
				break
			}
		}
		if !joined {
			merged = append(merged, p)
		}
	}
	return merged
}

const stateMetricsSQL = `SELECT state_name AS state,
	COALESCE(state_code, '') AS state_code,
	COUNT(DISTINCT NULLIF(participant_id, '')) AS participants,
	COUNT(DISTINCT NULLIF(event_id, '')) AS events,
	COUNT(DISTINCT NULLIF(nadi_name, '')) AS nadi_count,
	COALESCE(AVG(attendance_rate_percent), 0) AS avg_attendance
FROM %s %s
GROUP BY state_name, state_code
ORDER BY participants DESC, state ASC`

// StateMetrics aggregates participation per state. Rows without a usable
// state name are left out.
func (e *Engine) StateMetrics(ctx context.Context, clause query.Clause) ([]models.StateMetrics, error) {
	table := db.ParticipationTable.Name
	clause = clause.And("state_name IS NOT NULL", "state_name NOT IN ('', '?', 'Unknown')")

	out := []models.StateMetrics{}
	if err := e.Store.Select(ctx, table, &out, render(stateMetricsSQL, table, clause)); err != nil {
		return []models.StateMetrics{}, e.degrade("state_metrics", err)
	}
	for i := range out {
		out[i].AvgAttendance = round1(out[i].AvgAttendance)
	}
	return out, nil
}
