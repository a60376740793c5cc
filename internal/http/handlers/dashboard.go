package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/export"
	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/query"
)

type PageRequest struct {
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=10000"`
	Offset int    `form:"offset" validate:"omitempty,min=0"`
	Sort   string `form:"sort" validate:"omitempty,max=200"`
}

type SeriesRequest struct {
	Months int `form:"months" validate:"omitempty,min=1,max=120"`
}

type CrosstabRequest struct {
	Rows   string `form:"rows" validate:"required"`
	Cols   string `form:"cols" validate:"required,nefield=Rows"`
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

type ExportRequest struct {
	Format string `form:"format" validate:"omitempty,oneof=json csv xlsx"`
}

type GeoRequest struct {
	Limit    int     `form:"limit" validate:"omitempty,min=1,max=5000"`
	RadiusKm float64 `form:"radius_km" validate:"omitempty,gt=0,lte=500"`
}

const defaultSeriesMonths = 12

// Records returns one page of filtered rows with the total and filtered
// counts. The page size never exceeds the configured row cap.
//
// @Summary Filtered records
// @Tags dashboard
// @Produce json
// @Param limit query int false "page size"
// @Param offset query int false "offset"
// @Param sort query string false "ORDER BY list, e.g. status ASC"
// @Param period query string false "quick date range"
// @Success 200 {object} map[string]any
// @Router /api/tickets [get]
// @Router /api/participation [get]
func (h *Handler) Records(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PageRequest
		if !h.bind(c, &req) {
			return
		}
		st, err := h.state(c, ds)
		if err != nil {
			h.fail(c, err)
			return
		}
		clause := query.Build(st, ds.Dimensions, ds.DateColumn).String()
		limit := req.Limit
		if limit == 0 || limit > h.rowCap() {
			limit = h.rowCap()
		}

		ctx := c.Request.Context()
		total, err := h.Store.Count(ctx, ds.Table, "")
		if err != nil {
			h.fail(c, err)
			return
		}
		filtered, err := h.Store.Count(ctx, ds.Table, clause)
		if err != nil {
			h.fail(c, err)
			return
		}
		items, err := ds.Records(ctx, clause, db.Page{Order: req.Sort, Limit: limit, Offset: req.Offset})
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"items":          items,
			"total":          total,
			"filtered":       filtered,
			"limit":          limit,
			"offset":         req.Offset,
			"active_filters": st.ActiveCount(),
			"query":          filter.Encode(st).Encode(),
		})
	}
}

// @Summary Filter options
// @Description Distinct values per filter dimension.
// @Tags dashboard
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tickets/options [get]
// @Router /api/participation/options [get]
func (h *Handler) Options(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := h.Engine.FilterOptions(c.Request.Context(), ds.Table, ds.Dimensions)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"options": opts, "convention": ds.Convention.String()})
	}
}

// @Summary Ticket summary
// @Tags tickets
// @Produce json
// @Success 200 {object} models.TicketSummary
// @Router /api/tickets/summary [get]
func (h *Handler) TicketSummary(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		summary, err := h.Engine.TicketSummary(c.Request.Context(), clause)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, summary)
	}
}

// @Summary Participation KPIs
// @Tags participation
// @Produce json
// @Success 200 {object} models.ParticipationKPIs
// @Router /api/participation/kpis [get]
func (h *Handler) KPIs(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		kpis, err := h.Engine.ParticipationKPIs(c.Request.Context(), clause)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, kpis)
	}
}

// @Summary Distribution by dimension
// @Tags dashboard
// @Produce json
// @Param dimension path string true "filter dimension"
// @Success 200 {object} map[string]any
// @Failure 400 {object} map[string]any
// @Router /api/tickets/distribution/{dimension} [get]
// @Router /api/participation/distribution/{dimension} [get]
func (h *Handler) Distribution(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		dim, ok := query.Lookup(ds.Dimensions, c.Param("dimension"))
		if !ok {
			writeError(c, http.StatusBadRequest, "INVALID_FILTER", "Unknown dimension", c.Param("dimension"))
			return
		}
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		counts, err := h.Engine.Distribution(c.Request.Context(), ds.Table, dim.Column, clause)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"dimension": dim.Name, "items": counts})
	}
}

// @Summary Monthly series
// @Tags dashboard
// @Produce json
// @Param months query int false "number of trailing months (default 12)"
// @Success 200 {object} map[string]any
// @Router /api/tickets/timeseries [get]
// @Router /api/participation/timeseries [get]
func (h *Handler) TimeSeries(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SeriesRequest
		if !h.bind(c, &req) {
			return
		}
		if req.Months == 0 {
			req.Months = defaultSeriesMonths
		}
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		points, err := h.Engine.TimeSeries(c.Request.Context(), ds.Table, ds.MonthColumn, clause, req.Months)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": points})
	}
}

// @Summary Crosstab of two dimensions
// @Tags dashboard
// @Produce json
// @Param rows query string true "row dimension"
// @Param cols query string true "column dimension"
// @Param format query string false "json, csv or xlsx"
// @Success 200 {object} models.Crosstab
// @Router /api/tickets/crosstab [get]
// @Router /api/participation/crosstab [get]
func (h *Handler) Crosstab(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CrosstabRequest
		if !h.bind(c, &req) {
			return
		}
		rows, ok := query.Lookup(ds.Dimensions, req.Rows)
		cols, ok2 := query.Lookup(ds.Dimensions, req.Cols)
		if !ok || !ok2 {
			writeError(c, http.StatusBadRequest, "INVALID_FILTER", "Unknown dimension", gin.H{"rows": req.Rows, "cols": req.Cols})
			return
		}
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		x, err := h.Engine.Crosstab(c.Request.Context(), ds.Table, rows.Column, cols.Column, clause)
		if err != nil {
			h.fail(c, err)
			return
		}
		if req.Format == "" || req.Format == formatJSON {
			c.JSON(http.StatusOK, x)
			return
		}
		h.writeTable(c, req.Format, ds.Name+"-crosstab", export.Crosstab(x, rows.Label))
	}
}

// @Summary Export filtered records
// @Tags dashboard
// @Produce json
// @Produce text/csv
// @Param format query string false "json, csv or xlsx"
// @Success 200 {object} export.Table
// @Router /api/tickets/export [get]
// @Router /api/participation/export [get]
func (h *Handler) Export(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ExportRequest
		if !h.bind(c, &req) {
			return
		}
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		t, err := ds.Export(c.Request.Context(), clause.String())
		if err != nil {
			h.fail(c, err)
			return
		}
		h.writeTable(c, req.Format, ds.Name, t)
	}
}

// @Summary Map points
// @Description Sites with participant and event counts. radius_km merges nearby points.
// @Tags participation
// @Produce json
// @Param limit query int false "max points (default 500)"
// @Param radius_km query number false "merge radius"
// @Success 200 {object} map[string]any
// @Router /api/participation/geo [get]
func (h *Handler) Geo(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req GeoRequest
		if !h.bind(c, &req) {
			return
		}
		if req.Limit == 0 {
			req.Limit = analytics.DefaultGeoLimit
		}
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		points, err := h.Engine.GeoPoints(c.Request.Context(), clause, req.Limit)
		if err != nil {
			h.fail(c, err)
			return
		}
		if req.RadiusKm > 0 {
			points = analytics.MergeNearby(points, req.RadiusKm)
		}
		c.JSON(http.StatusOK, gin.H{"items": points})
	}
}

// @Summary Per-state metrics
// @Tags participation
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/participation/states [get]
func (h *Handler) States(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		clause, ok := h.clause(c, ds)
		if !ok {
			return
		}
		states, err := h.Engine.StateMetrics(c.Request.Context(), clause)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": states})
	}
}
