package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/service"
)

type ToggleRequest struct {
	Dimension string `json:"dimension" validate:"required"`
	Value     string `json:"value" validate:"required"`
}

type ValuesRequest struct {
	Dimension string   `json:"dimension" validate:"required"`
	Values    []string `json:"values" validate:"dive,max=500"`
}

type DatesRequest struct {
	Start string `json:"start" validate:"omitempty,datetime=2006-01-02"`
	End   string `json:"end" validate:"omitempty,datetime=2006-01-02"`
}

type QuickRangeRequest struct {
	Period string `json:"period" validate:"required"`
}

type sessionResponse struct {
	Query         string              `json:"query"`
	ActiveFilters int                 `json:"active_filters"`
	Filters       map[string][]string `json:"filters"`
	Start         string              `json:"start,omitempty"`
	End           string              `json:"end,omitempty"`
	Snapshot      service.Snapshot    `json:"snapshot"`
}

func (h *Handler) sessionView(s *service.Session) sessionResponse {
	st := s.State()
	resp := sessionResponse{
		Query:         filter.Encode(st).Encode(),
		ActiveFilters: st.ActiveCount(),
		Filters: lo.SliceToMap(st.Dimensions(), func(d string) (string, []string) {
			return d, st.Values(d)
		}),
		Snapshot: s.Snapshot(),
	}
	if r := st.DateRange(); !r.Start.IsZero() {
		resp.Start = r.Start.In(h.loc()).Format("2006-01-02")
	}
	if r := st.DateRange(); !r.End.IsZero() {
		resp.End = r.End.In(h.loc()).Format("2006-01-02")
	}
	return resp
}

// mutated answers a session change. The snapshot is recomputed once the
// debounce window settles, so it is reported as pending.
func (h *Handler) mutated(c *gin.Context, s *service.Session, err error) {
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, h.sessionView(s))
}

// @Summary Session state
// @Description Current filter state and the last computed snapshot.
// @Tags session
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tickets/session [get]
// @Router /api/participation/session [get]
func (h *Handler) SessionGet(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, h.sessionView(ds.Session))
	}
}

// @Summary Toggle a filter value
// @Tags session
// @Accept json
// @Produce json
// @Param body body ToggleRequest true "dimension and value"
// @Success 202 {object} map[string]any
// @Router /api/tickets/session/toggle [post]
// @Router /api/participation/session/toggle [post]
func (h *Handler) SessionToggle(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ToggleRequest
		if !h.bindJSON(c, &req) {
			return
		}
		h.mutated(c, ds.Session, ds.Session.Toggle(req.Dimension, req.Value))
	}
}

// @Summary Replace a dimension's selection
// @Tags session
// @Accept json
// @Produce json
// @Param body body ValuesRequest true "dimension and values"
// @Success 202 {object} map[string]any
// @Router /api/tickets/session/values [post]
// @Router /api/participation/session/values [post]
func (h *Handler) SessionValues(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ValuesRequest
		if !h.bindJSON(c, &req) {
			return
		}
		h.mutated(c, ds.Session, ds.Session.SetValues(req.Dimension, req.Values))
	}
}

// @Summary Set the date range
// @Tags session
// @Accept json
// @Produce json
// @Param body body DatesRequest true "inclusive calendar days"
// @Success 202 {object} map[string]any
// @Router /api/tickets/session/dates [post]
// @Router /api/participation/session/dates [post]
func (h *Handler) SessionDates(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req DatesRequest
		if !h.bindJSON(c, &req) {
			return
		}
		var r filter.DateRange
		if req.Start != "" {
			t, _ := time.ParseInLocation("2006-01-02", req.Start, h.loc())
			r.Start = filter.StartOfDay(t)
		}
		if req.End != "" {
			t, _ := time.ParseInLocation("2006-01-02", req.End, h.loc())
			r.End = filter.EndOfDay(t)
		}
		if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
			writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "end is before start", nil)
			return
		}
		h.mutated(c, ds.Session, ds.Session.SetDateRange(r))
	}
}

// @Summary Apply a quick date range
// @Tags session
// @Accept json
// @Produce json
// @Param body body QuickRangeRequest true "period, e.g. last-30-days"
// @Success 202 {object} map[string]any
// @Router /api/tickets/session/quick-range [post]
// @Router /api/participation/session/quick-range [post]
func (h *Handler) SessionQuickRange(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req QuickRangeRequest
		if !h.bindJSON(c, &req) {
			return
		}
		h.mutated(c, ds.Session, ds.Session.SetQuickDateRange(req.Period, h.now()))
	}
}

// @Summary Reset all filters
// @Tags session
// @Produce json
// @Success 202 {object} map[string]any
// @Router /api/tickets/session/reset [post]
// @Router /api/participation/session/reset [post]
func (h *Handler) SessionReset(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.mutated(c, ds.Session, ds.Session.Reset())
	}
}

// @Summary Replace the state from a bookmarked query
// @Description Takes the same query parameters the read endpoints accept.
// @Tags session
// @Produce json
// @Success 202 {object} map[string]any
// @Router /api/tickets/session/apply [post]
// @Router /api/participation/session/apply [post]
func (h *Handler) SessionApply(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.mutated(c, ds.Session, ds.Session.Apply(c.Request.URL.Query()))
	}
}

// @Summary Recompute now
// @Description Skips the debounce window and returns the fresh snapshot.
// @Tags session
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/tickets/session/refresh [post]
// @Router /api/participation/session/refresh [post]
func (h *Handler) SessionRefresh(ds Dataset) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := ds.Session.Refresh(c.Request.Context()); err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, h.sessionView(ds.Session))
	}
}
