package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coder/quartz"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/nes_dashboard/backend/internal/analytics"
	"github.com/nes_dashboard/backend/internal/db"
	"github.com/nes_dashboard/backend/internal/export"
	"github.com/nes_dashboard/backend/internal/filter"
	"github.com/nes_dashboard/backend/internal/query"
	"github.com/nes_dashboard/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Engine    *analytics.Engine
	Loader    *service.Loader
	Validator *validator.Validate
	Logger    zerolog.Logger
	Location  *time.Location
	Clock     quartz.Clock
	RowCap    int
}

func (h *Handler) loc() *time.Location {
	if h.Location == nil {
		return time.Local
	}
	return h.Location
}

func (h *Handler) now() time.Time {
	if h.Clock == nil {
		return time.Now().In(h.loc())
	}
	return h.Clock.Now().In(h.loc())
}

func (h *Handler) rowCap() int {
	if h.RowCap <= 0 {
		return service.DefaultRowCap
	}
	return h.RowCap
}

// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]any
// @Failure 503 {object} map[string]any
// @Router /healthz [get]
func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Store unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Dataset load status
// @Description Stage, progress, row count and last error of each dataset load.
// @Tags status
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/status [get]
func (h *Handler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"datasets": h.Loader.Statuses()})
}

// state decodes the filter state carried in the request query. A "period"
// parameter selects a quick date range and wins over start/end.
func (h *Handler) state(c *gin.Context, ds Dataset) (*filter.State, error) {
	st := filter.New(ds.Convention, query.Names(ds.Dimensions)...)
	filter.Decode(c.Request.URL.Query(), st, h.loc())
	if period := c.Query("period"); period != "" {
		if err := st.SetQuickDateRange(period, h.now()); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (h *Handler) clause(c *gin.Context, ds Dataset) (query.Clause, bool) {
	st, err := h.state(c, ds)
	if err != nil {
		h.fail(c, err)
		return query.Clause{}, false
	}
	return query.Build(st, ds.Dimensions, ds.DateColumn), true
}

// bind decodes query parameters into req and validates it.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindQuery(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid query parameters", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return false
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return false
	}
	return true
}

// fail maps domain errors onto the error envelope.
func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, db.ErrNotInitialized):
		writeError(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Data is still loading", err.Error())
	case errors.Is(err, filter.ErrUnknownDimension),
		errors.Is(err, filter.ErrUnknownPeriod),
		errors.Is(err, analytics.ErrUnknownColumn),
		errors.Is(err, db.ErrUnknownTable):
		writeError(c, http.StatusBadRequest, "INVALID_FILTER", "Invalid filter", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusGatewayTimeout, "TIMEOUT", "Query timed out", nil)
	default:
		h.Logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		writeError(c, http.StatusInternalServerError, "QUERY_ERROR", "Query failed", err.Error())
	}
}

const (
	formatJSON = "json"
	formatCSV  = "csv"
	formatXLSX = "xlsx"

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// writeTable renders t as JSON or as a downloadable CSV/XLSX file.
func (h *Handler) writeTable(c *gin.Context, format, name string, t export.Table) {
	var (
		buf   bytes.Buffer
		err   error
		ctype string
	)
	switch format {
	case formatCSV:
		ctype = "text/csv; charset=utf-8"
		err = export.WriteCSV(&buf, t)
	case formatXLSX:
		ctype = xlsxContentType
		err = export.WriteXLSX(&buf, t)
	default:
		c.JSON(http.StatusOK, t)
		return
	}
	if err != nil {
		h.Logger.Error().Err(err).Str("format", format).Msg("export failed")
		writeError(c, http.StatusInternalServerError, "EXPORT_ERROR", "Export failed", err.Error())
		return
	}
	filename := fmt.Sprintf("%s-%s.%s", name, h.now().Format("2006-01-02"), format)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, ctype, buf.Bytes())
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
