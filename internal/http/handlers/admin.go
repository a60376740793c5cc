package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/multierr"

	"github.com/nes_dashboard/backend/internal/service"
)

type RefreshRequest struct {
	Dataset string `json:"dataset" validate:"omitempty,oneof=tickets participation"`
}

// loadContext detaches a reload from the client connection. Loads carry
// their own fetch timeout.
func loadContext(c *gin.Context) context.Context {
	return context.WithoutCancel(c.Request.Context())
}

// @Summary Force a dataset reload
// @Description Refetches one dataset, or both when dataset is empty, and rebuilds its table.
// @Tags admin
// @Accept json
// @Produce json
// @Param X-Admin-Key header string false "admin key"
// @Param body body RefreshRequest false "dataset"
// @Success 200 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/admin/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if c.Request.ContentLength > 0 && !h.bindJSON(c, &req) {
		return
	}
	ctx := loadContext(c)

	if req.Dataset != "" {
		summary, err := h.Loader.Load(ctx, req.Dataset, true)
		if err != nil {
			h.Logger.Error().Err(err).Str("dataset", req.Dataset).Msg("admin refresh failed")
			writeError(c, http.StatusBadGateway, "LOAD_FAILED", "Reload failed", err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"loaded": []service.LoadSummary{summary}, "datasets": h.Loader.Statuses()})
		return
	}

	if err := multierr.Combine(h.Loader.LoadAll(ctx, true)...); err != nil {
		h.Logger.Error().Err(err).Msg("admin refresh failed")
		writeError(c, http.StatusBadGateway, "LOAD_FAILED", "Reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"datasets": h.Loader.Statuses()})
}

// @Summary Clear the local cache and reload
// @Tags admin
// @Produce json
// @Param X-Admin-Key header string false "admin key"
// @Success 200 {object} map[string]any
// @Failure 502 {object} map[string]any
// @Router /api/admin/cache [delete]
func (h *Handler) ClearCache(c *gin.Context) {
	if err := multierr.Combine(h.Loader.ClearCache(loadContext(c))...); err != nil {
		h.Logger.Error().Err(err).Msg("cache clear failed")
		writeError(c, http.StatusBadGateway, "LOAD_FAILED", "Cache cleared but reload failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "datasets": h.Loader.Statuses()})
}
