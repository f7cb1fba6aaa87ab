package controllers

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

const dashboardCacheTTL = 5 * time.Minute

// DashboardController serves the per-user overview, cached in Redis when available.
type DashboardController struct {
	dashboard *services.DashboardService
	loc       *time.Location
	now       func() time.Time
	log       *zap.Logger
}

// NewDashboardController creates a DashboardController.
func NewDashboardController(dashboard *services.DashboardService, loc *time.Location, now func() time.Time, log *zap.Logger) *DashboardController {
	return &DashboardController{dashboard: dashboard, loc: loc, now: now, log: log}
}

// Get returns the dashboard entries.
func (d *DashboardController) Get(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	now := d.now().In(d.loc)
	key := utils.DashboardCacheKey(userID, now)

	var entries []services.DashboardEntry
	if utils.CacheGetJSON(ctx.Request.Context(), key, &entries) {
		utils.Success(ctx, entries)
		return
	}

	entries, err := d.dashboard.Dashboard(ctx.Request.Context(), userID, now)
	if err != nil {
		respondError(ctx, d.log, err)
		return
	}
	utils.CacheSetJSON(ctx.Request.Context(), key, entries, dashboardCacheTTL)
	utils.Success(ctx, entries)
}
