package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

// HabitLogController records habit completions.
type HabitLogController struct {
	logs   *services.LogService
	habits *services.HabitService
	now    func() time.Time
	log    *zap.Logger
}

// NewHabitLogController creates a HabitLogController.
func NewHabitLogController(logs *services.LogService, habits *services.HabitService, now func() time.Time, log *zap.Logger) *HabitLogController {
	return &HabitLogController{logs: logs, habits: habits, now: now, log: log}
}

// List returns the caller's logs, newest first. ?habit=<id> narrows to one habit.
func (c *HabitLogController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	habitID, ok := queryID(ctx, "habit")
	if !ok {
		return
	}
	logs, err := c.habits.ListLogs(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	utils.Success(ctx, logs)
}

// Create logs a completion for now. The completion time is never taken from the client.
func (c *HabitLogController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	var req struct {
		Habit uint `json:"habit" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40001, "habit is required", gin.H{"field": "habit"})
		return
	}

	res, err := c.logs.TryAcceptLog(ctx.Request.Context(), req.Habit, userID, c.now())
	if err != nil {
		respondError(ctx, c.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Created(ctx, gin.H{"log": res.Log, "goal": res.Goal})
}
