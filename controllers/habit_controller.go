package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

// HabitController exposes CRUD over the caller's habits.
type HabitController struct {
	habits *services.HabitService
	now    func() time.Time
	log    *zap.Logger
}

// NewHabitController creates a HabitController.
func NewHabitController(habits *services.HabitService, now func() time.Time, log *zap.Logger) *HabitController {
	return &HabitController{habits: habits, now: now, log: log}
}

type habitRequest struct {
	Name      *string `json:"name"`
	Frequency *string `json:"frequency"`
}

func (r habitRequest) input() services.HabitInput {
	return services.HabitInput{Name: r.Name, Frequency: r.Frequency}
}

// List returns the caller's habits.
func (h *HabitController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	habits, err := h.habits.List(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	utils.Success(ctx, habits)
}

// Create adds a habit for the caller.
func (h *HabitController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	var req habitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	habit, err := h.habits.Create(ctx.Request.Context(), userID, req.input(), h.now())
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Created(ctx, habit)
}

// Get returns one habit.
func (h *HabitController) Get(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	habit, err := h.habits.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	utils.Success(ctx, habit)
}

// Update renames a habit or changes its frequency.
func (h *HabitController) Update(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req habitRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	habit, err := h.habits.Update(ctx.Request.Context(), userID, id, req.input())
	if err != nil {
		respondError(ctx, h.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Success(ctx, habit)
}

// Delete removes a habit and everything hanging off it.
func (h *HabitController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := h.habits.Delete(ctx.Request.Context(), userID, id); err != nil {
		respondError(ctx, h.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Success(ctx, gin.H{"id": id})
}

// queryID reads an optional positive integer query parameter.
func queryID(ctx *gin.Context, name string) (uint, bool) {
	raw := ctx.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}
