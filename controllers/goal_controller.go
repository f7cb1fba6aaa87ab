package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

// GoalController exposes the caller's streak goals. current_streak and status
// are read-only over the API.
type GoalController struct {
	goals *services.GoalService
	log   *zap.Logger
}

// NewGoalController creates a GoalController.
func NewGoalController(goals *services.GoalService, log *zap.Logger) *GoalController {
	return &GoalController{goals: goals, log: log}
}

// List returns the caller's goals; ?habit=<id> narrows to one habit.
func (g *GoalController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	habitID, ok := queryID(ctx, "habit")
	if !ok {
		return
	}
	goals, err := g.goals.List(ctx.Request.Context(), userID, habitID)
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, goals)
}

// Create opens a goal on one of the caller's habits.
func (g *GoalController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	var req struct {
		Habit        uint `json:"habit" binding:"required"`
		TargetStreak int  `json:"target_streak"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.ErrorWithData(ctx, http.StatusBadRequest, 40001, "habit is required", gin.H{"field": "habit"})
		return
	}
	goal, err := g.goals.Create(ctx.Request.Context(), userID, req.Habit, req.TargetStreak)
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Created(ctx, goal)
}

// Get returns one goal.
func (g *GoalController) Get(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	goal, err := g.goals.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.Success(ctx, goal)
}

// Update changes the target streak. Other fields in the body are ignored.
func (g *GoalController) Update(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		TargetStreak *int `json:"target_streak"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "invalid request payload")
		return
	}
	goal, err := g.goals.Update(ctx.Request.Context(), userID, id, services.GoalUpdate{TargetStreak: req.TargetStreak})
	if err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Success(ctx, goal)
}

// Delete removes a goal.
func (g *GoalController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := g.goals.Delete(ctx.Request.Context(), userID, id); err != nil {
		respondError(ctx, g.log, err)
		return
	}
	utils.InvalidateByPrefix(ctx.Request.Context(), utils.DashboardUserPrefix(userID))
	utils.Success(ctx, gin.H{"id": id})
}
