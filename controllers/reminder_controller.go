package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

// ReminderController manages daily reminder times.
type ReminderController struct {
	reminders *services.ReminderService
	log       *zap.Logger
}

// NewReminderController creates a ReminderController.
func NewReminderController(reminders *services.ReminderService, log *zap.Logger) *ReminderController {
	return &ReminderController{reminders: reminders, log: log}
}

type reminderRequest struct {
	Habit        uint   `json:"habit"`
	ReminderTime string `json:"reminder_time" binding:"required"`
}

// List returns reminders on the caller's habits.
func (r *ReminderController) List(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	list, err := r.reminders.List(ctx.Request.Context(), userID)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Success(ctx, list)
}

// Create sets a habit's reminder.
func (r *ReminderController) Create(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	var req reminderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil || req.Habit == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40001, "habit and reminder_time are required")
		return
	}
	reminder, err := r.reminders.Create(ctx.Request.Context(), userID, req.Habit, req.ReminderTime)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Created(ctx, reminder)
}

// Get returns one reminder.
func (r *ReminderController) Get(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	reminder, err := r.reminders.Get(ctx.Request.Context(), userID, id)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Success(ctx, reminder)
}

// Update moves a reminder to a new time of day.
func (r *ReminderController) Update(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	var req reminderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40001, "reminder_time is required")
		return
	}
	reminder, err := r.reminders.Update(ctx.Request.Context(), userID, id, req.ReminderTime)
	if err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Success(ctx, reminder)
}

// Delete removes a reminder.
func (r *ReminderController) Delete(ctx *gin.Context) {
	userID, ok := getUserID(ctx)
	if !ok {
		unauthorized(ctx)
		return
	}
	id, ok := parseIDParam(ctx, "id")
	if !ok {
		return
	}
	if err := r.reminders.Delete(ctx.Request.Context(), userID, id); err != nil {
		respondError(ctx, r.log, err)
		return
	}
	utils.Success(ctx, gin.H{"id": id})
}
