package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/habitly/habitd/middleware"
	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/services"
	"github.com/habitly/habitd/utils"
)

func getUserID(ctx *gin.Context) (uint, bool) {
	value, exists := ctx.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}

	switch v := value.(type) {
	case uint:
		return v, true
	case int:
		return uint(v), true
	case int64:
		return uint(v), true
	case float64:
		return uint(v), true
	default:
		return 0, false
	}
}

// parseIDParam reads a positive integer path parameter, writing a 400 when it is malformed.
func parseIDParam(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 64)
	if err != nil || id == 0 {
		utils.Error(ctx, http.StatusBadRequest, 40000, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

type rejectionStatus struct {
	status int
	code   int
}

var rejectionStatuses = map[services.RejectionCode]rejectionStatus{
	services.CodeInvalidInput:            {http.StatusBadRequest, 40001},
	services.CodeAlreadyLoggedThisPeriod: {http.StatusBadRequest, 40010},
	services.CodeGoalClosed:              {http.StatusBadRequest, 40011},
	services.CodeNotOwner:                {http.StatusForbidden, 40301},
	services.CodeUnknownHabit:            {http.StatusNotFound, 40401},
	services.CodeUnknownGoal:             {http.StatusNotFound, 40402},
	services.CodeUnknownReminder:         {http.StatusNotFound, 40403},
	services.CodeDuplicateInProgressGoal: {http.StatusConflict, 40901},
	services.CodeDuplicateReminder:       {http.StatusConflict, 40902},
}

// respondError writes a rejection as a client error and anything else as a 500.
func respondError(ctx *gin.Context, log *zap.Logger, err error) {
	if r, ok := services.AsRejection(err); ok {
		st, found := rejectionStatuses[r.Code]
		if !found {
			st = rejectionStatus{http.StatusBadRequest, 40000}
		}
		utils.ErrorWithData(ctx, st.status, st.code, r.Message, gin.H{"error": r.Code, "field": r.Field})
		return
	}
	if errors.Is(err, models.ErrUnknownFrequency) {
		log.Error("habit has unsupported frequency", zap.String("path", ctx.FullPath()), zap.Error(err))
	} else {
		log.Error("request failed", zap.String("path", ctx.FullPath()), zap.Error(err))
	}
	utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
}

func unauthorized(ctx *gin.Context) {
	utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
}
