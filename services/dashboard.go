package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
)

// DashboardEntry is the derived, read-only state of one habit.
type DashboardEntry struct {
	Habit            models.Habit     `json:"habit"`
	Goal             *models.Goal     `json:"goal"`
	CurrentLog       *models.HabitLog `json:"current_period_log"`
	LoggedThisPeriod bool             `json:"logged_this_period"`
}

// DashboardService builds the per-user overview.
type DashboardService struct {
	db  *gorm.DB
	loc *time.Location
	log *zap.Logger
}

// NewDashboardService creates a DashboardService.
func NewDashboardService(db *gorm.DB, loc *time.Location, log *zap.Logger) *DashboardService {
	if loc == nil {
		loc = time.Local
	}
	return &DashboardService{db: db, loc: loc, log: log}
}

// Dashboard lists each of the user's habits with its in-progress goal (if any)
// and the log that satisfies the current period (if any).
func (s *DashboardService) Dashboard(ctx context.Context, userID uint, now time.Time) ([]DashboardEntry, error) {
	now = now.In(s.loc)
	db := s.db.WithContext(ctx)

	var habits []models.Habit
	if err := db.Where("user_id = ?", userID).Order("id").Find(&habits).Error; err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return []DashboardEntry{}, nil
	}
	ids := make([]uint, 0, len(habits))
	for _, h := range habits {
		ids = append(ids, h.ID)
	}

	var goals []models.Goal
	if err := db.Where("habit_id IN ? AND status = ?", ids, models.GoalInProgress).Find(&goals).Error; err != nil {
		return nil, err
	}
	goalByHabit := make(map[uint]*models.Goal, len(goals))
	for i := range goals {
		goalByHabit[goals[i].HabitID] = &goals[i]
	}

	// Monthly periods contain daily ones, so one query from the earliest
	// window start covers every habit.
	earliest := now
	for _, h := range habits {
		p, err := h.Frequency.Period()
		if err != nil {
			continue
		}
		if start, _ := p.Bounds(now); start.Before(earliest) {
			earliest = start
		}
	}
	var logs []models.HabitLog
	if err := db.Where("habit_id IN ? AND completed_at >= ?", ids, earliest.UTC()).
		Order("completed_at DESC").
		Find(&logs).Error; err != nil {
		return nil, err
	}

	entries := make([]DashboardEntry, 0, len(habits))
	for _, h := range habits {
		entry := DashboardEntry{Habit: h, Goal: goalByHabit[h.ID]}
		p, err := h.Frequency.Period()
		if err != nil {
			s.log.Error("dashboard habit has unknown frequency", zap.Uint("habit_id", h.ID), zap.Error(err))
			return nil, err
		}
		for i := range logs {
			l := logs[i]
			if l.HabitID == h.ID && p.Same(now, l.CompletedAt) {
				entry.CurrentLog = &l
				entry.LoggedThisPeriod = true
				break
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
