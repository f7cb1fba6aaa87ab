package services

import (
	"context"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
)

// LogResult is what an accepted completion produced.
type LogResult struct {
	Log  models.HabitLog `json:"log"`
	Goal *models.Goal    `json:"goal,omitempty"`
}

// LogService decides whether a completion may be logged and records it.
type LogService struct {
	db      *gorm.DB
	streaks *StreakUpdater
	loc     *time.Location
	log     *zap.Logger
}

// NewLogService creates a LogService. Calendar periods are evaluated in loc.
func NewLogService(db *gorm.DB, streaks *StreakUpdater, loc *time.Location, log *zap.Logger) *LogService {
	if loc == nil {
		loc = time.Local
	}
	return &LogService{db: db, streaks: streaks, loc: loc, log: log}
}

// TryAcceptLog records a completion of habitID by actingUserID at now, or
// rejects it. A habit accepts at most one log per calendar day (daily) or
// calendar month (monthly). On acceptance the streak updater runs in the same
// transaction, so the caller only sees success once the goal is updated.
//
// An unrecognised frequency on the stored habit returns an error wrapping
// models.ErrUnknownFrequency rather than a rejection.
func (s *LogService) TryAcceptLog(ctx context.Context, habitID, actingUserID uint, now time.Time) (*LogResult, error) {
	now = now.In(s.loc)
	var result LogResult

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		habit, err := loadOwnedHabit(tx, habitID, actingUserID, true)
		if err != nil {
			return err
		}

		period, err := habit.Frequency.Period()
		if err != nil {
			return err
		}
		start, end := period.Bounds(now)

		var existing int64
		if err := tx.Model(&models.HabitLog{}).
			Where("habit_id = ? AND completed_at >= ? AND completed_at < ?", habit.ID, start.UTC(), end.UTC()).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return alreadyLogged(habit.Frequency)
		}

		result.Log = models.HabitLog{HabitID: habit.ID, CompletedAt: now}
		if err := tx.Create(&result.Log).Error; err != nil {
			return err
		}

		result.Goal, err = s.streaks.OnLogAccepted(ctx, tx, habit.ID)
		return err
	})
	if err != nil {
		if _, ok := AsRejection(err); !ok {
			s.log.Error("log completion failed", zap.Uint("habit_id", habitID), zap.Error(err))
		}
		return nil, err
	}
	return &result, nil
}

func alreadyLogged(f models.Frequency) *Rejection {
	msg := "You can only log daily habit once per day."
	if f == models.FrequencyMonthly {
		msg = "You can only log monthly habit once per month."
	}
	return reject(CodeAlreadyLoggedThisPeriod, "habit", msg)
}
