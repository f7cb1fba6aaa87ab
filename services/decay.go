package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
)

const decayBatchSize = 200

// DecayReport summarises one sweep.
type DecayReport struct {
	Checked int `json:"checked"`
	Reset   int `json:"reset"`
	Failed  int `json:"failed"`
}

// DecaySweeper resets streaks of in-progress goals whose habit missed the
// previous period. A missed period produces no event, so this runs on a clock.
type DecaySweeper struct {
	db  *gorm.DB
	loc *time.Location
	log *zap.Logger
}

// NewDecaySweeper creates a DecaySweeper evaluating periods in loc.
func NewDecaySweeper(db *gorm.DB, loc *time.Location, log *zap.Logger) *DecaySweeper {
	if loc == nil {
		loc = time.Local
	}
	return &DecaySweeper{db: db, loc: loc, log: log}
}

// DecayInactiveGoals checks every in-progress goal against the period that
// precedes now. Only the immediately preceding period is examined. Running it
// twice for the same now leaves the same state.
//
// A goal whose habit carries an unknown frequency is logged and counted in
// Failed; the rest of the sweep continues.
func (s *DecaySweeper) DecayInactiveGoals(ctx context.Context, now time.Time) (DecayReport, error) {
	now = now.In(s.loc)
	var report DecayReport
	var goals []models.Goal

	res := s.db.WithContext(ctx).
		Preload("Habit").
		Where("status = ?", models.GoalInProgress).
		FindInBatches(&goals, decayBatchSize, func(_ *gorm.DB, _ int) error {
			for i := range goals {
				report.Checked++
				reset, err := s.decayGoal(ctx, &goals[i], now)
				switch {
				case errors.Is(err, models.ErrUnknownFrequency):
					report.Failed++
					s.log.Error("decay skipped goal with unknown frequency",
						zap.Uint("goal_id", goals[i].ID),
						zap.Uint("habit_id", goals[i].HabitID),
						zap.Error(err))
				case err != nil:
					return err
				case reset:
					report.Reset++
				}
			}
			return nil
		})
	if res.Error != nil {
		return report, res.Error
	}

	s.log.Info("decay sweep finished",
		zap.Time("now", now),
		zap.Int("checked", report.Checked),
		zap.Int("reset", report.Reset),
		zap.Int("failed", report.Failed))
	return report, nil
}

// decayGoal resets one goal's streak if its habit has no log in the previous
// period. The log check and the reset happen under the goal's row lock.
func (s *DecaySweeper) decayGoal(ctx context.Context, goal *models.Goal, now time.Time) (bool, error) {
	period, err := goal.Habit.Frequency.Period()
	if err != nil {
		return false, err
	}
	start, end := period.Previous(now)

	reset := false
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockGoal(tx, goal.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Status != models.GoalInProgress || current.CurrentStreak == 0 {
			return nil
		}

		var logged int64
		if err := tx.Model(&models.HabitLog{}).
			Where("habit_id = ? AND completed_at >= ? AND completed_at < ?", goal.HabitID, start.UTC(), end.UTC()).
			Count(&logged).Error; err != nil {
			return err
		}
		if logged > 0 {
			return nil
		}

		if err := tx.Model(&models.Goal{}).
			Where("id = ?", current.ID).
			Update("current_streak", 0).Error; err != nil {
			return err
		}
		reset = true
		s.log.Info("goal streak reset",
			zap.Uint("goal_id", current.ID),
			zap.Uint("habit_id", current.HabitID),
			zap.Int("previous_streak", current.CurrentStreak),
			zap.Time("period_start", start))
		return nil
	})
	return reset, err
}
