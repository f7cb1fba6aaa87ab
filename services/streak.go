package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
)

const maxStreakAttempts = 5

// StreakUpdater advances a habit's in-progress goal when a log is accepted.
type StreakUpdater struct {
	log *zap.Logger
}

// NewStreakUpdater creates a StreakUpdater.
func NewStreakUpdater(log *zap.Logger) *StreakUpdater {
	return &StreakUpdater{log: log}
}

// OnLogAccepted increments the streak of the habit's in-progress goal and
// completes it once the target is reached. It returns nil when the habit has
// no in-progress goal.
//
// db may be a running transaction; the update then runs in a savepoint. The
// goal row is read FOR UPDATE and written with a compare-and-set on the streak
// it read, so concurrent increments on the same goal never collapse into one.
func (u *StreakUpdater) OnLogAccepted(ctx context.Context, db *gorm.DB, habitID uint) (*models.Goal, error) {
	var (
		goal *models.Goal
		err  error
	)
	for attempt := 1; attempt <= maxStreakAttempts; attempt++ {
		goal, err = u.increment(db.WithContext(ctx), habitID)
		if !errors.Is(err, errStaleGoal) {
			return goal, err
		}
		u.log.Debug("streak update conflict, retrying", zap.Uint("habit_id", habitID), zap.Int("attempt", attempt))
	}
	return nil, fmt.Errorf("update streak for habit %d: %w", habitID, err)
}

func (u *StreakUpdater) increment(db *gorm.DB, habitID uint) (*models.Goal, error) {
	var updated *models.Goal
	err := db.Transaction(func(tx *gorm.DB) error {
		goal, err := inProgressGoal(tx, habitID, true)
		if err != nil || goal == nil {
			return err
		}

		next := *goal
		next.CurrentStreak++
		if next.Reached() {
			next.Status = models.GoalCompleted
		}

		res := tx.Model(&models.Goal{}).
			Where("id = ? AND status = ? AND current_streak = ?", goal.ID, models.GoalInProgress, goal.CurrentStreak).
			Updates(map[string]interface{}{
				"current_streak": next.CurrentStreak,
				"status":         next.Status,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return errStaleGoal
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	if updated != nil {
		u.log.Info("goal streak advanced",
			zap.Uint("goal_id", updated.ID),
			zap.Uint("habit_id", habitID),
			zap.Int("current_streak", updated.CurrentStreak),
			zap.Int("target_streak", updated.TargetStreak),
			zap.String("status", string(updated.Status)))
	}
	return updated, nil
}
