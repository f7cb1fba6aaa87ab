package services

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
)

// GoalService manages goals for their owners. current_streak and status are
// never taken from the client.
type GoalService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewGoalService creates a GoalService.
func NewGoalService(db *gorm.DB, log *zap.Logger) *GoalService {
	return &GoalService{db: db, log: log}
}

// Create opens a new in-progress goal on a habit. The habit row is locked so
// two concurrent creates cannot both pass the duplicate check.
func (s *GoalService) Create(ctx context.Context, userID, habitID uint, targetStreak int) (*models.Goal, error) {
	if targetStreak == 0 {
		targetStreak = models.DefaultTargetStreak
	}
	if targetStreak < 1 {
		return nil, reject(CodeInvalidInput, "target_streak", "Target streak must be a positive integer.")
	}

	var goal models.Goal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwnedHabit(tx, habitID, userID, true); err != nil {
			return err
		}
		existing, err := inProgressGoal(tx, habitID, false)
		if err != nil {
			return err
		}
		if existing != nil {
			return errDuplicateGoal
		}
		goal = models.Goal{HabitID: habitID, Status: models.GoalInProgress, TargetStreak: targetStreak}
		return tx.Create(&goal).Error
	})
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// GoalUpdate holds the client-settable goal fields.
type GoalUpdate struct {
	TargetStreak *int
}

// Update changes the target of an in-progress goal. Lowering the target to or
// below the current streak completes the goal.
func (s *GoalService) Update(ctx context.Context, userID, goalID uint, upd GoalUpdate) (*models.Goal, error) {
	var goal *models.Goal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := s.owned(tx, userID, goalID); err != nil {
			return err
		}
		current, err := lockGoal(tx, goalID)
		if err != nil {
			return err
		}
		if current == nil {
			return errUnknownGoal
		}
		goal = current
		if upd.TargetStreak == nil {
			return nil
		}
		if *upd.TargetStreak < 1 {
			return reject(CodeInvalidInput, "target_streak", "Target streak must be a positive integer.")
		}
		if goal.Status != models.GoalInProgress {
			return errGoalClosed
		}
		goal.TargetStreak = *upd.TargetStreak
		if goal.Reached() {
			goal.Status = models.GoalCompleted
		}
		return tx.Model(&models.Goal{}).Where("id = ?", goal.ID).Updates(map[string]interface{}{
			"target_streak": goal.TargetStreak,
			"status":        goal.Status,
		}).Error
	})
	if err != nil {
		return nil, err
	}
	return goal, nil
}

// Get returns one of the user's goals.
func (s *GoalService) Get(ctx context.Context, userID, goalID uint) (*models.Goal, error) {
	return s.owned(s.db.WithContext(ctx), userID, goalID)
}

// List returns the user's goals, optionally narrowed to one habit.
func (s *GoalService) List(ctx context.Context, userID uint, habitID uint) ([]models.Goal, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN habits ON habits.id = goals.habit_id").
		Where("habits.user_id = ?", userID)
	if habitID != 0 {
		q = q.Where("goals.habit_id = ?", habitID)
	}
	var out []models.Goal
	err := q.Order("goals.id DESC").Find(&out).Error
	return out, err
}

// Delete removes one of the user's goals.
func (s *GoalService) Delete(ctx context.Context, userID, goalID uint) error {
	goal, err := s.owned(s.db.WithContext(ctx), userID, goalID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Goal{}, goal.ID).Error
}

func (s *GoalService) owned(db *gorm.DB, userID, goalID uint) (*models.Goal, error) {
	var goal models.Goal
	if err := db.Preload("Habit").First(&goal, goalID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUnknownGoal
		}
		return nil, err
	}
	if goal.Habit.UserID != userID {
		return nil, errUnknownGoal
	}
	return &goal, nil
}
