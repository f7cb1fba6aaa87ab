package services

import (
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/habitly/habitd/models"
)

// loadOwnedHabit fetches a habit and checks it belongs to userID. With lock set
// the row is held FOR UPDATE until tx ends, which serialises writers per habit.
func loadOwnedHabit(tx *gorm.DB, habitID, userID uint, lock bool) (*models.Habit, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var habit models.Habit
	if err := q.First(&habit, habitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUnknownHabit
		}
		return nil, err
	}
	if habit.UserID != userID {
		return nil, errNotOwnerHabit
	}
	return &habit, nil
}

// inProgressGoal returns the habit's in-progress goal, or nil when there is none.
func inProgressGoal(tx *gorm.DB, habitID uint, lock bool) (*models.Goal, error) {
	q := tx
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var goal models.Goal
	err := q.Where("habit_id = ? AND status = ?", habitID, models.GoalInProgress).
		Order("id").
		Limit(1).
		Find(&goal).Error
	if err != nil {
		return nil, err
	}
	if goal.ID == 0 {
		return nil, nil
	}
	return &goal, nil
}

// lockGoal reads a goal FOR UPDATE; it returns nil when the goal is gone.
func lockGoal(tx *gorm.DB, goalID uint) (*models.Goal, error) {
	var goal models.Goal
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", goalID).
		Limit(1).
		Find(&goal).Error
	if err != nil {
		return nil, err
	}
	if goal.ID == 0 {
		return nil, nil
	}
	return &goal, nil
}
