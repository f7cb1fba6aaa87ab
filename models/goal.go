package models

import "time"

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

const (
	GoalInProgress GoalStatus = "in_progress"
	GoalCompleted  GoalStatus = "completed"
)

// DefaultTargetStreak applies when a goal is created without a target.
const DefaultTargetStreak = 10

// Goal tracks a streak target for a habit. CurrentStreak is only ever written
// by the streak updater and the decay sweeper.
type Goal struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	HabitID       uint       `gorm:"index:idx_goals_habit_status;not null" json:"habit"`
	Status        GoalStatus `gorm:"index:idx_goals_habit_status;size:11;not null;default:'in_progress'" json:"status"`
	CurrentStreak int        `gorm:"not null;default:0" json:"current_streak"`
	TargetStreak  int        `gorm:"not null;default:10" json:"target_streak"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	Habit         Habit      `json:"-"`
}

// Reached reports whether the streak has hit the target.
func (g *Goal) Reached() bool {
	return g.CurrentStreak >= g.TargetStreak
}
