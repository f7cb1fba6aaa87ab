package models

import (
	"time"

	"gorm.io/gorm"
)

// HabitLog records one completion of a habit. CompletedAt is set by the server
// when the log is accepted and never changes afterwards.
type HabitLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	HabitID     uint      `gorm:"index:idx_habit_logs_habit_completed;not null" json:"habit"`
	CompletedAt time.Time `gorm:"index:idx_habit_logs_habit_completed;not null" json:"completed_at"`
}

// BeforeCreate stores the completion instant in UTC so range queries compare
// like with like on every driver.
func (l *HabitLog) BeforeCreate(tx *gorm.DB) error {
	l.CompletedAt = l.CompletedAt.UTC()
	return nil
}
