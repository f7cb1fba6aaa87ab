package models

import "time"

// FailedDelivery is a dead-lettered reminder notification that exhausted its retries.
type FailedDelivery struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	TaskID    string    `gorm:"size:64;index" json:"task_id"`
	Recipient string    `gorm:"size:255;not null" json:"recipient"`
	HabitName string    `gorm:"size:100" json:"habit_name"`
	Attempts  int       `json:"attempts"`
	LastError string    `gorm:"type:text" json:"last_error"`
	CreatedAt time.Time `json:"created_at"`
}
