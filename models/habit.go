package models

import "time"

// Habit is a recurring activity owned by a single user.
type Habit struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	UserID    uint       `gorm:"index;not null" json:"user_id"`
	Name      string     `gorm:"size:100;not null" json:"name"`
	Frequency Frequency  `gorm:"size:10;not null;default:'daily'" json:"frequency"`
	CreatedAt time.Time  `json:"created_at"`
	User      User       `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Goals     []Goal     `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Logs      []HabitLog `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	Reminder  *Reminder  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}
