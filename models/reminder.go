package models

import (
	"fmt"
	"time"
)

// Reminder is the daily time-of-day at which a habit owner gets nudged by email.
type Reminder struct {
	ID      uint  `gorm:"primaryKey" json:"id"`
	HabitID uint  `gorm:"uniqueIndex;not null" json:"habit"`
	Hour    int   `gorm:"index:idx_reminders_time;not null" json:"-"`
	Minute  int   `gorm:"index:idx_reminders_time;not null" json:"-"`
	Habit   Habit `json:"-"`
}

// ParseTimeOfDay parses "HH:MM" (seconds are accepted and ignored).
func ParseTimeOfDay(s string) (hour, minute int, err error) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, perr := time.Parse(layout, s); perr == nil {
			return t.Hour(), t.Minute(), nil
		}
	}
	return 0, 0, fmt.Errorf("invalid time of day %q, want HH:MM", s)
}

// TimeOfDay renders the reminder time as HH:MM.
func (r Reminder) TimeOfDay() string {
	return fmt.Sprintf("%02d:%02d", r.Hour, r.Minute)
}

// MarshalJSON exposes the reminder time as a single "reminder_time" string.
func (r Reminder) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf(`{"id":%d,"habit":%d,"reminder_time":%q}`, r.ID, r.HabitID, r.TimeOfDay())), nil
}
