// Package tasks runs the background side of habitd: reminder notification
// delivery with throttling and bounded retries, and the periodic scheduler.
package tasks

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// TypeSendReminder is the only queued task type.
const TypeSendReminder = "send_reminder_notification"

// ReminderNotification asks for one reminder email to be delivered.
type ReminderNotification struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Recipient string        `json:"recipient"`
	HabitName string        `json:"habit_name"`
	Attempt   int           `json:"attempt"`
	Backoff   time.Duration `json:"backoff"`
	LastError string        `json:"last_error,omitempty"`
}

// NewReminderNotification builds a fresh delivery task.
func NewReminderNotification(recipient, habitName string) ReminderNotification {
	return ReminderNotification{
		ID:        uuid.NewString(),
		Type:      TypeSendReminder,
		Recipient: recipient,
		HabitName: habitName,
	}
}

// Enqueuer accepts tasks for asynchronous delivery. Enqueue must not wait for
// the delivery itself.
type Enqueuer interface {
	Enqueue(ctx context.Context, task ReminderNotification) error
}

// Sender performs the external delivery.
type Sender interface {
	SendReminder(ctx context.Context, recipient, habitName string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, recipient, habitName string) error

// SendReminder calls f.
func (f SenderFunc) SendReminder(ctx context.Context, recipient, habitName string) error {
	return f(ctx, recipient, habitName)
}

// Backoff returns the wait before retry number attempt (1-based): base·2^(attempt-1),
// capped at max when max is positive.
func Backoff(base time.Duration, attempt int, max time.Duration) time.Duration {
	if attempt < 1 {
		return 0
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if max > 0 && d >= max {
			return max
		}
	}
	if max > 0 && d > max {
		return max
	}
	return d
}
