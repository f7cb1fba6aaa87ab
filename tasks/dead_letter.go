package tasks

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
)

// DeadLetterSink records tasks that exhausted their retries.
type DeadLetterSink interface {
	DeadLetter(ctx context.Context, task ReminderNotification) error
}

// LogDeadLetters only logs the terminal failure.
type LogDeadLetters struct {
	Log *zap.Logger
}

// DeadLetter logs task at error level.
func (l LogDeadLetters) DeadLetter(_ context.Context, task ReminderNotification) error {
	l.Log.Error("reminder delivery dead-lettered",
		zap.String("task_id", task.ID),
		zap.String("recipient", task.Recipient),
		zap.String("habit_name", task.HabitName),
		zap.Int("attempts", task.Attempt),
		zap.String("last_error", task.LastError))
	return nil
}

// GormDeadLetters logs the failure and persists it as a models.FailedDelivery.
type GormDeadLetters struct {
	DB  *gorm.DB
	Log *zap.Logger
}

// DeadLetter writes task to the failed_deliveries table.
func (g GormDeadLetters) DeadLetter(ctx context.Context, task ReminderNotification) error {
	_ = LogDeadLetters{Log: g.Log}.DeadLetter(ctx, task)
	return g.DB.WithContext(ctx).Create(&models.FailedDelivery{
		TaskID:    task.ID,
		Recipient: task.Recipient,
		HabitName: task.HabitName,
		Attempts:  task.Attempt,
		LastError: task.LastError,
	}).Error
}
