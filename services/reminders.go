package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/tasks"
)

// ReminderDispatcher turns reminders that are due this minute into delivery tasks.
type ReminderDispatcher struct {
	db    *gorm.DB
	queue tasks.Enqueuer
	loc   *time.Location
	log   *zap.Logger
}

// NewReminderDispatcher creates a ReminderDispatcher.
func NewReminderDispatcher(db *gorm.DB, queue tasks.Enqueuer, loc *time.Location, log *zap.Logger) *ReminderDispatcher {
	if loc == nil {
		loc = time.Local
	}
	return &ReminderDispatcher{db: db, queue: queue, loc: loc, log: log}
}

// DispatchDueReminders enqueues one notification for every reminder whose
// time of day equals now's hour and minute. It must be called once per minute;
// there is no tolerance window. Enqueue failures are logged and skipped so one
// bad task never blocks the rest.
func (d *ReminderDispatcher) DispatchDueReminders(ctx context.Context, now time.Time) (int, error) {
	now = now.In(d.loc)
	var due []models.Reminder
	if err := d.db.WithContext(ctx).
		Preload("Habit.User").
		Where("hour = ? AND minute = ?", now.Hour(), now.Minute()).
		Find(&due).Error; err != nil {
		return 0, err
	}

	enqueued := 0
	for _, r := range due {
		if r.Habit.User.Email == "" {
			d.log.Warn("reminder owner has no email", zap.Uint("reminder_id", r.ID))
			continue
		}
		task := tasks.NewReminderNotification(r.Habit.User.Email, r.Habit.Name)
		if err := d.queue.Enqueue(ctx, task); err != nil {
			d.log.Error("enqueue reminder failed", zap.Uint("reminder_id", r.ID), zap.Error(err))
			continue
		}
		enqueued++
	}
	if len(due) > 0 {
		d.log.Info("reminders dispatched", zap.String("at", now.Format("15:04")), zap.Int("due", len(due)), zap.Int("enqueued", enqueued))
	}
	return enqueued, nil
}

// ReminderService manages a habit's single reminder on behalf of its owner.
type ReminderService struct {
	db *gorm.DB
}

// NewReminderService creates a ReminderService.
func NewReminderService(db *gorm.DB) *ReminderService {
	return &ReminderService{db: db}
}

// Create sets the reminder for a habit. A habit has at most one reminder.
func (s *ReminderService) Create(ctx context.Context, userID, habitID uint, timeOfDay string) (*models.Reminder, error) {
	hour, minute, err := models.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, reject(CodeInvalidInput, "reminder_time", err.Error())
	}
	var reminder models.Reminder
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwnedHabit(tx, habitID, userID, true); err != nil {
			return err
		}
		var n int64
		if err := tx.Model(&models.Reminder{}).Where("habit_id = ?", habitID).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return errDuplicateReminder
		}
		reminder = models.Reminder{HabitID: habitID, Hour: hour, Minute: minute}
		return tx.Create(&reminder).Error
	})
	if err != nil {
		return nil, err
	}
	return &reminder, nil
}

// Get returns a reminder owned by userID.
func (s *ReminderService) Get(ctx context.Context, userID, reminderID uint) (*models.Reminder, error) {
	return s.load(s.db.WithContext(ctx), userID, reminderID)
}

// List returns all reminders on the user's habits.
func (s *ReminderService) List(ctx context.Context, userID uint) ([]models.Reminder, error) {
	var out []models.Reminder
	err := s.db.WithContext(ctx).
		Joins("JOIN habits ON habits.id = reminders.habit_id").
		Where("habits.user_id = ?", userID).
		Order("reminders.hour, reminders.minute").
		Find(&out).Error
	return out, err
}

// Update changes the reminder time.
func (s *ReminderService) Update(ctx context.Context, userID, reminderID uint, timeOfDay string) (*models.Reminder, error) {
	hour, minute, err := models.ParseTimeOfDay(timeOfDay)
	if err != nil {
		return nil, reject(CodeInvalidInput, "reminder_time", err.Error())
	}
	r, err := s.load(s.db.WithContext(ctx), userID, reminderID)
	if err != nil {
		return nil, err
	}
	r.Hour, r.Minute = hour, minute
	if err := s.db.WithContext(ctx).Model(r).Updates(map[string]interface{}{"hour": hour, "minute": minute}).Error; err != nil {
		return nil, err
	}
	return r, nil
}

// Delete removes a reminder.
func (s *ReminderService) Delete(ctx context.Context, userID, reminderID uint) error {
	r, err := s.load(s.db.WithContext(ctx), userID, reminderID)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).Delete(&models.Reminder{}, r.ID).Error
}

func (s *ReminderService) load(db *gorm.DB, userID, reminderID uint) (*models.Reminder, error) {
	var r models.Reminder
	if err := db.Preload("Habit").First(&r, reminderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errUnknownReminder
		}
		return nil, err
	}
	if r.Habit.UserID != userID {
		return nil, errUnknownReminder
	}
	return &r, nil
}
