package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/utils"
)

const maxHabitName = 100

// HabitService manages a user's habits.
type HabitService struct {
	db  *gorm.DB
	log *zap.Logger
}

// NewHabitService creates a HabitService.
func NewHabitService(db *gorm.DB, log *zap.Logger) *HabitService {
	return &HabitService{db: db, log: log}
}

// HabitInput is the client-settable part of a habit.
type HabitInput struct {
	Name      *string
	Frequency *string
}

func cleanName(raw string) (string, error) {
	name := strings.TrimSpace(utils.SanitizeText(raw))
	if name == "" {
		return "", reject(CodeInvalidInput, "name", "Name cannot be empty.")
	}
	if len([]rune(name)) > maxHabitName {
		return "", reject(CodeInvalidInput, "name", "Name must be at most 100 characters.")
	}
	return name, nil
}

func parseFrequency(raw string) (models.Frequency, error) {
	f, err := models.ParseFrequency(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return "", reject(CodeInvalidInput, "frequency", `Frequency must be "daily" or "monthly".`)
	}
	return f, nil
}

// Create adds a habit for userID.
func (s *HabitService) Create(ctx context.Context, userID uint, in HabitInput, now time.Time) (*models.Habit, error) {
	if in.Name == nil {
		return nil, reject(CodeInvalidInput, "name", "Name is required.")
	}
	name, err := cleanName(*in.Name)
	if err != nil {
		return nil, err
	}
	freq := models.FrequencyDaily
	if in.Frequency != nil {
		if freq, err = parseFrequency(*in.Frequency); err != nil {
			return nil, err
		}
	}
	habit := models.Habit{UserID: userID, Name: name, Frequency: freq, CreatedAt: now}
	if err := s.db.WithContext(ctx).Create(&habit).Error; err != nil {
		return nil, err
	}
	return &habit, nil
}

// List returns the user's habits, oldest first.
func (s *HabitService) List(ctx context.Context, userID uint) ([]models.Habit, error) {
	var out []models.Habit
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("id").Find(&out).Error
	return out, err
}

// Get returns one of the user's habits. Habits of other users look missing.
func (s *HabitService) Get(ctx context.Context, userID, habitID uint) (*models.Habit, error) {
	habit, err := loadOwnedHabit(s.db.WithContext(ctx), habitID, userID, false)
	if IsRejection(err, CodeNotOwner) {
		return nil, errUnknownHabit
	}
	return habit, err
}

// Update renames a habit or changes its frequency.
func (s *HabitService) Update(ctx context.Context, userID, habitID uint, in HabitInput) (*models.Habit, error) {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if in.Name != nil {
		name, err := cleanName(*in.Name)
		if err != nil {
			return nil, err
		}
		habit.Name = name
		updates["name"] = name
	}
	if in.Frequency != nil {
		freq, err := parseFrequency(*in.Frequency)
		if err != nil {
			return nil, err
		}
		habit.Frequency = freq
		updates["frequency"] = freq
	}
	if len(updates) == 0 {
		return habit, nil
	}
	if err := s.db.WithContext(ctx).Model(&models.Habit{}).Where("id = ?", habit.ID).Updates(updates).Error; err != nil {
		return nil, err
	}
	return habit, nil
}

// Delete removes a habit together with its goals, logs and reminder.
func (s *HabitService) Delete(ctx context.Context, userID, habitID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		habit, err := loadOwnedHabit(tx, habitID, userID, true)
		if err != nil {
			return err
		}
		for _, child := range []interface{}{&models.HabitLog{}, &models.Goal{}, &models.Reminder{}} {
			if err := tx.Where("habit_id = ?", habit.ID).Delete(child).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.Habit{}, habit.ID).Error
	})
	if IsRejection(err, CodeNotOwner) {
		return errUnknownHabit
	}
	if err == nil {
		s.log.Info("habit deleted", zap.Uint("habit_id", habitID), zap.Uint("user_id", userID))
	}
	return err
}

// ListLogs returns the user's completion logs, newest first, optionally for one habit.
func (s *HabitService) ListLogs(ctx context.Context, userID, habitID uint) ([]models.HabitLog, error) {
	q := s.db.WithContext(ctx).
		Joins("JOIN habits ON habits.id = habit_logs.habit_id").
		Where("habits.user_id = ?", userID)
	if habitID != 0 {
		q = q.Where("habit_logs.habit_id = ?", habitID)
	}
	var out []models.HabitLog
	err := q.Order("habit_logs.completed_at DESC").Find(&out).Error
	return out, err
}

