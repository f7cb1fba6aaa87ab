// Package testutil holds shared fixtures for package tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/habitly/habitd/models"
)

// NewDB opens a migrated SQLite database in a temp dir. A single connection
// serialises transactions the way row locks would on MySQL.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "habitd.db")
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// CreateUser inserts a user with a unique email.
func CreateUser(t testing.TB, db *gorm.DB, email string) models.User {
	t.Helper()
	u := models.User{Email: email, PasswordHash: "x"}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

// CreateHabit inserts a habit owned by userID.
func CreateHabit(t testing.TB, db *gorm.DB, userID uint, freq models.Frequency) models.Habit {
	t.Helper()
	h := models.Habit{UserID: userID, Name: fmt.Sprintf("habit-%s", freq), Frequency: freq, CreatedAt: time.Now()}
	if err := db.Create(&h).Error; err != nil {
		t.Fatalf("create habit: %v", err)
	}
	return h
}

// CreateGoal inserts an in-progress goal with the given streak values.
func CreateGoal(t testing.TB, db *gorm.DB, habitID uint, current, target int) models.Goal {
	t.Helper()
	g := models.Goal{HabitID: habitID, Status: models.GoalInProgress, CurrentStreak: current, TargetStreak: target}
	if err := db.Create(&g).Error; err != nil {
		t.Fatalf("create goal: %v", err)
	}
	return g
}

// CreateLog inserts a completion log at the given instant.
func CreateLog(t testing.TB, db *gorm.DB, habitID uint, at time.Time) models.HabitLog {
	t.Helper()
	l := models.HabitLog{HabitID: habitID, CompletedAt: at}
	if err := db.Create(&l).Error; err != nil {
		t.Fatalf("create log: %v", err)
	}
	return l
}

// ReloadGoal fetches the current state of a goal.
func ReloadGoal(t testing.TB, db *gorm.DB, id uint) models.Goal {
	t.Helper()
	var g models.Goal
	if err := db.First(&g, id).Error; err != nil {
		t.Fatalf("reload goal: %v", err)
	}
	return g
}
