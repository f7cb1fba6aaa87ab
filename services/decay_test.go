package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/testutil"
)

func TestDecayResetsStreakAfterMissedDay(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	goal := testutil.CreateGoal(t, db, habit.ID, 5, 10)
	// Last log on the 8th; the 9th was missed.
	testutil.CreateLog(t, db, habit.ID, at(2024, 5, 8, 20, 0))

	sweeper := NewDecaySweeper(db, time.UTC, zaptest.NewLogger(t))

	report, err := sweeper.DecayInactiveGoals(context.Background(), at(2024, 5, 10, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, DecayReport{Checked: 1, Reset: 1}, report)

	g := testutil.ReloadGoal(t, db, goal.ID)
	assert.Equal(t, 0, g.CurrentStreak)
	assert.Equal(t, models.GoalInProgress, g.Status)

	// Idempotent for the same instant.
	report, err = sweeper.DecayInactiveGoals(context.Background(), at(2024, 5, 10, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, 0, report.Reset)
	assert.Equal(t, 0, testutil.ReloadGoal(t, db, goal.ID).CurrentStreak)
}

func TestDecayKeepsStreakWhenPreviousDayLogged(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	goal := testutil.CreateGoal(t, db, habit.ID, 5, 10)
	testutil.CreateLog(t, db, habit.ID, at(2024, 5, 9, 23, 59))

	sweeper := NewDecaySweeper(db, time.UTC, zaptest.NewLogger(t))

	report, err := sweeper.DecayInactiveGoals(context.Background(), at(2024, 5, 10, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, DecayReport{Checked: 1}, report)
	assert.Equal(t, 5, testutil.ReloadGoal(t, db, goal.ID).CurrentStreak)
}

func TestDecayMonthlyChecksDecemberInJanuary(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	logged := testutil.CreateHabit(t, db, user.ID, models.FrequencyMonthly)
	missed := testutil.CreateHabit(t, db, user.ID, models.FrequencyMonthly)
	keep := testutil.CreateGoal(t, db, logged.ID, 3, 12)
	lose := testutil.CreateGoal(t, db, missed.ID, 3, 12)
	testutil.CreateLog(t, db, logged.ID, at(2023, 12, 31, 22, 0))
	testutil.CreateLog(t, db, missed.ID, at(2023, 11, 30, 22, 0))

	sweeper := NewDecaySweeper(db, time.UTC, zaptest.NewLogger(t))

	report, err := sweeper.DecayInactiveGoals(context.Background(), at(2024, 1, 10, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, DecayReport{Checked: 2, Reset: 1}, report)
	assert.Equal(t, 3, testutil.ReloadGoal(t, db, keep.ID).CurrentStreak)
	assert.Equal(t, 0, testutil.ReloadGoal(t, db, lose.ID).CurrentStreak)
}

func TestDecaySkipsCompletedGoalsAndCountsUnknownFrequency(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	done := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	broken := testutil.CreateHabit(t, db, user.ID, models.Frequency("weekly"))
	daily := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)

	completed := testutil.CreateGoal(t, db, done.ID, 10, 10)
	require.NoError(t, db.Model(&models.Goal{}).Where("id = ?", completed.ID).Update("status", models.GoalCompleted).Error)
	testutil.CreateGoal(t, db, broken.ID, 2, 10)
	active := testutil.CreateGoal(t, db, daily.ID, 4, 10)

	sweeper := NewDecaySweeper(db, time.UTC, zaptest.NewLogger(t))

	report, err := sweeper.DecayInactiveGoals(context.Background(), at(2024, 5, 10, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, DecayReport{Checked: 2, Reset: 1, Failed: 1}, report)
	assert.Equal(t, 10, testutil.ReloadGoal(t, db, completed.ID).CurrentStreak)
	assert.Equal(t, 0, testutil.ReloadGoal(t, db, active.ID).CurrentStreak)
}
