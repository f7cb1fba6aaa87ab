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

func TestDashboardReportsCurrentPeriod(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	other := testutil.CreateUser(t, db, "b@example.com")
	daily := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	monthly := testutil.CreateHabit(t, db, user.ID, models.FrequencyMonthly)
	testutil.CreateHabit(t, db, other.ID, models.FrequencyDaily)

	goal := testutil.CreateGoal(t, db, daily.ID, 2, 10)
	testutil.CreateLog(t, db, daily.ID, at(2024, 5, 9, 8, 0))
	monthlyLog := testutil.CreateLog(t, db, monthly.ID, at(2024, 5, 2, 8, 0))

	svc := NewDashboardService(db, time.UTC, zaptest.NewLogger(t))
	entries, err := svc.Dashboard(context.Background(), user.ID, at(2024, 5, 10, 12, 0))
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, daily.ID, entries[0].Habit.ID)
	require.NotNil(t, entries[0].Goal)
	assert.Equal(t, goal.ID, entries[0].Goal.ID)
	assert.False(t, entries[0].LoggedThisPeriod)
	assert.Nil(t, entries[0].CurrentLog)

	assert.Equal(t, monthly.ID, entries[1].Habit.ID)
	assert.Nil(t, entries[1].Goal)
	assert.True(t, entries[1].LoggedThisPeriod)
	require.NotNil(t, entries[1].CurrentLog)
	assert.Equal(t, monthlyLog.ID, entries[1].CurrentLog.ID)
}

func TestDashboardEmpty(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")

	entries, err := NewDashboardService(db, time.UTC, zaptest.NewLogger(t)).
		Dashboard(context.Background(), user.ID, at(2024, 5, 10, 12, 0))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestDashboardMatchesPeriodInConfiguredZone(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	zone := time.FixedZone("UTC+2", 2*60*60)

	// 23:30 UTC on the 9th is already the 10th at UTC+2.
	late := testutil.CreateLog(t, db, habit.ID, at(2024, 5, 9, 23, 30))

	svc := NewDashboardService(db, zone, zaptest.NewLogger(t))
	entries, err := svc.Dashboard(context.Background(), user.ID, time.Date(2024, 5, 10, 12, 0, 0, 0, zone))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].LoggedThisPeriod)
	require.NotNil(t, entries[0].CurrentLog)
	assert.Equal(t, late.ID, entries[0].CurrentLog.ID)

	entries, err = svc.Dashboard(context.Background(), user.ID, time.Date(2024, 5, 11, 0, 30, 0, 0, zone))
	require.NoError(t, err)
	assert.False(t, entries[0].LoggedThisPeriod)
}
