package services

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/testutil"
)

func strp(s string) *string { return &s }

func TestHabitCreateValidatesInput(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewHabitService(db, zaptest.NewLogger(t))
	user := testutil.CreateUser(t, db, "a@example.com")
	now := at(2024, 5, 10, 9, 0)

	_, err := svc.Create(ctx, user.ID, HabitInput{}, now)
	assert.True(t, IsRejection(err, CodeInvalidInput))

	_, err = svc.Create(ctx, user.ID, HabitInput{Name: strp("<b></b>  ")}, now)
	assert.True(t, IsRejection(err, CodeInvalidInput))

	_, err = svc.Create(ctx, user.ID, HabitInput{Name: strp(strings.Repeat("x", 101))}, now)
	assert.True(t, IsRejection(err, CodeInvalidInput))

	_, err = svc.Create(ctx, user.ID, HabitInput{Name: strp("Run"), Frequency: strp("weekly")}, now)
	assert.True(t, IsRejection(err, CodeInvalidInput))

	h, err := svc.Create(ctx, user.ID, HabitInput{Name: strp("<script>x</script>Read")}, now)
	require.NoError(t, err)
	assert.Equal(t, "Read", h.Name)
	assert.Equal(t, models.FrequencyDaily, h.Frequency)

	h, err = svc.Create(ctx, user.ID, HabitInput{Name: strp("Budget"), Frequency: strp("Monthly")}, now)
	require.NoError(t, err)
	assert.Equal(t, models.FrequencyMonthly, h.Frequency)
}

func TestHabitOtherUsersLookMissing(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewHabitService(db, zaptest.NewLogger(t))
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	habit := testutil.CreateHabit(t, db, owner.ID, models.FrequencyDaily)

	_, err := svc.Get(ctx, other.ID, habit.ID)
	assert.True(t, IsRejection(err, CodeUnknownHabit))
	_, err = svc.Update(ctx, other.ID, habit.ID, HabitInput{Name: strp("Mine")})
	assert.True(t, IsRejection(err, CodeUnknownHabit))
	assert.True(t, IsRejection(svc.Delete(ctx, other.ID, habit.ID), CodeUnknownHabit))

	updated, err := svc.Update(ctx, owner.ID, habit.ID, HabitInput{Name: strp("Walk"), Frequency: strp("monthly")})
	require.NoError(t, err)
	assert.Equal(t, "Walk", updated.Name)
	assert.Equal(t, models.FrequencyMonthly, updated.Frequency)

	list, err := svc.List(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHabitDeleteCascades(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewHabitService(db, zaptest.NewLogger(t))
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	keep := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	testutil.CreateGoal(t, db, habit.ID, 1, 5)
	testutil.CreateLog(t, db, habit.ID, at(2024, 5, 10, 8, 0))
	testutil.CreateLog(t, db, keep.ID, at(2024, 5, 10, 8, 0))
	_, err := NewReminderService(db).Create(ctx, user.ID, habit.ID, "08:00")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, user.ID, habit.ID))

	for _, m := range []interface{}{&models.Goal{}, &models.HabitLog{}, &models.Reminder{}} {
		var n int64
		require.NoError(t, db.Model(m).Where("habit_id = ?", habit.ID).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}

	logs, err := svc.ListLogs(ctx, user.ID, 0)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, keep.ID, logs[0].HabitID)
}
