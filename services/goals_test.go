package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/testutil"
)

func intp(v int) *int { return &v }

func TestGoalCreateRules(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewGoalService(db, zaptest.NewLogger(t))
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	habit := testutil.CreateHabit(t, db, owner.ID, models.FrequencyDaily)

	_, err := svc.Create(ctx, other.ID, habit.ID, 5)
	assert.True(t, IsRejection(err, CodeNotOwner))

	_, err = svc.Create(ctx, owner.ID, habit.ID, -1)
	assert.True(t, IsRejection(err, CodeInvalidInput))

	goal, err := svc.Create(ctx, owner.ID, habit.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultTargetStreak, goal.TargetStreak)
	assert.Equal(t, 0, goal.CurrentStreak)
	assert.Equal(t, models.GoalInProgress, goal.Status)

	_, err = svc.Create(ctx, owner.ID, habit.ID, 3)
	assert.True(t, IsRejection(err, CodeDuplicateInProgressGoal))

	// Once the goal is history a new one may start.
	require.NoError(t, db.Model(&models.Goal{}).Where("id = ?", goal.ID).Update("status", models.GoalCompleted).Error)
	next, err := svc.Create(ctx, owner.ID, habit.ID, 3)
	require.NoError(t, err)
	assert.NotEqual(t, goal.ID, next.ID)

	var inProgress int64
	require.NoError(t, db.Model(&models.Goal{}).
		Where("habit_id = ? AND status = ?", habit.ID, models.GoalInProgress).
		Count(&inProgress).Error)
	assert.EqualValues(t, 1, inProgress)
}

func TestGoalUpdateTarget(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewGoalService(db, zaptest.NewLogger(t))
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	habit := testutil.CreateHabit(t, db, owner.ID, models.FrequencyDaily)
	goal := testutil.CreateGoal(t, db, habit.ID, 4, 10)

	_, err := svc.Update(ctx, other.ID, goal.ID, GoalUpdate{TargetStreak: intp(20)})
	assert.True(t, IsRejection(err, CodeUnknownGoal))

	_, err = svc.Update(ctx, owner.ID, goal.ID, GoalUpdate{TargetStreak: intp(0)})
	assert.True(t, IsRejection(err, CodeInvalidInput))

	updated, err := svc.Update(ctx, owner.ID, goal.ID, GoalUpdate{TargetStreak: intp(8)})
	require.NoError(t, err)
	assert.Equal(t, 8, updated.TargetStreak)
	assert.Equal(t, models.GoalInProgress, updated.Status)

	updated, err = svc.Update(ctx, owner.ID, goal.ID, GoalUpdate{TargetStreak: intp(4)})
	require.NoError(t, err)
	assert.Equal(t, models.GoalCompleted, updated.Status)
	assert.Equal(t, models.GoalCompleted, testutil.ReloadGoal(t, db, goal.ID).Status)

	_, err = svc.Update(ctx, owner.ID, goal.ID, GoalUpdate{TargetStreak: intp(30)})
	assert.True(t, IsRejection(err, CodeGoalClosed))
}

func TestGoalListAndDeleteAreScopedToOwner(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewGoalService(db, zaptest.NewLogger(t))
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	h1 := testutil.CreateHabit(t, db, owner.ID, models.FrequencyDaily)
	h2 := testutil.CreateHabit(t, db, owner.ID, models.FrequencyMonthly)
	g1 := testutil.CreateGoal(t, db, h1.ID, 0, 5)
	testutil.CreateGoal(t, db, h2.ID, 0, 5)

	all, err := svc.List(ctx, owner.ID, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := svc.List(ctx, owner.ID, h1.ID)
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, g1.ID, one[0].ID)

	none, err := svc.List(ctx, other.ID, 0)
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.True(t, IsRejection(svc.Delete(ctx, other.ID, g1.ID), CodeUnknownGoal))
	require.NoError(t, svc.Delete(ctx, owner.ID, g1.ID))
	_, err = svc.Get(ctx, owner.ID, g1.ID)
	assert.True(t, IsRejection(err, CodeUnknownGoal))
}
