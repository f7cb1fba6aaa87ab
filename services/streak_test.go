package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/testutil"
)

func TestOnLogAcceptedWithoutGoalIsNoop(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)

	goal, err := NewStreakUpdater(zaptest.NewLogger(t)).OnLogAccepted(context.Background(), db, habit.ID)
	require.NoError(t, err)
	assert.Nil(t, goal)
}

func TestOnLogAcceptedConcurrentIncrementsAreNotLost(t *testing.T) {
	db := testutil.NewDB(t)
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	goal := testutil.CreateGoal(t, db, habit.ID, 3, 10)
	updater := NewStreakUpdater(zaptest.NewLogger(t))

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := updater.OnLogAccepted(context.Background(), db, habit.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	assert.Equal(t, 5, testutil.ReloadGoal(t, db, goal.ID).CurrentStreak)
}
