package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/tasks"
	"github.com/habitly/habitd/testutil"
)

type recordingQueue struct {
	mu    sync.Mutex
	tasks []tasks.ReminderNotification
	fail  string
}

func (q *recordingQueue) Enqueue(_ context.Context, task tasks.ReminderNotification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if task.Recipient == q.fail {
		return errors.New("broker unavailable")
	}
	q.tasks = append(q.tasks, task)
	return nil
}

func TestDispatchMatchesExactMinute(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	user := testutil.CreateUser(t, db, "a@example.com")
	habit := testutil.CreateHabit(t, db, user.ID, models.FrequencyDaily)
	_, err := NewReminderService(db).Create(ctx, user.ID, habit.ID, "08:00")
	require.NoError(t, err)

	queue := &recordingQueue{}
	dispatcher := NewReminderDispatcher(db, queue, time.UTC, zaptest.NewLogger(t))

	for _, now := range []struct {
		h, m int
		want int
	}{{7, 59, 0}, {8, 1, 0}, {8, 0, 1}} {
		n, err := dispatcher.DispatchDueReminders(ctx, at(2024, 5, 10, now.h, now.m))
		require.NoError(t, err)
		assert.Equal(t, now.want, n, "%02d:%02d", now.h, now.m)
	}

	require.Len(t, queue.tasks, 1)
	task := queue.tasks[0]
	assert.Equal(t, tasks.TypeSendReminder, task.Type)
	assert.Equal(t, "a@example.com", task.Recipient)
	assert.Equal(t, habit.Name, task.HabitName)
	assert.NotEmpty(t, task.ID)
}

func TestDispatchContinuesPastEnqueueFailure(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewReminderService(db)
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		u := testutil.CreateUser(t, db, email)
		h := testutil.CreateHabit(t, db, u.ID, models.FrequencyDaily)
		_, err := svc.Create(ctx, u.ID, h.ID, "21:30")
		require.NoError(t, err)
	}

	queue := &recordingQueue{fail: "b@example.com"}
	dispatcher := NewReminderDispatcher(db, queue, time.UTC, zaptest.NewLogger(t))
	n, err := dispatcher.DispatchDueReminders(ctx, at(2024, 5, 10, 21, 30))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, queue.tasks, 2)
}

func TestReminderServiceRules(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	svc := NewReminderService(db)
	owner := testutil.CreateUser(t, db, "owner@example.com")
	other := testutil.CreateUser(t, db, "other@example.com")
	habit := testutil.CreateHabit(t, db, owner.ID, models.FrequencyDaily)

	_, err := svc.Create(ctx, other.ID, habit.ID, "08:00")
	assert.True(t, IsRejection(err, CodeNotOwner))

	_, err = svc.Create(ctx, owner.ID, habit.ID, "8 o'clock")
	assert.True(t, IsRejection(err, CodeInvalidInput))

	r, err := svc.Create(ctx, owner.ID, habit.ID, "08:00")
	require.NoError(t, err)

	_, err = svc.Create(ctx, owner.ID, habit.ID, "09:00")
	assert.True(t, IsRejection(err, CodeDuplicateReminder))

	_, err = svc.Get(ctx, other.ID, r.ID)
	assert.True(t, IsRejection(err, CodeUnknownReminder))

	updated, err := svc.Update(ctx, owner.ID, r.ID, "18:45")
	require.NoError(t, err)
	assert.Equal(t, "18:45", updated.TimeOfDay())

	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 18, list[0].Hour)

	list, err = svc.List(ctx, other.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, svc.Delete(ctx, owner.ID, r.ID))
	_, err = svc.Get(ctx, owner.ID, r.ID)
	assert.True(t, IsRejection(err, CodeUnknownReminder))
}
