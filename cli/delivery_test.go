package cli

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/config"
	"github.com/habitly/habitd/models"
	"github.com/habitly/habitd/tasks"
	"github.com/habitly/habitd/testutil"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Exit(m.Run())
}

type captureQueue struct {
	mu    sync.Mutex
	tasks []tasks.ReminderNotification
}

func (q *captureQueue) Enqueue(_ context.Context, task tasks.ReminderNotification) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

func testEnv(t *testing.T) *env {
	return &env{
		cfg: config.AppConfig{DecayRunAt: "00:05"},
		db:  testutil.NewDB(t),
		loc: time.UTC,
		log: zaptest.NewLogger(t),
	}
}

func TestParseAt(t *testing.T) {
	got, err := parseAt("2024-03-01T08:00:00Z", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC), got)

	_, err = parseAt("yesterday", time.UTC)
	assert.Error(t, err)

	got, err = parseAt("", time.UTC)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got, time.Minute)
}

func TestDecayJobResetsMissedStreaks(t *testing.T) {
	e := testEnv(t)
	user := testutil.CreateUser(t, e.db, "a@example.com")
	habit := testutil.CreateHabit(t, e.db, user.ID, models.FrequencyDaily)
	goal := testutil.CreateGoal(t, e.db, habit.ID, 4, 10)

	job := decayJob(e)
	assert.Equal(t, decayJobName, job.Name)
	first := job.Schedule(time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC), first)

	require.NoError(t, job.Run(context.Background(), time.Date(2024, 3, 10, 0, 5, 0, 0, time.UTC)))
	assert.Equal(t, 0, testutil.ReloadGoal(t, e.db, goal.ID).CurrentStreak)
}

func TestDispatchJobQueuesDueReminders(t *testing.T) {
	e := testEnv(t)
	user := testutil.CreateUser(t, e.db, "a@example.com")
	habit := testutil.CreateHabit(t, e.db, user.ID, models.FrequencyDaily)
	require.NoError(t, e.db.Create(&models.Reminder{HabitID: habit.ID, Hour: 8, Minute: 0}).Error)

	q := &captureQueue{}
	job := dispatchJob(e, q)
	assert.True(t, job.OncePerTick)
	require.NoError(t, job.Run(context.Background(), time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC)))
	require.Len(t, q.tasks, 1)
	assert.Equal(t, "a@example.com", q.tasks[0].Recipient)

	require.NoError(t, job.Run(context.Background(), time.Date(2024, 3, 10, 8, 1, 0, 0, time.UTC)))
	assert.Len(t, q.tasks, 1)
}

func TestDeliveryWaitCoversRetries(t *testing.T) {
	e := &env{cfg: config.AppConfig{DeliveryMaxRetries: 3, DeliveryBaseDelaySec: 30, DeliveryMaxDelaySec: 1800}}
	assert.Equal(t, 210*time.Second, retryPolicy(e).Budget())
	assert.Equal(t, 270*time.Second, deliveryWait(e))
}
