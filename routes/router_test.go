package routes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/habitly/habitd/testutil"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "habitd-routes")
	if err != nil {
		panic(err)
	}
	os.Setenv("JWT_SECRET", "test-secret")
	os.Setenv("GIN_MODE", "test")
	os.Setenv("GIN_PATH", filepath.Join(dir, "gin.log"))
	os.Setenv("RATE_LIMIT_PER_MINUTE", "100000")
	code := m.Run()
	os.RemoveAll(dir)
	os.Exit(code)
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
}

func (c apiClient) do(method, path, token string, body interface{}) (int, envelope) {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(c.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	c.engine.ServeHTTP(w, req)

	var env envelope
	require.NoError(c.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	return w.Code, env
}

func (c apiClient) register(email string) string {
	c.t.Helper()
	status, env := c.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": email, "password": "correct horse"})
	require.Equal(c.t, http.StatusCreated, status, env.Message)
	var data struct {
		Token string `json:"token"`
	}
	require.NoError(c.t, json.Unmarshal(env.Data, &data))
	require.NotEmpty(c.t, data.Token)
	return data.Token
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func newClient(t *testing.T, clock *time.Time) apiClient {
	db := testutil.NewDB(t)
	deps := NewDeps(db, time.UTC, zaptest.NewLogger(t))
	deps.Now = func() time.Time { return *clock }
	return apiClient{t: t, engine: SetupRouter(deps)}
}

func TestHabitLifecycleOverHTTP(t *testing.T) {
	clock := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	c := newClient(t, &clock)

	alice := c.register("alice@example.com")
	bob := c.register("bob@example.com")

	status, env := c.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{"email": "Alice@Example.com", "password": "another pass"})
	assert.Equal(t, http.StatusConflict, status)

	status, env = c.do(http.MethodPost, "/api/v1/habits", alice, gin.H{"name": "Read", "frequency": "daily"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	habit := decode[struct {
		ID        uint   `json:"id"`
		Frequency string `json:"frequency"`
	}](t, env.Data)
	assert.Equal(t, "daily", habit.Frequency)

	status, env = c.do(http.MethodPost, "/api/v1/goals", alice, gin.H{"habit": habit.ID, "target_streak": 2})
	require.Equal(t, http.StatusCreated, status, env.Message)
	goal := decode[struct {
		ID     uint   `json:"id"`
		Status string `json:"status"`
	}](t, env.Data)

	status, _ = c.do(http.MethodPost, "/api/v1/goals", alice, gin.H{"habit": habit.ID})
	assert.Equal(t, http.StatusConflict, status)

	// Bob cannot log on Alice's habit and cannot see it.
	status, env = c.do(http.MethodPost, "/api/v1/habit-logs", bob, gin.H{"habit": habit.ID})
	assert.Equal(t, http.StatusForbidden, status)
	assert.Contains(t, string(env.Data), "not_owner")
	status, _ = c.do(http.MethodGet, "/api/v1/habits/"+itoa(habit.ID), bob, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, env = c.do(http.MethodPost, "/api/v1/habit-logs", alice, gin.H{"habit": habit.ID})
	require.Equal(t, http.StatusCreated, status, env.Message)

	status, env = c.do(http.MethodPost, "/api/v1/habit-logs", alice, gin.H{"habit": habit.ID})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, string(env.Data), "already_logged_this_period")

	clock = clock.AddDate(0, 0, 1)
	status, env = c.do(http.MethodPost, "/api/v1/habit-logs", alice, gin.H{"habit": habit.ID})
	require.Equal(t, http.StatusCreated, status, env.Message)
	logged := decode[struct {
		Goal struct {
			CurrentStreak int    `json:"current_streak"`
			Status        string `json:"status"`
		} `json:"goal"`
	}](t, env.Data)
	assert.Equal(t, 2, logged.Goal.CurrentStreak)
	assert.Equal(t, "completed", logged.Goal.Status)

	// Completed goals cannot be retargeted.
	status, _ = c.do(http.MethodPatch, "/api/v1/goals/"+itoa(goal.ID), alice, gin.H{"target_streak": 5})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = c.do(http.MethodGet, "/api/v1/habit-logs", alice, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]map[string]interface{}](t, env.Data), 2)

	status, env = c.do(http.MethodGet, "/api/v1/dashboard", alice, nil)
	require.Equal(t, http.StatusOK, status)
	entries := decode[[]struct {
		LoggedThisPeriod bool `json:"logged_this_period"`
	}](t, env.Data)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].LoggedThisPeriod)
}

func TestRemindersOverHTTP(t *testing.T) {
	clock := time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC)
	c := newClient(t, &clock)
	token := c.register("alice@example.com")

	_, env := c.do(http.MethodPost, "/api/v1/habits", token, gin.H{"name": "Stretch"})
	habit := decode[struct {
		ID uint `json:"id"`
	}](t, env.Data)

	status, env := c.do(http.MethodPost, "/api/v1/reminders", token, gin.H{"habit": habit.ID, "reminder_time": "07:30"})
	require.Equal(t, http.StatusCreated, status, env.Message)
	assert.JSONEq(t, `{"id":1,"habit":`+itoa(habit.ID)+`,"reminder_time":"07:30"}`, string(env.Data))

	status, _ = c.do(http.MethodPost, "/api/v1/reminders", token, gin.H{"habit": habit.ID, "reminder_time": "09:00"})
	assert.Equal(t, http.StatusConflict, status)

	status, _ = c.do(http.MethodPatch, "/api/v1/reminders/1", token, gin.H{"reminder_time": "nope"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, env = c.do(http.MethodPatch, "/api/v1/reminders/1", token, gin.H{"reminder_time": "21:15"})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), `"21:15"`)
}

func TestAuthRequiredAndLogout(t *testing.T) {
	clock := time.Now()
	c := newClient(t, &clock)

	status, _ := c.do(http.MethodGet, "/api/v1/habits", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	token := c.register("carol@example.com")
	status, env := c.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(env.Data), "carol@example.com")
	assert.NotContains(t, string(env.Data), "password")

	status, _ = c.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "carol@example.com", "password": "wrong password"})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = c.do(http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = c.do(http.MethodGet, "/api/v1/auth/me", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = c.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
}

func itoa(id uint) string {
	b, _ := json.Marshal(id)
	return string(b)
}
