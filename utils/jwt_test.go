package utils

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	os.Setenv("JWT_SECRET", "test-secret")
	os.Unsetenv("REDIS_HOST")
	os.Exit(m.Run())
}

func TestGenerateAndParseToken(t *testing.T) {
	a, err := GenerateToken(7, "a@example.com", time.Hour)
	require.NoError(t, err)
	b, err := GenerateToken(7, "a@example.com", time.Hour)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	claims, err := ParseToken(a)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, "a@example.com", claims.Email)

	expired, err := GenerateToken(7, "a@example.com", -time.Minute)
	require.NoError(t, err)
	_, err = ParseToken(expired)
	assert.Error(t, err)
}

func TestTokenBlacklistWithoutRedis(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IsTokenBlacklisted(ctx, "tok"))
	BlacklistToken(ctx, "tok", time.Now().Add(time.Minute))
	assert.True(t, IsTokenBlacklisted(ctx, "tok"))

	BlacklistToken(ctx, "old", time.Now().Add(-time.Minute))
	assert.False(t, IsTokenBlacklisted(ctx, "old"))
}
