package ratelimit

import (
	"context"
	"testing"

	"github.com/leadrail/leadrail/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledLimiterAllowsEverything(t *testing.T) {
	limiter, err := NewActionLimiter(config.Config{})
	require.NoError(t, err)
	require.Nil(t, limiter)

	assert.False(t, limiter.Enabled())

	result, err := limiter.AllowAccount(context.Background(), "42")
	require.NoError(t, err)
	assert.True(t, result.Allowed)

	lease, ok, err := limiter.LockAction(context.Background(), "42", "deduct_credits")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, lease)
	assert.NoError(t, lease.Release(context.Background()))
}

func TestLimiterRejectsIncompleteConfig(t *testing.T) {
	_, err := NewActionLimiter(config.Config{
		RateLimit: config.RateLimitConfig{Enabled: true},
	})
	require.Error(t, err)

	_, err = NewActionLimiter(config.Config{
		RateLimit: config.RateLimitConfig{
			Enabled:   true,
			RedisAddr: "localhost:6379",
		},
	})
	require.Error(t, err)
}
