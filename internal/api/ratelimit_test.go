package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterPerKey(t *testing.T) {
	rl := NewRateLimiter(60, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"), "burst exhausted")
	assert.True(t, rl.Allow("b"), "keys are independent")

	now = now.Add(time.Second)
	assert.True(t, rl.Allow("a"), "one token refills per second at 60/min")
}

func TestRateLimiterPrune(t *testing.T) {
	rl := NewRateLimiter(10, 1)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("old")
	now = now.Add(limiterIdleTTL + time.Second)
	rl.Allow("fresh")

	assert.Equal(t, 1, rl.Prune())
	assert.Len(t, rl.limiters, 1)
	_, ok := rl.limiters["fresh"]
	assert.True(t, ok)
}
