package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, "k", 3, time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := m.Allow(ctx, "k", 3, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, _ = m.Allow(ctx, "other", 3, time.Hour)
	assert.True(t, ok, "keys are counted separately")

	now = now.Add(time.Hour)
	ok, _ = m.Allow(ctx, "k", 3, time.Hour)
	assert.True(t, ok, "window resets")

	ok, _ = m.Allow(ctx, "unlimited", 0, time.Hour)
	assert.True(t, ok)
}

func TestNoop(t *testing.T) {
	ok, err := Noop{}.Allow(context.Background(), "k", 1, time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "tutorai:ingest:u1", IngestKey("u1"))
	assert.Equal(t, "tutorai:ask:u1:v1", AskKey("u1", "v1"))
}

func TestNewRedisUnreachable(t *testing.T) {
	_, err := NewRedis(RedisInfo{Addr: "127.0.0.1:1"})
	assert.Error(t, err)
}
