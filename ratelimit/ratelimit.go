package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrRateLimited = errors.New("rate limit exceeded, please try again later")

// Limiter counts events per key in fixed windows.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

func IngestKey(userID string) string {
	return "tutorai:ingest:" + userID
}

func AskKey(userID, videoID string) string {
	return "tutorai:ask:" + userID + ":" + videoID
}

// Noop allows everything.
type Noop struct{}

func (Noop) Allow(context.Context, string, int, time.Duration) (bool, error) { return true, nil }

type window struct {
	count   int
	expires time.Time
}

// Memory is a fixed window limiter for a single instance.
type Memory struct {
	mu      sync.Mutex
	windows map[string]window
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		windows: map[string]window{},
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, d time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	w, ok := m.windows[key]
	if !ok || !now.Before(w.expires) {
		w = window{expires: now.Add(d)}
	}
	w.count++
	m.windows[key] = w

	return w.count <= limit, nil
}
