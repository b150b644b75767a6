package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fast = Config{MaxRetries: 3, InitialWait: time.Millisecond, MaxWait: 5 * time.Millisecond, Multiplier: 2}

func TestIsTransient(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		exp  bool
	}{
		{"rate limited", &openai.APIError{HTTPStatusCode: 429}, true},
		{"server error", &openai.APIError{HTTPStatusCode: 503}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: 400}, false},
		{"request error", &openai.RequestError{HTTPStatusCode: 502, Err: errors.New("bad gateway")}, true},
		{"dns timeout", &net.DNSError{IsTimeout: true}, true},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"plain", errors.New("boom"), false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.exp, IsTransient(tc.err))
		})
	}
}

func TestDo(t *testing.T) {
	t.Run("retry then success", func(t *testing.T) {
		calls := 0
		act, err := Do(context.Background(), fast, func() (string, error) {
			calls++
			if calls < 3 {
				return "", &openai.APIError{HTTPStatusCode: 503}
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", act)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fast, func() (string, error) {
			calls++
			return "", errors.New("invalid")
		})
		assert.Error(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("exhausted", func(t *testing.T) {
		calls := 0
		_, err := Do(context.Background(), fast, func() (int, error) {
			calls++
			return 0, &openai.APIError{HTTPStatusCode: 429}
		})
		assert.Error(t, err)
		assert.Equal(t, fast.MaxRetries+1, calls)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := Do(ctx, fast, func() (int, error) { return 1, nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}
