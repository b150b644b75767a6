package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoStatusCanTransition(t *testing.T) {
	for _, tc := range []struct {
		from VideoStatus
		to   VideoStatus
		exp  bool
	}{
		{StatusProcessing, StatusReady, true},
		{StatusProcessing, StatusFailed, true},
		{StatusFailed, StatusProcessing, true},
		{StatusFailed, StatusReady, false},
		{StatusReady, StatusProcessing, false},
		{StatusReady, StatusFailed, false},
		{StatusProcessing, StatusProcessing, false},
	} {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.exp, tc.from.CanTransition(tc.to))
		})
	}
}

func TestVideoTransitionTo(t *testing.T) {
	v := NewVideo("dQw4w9WgXcQ", "title", "https://youtu.be/dQw4w9WgXcQ")
	require.Equal(t, StatusProcessing, v.Status)

	require.NoError(t, v.TransitionTo(StatusFailed))
	require.NoError(t, v.TransitionTo(StatusProcessing))
	require.NoError(t, v.TransitionTo(StatusReady))

	err := v.TransitionTo(StatusProcessing)
	assert.True(t, errors.Is(err, ErrInvalidTransition))
	assert.Equal(t, StatusReady, v.Status)
}

func TestChunkOverlapsAndContains(t *testing.T) {
	c := Chunk{StartTime: 60, EndTime: 90}
	assert.True(t, c.Overlaps(90, 120))
	assert.True(t, c.Overlaps(0, 60))
	assert.False(t, c.Overlaps(91, 120))
	assert.True(t, c.Contains(60))
	assert.True(t, c.Contains(90))
	assert.False(t, c.Contains(90.5))
}
