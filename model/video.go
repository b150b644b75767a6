package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidTransition = errors.New("invalid video status transition")

type VideoStatus string

const (
	StatusProcessing VideoStatus = "processing"
	StatusReady      VideoStatus = "ready"
	StatusFailed     VideoStatus = "failed"
)

var transitions = map[VideoStatus][]VideoStatus{
	StatusProcessing: {StatusReady, StatusFailed},
	StatusFailed:     {StatusProcessing},
}

func (s VideoStatus) Valid() bool {
	switch s {
	case StatusProcessing, StatusReady, StatusFailed:
		return true
	}
	return false
}

// CanTransition reports whether a video may move from s to to. Ready is
// terminal: a ready video is never reprocessed.
func (s VideoStatus) CanTransition(to VideoStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == to {
			return true
		}
	}
	return false
}

type YoutubeVideoID string

type Video struct {
	ID         uuid.UUID      `json:"id"`
	Status     VideoStatus    `json:"status"`
	YoutubeID  YoutubeVideoID `json:"youtube_id"`
	Title      string         `json:"title"`
	URL        string         `json:"url"`
	Summary    *Summary       `json:"summary,omitempty"`
	Provenance Provenance     `json:"provenance,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func NewVideo(ytID YoutubeVideoID, title, url string) *Video {
	return &Video{
		ID:        uuid.New(),
		Status:    StatusProcessing,
		YoutubeID: ytID,
		Title:     title,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}
}

func (v *Video) TransitionTo(to VideoStatus) error {
	if !v.Status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, v.Status, to)
	}
	v.Status = to
	return nil
}
