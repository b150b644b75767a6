package model

import "github.com/google/uuid"

type Provenance string

const (
	ProvenanceCaptions     Provenance = "captions"
	ProvenanceSpeechToText Provenance = "speech-to-text"
)

// Segment is the raw timed unit produced by caption parsing or speech-to-text.
// It is never persisted.
type Segment struct {
	StartTime float64
	EndTime   float64
	Text      string
}

type Chunk struct {
	ID        uuid.UUID `json:"id"`
	VideoID   uuid.UUID `json:"video_id"`
	StartTime float64   `json:"start_time"`
	EndTime   float64   `json:"end_time"`
	Text      string    `json:"text"`
}

// Contains reports whether ts falls inside the chunk span, bounds included.
func (c Chunk) Contains(ts float64) bool {
	return c.StartTime <= ts && ts <= c.EndTime
}

// Overlaps reports whether the chunk touches the closed interval [start, end].
func (c Chunk) Overlaps(start, end float64) bool {
	return c.EndTime >= start && c.StartTime <= end
}
