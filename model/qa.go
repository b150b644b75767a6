package model

import (
	"time"

	"github.com/google/uuid"
)

type QAEntry struct {
	ID             uuid.UUID `json:"id"`
	UserID         string    `json:"user_id"`
	VideoID        uuid.UUID `json:"video_id"`
	VideoTimestamp float64   `json:"video_timestamp"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	CreatedAt      time.Time `json:"created_at"`
}

type User struct {
	ID    string
	Email string
}
