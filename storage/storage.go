package storage

import (
	"context"
	"errors"

	"ewintr.nl/tutorai/model"
	"github.com/google/uuid"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrStatusConflict = errors.New("video status changed concurrently")
)

type VideoRepository interface {
	Create(ctx context.Context, video *model.Video) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Video, error)
	FindByYoutubeID(ctx context.Context, ytID model.YoutubeVideoID) (*model.Video, error)
	FindByStatus(ctx context.Context, statuses ...model.VideoStatus) ([]*model.Video, error)
	// UpdateStatus moves a video from one status to another only if it is
	// still in the from status.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.VideoStatus) error
	// Complete writes the summary and provenance and moves the video from
	// processing to ready in one statement.
	Complete(ctx context.Context, id uuid.UUID, summary model.Summary, provenance model.Provenance) error
}

type ChunkRepository interface {
	SaveBatch(ctx context.Context, videoID uuid.UUID, chunks []model.Chunk) error
	// ReplaceBatch removes the chunks already stored for the video and saves
	// chunks in their place.
	ReplaceBatch(ctx context.Context, videoID uuid.UUID, chunks []model.Chunk) error
	DeleteByVideo(ctx context.Context, videoID uuid.UUID) error
	FindByVideo(ctx context.Context, videoID uuid.UUID) ([]model.Chunk, error)
	FindInWindow(ctx context.Context, videoID uuid.UUID, start, end float64) ([]model.Chunk, error)
}

type QARepository interface {
	Append(ctx context.Context, entry *model.QAEntry) error
	FindByUserVideo(ctx context.Context, userID string, videoID uuid.UUID) ([]*model.QAEntry, error)
}

func checkTransition(from, to model.VideoStatus) error {
	if !from.CanTransition(to) {
		return model.ErrInvalidTransition
	}
	return nil
}
