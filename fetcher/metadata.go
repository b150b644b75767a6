package fetcher

import (
	"context"
	"errors"
	"time"

	"ewintr.nl/tutorai/model"
)

var (
	ErrPrivate       = errors.New("this video is private and cannot be accessed")
	ErrAgeRestricted = errors.New("this video is age-restricted and cannot be processed")
	ErrUnavailable   = errors.New("this video is unavailable")
	ErrLive          = errors.New("live videos are not supported, please use a recorded video")
	ErrAccess        = errors.New("unable to access this video")
)

type Metadata struct {
	Title        string
	Description  string
	Uploader     string
	Duration     time.Duration
	IsLive       bool
	Availability string
}

type MetadataFetcher interface {
	FetchMetadata(ctx context.Context, ytID model.YoutubeVideoID) (Metadata, error)
}
