package fetcher

import (
	"context"
	"log/slog"
	"time"

	"ewintr.nl/tutorai/model"
)

const DefaultLongVideoWarning = 3 * time.Hour

type Validator struct {
	metadata         MetadataFetcher
	longVideoWarning time.Duration
	logger           *slog.Logger
}

func NewValidator(metadata MetadataFetcher, longVideoWarning time.Duration, logger *slog.Logger) *Validator {
	if longVideoWarning <= 0 {
		longVideoWarning = DefaultLongVideoWarning
	}
	return &Validator{
		metadata:         metadata,
		longVideoWarning: longVideoWarning,
		logger:           logger,
	}
}

// Validate resolves the url to a video id and checks that the video can be
// processed. Long videos are accepted, they only produce a warning.
func (v *Validator) Validate(ctx context.Context, url string) (model.YoutubeVideoID, Metadata, error) {
	ytID, err := ExtractVideoID(url)
	if err != nil {
		return "", Metadata{}, err
	}

	md, err := v.metadata.FetchMetadata(ctx, ytID)
	if err != nil {
		return "", Metadata{}, err
	}
	if md.IsLive {
		return "", Metadata{}, ErrLive
	}
	if md.Duration > v.longVideoWarning {
		v.logger.Warn("long video submitted", slog.String("video", string(ytID)), slog.Duration("duration", md.Duration))
	}

	return ytID, md, nil
}
