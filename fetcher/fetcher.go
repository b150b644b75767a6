package fetcher

import (
	"context"
	"errors"
	"log/slog"

	"ewintr.nl/tutorai/model"
)

type Submitter interface {
	Submit(ctx context.Context, url string) (*model.Video, bool, error)
}

// Fetcher watches a feed reader for new YouTube entries and submits them for
// ingestion, so subscribed channels are ready for questions before anyone
// asks.
type Fetcher struct {
	feedReader FeedReader
	submitter  Submitter
	logger     *slog.Logger
}

func NewFetch(feedReader FeedReader, submitter Submitter, logger *slog.Logger) *Fetcher {
	return &Fetcher{
		feedReader: feedReader,
		submitter:  submitter,
		logger:     logger,
	}
}

// ReadFeeds submits all unread entries once. Entries that can never be
// ingested are marked read as well, entries that failed for another reason
// stay unread and are tried again on the next run.
func (f *Fetcher) ReadFeeds(ctx context.Context) error {
	entries, err := f.feedReader.Unread()
	if err != nil {
		f.logger.Error("failed to fetch unread entries", slog.String("error", err.Error()))
		return err
	}
	f.logger.Info("fetched unread entries", slog.Int("count", len(entries)))

	var submitted int
	for _, entry := range entries {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		video, queued, err := f.submitter.Submit(ctx, entry.URL)
		switch {
		case err == nil:
			if queued {
				submitted++
			}
			f.logger.Info("submitted feed entry", slog.String("video", string(video.YoutubeID)), slog.Bool("queued", queued))
		case IsRejected(err) && !errors.Is(err, ErrAccess):
			f.logger.Warn("skipping feed entry", slog.String("url", entry.URL), slog.String("error", err.Error()))
		default:
			f.logger.Error("failed to submit feed entry", slog.String("url", entry.URL), slog.String("error", err.Error()))
			continue
		}

		if err := f.feedReader.MarkRead(entry.EntryID); err != nil {
			f.logger.Error("failed to mark entry as read", slog.Int64("entry", entry.EntryID), slog.String("error", err.Error()))
		}
	}
	f.logger.Info("read feeds", slog.Int("submitted", submitted))

	return nil
}

// IsRejected reports whether err is a validation or access failure that
// should be shown to the user as is.
func IsRejected(err error) bool {
	for _, target := range []error{ErrInvalidURL, ErrPrivate, ErrAgeRestricted, ErrUnavailable, ErrLive, ErrAccess} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
