package scheduler

import (
	"context"
	"log/slog"
	"time"
)

type FeedReader interface {
	ReadFeeds(ctx context.Context) error
}

type StuckSweeper interface {
	FailStuck(ctx context.Context, maxAge time.Duration) (int, error)
}

// FeedJob submits new feed entries for ingestion.
type FeedJob struct {
	ctx    context.Context
	feeds  FeedReader
	logger *slog.Logger
}

func NewFeedJob(ctx context.Context, feeds FeedReader, logger *slog.Logger) *FeedJob {
	return &FeedJob{ctx: ctx, feeds: feeds, logger: logger}
}

func (j *FeedJob) Run() {
	j.logger.Info("running feed job")
	if err := j.feeds.ReadFeeds(j.ctx); err != nil {
		j.logger.Error("feed job failed", slog.String("error", err.Error()))
	}
}

// SweepJob fails videos that have been processing for longer than maxAge,
// so users can retry them.
type SweepJob struct {
	ctx     context.Context
	sweeper StuckSweeper
	maxAge  time.Duration
	logger  *slog.Logger
}

func NewSweepJob(ctx context.Context, sweeper StuckSweeper, maxAge time.Duration, logger *slog.Logger) *SweepJob {
	return &SweepJob{ctx: ctx, sweeper: sweeper, maxAge: maxAge, logger: logger}
}

func (j *SweepJob) Run() {
	count, err := j.sweeper.FailStuck(j.ctx, j.maxAge)
	if err != nil {
		j.logger.Error("sweep job failed", slog.String("error", err.Error()))
		return
	}
	if count > 0 {
		j.logger.Warn("failed stuck videos", slog.Int("count", count))
	}
}
