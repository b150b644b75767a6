package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ewintr.nl/tutorai/fetcher"
	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/ratelimit"
	"ewintr.nl/tutorai/storage"
	"github.com/google/uuid"
)

const DefaultQueueSize = 32

type Validator interface {
	Validate(ctx context.Context, url string) (model.YoutubeVideoID, fetcher.Metadata, error)
}

type PipelineConfig struct {
	QueueSize         int
	IngestionsPerHour int
}

type Pipeline struct {
	in        chan *model.Video
	procs     *Processors
	videos    storage.VideoRepository
	chunks    storage.ChunkRepository
	validator Validator
	limiter   ratelimit.Limiter
	conf      PipelineConfig
	logger    *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]bool
	rerun  map[uuid.UUID]*model.Video
	wg     sync.WaitGroup
}

func NewPipeline(processors *Processors, videos storage.VideoRepository, chunks storage.ChunkRepository, validator Validator, limiter ratelimit.Limiter, conf PipelineConfig, logger *slog.Logger) *Pipeline {
	if conf.QueueSize <= 0 {
		conf.QueueSize = DefaultQueueSize
	}
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	return &Pipeline{
		in:        make(chan *model.Video, conf.QueueSize),
		procs:     processors,
		videos:    videos,
		chunks:    chunks,
		validator: validator,
		limiter:   limiter,
		conf:      conf,
		logger:    logger,
		active:    map[uuid.UUID]bool{},
		rerun:     map[uuid.UUID]*model.Video{},
	}
}

// SubmitFor is Submit with the per user ingestion quota applied. Only
// submissions that start work count against the quota.
func (p *Pipeline) SubmitFor(ctx context.Context, userID, url string) (*model.Video, bool, error) {
	return p.submit(ctx, url, func(ctx context.Context) error {
		ok, err := p.limiter.Allow(ctx, ratelimit.IngestKey(userID), p.conf.IngestionsPerHour, time.Hour)
		if err != nil {
			p.logger.Error("could not check ingestion quota", slog.String("user", userID), slog.String("error", err.Error()))
			return nil
		}
		if !ok {
			return ratelimit.ErrRateLimited
		}
		return nil
	})
}

// Submit validates the url and queues the video for ingestion. It is
// idempotent: a video that is ready or being processed is returned as is. A
// failed video is reset and queued again. The returned bool reports whether
// the video was queued.
func (p *Pipeline) Submit(ctx context.Context, url string) (*model.Video, bool, error) {
	return p.submit(ctx, url, nil)
}

func (p *Pipeline) submit(ctx context.Context, url string, charge func(context.Context) error) (*model.Video, bool, error) {
	ytID, md, err := p.validator.Validate(ctx, url)
	if err != nil {
		return nil, false, err
	}

	existing, err := p.videos.FindByYoutubeID(ctx, ytID)
	found := err == nil
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return nil, false, err
	case existing.Status != model.StatusFailed:
		return existing, false, nil
	}

	if charge != nil {
		if err := charge(ctx); err != nil {
			return nil, false, err
		}
	}
	if !found {
		return p.create(ctx, ytID, md.Title, url)
	}

	return p.retry(ctx, existing)
}

func (p *Pipeline) create(ctx context.Context, ytID model.YoutubeVideoID, title, url string) (*model.Video, bool, error) {
	video := model.NewVideo(ytID, title, url)
	err := p.videos.Create(ctx, video)
	if errors.Is(err, storage.ErrAlreadyExists) {
		// someone else submitted the same video in the meantime
		winner, err := p.videos.FindByYoutubeID(ctx, ytID)
		if err != nil {
			return nil, false, err
		}
		return winner, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	p.logger.Info("video submitted", slog.String("video", string(ytID)))
	if err := p.enqueue(ctx, video); err != nil {
		return nil, false, err
	}

	return video, true, nil
}

func (p *Pipeline) retry(ctx context.Context, video *model.Video) (*model.Video, bool, error) {
	err := p.videos.UpdateStatus(ctx, video.ID, model.StatusFailed, model.StatusProcessing)
	if errors.Is(err, storage.ErrStatusConflict) {
		current, err := p.videos.FindByID(ctx, video.ID)
		if err != nil {
			return nil, false, err
		}
		return current, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if err := video.TransitionTo(model.StatusProcessing); err != nil {
		return nil, false, err
	}
	if err := p.chunks.DeleteByVideo(ctx, video.ID); err != nil {
		err = fmt.Errorf("could not discard old transcript: %w", err)
		if revertErr := p.videos.UpdateStatus(ctx, video.ID, model.StatusProcessing, model.StatusFailed); revertErr != nil {
			p.logger.Error("failed to mark video as failed", slog.String("video", string(video.YoutubeID)), slog.String("error", revertErr.Error()))
			return nil, false, errors.Join(err, revertErr)
		}
		return nil, false, err
	}

	p.logger.Info("retrying failed video", slog.String("video", string(video.YoutubeID)))
	if err := p.enqueue(ctx, video); err != nil {
		return nil, false, err
	}

	return video, true, nil
}

// enqueue queues the video unless it is already queued or running. In that
// case another run is recorded and queued by done once the current one ends,
// so a retry that lands while a failed run is still winding down is not lost.
func (p *Pipeline) enqueue(ctx context.Context, video *model.Video) error {
	p.mu.Lock()
	if p.active[video.ID] {
		p.rerun[video.ID] = video
		p.mu.Unlock()
		return nil
	}
	p.active[video.ID] = true
	p.mu.Unlock()

	select {
	case p.in <- video:
		return nil
	case <-ctx.Done():
		p.release(video.ID)
		return ctx.Err()
	}
}

func (p *Pipeline) release(id uuid.UUID) {
	p.mu.Lock()
	delete(p.active, id)
	delete(p.rerun, id)
	p.mu.Unlock()
}

// done ends a run of the video. A run requested in the meantime is queued,
// the video stays active until that one is done too.
func (p *Pipeline) done(ctx context.Context, id uuid.UUID) {
	p.mu.Lock()
	video, again := p.rerun[id]
	delete(p.rerun, id)
	if !again {
		delete(p.active, id)
	}
	p.mu.Unlock()
	if !again {
		return
	}

	select {
	case p.in <- video:
	case <-ctx.Done():
		p.release(id)
	}
}

// IsActive reports whether the video is queued or being processed by this
// pipeline.
func (p *Pipeline) IsActive(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active[id]
}

// Run picks up videos that were left in processing, then processes queued
// videos, each in its own goroutine, until ctx is done.
func (p *Pipeline) Run(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.FindUnprocessed(ctx)
	}()

	p.logger.Info("started pipeline")
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("stopped pipeline")
			return
		case video := <-p.in:
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.done(ctx, video.ID)
				p.Process(ctx, video)
			}()
		}
	}
}

// Wait blocks until all started videos are done.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) FindUnprocessed(ctx context.Context) {
	videos, err := p.videos.FindByStatus(ctx, model.StatusProcessing)
	if err != nil {
		p.logger.Error("failed to fetch unprocessed videos", slog.String("error", err.Error()))
		return
	}
	p.logger.Info("found unprocessed videos", slog.Int("count", len(videos)))
	for _, video := range videos {
		if err := p.enqueue(ctx, video); err != nil {
			return
		}
	}
}

func (p *Pipeline) Process(ctx context.Context, video *model.Video) error {
	logger := p.logger.With(slog.String("video", string(video.YoutubeID)))
	current, err := p.videos.FindByID(ctx, video.ID)
	if err != nil {
		return p.fail(ctx, video, "load", err)
	}
	if current.Status != model.StatusProcessing {
		logger.Info("video is no longer processing, skipping", slog.String("status", string(current.Status)))
		return nil
	}
	logger.Info("processing video")

	job := &Job{Video: video}
	for next := p.procs.Next(job); next != nil; next = p.procs.Next(job) {
		logger.Info("running stage", slog.String("stage", next.Name()))
		if err := next.Do(ctx, job); err != nil {
			return p.fail(ctx, video, next.Name(), err)
		}
	}

	if err := p.videos.Complete(ctx, video.ID, *job.Summary, job.Transcript.Provenance); err != nil {
		return p.fail(ctx, video, "complete", err)
	}
	video.Summary = job.Summary
	video.Provenance = job.Transcript.Provenance
	video.Status = model.StatusReady
	logger.Info("video is ready", slog.String("provenance", string(video.Provenance)), slog.Int("chunks", len(job.Transcript.Chunks)))

	return nil
}

// fail marks the video failed so the user can retry. When the pipeline is
// shutting down the video is left in processing to be resumed on the next
// start.
func (p *Pipeline) fail(ctx context.Context, video *model.Video, stage string, cause error) error {
	logger := p.logger.With(slog.String("video", string(video.YoutubeID)), slog.String("stage", stage))
	if ctx.Err() != nil {
		logger.Warn("processing interrupted", slog.String("error", cause.Error()))
		return cause
	}

	logger.Error("failed to process video", slog.String("error", cause.Error()))
	if err := p.videos.UpdateStatus(ctx, video.ID, model.StatusProcessing, model.StatusFailed); err != nil {
		logger.Error("failed to mark video as failed", slog.String("error", err.Error()))
		return errors.Join(cause, err)
	}
	video.Status = model.StatusFailed

	return cause
}

// FailStuck marks videos that have been processing for longer than maxAge
// and are not being worked on by this pipeline as failed.
func (p *Pipeline) FailStuck(ctx context.Context, maxAge time.Duration) (int, error) {
	videos, err := p.videos.FindByStatus(ctx, model.StatusProcessing)
	if err != nil {
		return 0, err
	}

	var count int
	for _, video := range videos {
		if p.IsActive(video.ID) || time.Since(video.CreatedAt) < maxAge {
			continue
		}
		err := p.videos.UpdateStatus(ctx, video.ID, model.StatusProcessing, model.StatusFailed)
		switch {
		case errors.Is(err, storage.ErrStatusConflict):
			continue
		case err != nil:
			return count, err
		}
		p.logger.Warn("marked stuck video as failed", slog.String("video", string(video.YoutubeID)), slog.Duration("age", time.Since(video.CreatedAt)))
		count++
	}

	return count, nil
}
