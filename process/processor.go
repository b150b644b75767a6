package process

import (
	"context"
	"log/slog"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/storage"
	"ewintr.nl/tutorai/transcript"
)

// Job carries a video through the stages. Each stage fills in its part and
// Processors.Next picks the first stage whose part is still missing.
type Job struct {
	Video      *model.Video
	Transcript *transcript.Result
	Stored     bool
	Summary    *model.Summary
}

type VideoProcessor interface {
	Name() string
	Do(ctx context.Context, job *Job) error
}

type TranscriptAcquirer interface {
	Acquire(ctx context.Context, ytID model.YoutubeVideoID) (transcript.Result, error)
}

type Processors struct {
	acquire   VideoProcessor
	store     VideoProcessor
	summarize VideoProcessor
}

func NewProcessors(acquirer TranscriptAcquirer, chunks storage.ChunkRepository, summarizer Summarizer, logger *slog.Logger) *Processors {
	return &Processors{
		acquire:   &acquireStage{acquirer: acquirer},
		store:     &storeStage{chunks: chunks},
		summarize: &summarizeStage{summarizer: summarizer, logger: logger},
	}
}

func (p *Processors) Next(job *Job) VideoProcessor {
	switch {
	case job.Transcript == nil:
		return p.acquire
	case !job.Stored:
		return p.store
	case job.Summary == nil:
		return p.summarize
	}

	return nil
}

type acquireStage struct {
	acquirer TranscriptAcquirer
}

func (s *acquireStage) Name() string { return "acquire" }

func (s *acquireStage) Do(ctx context.Context, job *Job) error {
	res, err := s.acquirer.Acquire(ctx, job.Video.YoutubeID)
	if err != nil {
		return err
	}
	if len(res.Chunks) == 0 {
		return transcript.ErrNoTranscript
	}
	for i := range res.Chunks {
		res.Chunks[i].VideoID = job.Video.ID
	}
	job.Transcript = &res

	return nil
}

// storeStage replaces whatever an earlier, interrupted run of the same video
// stored.
type storeStage struct {
	chunks storage.ChunkRepository
}

func (s *storeStage) Name() string { return "store" }

func (s *storeStage) Do(ctx context.Context, job *Job) error {
	if err := s.chunks.ReplaceBatch(ctx, job.Video.ID, job.Transcript.Chunks); err != nil {
		return err
	}
	job.Stored = true

	return nil
}

// summarizeStage never fails the job. Without a summary the video can still
// be used for questions, so it falls back to a placeholder.
type summarizeStage struct {
	summarizer Summarizer
	logger     *slog.Logger
}

func (s *summarizeStage) Name() string { return "summarize" }

func (s *summarizeStage) Do(ctx context.Context, job *Job) error {
	summary, err := s.summarizer.Summarize(ctx, job.Transcript.Chunks)
	if err != nil {
		s.logger.Error("failed to generate summary, using placeholder", slog.String("video", string(job.Video.YoutubeID)), slog.String("stage", s.Name()), slog.String("error", err.Error()))
		summary = model.PlaceholderSummary()
	}
	job.Summary = &summary

	return nil
}
