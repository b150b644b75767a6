package transcript

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"ewintr.nl/tutorai/model"
	"golang.org/x/sync/semaphore"
)

var (
	ErrNoTranscript  = errors.New("no transcript could be produced")
	ErrAudioTooLarge = errors.New("video too long for this pipeline")
)

const (
	DefaultMaxAudioBytes        = 25 * 1024 * 1024
	DefaultTranscriptionTimeout = 10 * time.Minute
	DefaultCaptionLanguage      = "en"
)

type Result struct {
	Provenance model.Provenance
	Chunks     []model.Chunk
}

type AcquirerConfig struct {
	CaptionLanguage             string
	MergeWindow                 time.Duration
	MaxAudioBytes               int64
	MaxConcurrentTranscriptions int64
	TranscriptionTimeout        time.Duration
}

type Acquirer struct {
	captions CaptionSource
	audio    AudioSource
	stt      SpeechToText
	sem      *semaphore.Weighted
	conf     AcquirerConfig
	logger   *slog.Logger
}

func NewAcquirer(captions CaptionSource, audio AudioSource, stt SpeechToText, conf AcquirerConfig, logger *slog.Logger) *Acquirer {
	if conf.CaptionLanguage == "" {
		conf.CaptionLanguage = DefaultCaptionLanguage
	}
	if conf.MergeWindow <= 0 {
		conf.MergeWindow = DefaultMergeWindow
	}
	if conf.MaxAudioBytes <= 0 {
		conf.MaxAudioBytes = DefaultMaxAudioBytes
	}
	if conf.MaxConcurrentTranscriptions <= 0 {
		conf.MaxConcurrentTranscriptions = 2
	}
	if conf.TranscriptionTimeout <= 0 {
		conf.TranscriptionTimeout = DefaultTranscriptionTimeout
	}

	return &Acquirer{
		captions: captions,
		audio:    audio,
		stt:      stt,
		sem:      semaphore.NewWeighted(conf.MaxConcurrentTranscriptions),
		conf:     conf,
		logger:   logger,
	}
}

// Acquire tries the free captions first and only falls back to paid
// speech-to-text when there are none. The strategies never run in parallel.
func (a *Acquirer) Acquire(ctx context.Context, ytID model.YoutubeVideoID) (Result, error) {
	logger := a.logger.With(slog.String("video", string(ytID)))

	segments, err := a.captions.FetchCaptions(ctx, ytID, a.conf.CaptionLanguage)
	switch {
	case err != nil:
		logger.Warn("could not fetch captions", slog.String("error", err.Error()))
	case len(segments) > 0:
		chunks := Merge(segments, a.conf.MergeWindow)
		logger.Info("got captions", slog.Int("segments", len(segments)), slog.Int("chunks", len(chunks)))
		return Result{Provenance: model.ProvenanceCaptions, Chunks: chunks}, nil
	default:
		logger.Info("no captions found")
	}
	if ctx.Err() != nil {
		return Result{}, ctx.Err()
	}

	logger.Info("falling back to speech-to-text")
	segments, err = a.transcribe(ctx, ytID, logger)
	if err != nil {
		return Result{}, err
	}
	if len(segments) == 0 {
		return Result{}, ErrNoTranscript
	}
	chunks := Merge(segments, a.conf.MergeWindow)
	logger.Info("transcribed audio", slog.Int("segments", len(segments)), slog.Int("chunks", len(chunks)))

	return Result{Provenance: model.ProvenanceSpeechToText, Chunks: chunks}, nil
}

func (a *Acquirer) transcribe(ctx context.Context, ytID model.YoutubeVideoID, logger *slog.Logger) ([]model.Segment, error) {
	if err := a.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer a.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, a.conf.TranscriptionTimeout)
	defer cancel()

	path, cleanup, err := a.audio.FetchAudio(ctx, ytID)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > a.conf.MaxAudioBytes {
		return nil, fmt.Errorf("%w: audio is %.1f MB, the limit is %.1f MB", ErrAudioTooLarge, megabytes(info.Size()), megabytes(a.conf.MaxAudioBytes))
	}

	logger.Info("transcribing audio", slog.String("size", fmt.Sprintf("%.1fMB", megabytes(info.Size()))))
	return a.stt.Transcribe(ctx, path)
}

func megabytes(n int64) float64 {
	return float64(n) / (1024 * 1024)
}
