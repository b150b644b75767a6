package transcript

import (
	"context"
	"fmt"
	"strings"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/retry"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

type SpeechToText interface {
	Transcribe(ctx context.Context, path string) ([]model.Segment, error)
}

type Whisper struct {
	client  *openai.Client
	model   string
	limiter *rate.Limiter
	retry   retry.Config
}

// NewWhisper creates a speech-to-text client that sends at most perMinute
// requests per minute. Zero or less means no pacing.
func NewWhisper(client *openai.Client, modelName string, perMinute int) *Whisper {
	if modelName == "" {
		modelName = openai.Whisper1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &Whisper{
		client:  client,
		model:   modelName,
		limiter: rate.NewLimiter(limit, 1),
		retry:   retry.DefaultConfig,
	}
}

func (w *Whisper) Transcribe(ctx context.Context, path string) ([]model.Segment, error) {
	resp, err := retry.Do(ctx, w.retry, func() (openai.AudioResponse, error) {
		if err := w.limiter.Wait(ctx); err != nil {
			return openai.AudioResponse{}, err
		}
		return w.client.CreateTranscription(ctx, openai.AudioRequest{
			Model:                  w.model,
			FilePath:               path,
			Format:                 openai.AudioResponseFormatVerboseJSON,
			TimestampGranularities: []openai.TranscriptionTimestampGranularity{openai.TranscriptionTimestampGranularitySegment},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("transcription failed: %w", err)
	}

	return transcriptionSegments(resp), nil
}

// transcriptionSegments drops segments without text, like ParseJSON3 does
// for caption events.
func transcriptionSegments(resp openai.AudioResponse) []model.Segment {
	segments := make([]model.Segment, 0, len(resp.Segments))
	for _, s := range resp.Segments {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		segments = append(segments, model.Segment{
			StartTime: s.Start,
			EndTime:   s.End,
			Text:      text,
		})
	}

	return segments
}
