package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/ratelimit"
	"ewintr.nl/tutorai/storage"
	"github.com/google/uuid"
)

var (
	ErrInvalidQuestion = errors.New("invalid question")
	ErrVideoNotReady   = errors.New("video is not ready yet")
)

const (
	MaxQuestionLength        = 2000
	DefaultGenerationTimeout = 60 * time.Second
)

type AskRequest struct {
	VideoID   uuid.UUID `json:"video_id"`
	Timestamp float64   `json:"timestamp"`
	Question  string    `json:"question"`
}

func (r AskRequest) Validate() error {
	q := strings.TrimSpace(r.Question)
	switch {
	case r.VideoID == uuid.Nil:
		return fmt.Errorf("%w: video_id is required", ErrInvalidQuestion)
	case q == "":
		return fmt.Errorf("%w: question is required", ErrInvalidQuestion)
	case utf8.RuneCountInString(q) > MaxQuestionLength:
		return fmt.Errorf("%w: question is longer than %d characters", ErrInvalidQuestion, MaxQuestionLength)
	case r.Timestamp < 0 || math.IsNaN(r.Timestamp) || math.IsInf(r.Timestamp, 0):
		return fmt.Errorf("%w: timestamp must be zero or more", ErrInvalidQuestion)
	}
	return nil
}

type ServiceConfig struct {
	QuestionsPerVideoPerHour int
	GenerationTimeout        time.Duration
}

type Service struct {
	videos   storage.VideoRepository
	chunks   storage.ChunkRepository
	qa       storage.QARepository
	answerer *Answerer
	limiter  ratelimit.Limiter
	conf     ServiceConfig
	logger   *slog.Logger
}

func NewService(videos storage.VideoRepository, chunks storage.ChunkRepository, qa storage.QARepository, answerer *Answerer, limiter ratelimit.Limiter, conf ServiceConfig, logger *slog.Logger) *Service {
	if limiter == nil {
		limiter = ratelimit.Noop{}
	}
	if conf.GenerationTimeout <= 0 {
		conf.GenerationTimeout = DefaultGenerationTimeout
	}
	return &Service{
		videos:   videos,
		chunks:   chunks,
		qa:       qa,
		answerer: answerer,
		limiter:  limiter,
		conf:     conf,
		logger:   logger,
	}
}

// prepare validates the request and builds the tutor context for it.
func (s *Service) prepare(ctx context.Context, userID string, req AskRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	video, err := s.videos.FindByID(ctx, req.VideoID)
	if err != nil {
		return "", err
	}
	if video.Status != model.StatusReady {
		return "", fmt.Errorf("%w: status is %s", ErrVideoNotReady, video.Status)
	}

	ok, err := s.limiter.Allow(ctx, ratelimit.AskKey(userID, video.ID.String()), s.conf.QuestionsPerVideoPerHour, time.Hour)
	if err != nil {
		s.logger.Error("could not check question quota", slog.String("video", string(video.YoutubeID)), slog.String("error", err.Error()))
	}
	if err == nil && !ok {
		return "", ratelimit.ErrRateLimited
	}

	chunks, err := s.chunks.FindInWindow(ctx, video.ID, math.Max(0, req.Timestamp-windowBefore), req.Timestamp+windowAfter)
	if err != nil {
		return "", err
	}
	history, err := s.qa.FindByUserVideo(ctx, userID, video.ID)
	if err != nil {
		return "", err
	}

	return BuildContext(ContextInput{
		Title:     video.Title,
		Summary:   video.Summary,
		Chunks:    chunks,
		Timestamp: req.Timestamp,
		History:   history,
	}), nil
}

func (s *Service) Ask(ctx context.Context, userID string, req AskRequest) (*model.QAEntry, error) {
	tutorContext, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(ctx, s.conf.GenerationTimeout)
	defer cancel()
	answer, err := s.answerer.Answer(genCtx, tutorContext, strings.TrimSpace(req.Question))
	if err != nil {
		return nil, err
	}

	return s.save(ctx, userID, req, answer)
}

type saveResult struct {
	entry *model.QAEntry
	err   error
}

type AnswerStream struct {
	Fragments <-chan string
	saved     chan saveResult
}

// Saved blocks until the streamed answer is complete and returns the stored
// entry. When the stream broke off, the part that arrived is stored without
// the error fragment. Nothing is stored when no text arrived at all.
func (a *AnswerStream) Saved() (*model.QAEntry, error) {
	res := <-a.saved
	a.saved <- res
	return res.entry, res.err
}

// AskStream streams the answer. Generation continues when ctx is cancelled
// and the answer is stored once it is complete.
func (s *Service) AskStream(ctx context.Context, userID string, req AskRequest) (*AnswerStream, error) {
	tutorContext, err := s.prepare(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	genCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.conf.GenerationTimeout)
	saved := make(chan saveResult, 1)
	fragments := s.answerer.AnswerStream(genCtx, tutorContext, strings.TrimSpace(req.Question))
	out := Accumulate(ctx, fragments, func(full string) {
		defer cancel()
		answer := strings.TrimSpace(strings.TrimSuffix(full, StreamErrorFragment))
		if answer == "" {
			saved <- saveResult{err: ErrGeneration}
			return
		}
		entry, err := s.save(genCtx, userID, req, answer)
		saved <- saveResult{entry: entry, err: err}
	})

	return &AnswerStream{Fragments: out, saved: saved}, nil
}

func (s *Service) save(ctx context.Context, userID string, req AskRequest, answer string) (*model.QAEntry, error) {
	entry := &model.QAEntry{
		ID:             uuid.New(),
		UserID:         userID,
		VideoID:        req.VideoID,
		VideoTimestamp: req.Timestamp,
		Question:       strings.TrimSpace(req.Question),
		Answer:         answer,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.qa.Append(ctx, entry); err != nil {
		s.logger.Error("could not save answer", slog.String("stage", "qa"), slog.String("video_id", req.VideoID.String()), slog.String("error", err.Error()))
		return nil, err
	}

	return entry, nil
}

func (s *Service) History(ctx context.Context, userID string, videoID uuid.UUID) ([]*model.QAEntry, error) {
	if _, err := s.videos.FindByID(ctx, videoID); err != nil {
		return nil, err
	}

	return s.qa.FindByUserVideo(ctx, userID, videoID)
}
