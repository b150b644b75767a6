package tutor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

var ErrGeneration = errors.New("failed to generate answer")

const (
	SystemPrompt = "You are a patient, clear tutor helping a student understand a video. " +
		"Use the provided transcript context to ground your answers. Reference what was being " +
		"explained at the relevant moment. Use simple, learner-friendly language. " +
		"If the transcript doesn't contain enough information to answer, say so honestly. " +
		"Do not make up information that isn't in the transcript context."

	StreamErrorFragment = "\n\n[Error: Failed to generate answer. Please try again.]"
)

// FragmentStream yields text fragments until Recv returns io.EOF.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	GenerateStream(ctx context.Context, system, user string) (FragmentStream, error)
}

type Answerer struct {
	generator Generator
	logger    *slog.Logger
}

func NewAnswerer(generator Generator, logger *slog.Logger) *Answerer {
	return &Answerer{
		generator: generator,
		logger:    logger,
	}
}

func userMessage(contextText, question string) string {
	return fmt.Sprintf("Context:\n%s\n\nStudent's question: %s", contextText, question)
}

func (a *Answerer) Answer(ctx context.Context, contextText, question string) (string, error) {
	answer, err := a.generator.Generate(ctx, SystemPrompt, userMessage(contextText, question))
	if err != nil {
		a.logger.Error("answer generation failed", slog.String("stage", "answer"), slog.String("error", err.Error()))
		return "", fmt.Errorf("%w: %v", ErrGeneration, err)
	}

	return answer, nil
}

// AnswerStream returns the answer as it is generated. The channel is closed
// when the answer is complete. A failure does not abort the stream: it ends
// with StreamErrorFragment instead, so whatever arrived before is kept.
func (a *Answerer) AnswerStream(ctx context.Context, contextText, question string) <-chan string {
	out := make(chan string)

	go func() {
		defer close(out)

		stream, err := a.generator.GenerateStream(ctx, SystemPrompt, userMessage(contextText, question))
		if err != nil {
			a.logger.Error("answer streaming failed", slog.String("stage", "answer"), slog.String("error", err.Error()))
			out <- StreamErrorFragment
			return
		}
		defer stream.Close()

		for {
			fragment, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				a.logger.Error("answer streaming failed", slog.String("stage", "answer"), slog.String("error", err.Error()))
				out <- StreamErrorFragment
				return
			}
			if fragment == "" {
				continue
			}
			out <- fragment
		}
	}()

	return out
}
