package process

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ewintr.nl/tutorai/model"
	"ewintr.nl/tutorai/retry"
	"ewintr.nl/tutorai/tutor"
	"github.com/sashabaranov/go-openai"
)

const (
	summaryTranscriptLimit = 900.0
	summaryTemperature     = 0.3
	summaryMaxTokens       = 500
)

const summarizePrompt = `Analyze the following video transcript and produce a structured summary in JSON format.

The JSON should have these exact fields:
- "topic": A single sentence describing the main topic
- "level": One of "beginner", "intermediate", or "advanced"
- "key_concepts": An array of 5-10 key concepts/ideas covered
- "paragraph": A 3-5 sentence summary of the video content

Transcript:
%s

Respond with ONLY valid JSON, no other text.`

type Summarizer interface {
	Summarize(ctx context.Context, chunks []model.Chunk) (model.Summary, error)
}

type OpenAISummarizer struct {
	client *openai.Client
	model  string
	retry  retry.Config
}

func NewOpenAISummarizer(client *openai.Client, modelName string) *OpenAISummarizer {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAISummarizer{
		client: client,
		model:  modelName,
		retry:  retry.DefaultConfig,
	}
}

func (sum *OpenAISummarizer) Summarize(ctx context.Context, chunks []model.Chunk) (model.Summary, error) {
	resp, err := retry.Do(ctx, sum.retry, func() (openai.ChatCompletionResponse, error) {
		return sum.client.CreateChatCompletion(
			ctx,
			openai.ChatCompletionRequest{
				Model: sum.model,
				Messages: []openai.ChatCompletionMessage{
					{
						Role:    openai.ChatMessageRoleSystem,
						Content: "You are a helpful assistant that analyzes educational video transcripts.",
					},
					{
						Role:    openai.ChatMessageRoleUser,
						Content: fmt.Sprintf(summarizePrompt, summaryTranscript(chunks)),
					},
				},
				Temperature: summaryTemperature,
				MaxTokens:   summaryMaxTokens,
				ResponseFormat: &openai.ChatCompletionResponseFormat{
					Type: openai.ChatCompletionResponseFormatTypeJSONObject,
				},
			})
	})
	if err != nil {
		return model.Summary{}, fmt.Errorf("failed to fetch summary: %w", err)
	}
	if len(resp.Choices) == 0 {
		return model.Summary{}, fmt.Errorf("failed to fetch summary: no choices")
	}

	return parseSummary(resp.Choices[len(resp.Choices)-1].Message.Content)
}

// summaryTranscript renders the first fifteen minutes of the transcript, which
// is enough to summarize long videos.
func summaryTranscript(chunks []model.Chunk) string {
	var b strings.Builder
	for _, c := range chunks {
		if c.StartTime > summaryTranscriptLimit {
			b.WriteString("\n[... transcript continues ...]")
			break
		}
		fmt.Fprintf(&b, "[%s-%s] %s\n", tutor.FormatTimestamp(c.StartTime), tutor.FormatTimestamp(c.EndTime), c.Text)
	}

	return b.String()
}

func parseSummary(content string) (model.Summary, error) {
	var s model.Summary
	if err := json.Unmarshal([]byte(content), &s); err != nil {
		return model.Summary{}, fmt.Errorf("could not parse summary: %w", err)
	}
	if s.Topic == "" && s.Paragraph == "" {
		return model.Summary{}, fmt.Errorf("summary is empty")
	}
	if s.KeyConcepts == nil {
		s.KeyConcepts = []string{}
	}

	return s, nil
}
