package tutor

import (
	"context"
	"fmt"

	"ewintr.nl/tutorai/retry"
	"github.com/sashabaranov/go-openai"
)

const (
	answerTemperature = 0.5
	answerMaxTokens   = 800
)

type OpenAIGenerator struct {
	client *openai.Client
	model  string
	retry  retry.Config
}

func NewOpenAIGenerator(client *openai.Client, modelName string) *OpenAIGenerator {
	if modelName == "" {
		modelName = openai.GPT4oMini
	}
	return &OpenAIGenerator{
		client: client,
		model:  modelName,
		retry:  retry.DefaultConfig,
	}
}

func (o *OpenAIGenerator) request(system, user string) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: user,
			},
		},
		Temperature: answerTemperature,
		MaxTokens:   answerMaxTokens,
	}
}

func (o *OpenAIGenerator) Generate(ctx context.Context, system, user string) (string, error) {
	resp, err := retry.Do(ctx, o.retry, func() (openai.ChatCompletionResponse, error) {
		return o.client.CreateChatCompletion(ctx, o.request(system, user))
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion")
	}

	return resp.Choices[len(resp.Choices)-1].Message.Content, nil
}

// GenerateStream only retries opening the stream. Once fragments flow, an
// error ends the stream.
func (o *OpenAIGenerator) GenerateStream(ctx context.Context, system, user string) (FragmentStream, error) {
	req := o.request(system, user)
	req.Stream = true
	stream, err := retry.Do(ctx, o.retry, func() (*openai.ChatCompletionStream, error) {
		return o.client.CreateChatCompletionStream(ctx, req)
	})
	if err != nil {
		return nil, err
	}

	return &openAIStream{stream: stream}, nil
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	resp, err := s.stream.Recv()
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}

	return resp.Choices[0].Delta.Content, nil
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
