package openai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/docrag/ai"
	"github.com/poiesic/docrag/core"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Synthesizer implements ai.Synthesizer using OpenAI-compatible chat APIs.
type Synthesizer struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	logger      *slog.Logger
}

var _ ai.Synthesizer = (*Synthesizer)(nil)

func newSynthesizer(config *ai.Config) (*Synthesizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.SynthesisHost),
		openai.WithToken(tokenOrNone(config.SynthesisAPIKey)),
		openai.WithModel(config.SynthesisModel),
	)
	if err != nil {
		return nil, err
	}

	return &Synthesizer{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      slog.Default().With("component", "openai-synthesizer"),
	}, nil
}

// NewSynthesizer creates a new synthesizer using the provided configuration.
//
// Returns ai.Synthesizer interface to enforce abstraction.
func NewSynthesizer(config *ai.Config) (ai.Synthesizer, error) {
	return newSynthesizer(config)
}

// Synthesize sends the prompt as a single user message and returns the reply.
// Failures are wrapped in core.ErrSynthesisService and are not retried here.
func (s *Synthesizer) Synthesize(ctx context.Context, prompt string) (string, error) {
	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	opts := []llms.CallOption{llms.WithTemperature(s.temperature)}
	if s.maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(s.maxTokens))
	}

	s.logger.Debug("requesting answer", "prompt_length", len(prompt))
	response, err := s.client.GenerateContent(ctx, content, opts...)
	if err != nil {
		s.logger.Error("failed to generate answer", "err", err)
		return "", fmt.Errorf("%w: %w", core.ErrSynthesisService, err)
	}

	if len(response.Choices) < 1 {
		return "", fmt.Errorf("%w: model returned no choices", core.ErrSynthesisService)
	}

	return cleanAnswer(response.Choices[0].Content), nil
}
