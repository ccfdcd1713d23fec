package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/retry"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Completer implements ai.Completer using OpenAI-compatible chat APIs.
type Completer struct {
	client      llms.Model
	temperature float64
	maxTokens   int
	policy      *retry.Policy
	logger      *slog.Logger
}

func newCompleter(config *ai.Config, policy *retry.Policy) (*Completer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.CompletionHost),
		openai.WithToken(token(config)),
		openai.WithModel(config.CompletionModel),
	)
	if err != nil {
		return nil, err
	}

	return &Completer{
		client:      client,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		policy:      policy,
		logger:      slog.Default().With("component", "openai-completer"),
	}, nil
}

// NewCompleter creates a new chat completion client.
//
// Returns ai.Completer interface to enforce abstraction.
func NewCompleter(config *ai.Config) (ai.Completer, error) {
	return newCompleter(config, policyFor(config))
}

// Complete sends the conversation and returns the first choice's text.
// Request values of zero fall back to the configured defaults.
func (c *Completer) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	opts := []llms.CallOption{llms.WithTemperature(temperature)}
	if maxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxTokens))
	}

	var response *llms.ContentResponse
	err := c.policy.Do(ctx, func() error {
		var err error
		response, err = c.client.GenerateContent(ctx, toMessages(req.Messages), opts...)
		return err
	})
	if err != nil {
		c.logger.Error("completion failed", "messages", len(req.Messages), "err", err)
		return "", fmt.Errorf("%w: %w", core.ErrCompletionService, err)
	}
	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: %w", core.ErrCompletionService, errors.New("no choices returned"))
	}
	return response.Choices[0].Content, nil
}

func toMessages(turns []core.ChatTurn) []llms.MessageContent {
	content := make([]llms.MessageContent, 0, len(turns))
	for _, turn := range turns {
		role := llms.ChatMessageTypeHuman
		switch turn.Role {
		case core.RoleSystem:
			role = llms.ChatMessageTypeSystem
		case core.RoleAssistant:
			role = llms.ChatMessageTypeAI
		}
		content = append(content, llms.MessageContent{
			Role:  role,
			Parts: []llms.ContentPart{llms.TextPart(turn.Content)},
		})
	}
	return content
}
