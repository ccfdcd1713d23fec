package openai

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/retry"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder implements ai.Embedder using OpenAI-compatible embedding APIs.
// Every vector it returns is fitted to the configured dimension.
type Embedder struct {
	embedder embeddings.Embedder
	dim      int
	policy   *retry.Policy
	logger   *slog.Logger
}

// newEmbedder is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newEmbedder(config *ai.Config, policy *retry.Policy) (*Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := openai.New(
		openai.WithBaseURL(config.EmbeddingHost),
		openai.WithToken(token(config)),
		openai.WithEmbeddingModel(config.EmbeddingModel),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		dim:      config.Dimension,
		policy:   policy,
		logger:   slog.Default().With("component", "openai-embedder"),
	}, nil
}

// NewEmbedder creates a new embedder using the provided configuration.
//
// Returns ai.Embedder interface to enforce abstraction.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	return newEmbedder(config, policyFor(config))
}

// Dimension returns the fixed vector length.
func (e *Embedder) Dimension() int {
	return e.dim
}

// EmbedText generates a vector embedding for a single text string.
func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	e.logger.Debug("generating embedding for single text", "length", len(text))

	vectors, err := e.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("embedding service returned no vectors")
	}
	return vectors[0], nil
}

// EmbedTexts generates vector embeddings for multiple text strings in a batch.
func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	var raw [][]float32
	err := e.policy.Do(ctx, func() error {
		var err error
		raw, err = e.embedder.EmbedDocuments(ctx, texts)
		return err
	})
	if err != nil {
		e.logger.Error("failed to generate embeddings", "count", len(texts), "err", err)
		return nil, err
	}

	out := make([][]float32, len(raw))
	for i, vec := range raw {
		if len(vec) != e.dim {
			e.logger.Debug("fitting embedding to target dimension", "native", len(vec), "target", e.dim)
		}
		out[i] = ai.FitDimension(vec, e.dim)
	}
	return out, nil
}

func token(config *ai.Config) string {
	// local OpenAI-compatible services accept any token
	if config.APIKey == "" {
		return "none"
	}
	return config.APIKey
}

func policyFor(config *ai.Config) *retry.Policy {
	return retry.NewPolicy(config.MaxRetries, 250*time.Millisecond, config.RequestsPerSecond)
}
