package ai

import (
	"context"

	"github.com/poiesic/machinerag/core"
)

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector has exactly the configured dimension.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the fixed length of every returned vector.
	Dimension() int
}

// Completer sends a conversation to a chat completion service and returns
// the reply text. Implementations must be thread-safe for concurrent use.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// IntentClassifier decides whether a user message asks for live chart data,
// live alerts, or neither.
//
// A classifier that cannot interpret the service output returns a NoIntent
// carrying core.ReasonParseFailure together with an error wrapping
// core.ErrClassificationParse. Callers route on the Intent and log the error.
type IntentClassifier interface {
	Classify(ctx context.Context, message string) (core.Intent, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages the Embedder, Completer and IntentClassifier,
// ensuring they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	Embedder() Embedder

	// Completer returns the chat completion service.
	Completer() Completer

	// IntentClassifier returns the structured intent classifier.
	IntentClassifier() IntentClassifier

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
