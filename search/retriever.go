package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/storage"
)

// DefaultTopK is the number of hits requested from the vector store.
const DefaultTopK = 5

// Retriever embeds the user side of a conversation and turns the nearest
// stored records into numbered grounding sources.
type Retriever struct {
	store      storage.VectorStore
	embedder   ai.Embedder
	collection string
	topK       int
	filter     storage.Filter
	logger     *slog.Logger
}

// Option configures a Retriever.
type Option func(*Retriever) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Retriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// WithTopK sets the number of hits requested per query.
func WithTopK(k int) Option {
	return func(r *Retriever) error {
		if k < 1 {
			return fmt.Errorf("top-k must be at least 1, got %d", k)
		}
		r.topK = k
		return nil
	}
}

// WithFilter restricts hits to records whose labels match every pair.
func WithFilter(filter storage.Filter) Option {
	return func(r *Retriever) error {
		r.filter = filter
		return nil
	}
}

// NewRetriever creates a retriever over the named collection.
func NewRetriever(store storage.VectorStore, embedder ai.Embedder, collection string, opts ...Option) (*Retriever, error) {
	if store == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if collection == "" {
		return nil, ErrCollectionRequired
	}

	r := &Retriever{
		store:      store,
		embedder:   embedder,
		collection: collection,
		topK:       DefaultTopK,
		logger:     slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Retrieve returns the sources for turns in vector store order.
func (r *Retriever) Retrieve(ctx context.Context, turns []core.ChatTurn) ([]core.Source, error) {
	return r.RetrieveWithMonitor(ctx, turns, nil)
}

// RetrieveWithMonitor is Retrieve with callbacks at each stage.
// A conversation without user text retrieves nothing.
func (r *Retriever) RetrieveWithMonitor(ctx context.Context, turns []core.ChatTurn, monitor RetrievalMonitor) ([]core.Source, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	query := UserQuery(turns)
	monitor.Start(query)
	if query == "" {
		monitor.Finish(nil)
		return nil, nil
	}

	embedding, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	monitor.AfterEmbedding(len(embedding))

	hits, err := r.store.Search(ctx, r.collection, embedding, r.topK, r.filter)
	if err != nil {
		r.logger.Error("error querying for similar records", "collection", r.collection, "err", err)
		return nil, fmt.Errorf("searching %s: %w", r.collection, err)
	}
	monitor.AfterSearch(hits)

	sources := make([]core.Source, 0, len(hits))
	for _, hit := range hits {
		labels := CoerceLabels(hit.Metadata)
		text := labels[core.LabelText]
		if text == "" {
			r.logger.Debug("skipping hit without text", "id", hit.ID)
			continue
		}
		sources = append(sources, core.Source{
			Marker: fmt.Sprintf("[S%d]", len(sources)+1),
			ID:     hit.ID,
			Score:  hit.Score,
			Text:   text,
			Labels: labels,
		})
	}
	monitor.Finish(sources)

	return sources, nil
}
