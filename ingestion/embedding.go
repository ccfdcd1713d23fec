package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/machinerag/ai"
	"github.com/poiesic/machinerag/core"
)

// embeddingProcessor generates embeddings for drafts and filters the
// results to the configured dimension.
type embeddingProcessor struct {
	embedder  ai.Embedder
	dimension int
	batchSize int
	logger    *slog.Logger
}

// newEmbeddingProcessor creates a new embedding processor.
func newEmbeddingProcessor(embedder ai.Embedder, dimension, batchSize int, logger *slog.Logger) (*embeddingProcessor, error) {
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	if batchSize < 1 {
		batchSize = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingProcessor{
		embedder:  embedder,
		dimension: dimension,
		batchSize: batchSize,
		logger:    logger.With("processor", "embeddings"),
	}, nil
}

// process embeds the drafts of one source. Invalid records, most often an
// embedding whose length differs from the configured dimension, are dropped
// and counted.
func (ep *embeddingProcessor) process(ctx context.Context, sd sourceDrafts) (records []core.VectorRecord, dropped int, err error) {
	ep.logger.Debug("generating embeddings", "source", sd.origin, "records", len(sd.drafts))

	now := time.Now().UTC()
	for start := 0; start < len(sd.drafts); start += ep.batchSize {
		batch := sd.drafts[start:min(start+ep.batchSize, len(sd.drafts))]
		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.text
		}

		embeddings, err := ep.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, 0, fmt.Errorf("embed %s: %w", sd.origin, err)
		}
		if len(embeddings) != len(batch) {
			return nil, 0, fmt.Errorf("embedding result mismatch. expected %d, received %d", len(batch), len(embeddings))
		}

		for i, d := range batch {
			record := core.VectorRecord{
				Id:          core.RecordID(d.name, d.labels[core.LabelSHA256]),
				Name:        d.name,
				ContentType: contentTypeText,
				Embedding:   embeddings[i],
				Labels:      d.labels,
				InsertedAt:  now,
			}
			if err := core.ValidateVectorRecord(&record, ep.dimension); err != nil {
				dropped++
				ep.logger.Warn("dropping record", "record", d.name, "dimension_mismatch", errors.Is(err, core.ErrDimensionMismatch), "err", err)
				continue
			}
			records = append(records, record)
		}
	}
	return records, dropped, nil
}
