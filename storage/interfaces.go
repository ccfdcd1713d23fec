package storage

import (
	"context"

	"github.com/poiesic/machinerag/core"
)

// Metric selects how a collection scores similarity.
type Metric string

const (
	// MetricCosine scores by cosine similarity.
	MetricCosine Metric = "cosine"
	// MetricDot scores by raw dot product.
	MetricDot Metric = "dot"
)

// ParseMetric maps a configuration string to a Metric. Empty means cosine.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricCosine:
		return MetricCosine, nil
	case MetricDot:
		return MetricDot, nil
	default:
		return "", ErrUnsupportedMetric
	}
}

// Filter restricts a search to records whose labels equal every entry.
type Filter map[string]string

// Matches reports whether labels satisfy the filter.
func (f Filter) Matches(labels map[string]string) bool {
	for k, v := range f {
		if labels[k] != v {
			return false
		}
	}
	return true
}

// Hit is one search result. Metadata is backend specific; callers coerce it
// to labels.
type Hit struct {
	ID       string
	Score    float32
	Metadata any
}

// VectorStore stores and searches embedded records grouped in collections.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	// Calling it again with the same settings is a no-op; different
	// settings return ErrCollectionMismatch.
	EnsureCollection(ctx context.Context, name string, dim int, metric Metric) error

	// Upsert inserts or replaces records by ID. Records whose embedding
	// length differs from the collection dimension are rejected with an
	// error wrapping core.ErrDimensionMismatch.
	Upsert(ctx context.Context, name string, records []core.VectorRecord) error

	// Search returns up to k hits ordered by descending score.
	// A nil filter matches every record.
	Search(ctx context.Context, name string, vector []float32, k int, filter Filter) ([]Hit, error)

	// Count returns the number of records in the collection.
	Count(ctx context.Context, name string) (int, error)

	// Close releases resources held by the store.
	Close() error
}
