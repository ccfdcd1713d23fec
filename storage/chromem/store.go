// Package chromem provides a storage.VectorStore backed by chromem-go.
//
// chromem-go normalizes every vector on insert and scores by cosine
// similarity, so only storage.MetricCosine collections are supported.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strconv"
	"sync"

	chromem "github.com/philippgille/chromem-go"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/storage"
)

const (
	metaDimension = "dimension"
	metaMetric    = "metric"
)

// errNoEmbedding is returned by the collection embedding function. Records
// always arrive embedded, so chromem never has to embed content itself.
var errNoEmbedding = errors.New("chromem store: records must carry embeddings")

// Store implements storage.VectorStore using chromem-go.
type Store struct {
	db     *chromem.DB
	logger *slog.Logger

	mu     sync.RWMutex
	dims   map[string]int
	closed bool
}

var _ storage.VectorStore = (*Store)(nil)

// Open creates a store. An empty path keeps everything in memory; otherwise
// collections persist under path, gzip compressed when compress is true.
func Open(path string, compress bool) (storage.VectorStore, error) {
	db := chromem.NewDB()
	if path != "" {
		var err error
		db, err = chromem.NewPersistentDB(path, compress)
		if err != nil {
			return nil, fmt.Errorf("open chromem db: %w", err)
		}
	}
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "chromem"),
		dims:   make(map[string]int),
	}, nil
}

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errNoEmbedding
}

// EnsureCollection creates the collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int, metric storage.Metric) error {
	if name == "" || dim <= 0 {
		return fmt.Errorf("%w: collection name and positive dimension are required", storage.ErrInvalidQuery)
	}
	if metric != "" && metric != storage.MetricCosine {
		return fmt.Errorf("%w: chromem scores by cosine only, got %q", storage.ErrUnsupportedMetric, metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return storage.ErrStorageClosed
	}
	if existing, ok := s.dims[name]; ok {
		if existing != dim {
			return fmt.Errorf("%w: %q has dimension %d", storage.ErrCollectionMismatch, name, existing)
		}
		return nil
	}

	// a persistent db may already hold the collection from an earlier run
	if col := s.db.GetCollection(name, noEmbedding); col != nil {
		if err := checkStoredDimension(ctx, col, dim); err != nil {
			return err
		}
		s.dims[name] = dim
		return nil
	}

	meta := map[string]string{
		metaDimension: strconv.Itoa(dim),
		metaMetric:    string(storage.MetricCosine),
	}
	if _, err := s.db.CreateCollection(name, meta, noEmbedding); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}
	s.dims[name] = dim
	s.logger.Info("created collection", "collection", name, "dimension", dim)
	return nil
}

// checkStoredDimension compares dim against a stored document, since
// chromem keeps collection metadata private.
func checkStoredDimension(ctx context.Context, col *chromem.Collection, dim int) error {
	if col.Count() == 0 {
		return nil
	}
	probe := make([]float32, dim)
	probe[0] = 1
	res, err := col.QueryEmbedding(ctx, probe, 1, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", storage.ErrCollectionMismatch, err)
	}
	if len(res) > 0 && len(res[0].Embedding) != dim {
		return fmt.Errorf("%w: stored vectors have dimension %d", storage.ErrCollectionMismatch, len(res[0].Embedding))
	}
	return nil
}

func (s *Store) collection(name string) (*chromem.Collection, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, 0, storage.ErrStorageClosed
	}
	dim, ok := s.dims[name]
	if !ok {
		return nil, 0, fmt.Errorf("%w: %q", storage.ErrCollectionNotFound, name)
	}
	col := s.db.GetCollection(name, noEmbedding)
	if col == nil {
		return nil, 0, fmt.Errorf("%w: %q", storage.ErrCollectionNotFound, name)
	}
	return col, dim, nil
}

// Upsert adds records, replacing documents with the same ID.
func (s *Store) Upsert(ctx context.Context, name string, records []core.VectorRecord) error {
	col, dim, err := s.collection(name)
	if err != nil {
		return err
	}
	docs := make([]chromem.Document, 0, len(records))
	for i := range records {
		record := records[i]
		if err := core.ValidateVectorRecord(&record, dim); err != nil {
			return fmt.Errorf("record %q: %w", record.Name, err)
		}
		id := record.Id
		if id == 0 {
			id = core.RecordID(record.Name, record.Labels[core.LabelSHA256])
		}
		docs = append(docs, chromem.Document{
			ID:        strconv.FormatUint(uint64(id), 10),
			Metadata:  record.Labels,
			Embedding: record.Embedding,
			Content:   record.Text(),
		})
	}
	if len(docs) == 0 {
		return nil
	}
	return col.AddDocuments(ctx, docs, runtime.NumCPU())
}

// Search returns up to k hits. k is clamped to the collection size, which
// chromem requires.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, filter storage.Filter) ([]storage.Hit, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, fmt.Errorf("%w: k must be positive and vector non-empty", storage.ErrInvalidQuery)
	}
	col, dim, err := s.collection(name)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d, collection %q has %d",
			core.ErrDimensionMismatch, len(vector), name, dim)
	}

	count := col.Count()
	if count == 0 {
		return []storage.Hit{}, nil
	}
	k = min(k, count)

	results, err := col.QueryEmbedding(ctx, vector, k, filter, nil)
	if err != nil {
		return nil, fmt.Errorf("chromem query: %w", err)
	}
	hits := make([]storage.Hit, len(results))
	for i, r := range results {
		hits[i] = storage.Hit{
			ID:       r.ID,
			Score:    r.Similarity,
			Metadata: r.Metadata,
		}
	}
	return hits, nil
}

// Count returns the number of documents in the collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	col, _, err := s.collection(name)
	if err != nil {
		return 0, err
	}
	return col.Count(), nil
}

// Close marks the store closed. Persistent collections are written on
// every insert, so there is nothing to flush.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
