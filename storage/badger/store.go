package badger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/machinerag/core"
	"github.com/poiesic/machinerag/storage"
)

// Store implements storage.VectorStore on BadgerDB. Records are mus-go
// encoded under per-collection key prefixes and searched by a full scan of
// the collection.
type Store struct {
	backend   *Backend
	ownsBackend bool
}

var _ storage.VectorStore = (*Store)(nil)

// Open opens a store at path, or an in-memory store when inMemory is true.
// Closing the store closes the database.
func Open(path string, inMemory bool) (storage.VectorStore, error) {
	backend, err := OpenBackend(path, inMemory)
	if err != nil {
		return nil, err
	}
	return &Store{backend: backend, ownsBackend: true}, nil
}

// NewStore creates a Store over an existing backend. The caller keeps
// ownership of the backend.
func NewStore(backend *Backend) (*Store, error) {
	if backend == nil {
		return nil, errors.New("badger store: backend is required")
	}
	return &Store{backend: backend}, nil
}

// Close closes the database when the store opened it.
func (s *Store) Close() error {
	if !s.ownsBackend || s.backend.IsClosed() {
		return nil
	}
	return s.backend.Close()
}

// EnsureCollection creates the collection if it does not exist.
func (s *Store) EnsureCollection(ctx context.Context, name string, dim int, metric storage.Metric) error {
	if name == "" || dim <= 0 {
		return fmt.Errorf("%w: collection name and positive dimension are required", storage.ErrInvalidQuery)
	}
	if metric == "" {
		metric = storage.MetricCosine
	}
	if _, err := storage.ParseMetric(string(metric)); err != nil {
		return err
	}
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}

	want := storage.CollectionInfo{Name: name, Dimension: dim, Metric: metric}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readCollection(tx, name)
		if err == nil {
			if existing != want {
				return fmt.Errorf("%w: %q has dimension %d and metric %s",
					storage.ErrCollectionMismatch, name, existing.Dimension, existing.Metric)
			}
			return nil
		}
		if !errors.Is(err, storage.ErrCollectionNotFound) {
			return err
		}
		if err := tx.Set(makeCollectionKey(name), storage.MarshalCollectionInfo(want)); err != nil {
			return err
		}
		s.backend.logger.Info("created collection", "collection", name, "dimension", dim, "metric", metric)
		return tx.Commit()
	}, true)
}

// Upsert inserts or replaces records. Records with a zero ID get one
// derived from their name and content hash.
func (s *Store) Upsert(ctx context.Context, name string, records []core.VectorRecord) error {
	if s.backend.IsClosed() {
		return storage.ErrStorageClosed
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		info, err := readCollection(tx, name)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			record := records[i]
			if err := core.ValidateVectorRecord(&record, info.Dimension); err != nil {
				return fmt.Errorf("record %q: %w", record.Name, err)
			}
			if record.Id == 0 {
				record.Id = core.RecordID(record.Name, record.Labels[core.LabelSHA256])
			}
			if record.InsertedAt.IsZero() {
				record.InsertedAt = now
			}
			if err := tx.Set(makeVectorKey(name, record.Id), storage.MarshalVectorRecord(&record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// Search scores every record of the collection against vector and returns
// the k best hits. Hit metadata is the record's label map.
func (s *Store) Search(ctx context.Context, name string, vector []float32, k int, filter storage.Filter) ([]storage.Hit, error) {
	if k <= 0 || len(vector) == 0 {
		return nil, fmt.Errorf("%w: k must be positive and vector non-empty", storage.ErrInvalidQuery)
	}
	if s.backend.IsClosed() {
		return nil, storage.ErrStorageClosed
	}

	var hits []storage.Hit
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		info, err := readCollection(tx, name)
		if err != nil {
			return err
		}
		if len(vector) != info.Dimension {
			return fmt.Errorf("%w: query has %d, collection %q has %d",
				core.ErrDimensionMismatch, len(vector), name, info.Dimension)
		}
		score := scorer(info.Metric, vector)

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(name)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var record *core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = storage.UnmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}
			if len(record.Embedding) == 0 || !filter.Matches(record.Labels) {
				continue
			}
			hits = append(hits, storage.Hit{
				ID:       strconv.FormatUint(uint64(record.Id), 10),
				Score:    score(record.Embedding),
				Metadata: record.Labels,
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by score descending, ties by id for stable results
	slices.SortFunc(hits, func(a, b storage.Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Count returns the number of records in the collection.
func (s *Store) Count(ctx context.Context, name string) (int, error) {
	if s.backend.IsClosed() {
		return 0, storage.ErrStorageClosed
	}
	count := 0
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		if _, err := readCollection(tx, name); err != nil {
			return err
		}
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeVectorPrefix(name)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()
		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			count++
		}
		return nil
	}, false)
	return count, err
}

func readCollection(tx *badger.Txn, name string) (storage.CollectionInfo, error) {
	item, err := tx.Get(makeCollectionKey(name))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return storage.CollectionInfo{}, fmt.Errorf("%w: %q", storage.ErrCollectionNotFound, name)
	}
	if err != nil {
		return storage.CollectionInfo{}, err
	}
	var info storage.CollectionInfo
	err = item.Value(func(val []byte) error {
		info, err = storage.UnmarshalCollectionInfo(val)
		return err
	})
	return info, err
}
