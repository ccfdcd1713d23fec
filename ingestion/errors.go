package ingestion

import "errors"

var (
	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrCollectionRequired is returned when the target collection name is empty.
	ErrCollectionRequired = errors.New("collection name required")

	// ErrNoSources is returned when Ingest is called without sources.
	ErrNoSources = errors.New("no sources given")
)
