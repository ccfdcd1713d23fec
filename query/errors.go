package query

import "errors"

var (
	// ErrClassifierRequired is returned when no intent classifier is provided.
	ErrClassifierRequired = errors.New("intent classifier required")

	// ErrCompleterRequired is returned when no completer is provided.
	ErrCompleterRequired = errors.New("completer required")

	// ErrRetrieverRequired is returned when no retriever is provided.
	ErrRetrieverRequired = errors.New("retriever required")
)
