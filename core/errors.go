// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import "errors"

// Pipeline error taxonomy. Ingestion errors are contained per document and
// query errors degrade gracefully, except ErrCompletionService.
var (
	// ErrSourceParse indicates a malformed input document.
	ErrSourceParse = errors.New("source parse error")

	// ErrReferenceFetch indicates an embedded document reference could not be fetched.
	ErrReferenceFetch = errors.New("reference fetch error")

	// ErrDimensionMismatch indicates an embedding has an unexpected length.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrClassificationParse indicates structured classifier output was not parseable.
	ErrClassificationParse = errors.New("classification parse error")

	// ErrResolverUnavailable indicates a live data store could not be reached.
	ErrResolverUnavailable = errors.New("resolver unavailable")

	// ErrCompletionService indicates the final synthesis call failed.
	ErrCompletionService = errors.New("completion service error")
)

// Domain validation errors
var (
	// ErrInvalidVectorRecord indicates a VectorRecord failed validation.
	ErrInvalidVectorRecord = errors.New("invalid vector record")

	// ErrInvalidChatTurn indicates a ChatTurn failed validation.
	ErrInvalidChatTurn = errors.New("invalid chat turn")

	// ErrEmptyContent indicates the content field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyEmbedding indicates a record has no embedding.
	ErrEmptyEmbedding = errors.New("embedding cannot be empty")

	// ErrInvalidRole indicates an invalid Role value.
	ErrInvalidRole = errors.New("invalid role")
)
