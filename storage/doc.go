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
// Package storage defines the vector store abstraction used by machinerag.
//
// A VectorStore holds named collections of fixed-dimension records. The
// ingestion pipeline creates collections and upserts records into them; the
// semantic retriever searches them. Two backends are provided:
//
//   - storage/badger: the default store, persistent or in-memory, scoring by
//     brute-force scan over mus-go encoded records
//   - storage/chromem: an alternative store backed by chromem-go
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.VectorStore interface so
// callers never couple to a particular backend:
//
//	store, err := badger.Open("/var/lib/machinerag", false)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All VectorStore implementations must be safe for concurrent use.
//
// # Context Support
//
// Every operation accepts a context.Context and stops scanning once it is
// cancelled.
package storage
