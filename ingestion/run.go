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


package ingestion

import "sync"

// RunContext holds the deduplication state of one ingestion run.
// It is safe for concurrent use.
type RunContext struct {
	mu     sync.Mutex
	chunks map[string]struct{}
	pdfs   map[string]struct{}
}

// NewRunContext creates an empty RunContext.
func NewRunContext() *RunContext {
	return &RunContext{
		chunks: make(map[string]struct{}),
		pdfs:   make(map[string]struct{}),
	}
}

// MarkChunk records a chunk content hash. It returns false when the hash
// was already seen in this run.
func (r *RunContext) MarkChunk(hash string) bool {
	return r.mark(r.chunks, hash)
}

// MarkPDF records a PDF byte fingerprint. It returns false when the same
// bytes were already seen in this run.
func (r *RunContext) MarkPDF(fingerprint string) bool {
	return r.mark(r.pdfs, fingerprint)
}

// ForgetChunk releases a chunk hash whose upload failed, so a later source
// with the same content is stored instead of skipped.
func (r *RunContext) ForgetChunk(hash string) {
	r.forget(r.chunks, hash)
}

// ForgetPDF releases a PDF fingerprint whose upload failed.
func (r *RunContext) ForgetPDF(fingerprint string) {
	r.forget(r.pdfs, fingerprint)
}

func (r *RunContext) forget(seen map[string]struct{}, key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(seen, key)
}

func (r *RunContext) mark(seen map[string]struct{}, key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := seen[key]; ok {
		return false
	}
	seen[key] = struct{}{}
	return true
}
