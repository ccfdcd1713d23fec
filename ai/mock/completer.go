package mock

import (
	"context"
	"sync"

	"github.com/poiesic/machinerag/ai"
)

// MockCompleter is a test double for ai.Completer that records every request.
type MockCompleter struct {
	// CompleteFunc is called by Complete if set.
	// If nil, Complete returns Reply.
	CompleteFunc func(ctx context.Context, req ai.CompletionRequest) (string, error)

	// Reply is the canned answer used when CompleteFunc is nil.
	Reply string

	mu       sync.Mutex
	requests []ai.CompletionRequest
}

// NewMockCompleter creates a completer answering with reply.
func NewMockCompleter(reply string) *MockCompleter {
	return &MockCompleter{Reply: reply}
}

// Complete records req and returns the canned reply.
func (m *MockCompleter) Complete(ctx context.Context, req ai.CompletionRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	fn, reply := m.CompleteFunc, m.Reply
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return reply, nil
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of the recorded requests in call order.
func (m *MockCompleter) Requests() []ai.CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ai.CompletionRequest(nil), m.requests...)
}

// Reset clears recorded requests and injected behavior.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.CompleteFunc = nil
}

// NewSystemEchoCompleter creates a completer that replies with the content
// of the first message, which is the system turn when one is present. It
// lets offline runs show the prompt and context a real model would see.
func NewSystemEchoCompleter() *MockCompleter {
	return &MockCompleter{
		CompleteFunc: func(_ context.Context, req ai.CompletionRequest) (string, error) {
			if len(req.Messages) == 0 {
				return "", nil
			}
			return req.Messages[0].Content, nil
		},
	}
}
