// Package testutil provides test doubles for code that depends on llm.Completer.
package testutil

import (
	"context"
	"sync"

	"github.com/c360studio/nomadplan/llm"
)

// MockCompleter is a thread-safe llm.Completer for tests.
//
// Usage:
//
//	// Fixed responses, returned in sequence
//	mock := &MockCompleter{
//	    Responses: []*llm.Response{
//	        {Content: `{"to":"Montreal"}`, Model: "test-model"},
//	    },
//	}
//
//	// Route by capability
//	mock := &MockCompleter{
//	    Handler: func(_ context.Context, req llm.Request) (*llm.Response, error) {
//	        if req.Capability == "chat" {
//	            return &llm.Response{Content: `{"reply":"ok"}`}, nil
//	        }
//	        return &llm.Response{Content: "{}"}, nil
//	    },
//	}
//
//	// Error response
//	mock := &MockCompleter{Err: errors.New("connection failed")}
type MockCompleter struct {
	Responses []*llm.Response // Responses to return in sequence
	Err       error           // Error to return (takes precedence over Responses)

	// Handler, when set, computes the response and overrides Responses and Err.
	Handler func(ctx context.Context, req llm.Request) (*llm.Response, error)

	mu              sync.Mutex
	capturedContext context.Context
	requests        []llm.Request
	responseIndex   int
}

var _ llm.Completer = (*MockCompleter)(nil)

// Complete records the request and returns the configured result.
func (m *MockCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	m.capturedContext = ctx
	m.requests = append(m.requests, req)
	handler := m.Handler
	m.mu.Unlock()

	if handler != nil {
		return handler(ctx, req)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	if m.responseIndex < len(m.Responses) {
		resp := *m.Responses[m.responseIndex]
		m.responseIndex++
		return &resp, nil
	}
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// GetCapturedContext returns the last context passed to Complete().
func (m *MockCompleter) GetCapturedContext() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturedContext
}

// GetCallCount returns the number of times Complete() was called.
func (m *MockCompleter) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// Requests returns a copy of every request received so far.
func (m *MockCompleter) Requests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]llm.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// LastRequest returns the most recent request and whether there was one.
func (m *MockCompleter) LastRequest() (llm.Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return llm.Request{}, false
	}
	return m.requests[len(m.requests)-1], true
}

// Reset clears recorded calls and rewinds Responses.
func (m *MockCompleter) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.responseIndex = 0
	m.capturedContext = nil
}
