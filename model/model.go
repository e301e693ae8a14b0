package model

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Request captures one agent turn handed to a model backend. Context carries
// accumulated text from earlier topology stages (previous agent output,
// chat transcript, worker results); it is empty for the first turn.
type Request struct {
	Model        string `json:"model"`
	SystemPrompt string `json:"system_prompt"`
	UserPrompt   string `json:"user_prompt"`
	Context      string `json:"context,omitempty"`
}

// Usage captures token and latency accounting for a single call.
type Usage struct {
	TokensIn  int           `json:"tokens_in"`
	TokensOut int           `json:"tokens_out"`
	Latency   time.Duration `json:"latency"`
}

// Response is the completed output of one model call.
type Response struct {
	Text  string `json:"text"`
	Usage Usage  `json:"usage"`
}

// Invoker is the opaque model-invocation surface the orchestrator drives.
// Implementations own transport, authentication and any retry policy; the
// orchestrator never retries. Invoke must honor ctx cancellation but is
// free to let an in-flight request complete server-side.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (Response, error)
}

// InvokerFunc adapts a plain function to the Invoker interface.
type InvokerFunc func(ctx context.Context, req Request) (Response, error)

// Invoke implements Invoker.
func (f InvokerFunc) Invoke(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// InvocationError wraps a backend failure so callers can distinguish model
// errors from orchestration errors.
type InvocationError struct {
	Model string
	Err   error
}

// Error implements error.
func (e *InvocationError) Error() string {
	return fmt.Sprintf("model %s: invocation failed: %v", e.Model, e.Err)
}

// Unwrap returns the underlying backend error.
func (e *InvocationError) Unwrap() error { return e.Err }

// MockInvoker is a lightweight in-memory Invoker useful for tests & examples.
// Responses are keyed by the request's user prompt; unmatched prompts get a
// generated echo response. Failures and artificial latency can be injected
// per prompt or globally.
type MockInvoker struct {
	mu        sync.Mutex
	responses map[string]string
	failures  map[string]error
	failAll   error
	delay     time.Duration
	calls     []Request
}

// NewMockInvoker constructs an empty MockInvoker.
func NewMockInvoker() *MockInvoker {
	return &MockInvoker{
		responses: make(map[string]string),
		failures:  make(map[string]error),
	}
}

// AddResponse registers a deterministic canned completion for a user prompt.
func (m *MockInvoker) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// FailOn makes every call with the given user prompt return err.
func (m *MockInvoker) FailOn(prompt string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[prompt] = err
}

// FailAll makes every call return err until reset with nil.
func (m *MockInvoker) FailAll(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAll = err
}

// SetDelay injects artificial latency before each call returns, which lets
// timeout behavior be exercised deterministically.
func (m *MockInvoker) SetDelay(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
}

// Calls returns a copy of every request seen so far in call order.
func (m *MockInvoker) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}

// Invoke implements Invoker.
func (m *MockInvoker) Invoke(ctx context.Context, req Request) (Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	delay := m.delay
	failAll := m.failAll
	failure := m.failures[req.UserPrompt]
	text, ok := m.responses[req.UserPrompt]
	m.mu.Unlock()

	start := time.Now()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	if failAll != nil {
		return Response{}, &InvocationError{Model: req.Model, Err: failAll}
	}
	if failure != nil {
		return Response{}, &InvocationError{Model: req.Model, Err: failure}
	}

	if !ok {
		text = fmt.Sprintf("Mock response to: %s", req.UserPrompt)
	}

	return Response{
		Text: text,
		Usage: Usage{
			TokensIn:  (len(req.SystemPrompt) + len(req.UserPrompt) + len(req.Context)) / 4,
			TokensOut: len(text) / 4,
			Latency:   time.Since(start),
		},
	}, nil
}
