package model

import (
	"context"
	"fmt"
	"sync"
)

// MockModel is a lightweight in-memory Model useful for tests & examples.
//
// Scripted responses (Script / ScriptError) are returned in order, one per
// Generate call. Once the script is exhausted the model falls back to canned
// completions keyed by the last user message (AddResponse), and finally to
// an echo of that message.
type MockModel struct {
	info Info

	mu        sync.Mutex
	script    []scripted
	responses map[string]string
	requests  []Request
}

type scripted struct {
	resp Response
	err  error
}

var _ Model = (*MockModel)(nil)

// NewMockModel constructs a MockModel with basic tool support enabled.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info: Info{
			Name:          name,
			Provider:      provider,
			SupportsTools: true,
		},
		responses: make(map[string]string),
	}
}

// AddResponse registers a deterministic canned completion for an input prompt.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses[prompt] = response
}

// Script appends responses returned by subsequent Generate calls.
func (m *MockModel) Script(responses ...Response) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range responses {
		m.script = append(m.script, scripted{resp: r})
	}

	return m
}

// ScriptError appends a failing Generate call.
func (m *MockModel) ScriptError(err error) *MockModel {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.script = append(m.script, scripted{err: err})

	return m
}

// Requests returns a copy of every request received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Request, len(m.requests))
	copy(out, m.requests)

	return out
}

// Calls returns the number of Generate invocations.
func (m *MockModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.requests)
}

func (m *MockModel) next(req Request) (Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)

	if len(m.script) > 0 {
		s := m.script[0]
		m.script = m.script[1:]

		return s.resp, s.err
	}

	var input string

	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			input = req.Messages[i].Content
			break
		}
	}

	if input == "" {
		return Response{}, fmt.Errorf("no user message provided")
	}

	full := m.responses[input]
	if full == "" {
		full = fmt.Sprintf("Mock response to: %s", input)
	}

	return TextResponse(full), nil
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(respCh)
		defer close(errCh)

		resp, err := m.next(req)
		if err != nil {
			errCh <- err
			return
		}

		if req.Stream {
			for _, r := range resp.Content {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Content: string(r)}:
				}
			}
		}

		if resp.FinishReason == "" {
			resp.FinishReason = "stop"
		}

		respCh <- resp
	}()

	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
