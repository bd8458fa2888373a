package maestro

import (
	"context"
	"strings"
	"sync"
	"time"
)

// mockBackend replays a scripted list of responses. When the script is
// exhausted, the last response repeats. Safe for concurrent use.
type mockBackend struct {
	name      string
	responses []GenerateResponse
	err       error
	delay     time.Duration
	onGen     func(req GenerateRequest)

	mu    sync.Mutex
	calls int
}

func (m *mockBackend) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *mockBackend) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	m.mu.Lock()
	idx := m.calls
	m.calls++
	m.mu.Unlock()

	if m.onGen != nil {
		m.onGen(req)
	}
	if m.delay > 0 {
		select {
		case <-ctx.Done():
			return GenerateResponse{}, ctx.Err()
		case <-time.After(m.delay):
		}
	}
	if m.err != nil {
		return GenerateResponse{}, m.err
	}
	if len(m.responses) == 0 {
		return GenerateResponse{Message: AssistantMessage("ok"), Finish: FinishStop}, nil
	}
	if idx >= len(m.responses) {
		idx = len(m.responses) - 1
	}
	return m.responses[idx], nil
}

func (m *mockBackend) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// stopResponse is a plain final assistant turn.
func stopResponse(content string, usage ...Usage) GenerateResponse {
	r := GenerateResponse{Message: AssistantMessage(content), Finish: FinishStop}
	if len(usage) > 0 {
		u := usage[0]
		r.Usage = &u
	}
	return r
}

// toolCallResponse is an assistant turn requesting the given tool calls.
func toolCallResponse(calls ...ToolCall) GenerateResponse {
	return GenerateResponse{
		Message: Message{Role: RoleAssistant, ToolCalls: calls},
		Finish:  FinishToolCalls,
	}
}

// echoBackend answers every request with "<prefix>: <last user content>".
type echoBackend struct {
	prefix string
	delay  time.Duration
}

func (e *echoBackend) Name() string { return "echo" }

func (e *echoBackend) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	if e.delay > 0 {
		select {
		case <-ctx.Done():
			return GenerateResponse{}, ctx.Err()
		case <-time.After(e.delay):
		}
	}
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Role == RoleUser {
			last = req.Messages[i].Content
			break
		}
	}
	return stopResponse(e.prefix + ": " + last), nil
}

// mustAgent builds an agent over the given backend, failing the test
// helper's caller on error.
func mustAgent(name string, be Backend, opts ...func(*AgentBuilder) *AgentBuilder) *Agent {
	b := NewAgent(name).SystemPrompt("You are " + name + ".").Backend(be)
	for _, opt := range opts {
		b = opt(b)
	}
	a, err := b.Build()
	if err != nil {
		panic(err)
	}
	return a
}

// stopAgent is an agent whose backend always answers content.
func stopAgent(name, content string) *Agent {
	return mustAgent(name, &mockBackend{responses: []GenerateResponse{stopResponse(content)}})
}

// findToolMessage returns the first tool message with the given call id.
func findToolMessage(messages []Message, callID string) (Message, bool) {
	for _, m := range messages {
		if m.Role == RoleTool && m.ToolCallID == callID {
			return m, true
		}
	}
	return Message{}, false
}

// toolCallPreceding reports whether a tool message's call id appears in
// an earlier assistant message's tool calls.
func toolCallPreceding(messages []Message, idx int) bool {
	id := messages[idx].ToolCallID
	for i := 0; i < idx; i++ {
		if messages[i].Role != RoleAssistant {
			continue
		}
		for _, tc := range messages[i].ToolCalls {
			if tc.ID == id {
				return true
			}
		}
	}
	return false
}

// containsAll reports whether s contains every substring.
func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
