package maestro

import (
	"log/slog"
	"time"
)

// Defaults for agent construction.
const (
	DefaultMaxIterations  = 10
	DefaultMaxInputLength = 100_000
	DefaultToolTimeout    = 30 * time.Second
)

// Agent is a named worker bound to a backend, a system prompt, and a tool
// set, driven by the bounded reasoning loop in Run. Agents are immutable
// after Build and safe for concurrent runs.
type Agent struct {
	name           string
	description    string
	systemPrompt   string
	backend        Backend
	model          string
	tools          *ToolSet
	temperature    *float64
	maxTokens      int
	maxIterations  int
	maxInputLength int
	toolTimeout    time.Duration
	hooks          AgentHooks
	logger         *slog.Logger
	tracer         Tracer
}

func (a *Agent) Name() string        { return a.name }
func (a *Agent) Description() string { return a.description }

// AgentResult is the outcome of one agent run.
type AgentResult struct {
	// Response is the last assistant message's content, or "".
	Response string
	// Messages is the full conversation, starting with [system, user].
	Messages []Message
	// Iterations is the number of backend calls made (1..maxIterations).
	Iterations int
	// Usage is the aggregate token usage across all backend calls.
	Usage Usage
}

// withTools returns a copy of the agent with extra tools appended to its
// tool set. Used by the hierarchical conductor to synthesize the
// manager-runtime agent without mutating the registered one.
func (a *Agent) withTools(extra ...Tool) (*Agent, error) {
	clone := *a
	tools := a.tools.clone()
	for _, t := range extra {
		if err := tools.Add(t); err != nil {
			return nil, err
		}
	}
	clone.tools = tools
	return &clone, nil
}

// --- Builder ---

// AgentBuilder assembles an Agent. Name, SystemPrompt, and Backend are
// required; Build fails with a missing-required error otherwise.
type AgentBuilder struct {
	agent Agent
	tools []Tool
}

// NewAgent starts building an agent with the given name.
func NewAgent(name string) *AgentBuilder {
	return &AgentBuilder{agent: Agent{
		name:           name,
		maxIterations:  DefaultMaxIterations,
		maxInputLength: DefaultMaxInputLength,
		toolTimeout:    DefaultToolTimeout,
	}}
}

// Description sets the human-readable description. Conductors embed it in
// worker directories and handoff target listings.
func (b *AgentBuilder) Description(d string) *AgentBuilder {
	b.agent.description = d
	return b
}

// SystemPrompt sets the system prompt. Required and non-empty.
func (b *AgentBuilder) SystemPrompt(p string) *AgentBuilder {
	b.agent.systemPrompt = p
	return b
}

// Backend binds the LLM backend. Required.
func (b *AgentBuilder) Backend(be Backend) *AgentBuilder {
	b.agent.backend = be
	return b
}

// Model sets the model identifier passed through to the backend.
func (b *AgentBuilder) Model(m string) *AgentBuilder {
	b.agent.model = m
	return b
}

// Tools registers the agent's tools. Names must be unique.
func (b *AgentBuilder) Tools(tools ...Tool) *AgentBuilder {
	b.tools = append(b.tools, tools...)
	return b
}

// Temperature sets the sampling temperature.
func (b *AgentBuilder) Temperature(t float64) *AgentBuilder {
	b.agent.temperature = &t
	return b
}

// MaxTokens caps the response length per backend call.
func (b *AgentBuilder) MaxTokens(n int) *AgentBuilder {
	b.agent.maxTokens = n
	return b
}

// MaxIterations bounds the tool-calling loop. Default 10.
func (b *AgentBuilder) MaxIterations(n int) *AgentBuilder {
	b.agent.maxIterations = n
	return b
}

// MaxInputLength bounds Run's input in characters. Default 100000.
func (b *AgentBuilder) MaxInputLength(n int) *AgentBuilder {
	b.agent.maxInputLength = n
	return b
}

// ToolTimeout bounds a single tool invocation. Default 30s.
func (b *AgentBuilder) ToolTimeout(d time.Duration) *AgentBuilder {
	b.agent.toolTimeout = d
	return b
}

// Hooks attaches the agent lifecycle hooks.
func (b *AgentBuilder) Hooks(h AgentHooks) *AgentBuilder {
	b.agent.hooks = h
	return b
}

// Logger sets the structured logger.
func (b *AgentBuilder) Logger(l *slog.Logger) *AgentBuilder {
	b.agent.logger = l
	return b
}

// Tracer enables span creation for the loop (see package observer).
func (b *AgentBuilder) Tracer(t Tracer) *AgentBuilder {
	b.agent.tracer = t
	return b
}

// Build validates and returns the agent.
func (b *AgentBuilder) Build() (*Agent, error) {
	if b.agent.name == "" {
		return nil, Errf(ErrMissingRequired, "agent name is required")
	}
	if b.agent.systemPrompt == "" {
		return nil, Errf(ErrMissingRequired, "agent %q: system prompt is required", b.agent.name)
	}
	if b.agent.backend == nil {
		return nil, Errf(ErrMissingRequired, "agent %q: backend is required", b.agent.name)
	}
	tools, err := NewToolSet(b.tools...)
	if err != nil {
		return nil, err
	}
	a := b.agent
	a.tools = tools
	a.logger = orNop(a.logger)
	if a.maxIterations <= 0 {
		a.maxIterations = DefaultMaxIterations
	}
	if a.maxInputLength <= 0 {
		a.maxInputLength = DefaultMaxInputLength
	}
	return &a, nil
}
