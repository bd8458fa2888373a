package maestro

import (
	"context"
	"log/slog"
)

// Context keys the ensemble installs before delegating to the conductor.
const (
	ContextKeyInput = "ensemble:input"
	ContextKeyName  = "ensemble:name"
)

// AgentRole is an agent's binding inside an ensemble: the id it is
// addressed by, plus optional human-readable role, priority, and tags.
// Roles are registered at build time and never mutated.
type AgentRole struct {
	ID       string
	Agent    *Agent
	Role     string
	Priority int
	Tags     []string
}

// Ensemble is a named collection of agent roles with a default
// conductor. It is immutable after Build and safe for concurrent runs.
type Ensemble struct {
	name      string
	roles     []AgentRole
	byID      map[string]AgentRole
	conductor Conductor
	hooks     EnsembleHooks
	logger    *slog.Logger
	sink      TraceSink
}

func (e *Ensemble) Name() string { return e.name }

// Roles returns the roles in registration order.
func (e *Ensemble) Roles() []AgentRole {
	return append([]AgentRole(nil), e.roles...)
}

// Role looks up a role by id.
func (e *Ensemble) Role(id string) (AgentRole, bool) {
	r, ok := e.byID[id]
	return r, ok
}

// EnsembleResult is the outcome of one ensemble run. On failure the
// partial result (trace, context, and whatever agents completed) is
// still returned alongside the error.
type EnsembleResult struct {
	// Response is the conductor's final response text.
	Response string
	// Results holds each agent's last successful result, keyed by id.
	Results map[string]*AgentResult
	// Usage is the element-wise sum over all recorded agent results.
	Usage Usage
	// Trace is the run's execution trace.
	Trace *ExecutionTrace
	// Context is the shared context the run mutated.
	Context *SharedContext
}

type runOptions struct {
	conductor Conductor
	context   *SharedContext
}

// RunOption configures a single ensemble run.
type RunOption func(*runOptions)

// WithConductor overrides the ensemble's default conductor for this run.
func WithConductor(c Conductor) RunOption {
	return func(o *runOptions) { o.conductor = c }
}

// WithContext adopts an existing shared context instead of creating one.
func WithContext(c *SharedContext) RunOption {
	return func(o *runOptions) { o.context = c }
}

// Run executes the ensemble against the input under the selected
// conductor. It installs the context-keyed inputs, builds a trace,
// delegates, and saves the completed trace to the configured sink
// best-effort. Errors are sanitized before surfacing.
func (e *Ensemble) Run(ctx context.Context, input string, opts ...RunOption) (*EnsembleResult, error) {
	var ro runOptions
	for _, opt := range opts {
		opt(&ro)
	}

	conductor := ro.conductor
	if conductor == nil {
		conductor = e.conductor
	}
	if conductor == nil {
		return nil, Errf(ErrMissingRequired, "ensemble %q: no conductor configured", e.name)
	}

	sctx := ro.context
	if sctx == nil {
		sctx = NewSharedContext()
	}
	sctx.Set(ContextKeyInput, input)
	sctx.Set(ContextKeyName, e.name)

	trace := NewTrace()
	o := &Orchestration{
		ens:     e,
		input:   input,
		sctx:    sctx,
		trace:   trace,
		logger:  e.logger,
		results: make(map[string]*AgentResult),
	}

	e.logger.Info("ensemble run started", "ensemble", e.name, "conductor", conductor.Name(), "trace", trace.ID())
	response, err := conductor.Orchestrate(ctx, o)
	trace.Complete()
	e.saveTrace(ctx, trace)

	result := &EnsembleResult{
		Response: response,
		Results:  o.Results(),
		Trace:    trace,
		Context:  sctx,
	}
	result.Usage = aggregateUsage(result.Results)

	if err != nil {
		e.logger.Warn("ensemble run failed", "ensemble", e.name, "trace", trace.ID(), "error", err)
		return result, sanitizeErr(err)
	}
	return result, nil
}

// saveTrace hands the completed trace to the sink. Failures are logged,
// never returned; a cancelled run still persists its partial trace.
func (e *Ensemble) saveTrace(ctx context.Context, trace *ExecutionTrace) {
	if e.sink == nil {
		return
	}
	if err := e.sink.SaveTrace(context.WithoutCancel(ctx), trace); err != nil {
		e.logger.Warn("trace sink failed", "trace", trace.ID(), "error", err)
	}
}

// --- Builder ---

// EnsembleBuilder assembles an Ensemble. A name and at least one agent
// are required; duplicate agent ids fail the build.
type EnsembleBuilder struct {
	ensemble Ensemble
	roles    []AgentRole
}

// NewEnsemble starts building an ensemble with the given name.
func NewEnsemble(name string) *EnsembleBuilder {
	return &EnsembleBuilder{ensemble: Ensemble{name: name}}
}

// Agent registers an agent under the given id.
func (b *EnsembleBuilder) Agent(id string, agent *Agent) *EnsembleBuilder {
	b.roles = append(b.roles, AgentRole{ID: id, Agent: agent})
	return b
}

// Role registers an agent with its full role binding.
func (b *EnsembleBuilder) Role(role AgentRole) *EnsembleBuilder {
	b.roles = append(b.roles, role)
	return b
}

// Conductor sets the default conductor.
func (b *EnsembleBuilder) Conductor(c Conductor) *EnsembleBuilder {
	b.ensemble.conductor = c
	return b
}

// Hooks attaches the ensemble hooks.
func (b *EnsembleBuilder) Hooks(h EnsembleHooks) *EnsembleBuilder {
	b.ensemble.hooks = h
	return b
}

// Logger sets the structured logger.
func (b *EnsembleBuilder) Logger(l *slog.Logger) *EnsembleBuilder {
	b.ensemble.logger = l
	return b
}

// TraceSink persists completed traces (see store/sqlite, store/postgres).
func (b *EnsembleBuilder) TraceSink(s TraceSink) *EnsembleBuilder {
	b.ensemble.sink = s
	return b
}

// Build validates and returns the ensemble.
func (b *EnsembleBuilder) Build() (*Ensemble, error) {
	if b.ensemble.name == "" {
		return nil, Errf(ErrMissingRequired, "ensemble name is required")
	}
	if len(b.roles) == 0 {
		return nil, Errf(ErrMissingRequired, "ensemble %q requires at least one agent", b.ensemble.name)
	}

	e := b.ensemble
	e.byID = make(map[string]AgentRole, len(b.roles))
	for _, role := range b.roles {
		if role.ID == "" {
			return nil, Errf(ErrMissingRequired, "ensemble %q: agent role id is required", e.name)
		}
		if role.Agent == nil {
			return nil, Errf(ErrMissingRequired, "ensemble %q: role %q has no agent", e.name, role.ID)
		}
		if _, dup := e.byID[role.ID]; dup {
			return nil, Errf(ErrDuplicateID, "ensemble %q: duplicate agent id %q", e.name, role.ID)
		}
		e.byID[role.ID] = role
		e.roles = append(e.roles, role)
	}
	e.logger = orNop(e.logger)
	return &e, nil
}
