package maestro

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Conductor defaults.
const (
	DefaultMaxRounds      = 10
	DefaultRetryCount     = 3
	DefaultMaxDelegations = 10
)

// ErrorMode controls how a conductor reacts to a failing agent step.
type ErrorMode string

const (
	// ErrorModeFailFast aborts the run on the first error.
	ErrorModeFailFast ErrorMode = "fail-fast"
	// ErrorModeContinue records the error in the trace and proceeds; the
	// final response is computed from whatever succeeded.
	ErrorModeContinue ErrorMode = "continue"
	// ErrorModeRetry retries the failing step up to the retry count, then
	// behaves as fail-fast.
	ErrorModeRetry ErrorMode = "retry"
)

// Strategy names the built-in orchestration policies.
type Strategy string

const (
	StrategySequential   Strategy = "sequential"
	StrategyParallel     Strategy = "parallel"
	StrategyHierarchical Strategy = "hierarchical"
	StrategyDebate       Strategy = "debate"
	StrategyVoting       Strategy = "voting"
	StrategyCustom       Strategy = "custom"
)

// Conductor is an orchestration policy that composes the ensemble's
// agents against a single input and returns the final response text.
type Conductor interface {
	Name() string
	Orchestrate(ctx context.Context, o *Orchestration) (string, error)
}

// OrchestrateFunc is the custom-strategy escape hatch.
type OrchestrateFunc func(ctx context.Context, o *Orchestration) (string, error)

// TransformFunc rewrites a step's output before it becomes the next
// step's input in the sequential strategy.
type TransformFunc func(output string, next AgentRole) string

// --- Orchestration ---

// Orchestration is the per-run substrate handed to a conductor: the
// input, the shared context, the trace, and the accumulated per-agent
// results. RunAgent is the step primitive — it brackets the agent call
// with a trace step, fires the ensemble hooks, and appends the assistant
// text to the shared context under the agent id.
type Orchestration struct {
	ens    *Ensemble
	input  string
	sctx   *SharedContext
	trace  *ExecutionTrace
	logger *slog.Logger

	mu      sync.Mutex
	results map[string]*AgentResult
}

// Input returns the ensemble run's input.
func (o *Orchestration) Input() string { return o.input }

// Context returns the run's shared context.
func (o *Orchestration) Context() *SharedContext { return o.sctx }

// Trace returns the run's execution trace.
func (o *Orchestration) Trace() *ExecutionTrace { return o.trace }

// Roles returns the ensemble's roles in registration order.
func (o *Orchestration) Roles() []AgentRole { return o.ens.Roles() }

// Role looks up a role by id.
func (o *Orchestration) Role(id string) (AgentRole, bool) { return o.ens.Role(id) }

// Logger returns the run's structured logger (never nil).
func (o *Orchestration) Logger() *slog.Logger { return o.logger }

// RunAgent runs the identified agent as one traced step. Custom
// conductors use this as their step primitive.
func (o *Orchestration) RunAgent(ctx context.Context, agentID, input string) (*AgentResult, error) {
	role, ok := o.ens.Role(agentID)
	if !ok {
		return nil, Errf(ErrNotFound, "agent %q not found in ensemble %q", agentID, o.ens.name)
	}
	return o.runRole(ctx, role, input)
}

// Results returns a copy of the per-agent results recorded so far, keyed
// by agent id.
func (o *Orchestration) Results() map[string]*AgentResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[string]*AgentResult, len(o.results))
	for k, v := range o.results {
		out[k] = v
	}
	return out
}

func (o *Orchestration) result(id string) (*AgentResult, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	r, ok := o.results[id]
	return r, ok
}

func (o *Orchestration) setResult(id string, r *AgentResult) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.results[id] = r
}

func (o *Orchestration) runRole(ctx context.Context, role AgentRole, input string) (*AgentResult, error) {
	return o.runRoleAs(ctx, role, role.Agent, input)
}

// runRoleAs is runRole with an explicit agent, letting the hierarchical
// conductor run its rebuilt manager under the manager's role id.
func (o *Orchestration) runRoleAs(ctx context.Context, role AgentRole, agent *Agent, input string) (*AgentResult, error) {
	if err := checkCancel(ctx); err != nil {
		return nil, err
	}

	idx := o.trace.StartStep(role.ID, input)
	hooks := o.ens.hooks
	if hooks.OnBeforeAgent != nil {
		if p := callHook(o.logger, "OnBeforeAgent", func() { hooks.OnBeforeAgent(ctx, role.ID, input) }); p != "" {
			o.trace.SetStepMetadata(idx, "hook_panic", p)
		}
	}

	res, err := agent.Run(ctx, input)
	if err != nil {
		o.trace.FailStep(idx, err)
		if hooks.OnAgentError != nil {
			if p := callHook(o.logger, "OnAgentError", func() { hooks.OnAgentError(ctx, role.ID, err) }); p != "" {
				o.trace.SetStepMetadata(idx, "hook_panic", p)
			}
		}
		return res, err
	}

	o.trace.EndStep(idx, res.Response)
	o.sctx.AppendHistory(AssistantMessage(res.Response))
	o.sctx.AppendAgentMessage(role.ID, AssistantMessage(res.Response))
	o.setResult(role.ID, res)

	if hooks.OnAfterAgent != nil {
		if p := callHook(o.logger, "OnAfterAgent", func() { hooks.OnAfterAgent(ctx, role.ID, res) }); p != "" {
			o.trace.SetStepMetadata(idx, "hook_panic", p)
		}
	}
	return res, nil
}

// aggregateUsage sums usage element-wise over all recorded agent
// results; a missing usage contributes zero.
func aggregateUsage(results map[string]*AgentResult) Usage {
	var total Usage
	for _, r := range results {
		if r != nil {
			total = total.Add(r.Usage)
		}
	}
	return total
}

// --- Conductor base ---

// base carries the configuration shared by every built-in strategy and
// the step helpers that apply it.
type base struct {
	strategy     Strategy
	maxRounds    int
	agentTimeout time.Duration
	errorMode    ErrorMode
	retryCount   int
	logger       *slog.Logger
}

func (b *base) Name() string { return string(b.strategy) }

// step runs one agent step under the conductor's per-agent timeout.
func (b *base) step(ctx context.Context, o *Orchestration, role AgentRole, input string) (*AgentResult, error) {
	actx := ctx
	if b.agentTimeout > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, b.agentTimeout)
		defer cancel()
	}
	res, err := o.runRole(actx, role, input)
	if err != nil && ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
		return res, wrapErr(ErrTimeout, err, fmt.Sprintf("agent %q timed out after %s", role.ID, b.agentTimeout))
	}
	return res, err
}

// stepRetry applies the conductor's error mode to a step: under
// ErrorModeRetry the step is retried up to retryCount times before the
// error propagates. Each attempt is its own trace step. Cancellation is
// never retried.
func (b *base) stepRetry(ctx context.Context, o *Orchestration, role AgentRole, input string) (*AgentResult, error) {
	attempts := 1
	if b.errorMode == ErrorModeRetry {
		attempts += b.retryCount
	}
	var res *AgentResult
	var err error
	for i := range attempts {
		res, err = b.step(ctx, o, role, input)
		if err == nil {
			return res, nil
		}
		if KindOf(err) == ErrCancelled {
			return res, err
		}
		if i < attempts-1 {
			b.logger.Warn("agent step retry", "agent", role.ID, "attempt", i+1, "error", err)
		}
	}
	return res, err
}

// requireRole looks up a role that the configuration demands.
func (b *base) requireRole(o *Orchestration, id string) (AgentRole, error) {
	role, ok := o.ens.Role(id)
	if !ok {
		return AgentRole{}, Errf(ErrNotFound, "agent %q not found in ensemble %q", id, o.ens.name)
	}
	return role, nil
}

// selectRoles resolves an id list against the ensemble, preserving
// registration order when the list is empty (= everyone) and declared
// order otherwise.
func (b *base) selectRoles(o *Orchestration, ids []string) ([]AgentRole, error) {
	if len(ids) == 0 {
		return o.ens.Roles(), nil
	}
	roles := make([]AgentRole, 0, len(ids))
	for _, id := range ids {
		role, err := b.requireRole(o, id)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

// --- Custom conductor ---

type customConductor struct {
	base
	fn OrchestrateFunc
}

func (c *customConductor) Orchestrate(ctx context.Context, o *Orchestration) (string, error) {
	if err := checkCancel(ctx); err != nil {
		return "", err
	}
	return c.fn(ctx, o)
}
