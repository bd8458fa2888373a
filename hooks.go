package maestro

import (
	"context"
	"fmt"
	"log/slog"
)

// AgentHooks are optional lifecycle callbacks fired by the agent loop.
// Hooks may block; a panicking hook is recovered and logged so it never
// masks the operation's outcome.
type AgentHooks struct {
	// OnBeforeGenerate fires before every backend call with the current
	// message list.
	OnBeforeGenerate func(ctx context.Context, messages []Message)
	// OnAfterGenerate fires after every successful backend call.
	OnAfterGenerate func(ctx context.Context, resp GenerateResponse)
	// OnBeforeToolCall fires before a tool executes.
	OnBeforeToolCall func(ctx context.Context, call ToolCall)
	// OnAfterToolCall fires after a tool executes successfully with the
	// serialized result.
	OnAfterToolCall func(ctx context.Context, call ToolCall, result string)
	// OnError fires when the run fails, before the error propagates.
	OnError func(ctx context.Context, err error)
}

// EnsembleHooks are optional callbacks fired around each agent step of an
// ensemble run. The conductor base fires them; each event also starts or
// completes a trace step.
type EnsembleHooks struct {
	OnBeforeAgent func(ctx context.Context, agentID, input string)
	OnAfterAgent  func(ctx context.Context, agentID string, result *AgentResult)
	OnAgentError  func(ctx context.Context, agentID string, err error)
}

// callHook runs fn, recovering panics. Returns the panic rendering, or
// "" when the hook completed. Callers surface non-empty values as trace
// metadata.
func callHook(logger *slog.Logger, name string, fn func()) (panicked string) {
	defer func() {
		if r := recover(); r != nil {
			panicked = fmt.Sprintf("%v", r)
			logger.Warn("hook panicked", "hook", name, "panic", panicked)
		}
	}()
	fn()
	return ""
}
