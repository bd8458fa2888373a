package maestro

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Run drives the agent's tool-use conversation to a final assistant text
// response, bounded by maxIterations.
//
// Backend errors, cancellation, and input-validation errors propagate
// (after OnError fires and the message is sanitized). Tool errors never
// propagate: they are serialized into tool messages so the model can
// react. On failure the partial result (messages and usage so far) is
// returned alongside the error.
func (a *Agent) Run(ctx context.Context, input string) (*AgentResult, error) {
	res, err := a.run(ctx, input)
	if err != nil {
		if a.hooks.OnError != nil {
			callHook(a.logger, "OnError", func() { a.hooks.OnError(ctx, err) })
		}
		return res, sanitizeErr(err)
	}
	return res, nil
}

func (a *Agent) run(ctx context.Context, input string) (*AgentResult, error) {
	if input == "" {
		return nil, Errf(ErrInvalidInput, "agent %q: input is empty", a.name)
	}
	if len(input) > a.maxInputLength {
		return nil, Errf(ErrInvalidInput, "agent %q: input length %d exceeds limit %d",
			a.name, len(input), a.maxInputLength)
	}

	state := &AgentResult{
		Messages: []Message{SystemMessage(a.systemPrompt), UserMessage(input)},
	}

	done := false
	for !done && state.Iterations < a.maxIterations {
		if err := checkCancel(ctx); err != nil {
			return state, err
		}
		state.Iterations++

		iterCtx := ctx
		var iterSpan Span
		if a.tracer != nil {
			iterCtx, iterSpan = a.tracer.Start(ctx, "agent.loop.iteration",
				StringAttr("agent", a.name),
				IntAttr("iteration", state.Iterations))
		}

		if a.hooks.OnBeforeGenerate != nil {
			msgs := state.Messages
			callHook(a.logger, "OnBeforeGenerate", func() { a.hooks.OnBeforeGenerate(iterCtx, msgs) })
		}

		resp, err := a.backend.Generate(iterCtx, GenerateRequest{
			Messages:    state.Messages,
			Tools:       a.tools.Definitions(),
			Model:       a.model,
			Temperature: a.temperature,
			MaxTokens:   a.maxTokens,
		})
		if err != nil {
			if iterSpan != nil {
				iterSpan.Error(err)
				iterSpan.End()
			}
			if kind := KindOf(err); kind == ErrCancelled || kind == ErrTimeout {
				return state, err
			}
			return state, wrapErr(ErrBackendFailure, err, fmt.Sprintf("agent %q: backend %s", a.name, a.backend.Name()))
		}
		if resp.Usage != nil {
			state.Usage = state.Usage.Add(*resp.Usage)
		}
		state.Messages = append(state.Messages, resp.Message)

		if a.hooks.OnAfterGenerate != nil {
			callHook(a.logger, "OnAfterGenerate", func() { a.hooks.OnAfterGenerate(iterCtx, resp) })
		}

		if resp.Finish == FinishToolCalls && len(resp.Message.ToolCalls) > 0 {
			// Dispatch each requested call in the order returned; the
			// result messages are appended in that same order before the
			// next backend call.
			for _, tc := range resp.Message.ToolCalls {
				state.Messages = append(state.Messages, a.dispatchToolCall(iterCtx, tc))
			}
			if iterSpan != nil {
				iterSpan.SetAttr(IntAttr("tool_count", len(resp.Message.ToolCalls)))
				iterSpan.End()
			}
			continue
		}

		// stop | length | error — the turn is over.
		done = true
		if iterSpan != nil {
			iterSpan.End()
		}
	}

	if !done {
		a.logger.Warn("max iterations reached", "agent", a.name, "iterations", state.Iterations)
	}

	state.Response = lastAssistantContent(state.Messages)
	return state, nil
}

// lastAssistantContent returns the content of the last assistant message,
// or "".
func lastAssistantContent(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleAssistant {
			return messages[i].Content
		}
	}
	return ""
}

// dispatchToolCall resolves and executes one tool call, always producing
// a tool message. Unknown tools, schema violations, executor errors, and
// timeouts are reported back to the model as {"error": ...} content; they
// never abort the loop.
func (a *Agent) dispatchToolCall(ctx context.Context, tc ToolCall) Message {
	tool, ok := a.tools.Get(tc.Name)
	if !ok {
		return ToolResultMessage(tc.ID, toolErrorContent(fmt.Sprintf("Tool '%s' not found", tc.Name)))
	}
	if err := validateToolArgs(tool, tc.Args); err != nil {
		return ToolResultMessage(tc.ID, toolErrorContent(Sanitize(err.Error())))
	}

	if a.hooks.OnBeforeToolCall != nil {
		callHook(a.logger, "OnBeforeToolCall", func() { a.hooks.OnBeforeToolCall(ctx, tc) })
	}

	content, err := a.executeTool(ctx, tool, tc.Args)
	if err != nil {
		a.logger.Warn("tool failed", "agent", a.name, "tool", tc.Name, "error", err)
		return ToolResultMessage(tc.ID, toolErrorContent(Sanitize(err.Error())))
	}

	if a.hooks.OnAfterToolCall != nil {
		callHook(a.logger, "OnAfterToolCall", func() { a.hooks.OnAfterToolCall(ctx, tc, content) })
	}
	return ToolResultMessage(tc.ID, content)
}

// executeTool invokes the tool under the agent's tool timeout and
// stringifies the result: strings pass through, other values are
// JSON-encoded. Panics inside the executor become tool failures.
func (a *Agent) executeTool(ctx context.Context, tool Tool, args json.RawMessage) (string, error) {
	tctx := ctx
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		tctx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}

	type outcome struct {
		value any
		err   error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: Errf(ErrToolFailure, "tool %q panic: %v", tool.Name, r)}
			}
		}()
		v, err := tool.Execute(tctx, args)
		ch <- outcome{value: v, err: err}
	}()

	select {
	case <-tctx.Done():
		if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", Errf(ErrTimeout, "tool %q timed out after %s", tool.Name, a.toolTimeout)
		}
		return "", cancelErr(ctx.Err())
	case o := <-ch:
		if o.err != nil {
			return "", o.err
		}
		return stringifyToolResult(o.value)
	}
}

// stringifyToolResult converts a tool return value to message content.
func stringifyToolResult(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", Errf(ErrToolFailure, "tool result not serializable: %v", err)
	}
	return string(b), nil
}

// toolErrorContent serializes an error message as a JSON tool result.
func toolErrorContent(msg string) string {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return string(b)
}
