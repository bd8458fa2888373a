package openaicompat

import (
	"encoding/json"

	"github.com/avencia/maestro"
)

// ParseResponse converts an OpenAI-format ChatResponse into a maestro
// GenerateResponse, extracting the assistant message, tool calls, usage,
// and the translated finish reason from choices[0].
func ParseResponse(resp ChatResponse) maestro.GenerateResponse {
	out := maestro.GenerateResponse{
		Message: maestro.Message{Role: maestro.RoleAssistant},
		Finish:  maestro.FinishStop,
	}
	if len(resp.Choices) == 0 {
		return out
	}

	choice := resp.Choices[0]
	if choice.Message != nil {
		out.Message.Content = choice.Message.Content
		out.Message.ToolCalls = ParseToolCalls(choice.Message.ToolCalls)
	}
	out.Finish = translateFinish(choice.FinishReason, len(out.Message.ToolCalls) > 0)

	if resp.Usage != nil {
		total := resp.Usage.TotalTokens
		if total == 0 {
			total = resp.Usage.PromptTokens + resp.Usage.CompletionTokens
		}
		out.Usage = &maestro.Usage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      total,
		}
	}
	return out
}

// ParseToolCalls converts OpenAI tool call requests to maestro ToolCalls.
// OpenAI returns function.arguments as a JSON string; invalid JSON is
// replaced by an empty object so the tool layer can report a clean
// validation error.
func ParseToolCalls(tcs []ToolCallRequest) []maestro.ToolCall {
	if len(tcs) == 0 {
		return nil
	}
	out := make([]maestro.ToolCall, 0, len(tcs))
	for _, tc := range tcs {
		args := json.RawMessage(tc.Function.Arguments)
		if !json.Valid(args) {
			args = json.RawMessage(`{}`)
		}
		out = append(out, maestro.ToolCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return out
}

// translateFinish maps the vendor finish_reason onto the runtime's
// closed set. Anything unrecognized (content filters, vendor-specific
// states) is classified as error.
func translateFinish(reason string, hasToolCalls bool) maestro.FinishReason {
	switch reason {
	case "stop", "":
		if hasToolCalls {
			return maestro.FinishToolCalls
		}
		return maestro.FinishStop
	case "tool_calls", "function_call":
		return maestro.FinishToolCalls
	case "length":
		return maestro.FinishLength
	default:
		return maestro.FinishError
	}
}
