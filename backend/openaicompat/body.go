package openaicompat

import (
	"encoding/json"

	"github.com/avencia/maestro"
)

// BuildBody converts a maestro GenerateRequest into an OpenAI-format
// ChatRequest. System messages stay in the messages array as
// role:"system". The request's model falls back to fallbackModel when
// unset.
func BuildBody(req maestro.GenerateRequest, fallbackModel string) ChatRequest {
	msgs := make([]Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch {
		case m.Role == maestro.RoleAssistant && len(m.ToolCalls) > 0:
			var tcs []ToolCallRequest
			for _, tc := range m.ToolCalls {
				tcs = append(tcs, ToolCallRequest{
					ID:   tc.ID,
					Type: "function",
					Function: FunctionCall{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				})
			}
			msgs = append(msgs, Message{
				Role:      "assistant",
				Content:   m.Content,
				ToolCalls: tcs,
			})

		case m.Role == maestro.RoleTool:
			msgs = append(msgs, Message{
				Role:       "tool",
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})

		default:
			msgs = append(msgs, Message{Role: m.Role, Content: m.Content})
		}
	}

	model := req.Model
	if model == "" {
		model = fallbackModel
	}

	return ChatRequest{
		Model:       model,
		Messages:    msgs,
		Tools:       BuildToolDefs(req.Tools),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	}
}

// BuildToolDefs converts maestro tool definitions to the OpenAI format.
func BuildToolDefs(tools []maestro.ToolDefinition) []Tool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]Tool, 0, len(tools))
	for _, t := range tools {
		params := t.Parameters
		if len(params) == 0 {
			params = json.RawMessage(`{}`)
		}
		out = append(out, Tool{
			Type: "function",
			Function: Function{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}
	return out
}
