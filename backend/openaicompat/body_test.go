package openaicompat

import (
	"encoding/json"
	"testing"

	"github.com/avencia/maestro"
)

func TestBuildBodyRoles(t *testing.T) {
	req := maestro.GenerateRequest{
		Messages: []maestro.Message{
			maestro.SystemMessage("be terse"),
			maestro.UserMessage("hi"),
			{
				Role:    maestro.RoleAssistant,
				Content: "checking",
				ToolCalls: []maestro.ToolCall{
					{ID: "c1", Name: "lookup", Args: json.RawMessage(`{"q":"x"}`)},
				},
			},
			maestro.ToolResultMessage("c1", `{"hits":3}`),
		},
	}
	body := BuildBody(req, "gpt-test")

	if body.Model != "gpt-test" {
		t.Errorf("Model = %q", body.Model)
	}
	if len(body.Messages) != 4 {
		t.Fatalf("len(Messages) = %d", len(body.Messages))
	}
	if body.Messages[0].Role != "system" || body.Messages[0].Content != "be terse" {
		t.Errorf("system = %+v", body.Messages[0])
	}
	asst := body.Messages[2]
	if len(asst.ToolCalls) != 1 || asst.ToolCalls[0].ID != "c1" || asst.ToolCalls[0].Type != "function" {
		t.Errorf("assistant tool calls = %+v", asst.ToolCalls)
	}
	if asst.ToolCalls[0].Function.Arguments != `{"q":"x"}` {
		t.Errorf("arguments = %q", asst.ToolCalls[0].Function.Arguments)
	}
	toolMsg := body.Messages[3]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "c1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
}

func TestBuildBodyModelOverride(t *testing.T) {
	body := BuildBody(maestro.GenerateRequest{Model: "special"}, "fallback")
	if body.Model != "special" {
		t.Errorf("Model = %q", body.Model)
	}
}

func TestBuildBodyGenerationParams(t *testing.T) {
	temp := 0.2
	body := BuildBody(maestro.GenerateRequest{
		Temperature: &temp,
		MaxTokens:   128,
		Stop:        []string{"END"},
	}, "m")
	if body.Temperature == nil || *body.Temperature != 0.2 {
		t.Error("temperature lost")
	}
	if body.MaxTokens != 128 || len(body.Stop) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestBuildToolDefs(t *testing.T) {
	defs := BuildToolDefs([]maestro.ToolDefinition{
		{Name: "lookup", Description: "find things", Parameters: json.RawMessage(`{"type":"object"}`)},
		{Name: "bare"},
	})
	if len(defs) != 2 {
		t.Fatalf("len = %d", len(defs))
	}
	if defs[0].Type != "function" || defs[0].Function.Name != "lookup" {
		t.Errorf("defs[0] = %+v", defs[0])
	}
	if string(defs[1].Function.Parameters) != `{}` {
		t.Errorf("empty parameters = %q", defs[1].Function.Parameters)
	}
}
