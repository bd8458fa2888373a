package maestro

import "encoding/json"

// --- Conversation protocol types ---

// Message roles. Every Message carries exactly one of these.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is one entry in an agent's conversation. Four variants exist,
// discriminated by Role:
//
//   - system: Content only.
//   - user: Content only.
//   - assistant: Content (may be empty) and optionally ToolCalls.
//   - tool: ToolCallID plus Content (the serialized tool result).
//
// Invariant: a tool message's ToolCallID always refers to a tool call in a
// preceding assistant message of the same conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Args json.RawMessage `json:"args"`
}

// Usage is the token usage triple for one or more LLM calls.
// TotalTokens is always PromptTokens + CompletionTokens.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Add returns the element-wise sum of u and o.
func (u Usage) Add(o Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens + o.PromptTokens,
		CompletionTokens: u.CompletionTokens + o.CompletionTokens,
		TotalTokens:      u.TotalTokens + o.TotalTokens,
	}
}

// FinishReason classifies why a backend stopped generating.
type FinishReason string

const (
	// FinishStop is a natural end of the assistant turn.
	FinishStop FinishReason = "stop"
	// FinishToolCalls means the assistant requested tool invocations.
	FinishToolCalls FinishReason = "tool_calls"
	// FinishLength means the response was truncated by the token limit.
	FinishLength FinishReason = "length"
	// FinishError means the vendor reported a generation-level error.
	FinishError FinishReason = "error"
)

// ToolDefinition is the wire-facing description of a tool: what the
// backend renders into the vendor request.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"` // JSON Schema
}

// GenerateRequest is one stateless request to a Backend.
type GenerateRequest struct {
	Messages    []Message        `json:"messages"`
	Tools       []ToolDefinition `json:"tools,omitempty"`
	Model       string           `json:"model,omitempty"`
	Temperature *float64         `json:"temperature,omitempty"`
	MaxTokens   int              `json:"max_tokens,omitempty"`
	Stop        []string         `json:"stop,omitempty"`
}

// GenerateResponse carries the single assistant message produced by a
// Backend, optional usage, and the finish classification.
type GenerateResponse struct {
	Message Message      `json:"message"`
	Usage   *Usage       `json:"usage,omitempty"`
	Finish  FinishReason `json:"finish"`
}

// --- Message constructors ---

func SystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

func UserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

func AssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}
