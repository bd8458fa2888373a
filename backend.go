package maestro

import "context"

// Backend abstracts the LLM service. One request, one response; no state
// is retained between calls and no ordering is guaranteed across
// concurrent requests. Implementations render messages and tool schemas
// into the vendor wire format and translate vendor stop reasons into the
// closed FinishReason set.
type Backend interface {
	// Generate sends a request and returns the complete response.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
	// Name returns the backend name (e.g. "openai", "anthropic").
	Name() string
}
