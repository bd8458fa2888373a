package maestro

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// HandoffRequest is an agent-originated transfer of a task to a declared
// target agent.
type HandoffRequest struct {
	FromAgent string         `json:"from_agent"`
	ToAgent   string         `json:"to_agent"`
	Reason    string         `json:"reason"`
	Task      string         `json:"task"`
	Context   map[string]any `json:"context,omitempty"`
	History   []Message      `json:"history,omitempty"`
	Priority  string         `json:"priority,omitempty"`
}

// HandoffResponse is the receiving side's answer.
type HandoffResponse struct {
	Accepted        bool           `json:"accepted"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Result          string         `json:"result,omitempty"`
	Data            map[string]any `json:"data,omitempty"`
}

// HandoffHandler resolves and executes a handoff request.
type HandoffHandler interface {
	Handle(ctx context.Context, req HandoffRequest) (HandoffResponse, error)
}

// handoffToolParams builds the handoff tool's parameter schema. The
// target set is deliberately not an enum: an out-of-set target must
// reach Execute so the model gets the structured rejection back, not a
// schema-validation error.
func handoffToolParams(targets []string) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
	"type": "object",
	"properties": {
		"target_agent": {"type": "string", "description": "The id of the agent to hand off to (one of: %s)"},
		"task": {"type": "string", "description": "The task being handed off"},
		"reason": {"type": "string", "description": "Why the handoff is needed"},
		"context": {"type": "object", "description": "Optional context for the receiving agent"},
		"priority": {"type": "string", "description": "Optional priority hint"}
	},
	"required": ["target_agent", "task", "reason"]
}`, strings.Join(targets, ", ")))
}

// NewHandoffTool creates a handoff tool scoped to a fixed target set.
// Unknown targets produce a structured rejection; handler rejections and
// exceptions are serialized into the tool result so the model can react.
func NewHandoffTool(fromAgent string, targets []string, handler HandoffHandler) Tool {
	targetSet := make(map[string]bool, len(targets))
	for _, t := range targets {
		targetSet[t] = true
	}
	return Tool{
		Name: "handoff",
		Description: fmt.Sprintf(
			"Hand the current task off to another agent. Available targets: %s.",
			strings.Join(targets, ", ")),
		Parameters: handoffToolParams(targets),
		Execute: func(ctx context.Context, args json.RawMessage) (any, error) {
			var params struct {
				TargetAgent string         `json:"target_agent"`
				Task        string         `json:"task"`
				Reason      string         `json:"reason"`
				Context     map[string]any `json:"context,omitempty"`
				Priority    string         `json:"priority,omitempty"`
			}
			if err := json.Unmarshal(args, &params); err != nil {
				return map[string]any{"success": false, "error": "invalid handoff arguments: " + err.Error()}, nil
			}
			if !targetSet[params.TargetAgent] {
				return map[string]any{
					"success":  false,
					"rejected": true,
					"error":    fmt.Sprintf("Invalid target agent '%s'", params.TargetAgent),
				}, nil
			}

			resp, err := handler.Handle(ctx, HandoffRequest{
				FromAgent: fromAgent,
				ToAgent:   params.TargetAgent,
				Reason:    params.Reason,
				Task:      params.Task,
				Context:   params.Context,
				Priority:  params.Priority,
			})
			if err != nil {
				return map[string]any{"success": false, "error": Sanitize(err.Error())}, nil
			}
			if !resp.Accepted {
				return map[string]any{"success": false, "rejected": true, "reason": resp.RejectionReason}, nil
			}
			out := map[string]any{"success": true, "agent": params.TargetAgent, "result": resp.Result}
			if resp.Data != nil {
				out["data"] = resp.Data
			}
			return out, nil
		},
	}
}

// --- Handlers ---

// SimpleHandoffHandler resolves targets in a fixed agent registry and
// runs the target with the task, prefixed with the serialized context
// when one is present.
type SimpleHandoffHandler struct {
	agents map[string]*Agent
}

// NewSimpleHandoffHandler creates a handler over the given registry.
func NewSimpleHandoffHandler(agents map[string]*Agent) *SimpleHandoffHandler {
	reg := make(map[string]*Agent, len(agents))
	for id, a := range agents {
		reg[id] = a
	}
	return &SimpleHandoffHandler{agents: reg}
}

func (h *SimpleHandoffHandler) Handle(ctx context.Context, req HandoffRequest) (HandoffResponse, error) {
	agent, ok := h.agents[req.ToAgent]
	if !ok {
		return HandoffResponse{
			Accepted:        false,
			RejectionReason: fmt.Sprintf("unknown agent %q", req.ToAgent),
		}, nil
	}
	res, err := agent.Run(ctx, handoffInput(req))
	if err != nil {
		return HandoffResponse{}, err
	}
	return HandoffResponse{Accepted: true, Result: res.Response}, nil
}

// handoffInput renders the task, prefixing the context object when set.
func handoffInput(req HandoffRequest) string {
	if len(req.Context) == 0 {
		return req.Task
	}
	b, err := json.Marshal(req.Context)
	if err != nil {
		return req.Task
	}
	return fmt.Sprintf("Context: %s\n\nTask: %s", b, req.Task)
}

// AdvancedHandoffHandler extends the simple handler with validation,
// input/output transformers, and lifecycle callbacks. All fields except
// Agents are optional.
type AdvancedHandoffHandler struct {
	Agents map[string]*Agent
	// Validate short-circuits with a rejection when it returns false; the
	// returned string becomes the rejection reason.
	Validate func(req HandoffRequest) (bool, string)
	// TransformInput rewrites the target agent's input.
	TransformInput func(req HandoffRequest) string
	// TransformOutput rewrites the target agent's response.
	TransformOutput func(output string) string
	// OnHandoff fires before the target runs.
	OnHandoff func(req HandoffRequest)
	// OnComplete fires after a successful run with the final response.
	OnComplete func(req HandoffRequest, resp HandoffResponse)
	// Logger receives lifecycle-callback panics.
	Logger *slog.Logger
}

func (h *AdvancedHandoffHandler) Handle(ctx context.Context, req HandoffRequest) (HandoffResponse, error) {
	logger := orNop(h.Logger)

	if h.Validate != nil {
		ok, reason := h.Validate(req)
		if !ok {
			if reason == "" {
				reason = "handoff rejected by validator"
			}
			return HandoffResponse{Accepted: false, RejectionReason: reason}, nil
		}
	}

	agent, ok := h.Agents[req.ToAgent]
	if !ok {
		return HandoffResponse{
			Accepted:        false,
			RejectionReason: fmt.Sprintf("unknown agent %q", req.ToAgent),
		}, nil
	}

	if h.OnHandoff != nil {
		callHook(logger, "OnHandoff", func() { h.OnHandoff(req) })
	}

	input := handoffInput(req)
	if h.TransformInput != nil {
		input = h.TransformInput(req)
	}

	res, err := agent.Run(ctx, input)
	if err != nil {
		return HandoffResponse{}, err
	}

	output := res.Response
	if h.TransformOutput != nil {
		output = h.TransformOutput(output)
	}

	resp := HandoffResponse{Accepted: true, Result: output}
	if h.OnComplete != nil {
		callHook(logger, "OnComplete", func() { h.OnComplete(req, resp) })
	}
	return resp, nil
}

// --- Handoff chain ---

// ChainLink is one stop in a handoff chain. ShouldHandoff inspects the
// link's response and names the next link id; returning ok=false (or a
// nil ShouldHandoff) terminates the chain.
type ChainLink struct {
	ID            string
	Agent         *Agent
	ShouldHandoff func(response string) (next string, ok bool)
}

// HandoffChain iterates a list of links: run the current agent, ask
// ShouldHandoff for the next id, jump there if valid, else terminate.
// Total agent runs are capped (default 2 × chain length) so a
// misconfigured ShouldHandoff cannot loop forever; exceeding the cap
// fails with max-delegations.
type HandoffChain struct {
	links    []ChainLink
	indexOf  map[string]int
	maxJumps int
	logger   *slog.Logger
}

// ChainOption configures a HandoffChain.
type ChainOption func(*HandoffChain)

// ChainMaxJumps overrides the run cap.
func ChainMaxJumps(n int) ChainOption {
	return func(c *HandoffChain) { c.maxJumps = n }
}

// ChainLogger sets the chain's structured logger.
func ChainLogger(l *slog.Logger) ChainOption {
	return func(c *HandoffChain) { c.logger = l }
}

// NewHandoffChain builds a chain over the given links. Link ids must be
// unique and at least one link is required.
func NewHandoffChain(links []ChainLink, opts ...ChainOption) (*HandoffChain, error) {
	if len(links) == 0 {
		return nil, Errf(ErrMissingRequired, "handoff chain requires at least one link")
	}
	indexOf := make(map[string]int, len(links))
	for i, l := range links {
		if _, dup := indexOf[l.ID]; dup {
			return nil, Errf(ErrDuplicateID, "duplicate chain link id %q", l.ID)
		}
		indexOf[l.ID] = i
	}
	c := &HandoffChain{
		links:    append([]ChainLink(nil), links...),
		indexOf:  indexOf,
		maxJumps: 2 * len(links),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = orNop(c.logger)
	return c, nil
}

// ChainResult is the outcome of a chain run: the sequence of link ids
// visited and the last agent's response.
type ChainResult struct {
	Path     []string
	Response string
}

// Run executes the chain starting at the first link, passing each
// response as the next link's input.
func (c *HandoffChain) Run(ctx context.Context, input string) (*ChainResult, error) {
	result := &ChainResult{}
	idx := 0
	for runs := 0; ; runs++ {
		if err := checkCancel(ctx); err != nil {
			return result, err
		}
		if runs >= c.maxJumps {
			return result, Errf(ErrMaxDelegations, "handoff chain exceeded %d runs", c.maxJumps)
		}

		link := c.links[idx]
		res, err := link.Agent.Run(ctx, input)
		if err != nil {
			return result, err
		}
		result.Path = append(result.Path, link.ID)
		result.Response = res.Response

		if link.ShouldHandoff == nil {
			return result, nil
		}
		next, ok := link.ShouldHandoff(res.Response)
		if !ok {
			return result, nil
		}
		nextIdx, known := c.indexOf[next]
		if !known {
			c.logger.Warn("chain handoff to unknown link, terminating", "from", link.ID, "to", next)
			return result, nil
		}
		idx = nextIdx
		input = res.Response
	}
}
