package maestro

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func handoffArgs(target, task string) json.RawMessage {
	b, _ := json.Marshal(map[string]string{
		"target_agent": target,
		"task":         task,
		"reason":       "needs a specialist",
	})
	return b
}

func TestHandoffRejectsUnknownTarget(t *testing.T) {
	handler := NewSimpleHandoffHandler(map[string]*Agent{"billing": stopAgent("billing", "paid")})
	tool := NewHandoffTool("triage", []string{"billing"}, handler)

	v, err := tool.Execute(context.Background(), handoffArgs("ghost", "do it"))
	if err != nil {
		t.Fatal(err)
	}
	payload := v.(map[string]any)
	if payload["success"] != false || payload["rejected"] != true {
		t.Errorf("payload = %v", payload)
	}
	if !strings.Contains(payload["error"].(string), "Invalid target") {
		t.Errorf("error = %v", payload["error"])
	}
}

func TestHandoffAccepted(t *testing.T) {
	handler := NewSimpleHandoffHandler(map[string]*Agent{"billing": stopAgent("billing", "invoice sent")})
	tool := NewHandoffTool("triage", []string{"billing"}, handler)

	v, err := tool.Execute(context.Background(), handoffArgs("billing", "send the invoice"))
	if err != nil {
		t.Fatal(err)
	}
	payload := v.(map[string]any)
	if payload["success"] != true || payload["agent"] != "billing" || payload["result"] != "invoice sent" {
		t.Errorf("payload = %v", payload)
	}
}

func TestHandoffContextPreamble(t *testing.T) {
	var gotInput string
	be := &mockBackend{
		responses: []GenerateResponse{stopResponse("ok")},
		onGen: func(req GenerateRequest) {
			gotInput = req.Messages[len(req.Messages)-1].Content
		},
	}
	handler := NewSimpleHandoffHandler(map[string]*Agent{"w": mustAgent("w", be)})

	_, err := handler.Handle(context.Background(), HandoffRequest{
		ToAgent: "w",
		Task:    "summarize",
		Context: map[string]any{"ticket": 42},
	})
	if err != nil {
		t.Fatal(err)
	}
	if !containsAll(gotInput, "Context:", `"ticket":42`, "Task: summarize") {
		t.Errorf("input = %q", gotInput)
	}
}

func TestAdvancedHandoffValidation(t *testing.T) {
	h := &AdvancedHandoffHandler{
		Agents:   map[string]*Agent{"w": stopAgent("w", "x")},
		Validate: func(req HandoffRequest) (bool, string) { return false, "low priority" },
	}
	resp, err := h.Handle(context.Background(), HandoffRequest{ToAgent: "w", Task: "t"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Accepted || resp.RejectionReason != "low priority" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestAdvancedHandoffTransforms(t *testing.T) {
	var handedOff, completed bool
	h := &AdvancedHandoffHandler{
		Agents:          map[string]*Agent{"w": mustAgent("w", &echoBackend{prefix: "w"})},
		TransformInput:  func(req HandoffRequest) string { return "rewritten " + req.Task },
		TransformOutput: func(out string) string { return strings.ToUpper(out) },
		OnHandoff:       func(HandoffRequest) { handedOff = true },
		OnComplete:      func(HandoffRequest, HandoffResponse) { completed = true },
	}
	resp, err := h.Handle(context.Background(), HandoffRequest{ToAgent: "w", Task: "the task"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Result != "W: REWRITTEN THE TASK" {
		t.Errorf("Result = %q", resp.Result)
	}
	if !handedOff || !completed {
		t.Error("lifecycle callbacks did not fire")
	}
}

func TestHandoffToolInAgentLoop(t *testing.T) {
	// Scenario 8 end-to-end: an agent's handoff to an undeclared target
	// comes back as a structured rejection in the tool message.
	be := &mockBackend{responses: []GenerateResponse{
		toolCallResponse(ToolCall{ID: "h1", Name: "handoff", Args: handoffArgs("ghost", "t")}),
		stopResponse("done"),
	}}
	handler := NewSimpleHandoffHandler(map[string]*Agent{"w": stopAgent("w", "x")})
	agent := mustAgent("triage", be, func(b *AgentBuilder) *AgentBuilder {
		return b.Tools(NewHandoffTool("triage", []string{"w"}, handler))
	})

	res, err := agent.Run(context.Background(), "go")
	if err != nil {
		t.Fatal(err)
	}
	msg, ok := findToolMessage(res.Messages, "h1")
	if !ok {
		t.Fatal("no handoff tool message")
	}
	var payload struct {
		Success  bool   `json:"success"`
		Rejected bool   `json:"rejected"`
		Error    string `json:"error"`
	}
	if err := json.Unmarshal([]byte(msg.Content), &payload); err != nil {
		t.Fatalf("not JSON: %q", msg.Content)
	}
	if payload.Success || !payload.Rejected || !strings.Contains(payload.Error, "Invalid target") {
		t.Errorf("payload = %+v", payload)
	}
}

func TestHandoffChain(t *testing.T) {
	links := []ChainLink{
		{
			ID:    "first",
			Agent: mustAgent("first", &echoBackend{prefix: "1"}),
			ShouldHandoff: func(resp string) (string, bool) {
				return "second", true
			},
		},
		{
			ID:    "second",
			Agent: mustAgent("second", &echoBackend{prefix: "2"}),
		},
	}
	chain, err := NewHandoffChain(links)
	if err != nil {
		t.Fatal(err)
	}

	res, err := chain.Run(context.Background(), "X")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Path) != 2 || res.Path[0] != "first" || res.Path[1] != "second" {
		t.Errorf("Path = %v", res.Path)
	}
	if res.Response != "2: 1: X" {
		t.Errorf("Response = %q", res.Response)
	}
}

func TestHandoffChainCapsJumps(t *testing.T) {
	// Two links bouncing forever: the default cap (2 × len) stops the
	// loop with max-delegations.
	links := []ChainLink{
		{
			ID:            "a",
			Agent:         mustAgent("a", &mockBackend{responses: []GenerateResponse{stopResponse("ping")}}),
			ShouldHandoff: func(string) (string, bool) { return "b", true },
		},
		{
			ID:            "b",
			Agent:         mustAgent("b", &mockBackend{responses: []GenerateResponse{stopResponse("pong")}}),
			ShouldHandoff: func(string) (string, bool) { return "a", true },
		},
	}
	chain, err := NewHandoffChain(links)
	if err != nil {
		t.Fatal(err)
	}

	res, err := chain.Run(context.Background(), "X")
	if KindOf(err) != ErrMaxDelegations {
		t.Fatalf("KindOf = %q, want max-delegations", KindOf(err))
	}
	if len(res.Path) != 4 {
		t.Errorf("ran %d links before the cap, want 4", len(res.Path))
	}
}

func TestHandoffChainUnknownNextTerminates(t *testing.T) {
	links := []ChainLink{
		{
			ID:            "only",
			Agent:         mustAgent("only", &mockBackend{responses: []GenerateResponse{stopResponse("end")}}),
			ShouldHandoff: func(string) (string, bool) { return "nowhere", true },
		},
	}
	chain, _ := NewHandoffChain(links)
	res, err := chain.Run(context.Background(), "X")
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Path) != 1 || res.Response != "end" {
		t.Errorf("res = %+v", res)
	}
}

func TestHandoffChainValidation(t *testing.T) {
	if _, err := NewHandoffChain(nil); KindOf(err) != ErrMissingRequired {
		t.Error("empty chain accepted")
	}
	dup := []ChainLink{
		{ID: "x", Agent: stopAgent("x", "1")},
		{ID: "x", Agent: stopAgent("x", "2")},
	}
	if _, err := NewHandoffChain(dup); KindOf(err) != ErrDuplicateID {
		t.Error("duplicate link ids accepted")
	}
}
