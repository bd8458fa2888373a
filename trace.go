package maestro

import (
	"context"
	"sync"
	"time"
)

// TraceStep records one agent invocation within an ensemble run. A
// started step is always terminated by either Output or Err; Duration is
// the time between start and termination.
type TraceStep struct {
	Index     int            `json:"index"`
	AgentID   string         `json:"agent_id"`
	Input     string         `json:"input"`
	Output    string         `json:"output,omitempty"`
	Err       string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`

	done bool
}

// ExecutionTrace is the ordered record of all steps in one ensemble run,
// the shared observability substrate of every conductor. It is safe for
// concurrent use; partial traces (completed plus in-flight-failed steps)
// stay observable after cancellation.
type ExecutionTrace struct {
	mu        sync.Mutex
	id        string
	startTime time.Time
	endTime   time.Time
	steps     []TraceStep
}

// NewTrace creates a trace with a fresh id and start time.
func NewTrace() *ExecutionTrace {
	return &ExecutionTrace{id: NewID(), startTime: time.Now()}
}

// ID returns the trace identifier.
func (t *ExecutionTrace) ID() string { return t.id }

// StartTime returns when the trace was created.
func (t *ExecutionTrace) StartTime() time.Time { return t.startTime }

// EndTime returns when the trace completed (zero while running).
func (t *ExecutionTrace) EndTime() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endTime
}

// StartStep appends a new step for the given agent and returns its index.
func (t *ExecutionTrace) StartStep(agentID, input string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := len(t.steps)
	t.steps = append(t.steps, TraceStep{
		Index:     idx,
		AgentID:   agentID,
		Input:     input,
		Timestamp: time.Now(),
	})
	return idx
}

// EndStep terminates the step with its output.
func (t *ExecutionTrace) EndStep(index int, output string) {
	t.terminate(index, func(s *TraceStep) { s.Output = output })
}

// FailStep terminates the step with an error.
func (t *ExecutionTrace) FailStep(index int, err error) {
	t.terminate(index, func(s *TraceStep) { s.Err = err.Error() })
}

func (t *ExecutionTrace) terminate(index int, apply func(*TraceStep)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.steps) || t.steps[index].done {
		return
	}
	s := &t.steps[index]
	apply(s)
	s.Duration = time.Since(s.Timestamp)
	s.done = true
}

// SetStepMetadata attaches a metadata entry to a step. Used for
// out-of-band annotations such as hook panics.
func (t *ExecutionTrace) SetStepMetadata(index int, key string, value any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.steps) {
		return
	}
	if t.steps[index].Metadata == nil {
		t.steps[index].Metadata = make(map[string]any)
	}
	t.steps[index].Metadata[key] = value
}

// Complete marks the trace finished.
func (t *ExecutionTrace) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endTime = time.Now()
}

// Steps returns a point-in-time copy of the recorded steps.
func (t *ExecutionTrace) Steps() []TraceStep {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceStep(nil), t.steps...)
}

// Len returns the number of recorded steps.
func (t *ExecutionTrace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.steps)
}

// TraceSink receives completed traces. The ensemble invokes it
// best-effort after each run; errors are logged and never returned to
// the caller. See store/sqlite and store/postgres.
type TraceSink interface {
	SaveTrace(ctx context.Context, trace *ExecutionTrace) error
}
