package maestro

import (
	"errors"
	"sync"
	"testing"
)

func TestTraceStepLifecycle(t *testing.T) {
	tr := NewTrace()
	if tr.ID() == "" {
		t.Fatal("trace has no id")
	}

	i0 := tr.StartStep("a", "input-a")
	i1 := tr.StartStep("b", "input-b")
	tr.EndStep(i0, "output-a")
	tr.FailStep(i1, errors.New("broke"))
	tr.Complete()

	steps := tr.Steps()
	if len(steps) != 2 {
		t.Fatalf("len(steps) = %d, want 2", len(steps))
	}
	if steps[0].AgentID != "a" || steps[0].Output != "output-a" || steps[0].Err != "" {
		t.Errorf("step 0 = %+v", steps[0])
	}
	if steps[1].AgentID != "b" || steps[1].Err != "broke" {
		t.Errorf("step 1 = %+v", steps[1])
	}
	for _, s := range steps {
		if s.Duration < 0 {
			t.Errorf("step %d has negative duration", s.Index)
		}
		if s.Output == "" && s.Err == "" {
			t.Errorf("step %d was never terminated", s.Index)
		}
	}
	if tr.EndTime().Before(tr.StartTime()) {
		t.Error("end time precedes start time")
	}
}

func TestTraceDoubleTerminationIgnored(t *testing.T) {
	tr := NewTrace()
	i := tr.StartStep("a", "in")
	tr.EndStep(i, "first")
	tr.FailStep(i, errors.New("late"))

	s := tr.Steps()[0]
	if s.Output != "first" || s.Err != "" {
		t.Errorf("second termination overwrote the first: %+v", s)
	}
}

func TestTraceMetadata(t *testing.T) {
	tr := NewTrace()
	i := tr.StartStep("a", "in")
	tr.SetStepMetadata(i, "hook_panic", "boom")
	tr.EndStep(i, "out")

	s := tr.Steps()[0]
	if s.Metadata["hook_panic"] != "boom" {
		t.Errorf("metadata = %v", s.Metadata)
	}
}

func TestTraceConcurrentSteps(t *testing.T) {
	tr := NewTrace()
	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			i := tr.StartStep("agent", "in")
			tr.EndStep(i, "out")
			tr.Steps() // snapshot while others write
		}()
	}
	wg.Wait()

	if tr.Len() != 16 {
		t.Fatalf("len = %d, want 16", tr.Len())
	}
	seen := make(map[int]bool)
	for _, s := range tr.Steps() {
		if seen[s.Index] {
			t.Errorf("duplicate index %d", s.Index)
		}
		seen[s.Index] = true
	}
}
