package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/avencia/maestro"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	s := New(filepath.Join(t.TempDir(), "traces.db"))
	t.Cleanup(func() { s.Close() })
	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestSaveTrace(t *testing.T) {
	s := newTestSink(t)

	tr := maestro.NewTrace()
	i0 := tr.StartStep("a", "input-a")
	tr.EndStep(i0, "output-a")
	i1 := tr.StartStep("b", "input-b")
	tr.SetStepMetadata(i1, "hook_panic", "boom")
	tr.FailStep(i1, errors.New("broke"))
	tr.Complete()

	if err := s.SaveTrace(context.Background(), tr); err != nil {
		t.Fatal(err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM trace_steps WHERE trace_id = ?`, tr.ID()).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Errorf("stored %d steps, want 2", count)
	}

	var output, errText, metadata *string
	row := s.db.QueryRow(`SELECT output, error, metadata FROM trace_steps WHERE trace_id = ? AND idx = 1`, tr.ID())
	if err := row.Scan(&output, &errText, &metadata); err != nil {
		t.Fatal(err)
	}
	if output != nil {
		t.Errorf("failed step has output %q", *output)
	}
	if errText == nil || *errText != "broke" {
		t.Errorf("error = %v", errText)
	}
	if metadata == nil {
		t.Error("metadata not stored")
	}
}

func TestSaveTraceIdempotent(t *testing.T) {
	s := newTestSink(t)

	tr := maestro.NewTrace()
	tr.EndStep(tr.StartStep("a", "in"), "out")
	tr.Complete()

	if err := s.SaveTrace(context.Background(), tr); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveTrace(context.Background(), tr); err != nil {
		t.Fatalf("re-saving the same trace failed: %v", err)
	}

	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM traces WHERE id = ?`, tr.ID()).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("trace stored %d times, want 1", count)
	}
}
