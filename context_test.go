package maestro

import (
	"fmt"
	"reflect"
	"sync"
	"testing"
)

func TestContextSnapshotRoundTrip(t *testing.T) {
	c1 := NewSharedContext()
	c1.Set("k", "v")
	c1.Set("n", 42)
	c1.AppendHistory(UserMessage("hello"))
	c1.AppendHistory(AssistantMessage("hi"))
	c1.AppendAgentMessage("a", AssistantMessage("from a"))

	s1 := c1.Snapshot()

	c2 := NewSharedContext()
	c2.Set("junk", true)
	c2.AppendHistory(UserMessage("noise"))
	c2.Restore(s1)

	s2 := c2.Snapshot()
	if !reflect.DeepEqual(s1.Data, s2.Data) {
		t.Errorf("data mismatch: %v vs %v", s1.Data, s2.Data)
	}
	if !reflect.DeepEqual(s1.History, s2.History) {
		t.Errorf("history mismatch")
	}
	if !reflect.DeepEqual(s1.AgentMessages, s2.AgentMessages) {
		t.Errorf("agent messages mismatch")
	}
}

func TestContextCloneIndependence(t *testing.T) {
	orig := NewSharedContext()
	orig.Set("k", "original")
	orig.AppendHistory(UserMessage("one"))

	clone := orig.Clone()
	clone.Set("k", "mutated")
	clone.Set("new", 1)
	clone.AppendHistory(UserMessage("two"))
	clone.AppendAgentMessage("a", AssistantMessage("x"))

	if v, _ := orig.Get("k"); v != "original" {
		t.Errorf("clone mutation leaked into original: %v", v)
	}
	if _, ok := orig.Get("new"); ok {
		t.Error("clone key leaked into original")
	}
	if len(orig.History()) != 1 {
		t.Errorf("original history = %d messages, want 1", len(orig.History()))
	}
	if len(orig.AgentMessages("a")) != 0 {
		t.Error("clone agent message leaked into original")
	}

	orig.Set("k2", "back")
	if _, ok := clone.Get("k2"); ok {
		t.Error("original mutation leaked into clone")
	}
}

func TestContextHistoryTrim(t *testing.T) {
	c := NewSharedContext(WithMaxHistory(5))
	for i := 0; i < 12; i++ {
		c.AppendHistory(UserMessage(fmt.Sprintf("m%d", i)))
	}
	h := c.History()
	if len(h) != 5 {
		t.Fatalf("history length = %d, want 5", len(h))
	}
	// The retained messages are the most recent, in insertion order.
	for i, m := range h {
		want := fmt.Sprintf("m%d", 7+i)
		if m.Content != want {
			t.Errorf("history[%d] = %q, want %q", i, m.Content, want)
		}
	}
}

func TestContextConcurrentAppends(t *testing.T) {
	c := NewSharedContext()
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			id := fmt.Sprintf("agent%d", g)
			for i := 0; i < 50; i++ {
				c.AppendHistory(AssistantMessage("x"))
				c.AppendAgentMessage(id, AssistantMessage(fmt.Sprintf("%d", i)))
				c.Set(id, i)
				c.Snapshot()
			}
		}(g)
	}
	wg.Wait()

	if len(c.History()) != 8*50 {
		t.Errorf("history = %d messages, want %d", len(c.History()), 8*50)
	}
	for g := 0; g < 8; g++ {
		msgs := c.AgentMessages(fmt.Sprintf("agent%d", g))
		if len(msgs) != 50 {
			t.Errorf("agent%d has %d messages, want 50", g, len(msgs))
		}
		// Per-agent ordering is consistent with that agent's appends.
		for i, m := range msgs {
			if m.Content != fmt.Sprintf("%d", i) {
				t.Errorf("agent%d message %d out of order: %q", g, i, m.Content)
				break
			}
		}
	}
}
