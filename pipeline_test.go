package main

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestRingBufferPushAndRecent(t *testing.T) {
	rb := NewRingBuffer(3)

	for i := 0; i < 5; i++ {
		rb.Push(Action{ID: fmt.Sprintf("a%d", i)})
	}

	if rb.Size() != 3 {
		t.Fatalf("size = %d, want 3", rb.Size())
	}

	recent := rb.GetRecent(3)
	if len(recent) != 3 {
		t.Fatalf("len = %d, want 3", len(recent))
	}
	// oldest two fell off
	for i, want := range []string{"a2", "a3", "a4"} {
		if recent[i].ID != want {
			t.Errorf("recent[%d] = %s, want %s", i, recent[i].ID, want)
		}
	}

	two := rb.GetRecent(2)
	if len(two) != 2 || two[0].ID != "a3" || two[1].ID != "a4" {
		t.Fatalf("GetRecent(2) = %v", two)
	}

	rb.Clear()
	if rb.Size() != 0 || rb.GetRecent(3) != nil {
		t.Fatal("Clear did not empty the buffer")
	}
}

func TestSessionHistoryLRUEviction(t *testing.T) {
	lru := NewSessionHistoryLRU(2)

	lru.Set("s1", []Action{{ID: "a"}})
	lru.Set("s2", []Action{{ID: "b"}})

	// touch s1 so s2 becomes the eviction candidate
	if _, ok := lru.Get("s1"); !ok {
		t.Fatal("s1 missing")
	}

	lru.Set("s3", []Action{{ID: "c"}})

	if _, ok := lru.Get("s2"); ok {
		t.Fatal("s2 should have been evicted")
	}
	if _, ok := lru.Get("s1"); !ok {
		t.Fatal("s1 evicted despite recent access")
	}
	if _, ok := lru.Get("s3"); !ok {
		t.Fatal("s3 missing")
	}
	if lru.Size() != 2 {
		t.Fatalf("size = %d, want 2", lru.Size())
	}

	lru.Delete("s1")
	if _, ok := lru.Get("s1"); ok {
		t.Fatal("s1 survived Delete")
	}
}

func TestBackpressureSamplesOnlyScroll(t *testing.T) {
	bp := NewBackpressureController(10)

	// Fill the per-second window.
	for i := 0; i < 10; i++ {
		if !bp.ShouldProcess(Action{Type: ActionScroll}) {
			t.Fatal("dropped below the rate limit")
		}
	}

	// Over the limit: clicks always pass, scrolls get sampled.
	clicksKept, scrollsKept := 0, 0
	for i := 0; i < 20; i++ {
		if bp.ShouldProcess(Action{Type: ActionClick}) {
			clicksKept++
		}
		if bp.ShouldProcess(Action{Type: ActionScroll}) {
			scrollsKept++
		}
	}
	if clicksKept != 20 {
		t.Fatalf("clicks kept = %d, want all 20", clicksKept)
	}
	if scrollsKept == 0 || scrollsKept == 20 {
		t.Fatalf("scrolls kept = %d, want sampled subset", scrollsKept)
	}
	if bp.Dropped() == 0 {
		t.Fatal("drop counter never moved")
	}
}

func newTestPipeline(t *testing.T) (*ActionPipeline, *ActionStore) {
	t.Helper()
	store, err := NewActionStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewActionStore: %v", err)
	}
	p := NewActionPipeline(context.Background(), store)
	p.Start()
	t.Cleanup(func() {
		p.Stop()
		store.Close()
	})
	return p, store
}

func TestPipelineSessionLifecycle(t *testing.T) {
	p, store := newTestPipeline(t)

	id := p.StartSession("checkout", "https://shop.test/checkout")
	if p.ActiveSessionID() != id {
		t.Fatalf("active = %q, want %q", p.ActiveSessionID(), id)
	}

	got := p.GetSession(id)
	if got == nil || got.Status != "recording" || got.URL != "https://shop.test/checkout" {
		t.Fatalf("GetSession = %+v", got)
	}

	p.EndSession(id, "completed")
	if p.ActiveSessionID() != "" {
		t.Fatal("active session not cleared")
	}

	// Must now come from the store with the final status.
	stored, err := store.GetSession(id)
	if err != nil || stored == nil {
		t.Fatalf("stored session missing: %v", err)
	}
	if stored.Status != "completed" || stored.EndTime == 0 {
		t.Fatalf("finalized session = %+v", stored)
	}
}

func TestPipelineTagsAndPersistsActions(t *testing.T) {
	p, store := newTestPipeline(t)

	var mu sync.Mutex
	var seen []Action
	p.Subscribe(func(a Action) {
		mu.Lock()
		seen = append(seen, a)
		mu.Unlock()
	})

	id := p.StartSession("checkout", "https://shop.test/checkout")

	p.Ingest(Action{ID: "act-1", Type: ActionClick, Timestamp: 100})
	p.Ingest(Action{ID: "act-2", Type: ActionInput, Timestamp: 300})

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(seen)
		mu.Unlock()
		if n == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("subscriber saw %d actions, want 2", n)
		case <-time.After(10 * time.Millisecond):
		}
	}

	mu.Lock()
	for _, a := range seen {
		if a.SessionID != id {
			t.Errorf("action %s tagged with session %q, want %q", a.ID, a.SessionID, id)
		}
	}
	mu.Unlock()

	recent := p.GetRecentActions(id, 10)
	if len(recent) != 2 {
		t.Fatalf("recent = %d actions, want 2", len(recent))
	}

	stored, err := store.ListActions(id, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(stored) != 2 {
		t.Fatalf("store has %d actions, want 2", len(stored))
	}

	if s := p.GetSession(id); s.ActionCount != 2 {
		t.Fatalf("ActionCount = %d, want 2", s.ActionCount)
	}
}

func TestPipelineRecentActionsAfterClose(t *testing.T) {
	p, _ := newTestPipeline(t)

	id := p.StartSession("checkout", "https://shop.test/checkout")
	p.Ingest(Action{ID: "act-1", Type: ActionClick, Timestamp: 100})

	deadline := time.After(2 * time.Second)
	for p.GetSession(id).ActionCount != 1 {
		select {
		case <-deadline:
			t.Fatal("action never processed")
		case <-time.After(10 * time.Millisecond):
		}
	}

	p.EndSession(id, "completed")

	// Served from the history cache, not the live ring.
	recent := p.GetRecentActions(id, 10)
	if len(recent) != 1 || recent[0].ID != "act-1" {
		t.Fatalf("recent after close = %v", recent)
	}
}

func TestPipelineResumesOpenSessions(t *testing.T) {
	dir := t.TempDir()
	store, err := NewActionStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	first := NewActionPipeline(context.Background(), store)
	first.Start()
	id := first.StartSession("interrupted", "https://shop.test/")
	first.Stop()

	second := NewActionPipeline(context.Background(), store)
	second.Start()
	defer func() {
		second.Stop()
		store.Close()
	}()

	if second.ActiveSessionID() != id {
		t.Fatalf("resumed active = %q, want %q", second.ActiveSessionID(), id)
	}
	if s := second.GetSession(id); s == nil || s.Status != "recording" {
		t.Fatalf("resumed session = %+v", s)
	}
}
