package core

import (
	"context"
	"testing"
)

func heapEntry(fireAt int64) *scheduledEntry {
	return &scheduledEntry{
		fireAtMicros: fireAt,
		periodMicros: -1,
		task:         func(ctx context.Context) {},
	}
}

func TestTimerHeap_PopOrder(t *testing.T) {
	var h timerHeap

	for _, fireAt := range []int64{500, 100, 300, 200, 400} {
		h.push(heapEntry(fireAt))
	}

	want := []int64{100, 200, 300, 400, 500}
	for i, expected := range want {
		e := h.pop()
		if e == nil {
			t.Fatalf("pop %d returned nil", i)
		}
		if e.fireAtMicros != expected {
			t.Errorf("pop %d: fireAt = %d, want %d", i, e.fireAtMicros, expected)
		}
	}
	if h.pop() != nil {
		t.Error("Expected nil from an empty heap")
	}
}

func TestTimerHeap_PushReportsNewHead(t *testing.T) {
	var h timerHeap

	if !h.push(heapEntry(100)) {
		t.Error("First push must become head")
	}
	if h.push(heapEntry(200)) {
		t.Error("Later entry must not become head")
	}
	if !h.push(heapEntry(50)) {
		t.Error("Earlier entry must become head")
	}
	if got := h.peek().fireAtMicros; got != 50 {
		t.Errorf("peek = %d, want 50", got)
	}
}

func TestTimerHeap_PurgeRemovesCancelled(t *testing.T) {
	var h timerHeap

	entries := make([]*scheduledEntry, 6)
	for i := range entries {
		entries[i] = heapEntry(int64((i + 1) * 100))
		h.push(entries[i])
	}

	entries[1].cancel()
	entries[3].cancel()
	entries[5].cancel()

	removed := h.purge()
	if removed != 3 {
		t.Errorf("purge removed %d, want 3", removed)
	}
	if len(h) != 3 {
		t.Errorf("heap length = %d, want 3", len(h))
	}

	// Order preserved after re-heapify
	want := []int64{100, 300, 500}
	for i, expected := range want {
		if got := h.pop().fireAtMicros; got != expected {
			t.Errorf("pop %d after purge: fireAt = %d, want %d", i, got, expected)
		}
	}
}

func TestTimerHeap_IndexMaintained(t *testing.T) {
	var h timerHeap

	entries := make([]*scheduledEntry, 10)
	for i := range entries {
		entries[i] = heapEntry(int64(1000 - i*100))
		h.push(entries[i])
	}

	for i, e := range h {
		if e.index != i {
			t.Errorf("entry at position %d has index %d", i, e.index)
		}
	}
}
