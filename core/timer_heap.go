package core

import "container/heap"

// timerHeap is a binary min-heap of pending scheduled entries, ordered by
// fire time. Pure data structure, no threading; the scheduler guards it
// with its own mutex.
type timerHeap []*scheduledEntry

func (h timerHeap) Len() int           { return len(h) }
func (h timerHeap) Less(i, j int) bool { return h[i].fireAtMicros < h[j].fireAtMicros }
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	n := len(*h)
	item := x.(*scheduledEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *timerHeap) peek() *scheduledEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}

// push inserts an entry and reports whether it became the new head, in
// which case the driver loop must be woken to re-evaluate its sleep.
func (h *timerHeap) push(e *scheduledEntry) bool {
	heap.Push(h, e)
	return e.index == 0
}

// pop removes and returns the earliest entry, nil when empty.
func (h *timerHeap) pop() *scheduledEntry {
	if len(*h) == 0 {
		return nil
	}
	return heap.Pop(h).(*scheduledEntry)
}

// purge removes all cancelled entries eagerly and restores the heap
// invariant. Returns the number of removed entries.
func (h *timerHeap) purge() int {
	kept := (*h)[:0]
	removed := 0
	for _, e := range *h {
		if e.cancelled() {
			e.index = -1
			removed++
			continue
		}
		kept = append(kept, e)
	}
	// Clear the tail so removed entries do not linger in the backing array.
	for i := len(kept); i < len(*h); i++ {
		(*h)[i] = nil
	}
	*h = kept
	if removed > 0 {
		heap.Init(h)
	}
	return removed
}
