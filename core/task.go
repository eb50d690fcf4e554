package core

import (
	"context"
	"sync/atomic"
)

// Task is the unit of work (Closure). Tasks run synchronously on the
// single driver goroutine: they are totally ordered with respect to each
// other and must never block or run long, since a slow task delays every
// other timer, ticker and timeline in the process.
type Task func(ctx context.Context)

// TaskHandle is a cancellable registration returned by the scheduling
// and listener-registration APIs. Cancel is idempotent; it never
// interrupts an in-flight run, but guarantees no further runs.
type TaskHandle interface {
	// Cancel marks the registration cancelled.
	Cancel()

	// IsCancelled reports whether Cancel has been called (or the
	// registration already ran to completion, for one-shot tasks).
	IsCancelled() bool
}

// Entry lifecycle states. Cancellation is a tri-state flag checked under
// the driver goroutine's control; cancelled entries are removed lazily at
// the next pop, or eagerly by Purge.
const (
	statePending int32 = iota
	stateCancelled
	stateExecuted
)

// scheduledEntry is a heap element owned exclusively by the scheduler.
// A TaskHandle holds a back-reference used only to flip the state.
type scheduledEntry struct {
	fireAtMicros int64
	periodMicros int64 // negative = one-shot
	fixedRate    bool  // fixed-rate vs fixed-delay repetition
	state        atomic.Int32
	task         Task
	errHandler   ErrorHandler
	index        int // heap index maintenance
}

// reschedule computes the next fire time after a completed run.
// Fixed-rate advances from the previous scheduled fire time, so runs may
// bunch up when the system falls behind; fixed-delay advances from the
// actual completion time, absorbing jitter without bunching.
func (e *scheduledEntry) reschedule(completedAtMicros int64) {
	if e.fixedRate {
		e.fireAtMicros += e.periodMicros
	} else {
		e.fireAtMicros = completedAtMicros + e.periodMicros
	}
}

func (e *scheduledEntry) cancel() {
	e.state.CompareAndSwap(statePending, stateCancelled)
}

func (e *scheduledEntry) cancelled() bool {
	return e.state.Load() == stateCancelled
}

// entryHandle is the TaskHandle for heap entries.
type entryHandle struct {
	entry *scheduledEntry
}

func (h *entryHandle) Cancel() {
	h.entry.cancel()
}

func (h *entryHandle) IsCancelled() bool {
	return h.entry.state.Load() != statePending
}

// tickerEntry is a payload registered to run once per core tick.
type tickerEntry struct {
	task       Task
	errHandler ErrorHandler
	cancelled  atomic.Bool
}

// tickerHandle is the TaskHandle for ticker registrations.
type tickerHandle struct {
	entry *tickerEntry
}

func (h *tickerHandle) Cancel() {
	h.entry.cancelled.Store(true)
}

func (h *tickerHandle) IsCancelled() bool {
	return h.entry.cancelled.Load()
}
