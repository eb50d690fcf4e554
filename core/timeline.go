package core

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// tickEpsilon guards the whole-tick extraction against accumulated
// float error in the fractional tick accumulator.
const tickEpsilon = 1e-9

// TimelineState is the lifecycle state of a Timeline.
type TimelineState int32

const (
	// StateRunning: the timeline produces ticks.
	StateRunning TimelineState = iota

	// StatePausedLocally: Pause was called on this timeline.
	StatePausedLocally

	// StatePausedByAncestor: some ancestor is paused. Derived, never
	// directly settable.
	StatePausedByAncestor

	// StateEnded: a fixed-duration, non-looping timeline reached its
	// end. Terminal except through Reset.
	StateEnded
)

func (s TimelineState) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StatePausedLocally:
		return "paused"
	case StatePausedByAncestor:
		return "paused-by-ancestor"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// TimeListener is called at every tick of the timeline it is registered
// on, always from the scheduler driver goroutine. A nil Time signals
// that the timeline ended or closed; no further calls follow until a
// Reset.
//
// Listeners must never do long-running or blocking operations: they
// share the driver goroutine with every other timer, ticker and
// timeline in the process.
type TimeListener func(t *Time)

type listenerEntry struct {
	fn        TimeListener
	cancelled atomic.Bool
}

type listenerHandle struct {
	entry *listenerEntry
}

func (h *listenerHandle) Cancel()           { h.entry.cancelled.Store(true) }
func (h *listenerHandle) IsCancelled() bool { return h.entry.cancelled.Load() }

// childEntry is the parent's propagation token for one child. The parent
// holds only these tokens, never owning pointers: a child can be closed
// and collected independently, the token just goes dead.
type childEntry struct {
	tl        *Timeline
	cancelled atomic.Bool
}

// Timeline is a node of the logical-clock hierarchy. The root ("core
// timeline") is advanced directly by core scheduler ticks; every other
// timeline derives its cadence from its parent through its tick step.
//
// All tick-decision logic runs on the scheduler driver goroutine,
// parent before children. Pause, Unpause and Reset may be called from
// any goroutine and take effect at the next core tick, never
// retroactively mid-tick.
type Timeline struct {
	name   string
	sched  *CoreScheduler
	parent *Timeline

	localTickStep       float64
	localTickScaling    float64
	timeOffset          float64
	fixedDurationTicks  int64
	loopWhenReachingEnd bool

	pausedLocally  atomic.Bool
	resetRequested atomic.Bool
	closed         atomic.Bool
	ended          atomic.Bool

	// Driver-goroutine state. Nothing else reads or writes these.
	accumulator        float64
	lastCoreTickMicros int64
	lastTickMicros     int64
	closureSent        bool

	startTimeMicros          atomic.Int64
	runningElapsedTicks      atomic.Int64
	runningElapsedTimeMicros atomic.Int64
	pausedElapsedTicks       atomic.Int64
	pausedElapsedTimeMicros  atomic.Int64
	resetCount               atomic.Int64

	last atomic.Pointer[Time]

	mu        sync.Mutex
	children  []*childEntry
	listeners []*listenerEntry

	childToken   *childEntry // own token in parent's children list
	tickerHandle TaskHandle  // root only: the core tick subscription
}

// NewCoreTimeline creates the root timeline, advanced one tick per core
// scheduler tick. The subsystem normally has exactly one; derived
// timelines are created from it with NewChildTimeline.
func NewCoreTimeline(name string, sched *CoreScheduler) (*Timeline, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	t := &Timeline{
		name:             name,
		sched:            sched,
		localTickStep:    1,
		localTickScaling: 1,
	}
	t.initEpoch(sched.clock.NowMicros())

	handle, err := sched.ScheduleTicker(func(ctx context.Context) {
		t.tick(sched.clock.NowMicros(), false)
	}, nil)
	if err != nil {
		return nil, err
	}
	t.tickerHandle = handle
	return t, nil
}

func (t *Timeline) initEpoch(nowMicros int64) {
	t.startTimeMicros.Store(nowMicros)
	t.lastTickMicros = nowMicros
	t.lastCoreTickMicros = nowMicros
}

// =============================================================================
// Tick decision (driver goroutine only)
// =============================================================================

// tick runs the per-core-tick decision for this timeline, then
// propagates top-down to children so they observe the parent's
// post-tick pause state.
func (t *Timeline) tick(nowMicros int64, ancestorPaused bool) {
	if t.closed.Load() {
		return
	}
	if t.resetRequested.Swap(false) {
		t.applyReset(nowMicros)
	}

	pausedGlobal := t.pausedLocally.Load() || ancestorPaused
	delta := nowMicros - t.lastCoreTickMicros
	t.lastCoreTickMicros = nowMicros

	switch {
	case pausedGlobal:
		t.pausedElapsedTicks.Add(1)
		t.pausedElapsedTimeMicros.Add(delta)

	case t.ended.Load():
		// Terminal: queryable but silent.

	default:
		t.runningElapsedTimeMicros.Add(delta)
		t.accumulator += 1.0 / t.globalTickStep()
		// The epsilon absorbs float error from steps like 3, where summing
		// 1/3 three times lands just short of 1.
		if t.accumulator+tickEpsilon >= 1 {
			whole := int64(t.accumulator + tickEpsilon)
			t.accumulator -= float64(whole)

			if t.fixedDurationTicks > 0 && t.runningElapsedTicks.Load() >= t.fixedDurationTicks {
				if t.loopWhenReachingEnd {
					t.applyReset(nowMicros)
					t.advance(whole, nowMicros)
				} else {
					t.ended.Store(true)
					t.notifyClosure()
				}
			} else {
				t.advance(whole, nowMicros)
			}
		}
	}

	for _, c := range t.childSnapshot() {
		if !c.cancelled.Load() {
			c.tl.tick(nowMicros, pausedGlobal)
		}
	}
}

// advance moves the logical clock forward by the whole own-ticks now due
// (normally 1) and emits a snapshot.
func (t *Timeline) advance(whole int64, nowMicros int64) {
	n := t.runningElapsedTicks.Add(whole)
	if t.fixedDurationTicks > 0 && n > t.fixedDurationTicks {
		t.runningElapsedTicks.Store(t.fixedDurationTicks)
	}
	t.emit(nowMicros)
}

// emit creates the Time snapshot for this tick and invokes listeners in
// registration order, each with panic isolation.
func (t *Timeline) emit(nowMicros int64) {
	snap := newTime(t, nowMicros, t.last.Load())
	t.lastTickMicros = nowMicros
	t.last.Store(snap)
	t.sched.metrics.RecordTimelineTick(t.name)

	for _, l := range t.listenerSnapshot() {
		if l.cancelled.Load() {
			continue
		}
		fn := l.fn
		t.sched.runGuarded(kindListener, func(ctx context.Context) { fn(snap) }, nil)
	}
}

// notifyClosure delivers the one nil-Time end-of-timeline notification.
func (t *Timeline) notifyClosure() {
	if t.closureSent {
		return
	}
	t.closureSent = true
	for _, l := range t.listenerSnapshot() {
		if l.cancelled.Load() {
			continue
		}
		fn := l.fn
		t.sched.runGuarded(kindListener, func(ctx context.Context) { fn(nil) }, nil)
	}
}

// applyReset zeroes the elapsed counters and starts a new epoch.
// resetCount is the only counter that survives.
func (t *Timeline) applyReset(nowMicros int64) {
	t.accumulator = 0
	t.runningElapsedTicks.Store(0)
	t.runningElapsedTimeMicros.Store(0)
	t.pausedElapsedTicks.Store(0)
	t.pausedElapsedTimeMicros.Store(0)
	t.resetCount.Add(1)
	t.ended.Store(false)
	t.closureSent = false
	t.last.Store(nil)
	t.initEpoch(nowMicros)
}

func (t *Timeline) childSnapshot() []*childEntry {
	t.mu.Lock()
	kept := t.children[:0]
	for _, c := range t.children {
		if !c.cancelled.Load() {
			kept = append(kept, c)
		}
	}
	for i := len(kept); i < len(t.children); i++ {
		t.children[i] = nil
	}
	t.children = kept
	out := make([]*childEntry, len(kept))
	copy(out, kept)
	t.mu.Unlock()
	return out
}

func (t *Timeline) listenerSnapshot() []*listenerEntry {
	t.mu.Lock()
	kept := t.listeners[:0]
	for _, l := range t.listeners {
		if !l.cancelled.Load() {
			kept = append(kept, l)
		}
	}
	for i := len(kept); i < len(t.listeners); i++ {
		t.listeners[i] = nil
	}
	t.listeners = kept
	out := make([]*listenerEntry, len(kept))
	copy(out, kept)
	t.mu.Unlock()
	return out
}

// =============================================================================
// Public API (any goroutine)
// =============================================================================

// Name returns the name of the timeline.
func (t *Timeline) Name() string {
	return t.name
}

// Parent returns the parent timeline, nil for the root.
func (t *Timeline) Parent() *Timeline {
	return t.parent
}

// Paused reports whether this timeline is paused locally.
func (t *Timeline) Paused() bool {
	return t.pausedLocally.Load()
}

// PausedGlobally reports whether this timeline or any ancestor is
// paused. Recomputed on every call, never cached.
func (t *Timeline) PausedGlobally() bool {
	if t.pausedLocally.Load() {
		return true
	}
	if t.parent != nil {
		return t.parent.PausedGlobally()
	}
	return false
}

// Pause stops tick production. Takes effect at the next core tick.
func (t *Timeline) Pause() {
	t.pausedLocally.Store(true)
}

// Unpause resumes tick production. Takes effect at the next core tick.
func (t *Timeline) Unpause() {
	t.pausedLocally.Store(false)
}

// Reset requests that the elapsed counters return to zero and a new
// epoch begin, applied at the next core tick on the driver goroutine.
// An Ended timeline returns to Running.
func (t *Timeline) Reset() {
	t.resetRequested.Store(true)
}

// State returns the current lifecycle state.
func (t *Timeline) State() TimelineState {
	switch {
	case t.ended.Load():
		return StateEnded
	case t.pausedLocally.Load():
		return StatePausedLocally
	case t.parent != nil && t.parent.PausedGlobally():
		return StatePausedByAncestor
	default:
		return StateRunning
	}
}

// LocalTickStep returns the parent ticks consumed per own tick.
func (t *Timeline) LocalTickStep() float64 {
	return t.localTickStep
}

func (t *Timeline) globalTickStep() float64 {
	if t.parent == nil {
		return t.localTickStep
	}
	return t.localTickStep * t.parent.globalTickStep()
}

// GlobalTickStep returns the core ticks consumed per own tick:
// the product of the local steps down from the root.
func (t *Timeline) GlobalTickStep() float64 {
	return t.globalTickStep()
}

// LocalTickScaling returns the local scaling applied to elapsed ticks
// when computing Time().
func (t *Timeline) LocalTickScaling() float64 {
	return t.localTickScaling
}

func (t *Timeline) globalTickScaling() float64 {
	if t.parent == nil {
		return t.localTickScaling
	}
	return t.localTickScaling * t.parent.globalTickScaling()
}

// TimeOffset returns the fixed offset added to produce Time().
func (t *Timeline) TimeOffset() float64 {
	return t.timeOffset
}

// FixedDurationTicks returns the fixed duration in own ticks, 0 when
// unbounded.
func (t *Timeline) FixedDurationTicks() int64 {
	return t.fixedDurationTicks
}

// LoopWhenReachingEnd reports whether a fixed-duration timeline resets
// instead of ending.
func (t *Timeline) LoopWhenReachingEnd() bool {
	return t.loopWhenReachingEnd
}

// TicksPerSecond returns the expected own-tick frequency.
func (t *Timeline) TicksPerSecond() float64 {
	return float64(t.sched.TicksPerSecond()) / t.globalTickStep()
}

// TickPeriod returns the expected own-tick period.
func (t *Timeline) TickPeriod() time.Duration {
	return time.Duration(t.globalTickStep() * float64(t.sched.tickPeriodMicros) * float64(time.Microsecond))
}

// StartTimeMicros returns the corrected time at which the current epoch
// started (creation, last Reset or last loop).
func (t *Timeline) StartTimeMicros() int64 {
	return t.startTimeMicros.Load()
}

// RunningElapsedTicks returns the ticks produced in the current epoch.
func (t *Timeline) RunningElapsedTicks() int64 {
	return t.runningElapsedTicks.Load()
}

// RunningElapsedTimeMicros returns the un-paused corrected time elapsed
// in the current epoch.
func (t *Timeline) RunningElapsedTimeMicros() int64 {
	return t.runningElapsedTimeMicros.Load()
}

// PausedElapsedTicks returns the core ticks spent paused in the current
// epoch.
func (t *Timeline) PausedElapsedTicks() int64 {
	return t.pausedElapsedTicks.Load()
}

// PausedElapsedTimeMicros returns the corrected time spent paused in the
// current epoch.
func (t *Timeline) PausedElapsedTimeMicros() int64 {
	return t.pausedElapsedTimeMicros.Load()
}

// ResetCount returns how many times this timeline has reset (explicitly
// or by looping). It survives resets and only ever grows.
func (t *Timeline) ResetCount() int64 {
	return t.resetCount.Load()
}

// LastTick returns the most recent snapshot, nil before the first tick
// of the current epoch.
func (t *Timeline) LastTick() *Time {
	return t.last.Load()
}

// Progress returns the completed fraction of a fixed-duration timeline,
// clamped to [0,1], or -1 when unbounded.
func (t *Timeline) Progress() float64 {
	return t.progress()
}

func (t *Timeline) progress() float64 {
	if t.fixedDurationTicks == 0 {
		return -1
	}
	p := float64(t.runningElapsedTicks.Load()) / float64(t.fixedDurationTicks)
	if p > 1 {
		p = 1
	}
	return p
}

// Time returns the logical time of this timeline:
// timeOffset + globalTickScaling * runningElapsedTicks.
// Callers needing exactness should use the tick counters directly.
func (t *Timeline) Time() float64 {
	return t.timeOffset + t.globalTickScaling()*float64(t.runningElapsedTicks.Load())
}

// RegisterListener registers a listener called at every tick of this
// timeline, after all previously registered listeners. Cancelling the
// returned handle deregisters it.
func (t *Timeline) RegisterListener(listener TimeListener) (TaskHandle, error) {
	if listener == nil {
		return nil, ErrNilTask
	}
	if t.closed.Load() {
		return nil, ErrTimelineClosed
	}
	entry := &listenerEntry{fn: listener}
	t.mu.Lock()
	t.listeners = append(t.listeners, entry)
	t.mu.Unlock()
	return &listenerHandle{entry: entry}, nil
}

// Close detaches the timeline from the tick flow and delivers one
// nil-Time closure notification to its listeners. Children are not
// closed (their lifetime is owned by whoever created them) but stop
// receiving ticks, since propagation flows through this node.
// Idempotent.
func (t *Timeline) Close() {
	if !t.closed.CompareAndSwap(false, true) {
		return
	}
	if t.childToken != nil {
		t.childToken.cancelled.Store(true)
	}
	if t.tickerHandle != nil {
		t.tickerHandle.Cancel()
	}
	// Deliver the closure notification on the driver goroutine, ordered
	// after any tick already in flight.
	_, _ = t.sched.ScheduleOnce(func(ctx context.Context) {
		t.notifyClosure()
	}, 0, nil)
}
