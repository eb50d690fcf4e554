package core

import (
	"context"
	"runtime/debug"
	"sync"
	"time"
)

// Task kinds reported to ErrorHandler and Metrics.
const (
	kindTimer    = "timer"
	kindTicker   = "ticker"
	kindListener = "listener"
)

// CoreScheduler is the single background goroutine driving all timing in
// the process: one-shot timers, repeating timers, and the fixed-cadence
// core tick that feeds the timeline hierarchy. It owns a timer min-heap
// and a list of tick subscribers.
//
// All callbacks (timer tasks and ticker payloads) execute strictly on the
// driver goroutine, so they are totally ordered with respect to each
// other and never run concurrently with each other. The driver blocks
// only while idle or while waiting for the nearest future fire time; it
// is woken early by any registration with an earlier fire time and by
// Close.
//
// Fire times are computed from the corrected clock, not the raw system
// clock.
type CoreScheduler struct {
	clock            *CorrectedClock
	tickPeriodMicros int64
	ticksPerSecond   int

	logger         Logger
	metrics        Metrics
	defaultHandler ErrorHandler

	mu        sync.Mutex
	heap      timerHeap
	tickers   []*tickerEntry
	tickEntry *scheduledEntry // internal tick-broadcast entry, nil while no tickers
	closed    bool

	wakeup   chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewCoreScheduler creates a scheduler bound to the given corrected clock
// and immediately starts the driver goroutine. The clock is shared, not
// owned: Close does not close it.
func NewCoreScheduler(clock *CorrectedClock, config *Config) *CoreScheduler {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := config.withDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &CoreScheduler{
		clock:            clock,
		ticksPerSecond:   cfg.TicksPerSecond,
		tickPeriodMicros: MicrosPerSecond / int64(cfg.TicksPerSecond),
		logger:           cfg.Logger,
		metrics:          cfg.Metrics,
		defaultHandler:   cfg.ErrorHandler,
		wakeup:           make(chan struct{}, 1),
		stopChan:         make(chan struct{}),
		ctx:              ctx,
		cancel:           cancel,
	}

	s.wg.Add(1)
	go s.runLoop()
	return s
}

// TicksPerSecond returns the configured core tick frequency.
func (s *CoreScheduler) TicksPerSecond() int {
	return s.ticksPerSecond
}

// TickPeriod returns the core tick period.
func (s *CoreScheduler) TickPeriod() time.Duration {
	return time.Duration(s.tickPeriodMicros) * time.Microsecond
}

// Clock returns the corrected clock driving this scheduler.
func (s *CoreScheduler) Clock() *CorrectedClock {
	return s.clock
}

// ScheduleOnce runs task once after delay. A negative delay clamps to
// zero, meaning "as soon as possible". errHandler may be nil, in which
// case the scheduler-wide default handles panics.
func (s *CoreScheduler) ScheduleOnce(task Task, delay time.Duration, errHandler ErrorHandler) (TaskHandle, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	return s.schedule(task, delay, -1, false, errHandler)
}

// ScheduleAtFixedDelay runs task after delay and then repeatedly, each
// next fire time computed from the actual completion time of the
// previous run plus period. Jitter is absorbed without bunching.
func (s *CoreScheduler) ScheduleAtFixedDelay(task Task, delay, period time.Duration, errHandler ErrorHandler) (TaskHandle, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return s.schedule(task, delay, period, false, errHandler)
}

// ScheduleAtFixedRate runs task after delay and then repeatedly, each
// next fire time computed from the previous scheduled fire time plus
// period, regardless of execution duration. Runs may bunch up when the
// system falls behind; this is the documented fixed-rate trade-off.
func (s *CoreScheduler) ScheduleAtFixedRate(task Task, delay, period time.Duration, errHandler ErrorHandler) (TaskHandle, error) {
	if task == nil {
		return nil, ErrNilTask
	}
	if period <= 0 {
		return nil, ErrInvalidPeriod
	}
	return s.schedule(task, delay, period, true, errHandler)
}

func (s *CoreScheduler) schedule(task Task, delay, period time.Duration, fixedRate bool, errHandler ErrorHandler) (TaskHandle, error) {
	if delay < 0 {
		delay = 0
	}
	periodMicros := int64(-1)
	if period > 0 {
		periodMicros = period.Microseconds()
		if periodMicros == 0 {
			periodMicros = 1 // sub-microsecond periods round up
		}
	}
	entry := &scheduledEntry{
		fireAtMicros: s.clock.NowMicros() + delay.Microseconds(),
		periodMicros: periodMicros,
		fixedRate:    fixedRate,
		task:         task,
		errHandler:   errHandler,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	becameHead := s.heap.push(entry)
	depth := len(s.heap)
	s.mu.Unlock()

	s.metrics.RecordHeapDepth(depth)
	if becameHead {
		s.wake()
	}
	return &entryHandle{entry: entry}, nil
}

// ScheduleTicker registers task to run once per core tick, after all
// previously registered tickers. The tick broadcast itself is a
// fixed-rate heap entry at the core tick period; it is created when the
// first ticker registers and retired when the last one cancels, so an
// idle scheduler truly blocks.
func (s *CoreScheduler) ScheduleTicker(task Task, errHandler ErrorHandler) (TaskHandle, error) {
	if task == nil {
		return nil, ErrNilTask
	}

	te := &tickerEntry{task: task, errHandler: errHandler}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrSchedulerClosed
	}
	s.tickers = append(s.tickers, te)
	var becameHead bool
	if s.tickEntry == nil {
		s.tickEntry = &scheduledEntry{
			fireAtMicros: s.clock.NowMicros() + s.tickPeriodMicros,
			periodMicros: s.tickPeriodMicros,
			fixedRate:    true,
			task:         s.broadcastTick,
		}
		becameHead = s.heap.push(s.tickEntry)
	}
	s.mu.Unlock()

	if becameHead {
		s.wake()
	}
	return &tickerHandle{entry: te}, nil
}

// broadcastTick invokes every live ticker payload synchronously, in
// registration order. A panicking ticker is isolated so it cannot stop
// the others or the tick cadence. Runs on the driver goroutine as the
// payload of the internal fixed-rate tick entry.
func (s *CoreScheduler) broadcastTick(ctx context.Context) {
	s.mu.Lock()
	kept := s.tickers[:0]
	for _, te := range s.tickers {
		if !te.cancelled.Load() {
			kept = append(kept, te)
		}
	}
	for i := len(kept); i < len(s.tickers); i++ {
		s.tickers[i] = nil
	}
	s.tickers = kept
	if len(s.tickers) == 0 && s.tickEntry != nil {
		// Last ticker gone: retire the broadcast entry so the driver can
		// go fully idle. A later ScheduleTicker creates a fresh one.
		s.tickEntry.cancel()
		s.tickEntry = nil
		s.mu.Unlock()
		return
	}
	live := make([]*tickerEntry, len(s.tickers))
	copy(live, s.tickers)
	s.mu.Unlock()

	for _, te := range live {
		if te.cancelled.Load() {
			continue
		}
		s.runGuarded(kindTicker, te.task, te.errHandler)
	}
}

// Purge removes all cancelled entries from the heap eagerly and compacts
// the ticker list. Returns the number of removed heap entries. Useful
// for long-lived, cancel-heavy workloads; normal operation relies on
// lazy removal at pop time.
func (s *CoreScheduler) Purge() int {
	s.mu.Lock()
	removed := s.heap.purge()
	kept := s.tickers[:0]
	for _, te := range s.tickers {
		if !te.cancelled.Load() {
			kept = append(kept, te)
		}
	}
	for i := len(kept); i < len(s.tickers); i++ {
		s.tickers[i] = nil
	}
	s.tickers = kept
	depth := len(s.heap)
	s.mu.Unlock()

	s.metrics.RecordHeapDepth(depth)
	return removed
}

// PendingCount returns the number of entries currently in the heap,
// including not-yet-collected cancelled ones.
func (s *CoreScheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.heap)
}

// TickerCount returns the number of live ticker registrations.
func (s *CoreScheduler) TickerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, te := range s.tickers {
		if !te.cancelled.Load() {
			n++
		}
	}
	return n
}

// IsClosed reports whether Close has been called.
func (s *CoreScheduler) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close stops the driver goroutine, cancels all entries and releases
// resources. Subsequent scheduling calls fail with ErrSchedulerClosed.
// Close must not be called from a task running on the scheduler; it
// waits for the driver goroutine to exit. Idempotent.
func (s *CoreScheduler) Close() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for _, e := range s.heap {
			e.cancel()
		}
		s.heap = nil
		for _, te := range s.tickers {
			te.cancelled.Store(true)
		}
		s.tickers = nil
		s.tickEntry = nil
		s.mu.Unlock()

		close(s.stopChan)
		s.wg.Wait()
		s.cancel()
	})
}

// wake nudges the driver loop to re-evaluate its sleep. Non-blocking;
// a pending wakeup is enough.
func (s *CoreScheduler) wake() {
	select {
	case s.wakeup <- struct{}{}:
	default:
	}
}

// runLoop is the driver: pop due entries and execute them, sleep until
// the nearest future fire time, or block while idle.
func (s *CoreScheduler) runLoop() {
	defer s.wg.Done()

	timer := time.NewTimer(time.Hour)
	stopTimer(timer)
	defer timer.Stop()

	for {
		s.mu.Lock()
		top := s.heap.peek()
		if top == nil {
			s.mu.Unlock()
			// Idle: block until a registration or Close wakes us.
			select {
			case <-s.wakeup:
				continue
			case <-s.stopChan:
				return
			}
		}

		now := s.clock.NowMicros()
		if top.fireAtMicros <= now {
			entry := s.heap.pop()
			s.mu.Unlock()
			s.runEntry(entry)
			continue
		}
		wait := time.Duration(top.fireAtMicros-now) * time.Microsecond
		s.mu.Unlock()

		timer.Reset(wait)
		select {
		case <-timer.C:
			// Due; re-check at the top of the loop.
		case <-s.wakeup:
			// A nearer-term entry may have arrived; re-evaluate.
			stopTimer(timer)
		case <-s.stopChan:
			stopTimer(timer)
			return
		}
	}
}

// runEntry executes one popped entry and reinserts it when repeating.
func (s *CoreScheduler) runEntry(entry *scheduledEntry) {
	if entry.cancelled() {
		// Lazy removal: cancelled entries are dropped at pop time.
		return
	}

	start := s.clock.NowMicros()
	s.runGuarded(kindTimer, entry.task, entry.errHandler)
	end := s.clock.NowMicros()
	s.metrics.RecordTaskDuration(kindTimer, time.Duration(end-start)*time.Microsecond)

	if entry.periodMicros < 0 {
		entry.state.CompareAndSwap(statePending, stateExecuted)
		return
	}
	if entry.cancelled() {
		// Cancelled during execution: the in-flight run completed, but
		// there will be no further runs.
		return
	}
	entry.reschedule(end)

	s.mu.Lock()
	if !s.closed {
		s.heap.push(entry)
	}
	s.mu.Unlock()
}

// runGuarded executes a payload with panic isolation. A failure is
// routed to the payload's handler (or the scheduler default) and never
// crashes the driver goroutine.
func (s *CoreScheduler) runGuarded(kind string, task Task, errHandler ErrorHandler) {
	defer func() {
		if r := recover(); r != nil {
			s.metrics.RecordTaskPanic(kind)
			h := errHandler
			if h == nil {
				h = s.defaultHandler
			}
			h.HandleTaskError(kind, r, debug.Stack())
		}
	}()
	task(s.ctx)
}

// stopTimer stops and drains a timer so it is safe to Reset.
func stopTimer(t *time.Timer) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
}
