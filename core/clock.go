package core

import (
	"sync"
	"sync/atomic"
	"time"
)

// minBlendWindowMicros is the smallest window over which a backward
// clock correction is absorbed.
const minBlendWindowMicros = 250 * MicrosPerMilli

// TimeSample is an immutable snapshot of the clock reconciliation state.
// A new sample is created on every refresh; readers load it atomically so
// they never observe a partially updated offset.
type TimeSample struct {
	// LocalMonoMicros is the process-local monotonic counter at the time
	// the sample was created.
	LocalMonoMicros int64

	// CorrectedUTCMicros is the best estimate of true UTC at the time
	// the sample was created.
	CorrectedUTCMicros int64

	// OffsetMicros is the target local-to-reference offset:
	// corrected UTC minus raw system UTC.
	OffsetMicros int64

	// PrecisionMicros is the expected precision declared by the
	// synchronizer that produced the offset. Zero when no synchronizer
	// has been consulted yet.
	PrecisionMicros int64

	// Blend state for absorbing backward corrections. When blendDurMicros
	// is zero the target offset applies directly.
	prevOffsetMicros int64
	blendStartMicros int64
	blendDurMicros   int64
}

// effectiveOffsetMicros returns the offset in force at the given
// monotonic instant, interpolating through an in-progress blend.
func (s *TimeSample) effectiveOffsetMicros(monoMicros int64) int64 {
	if s.blendDurMicros == 0 {
		return s.OffsetMicros
	}
	elapsed := monoMicros - s.blendStartMicros
	if elapsed >= s.blendDurMicros {
		return s.OffsetMicros
	}
	if elapsed < 0 {
		return s.prevOffsetMicros
	}
	delta := s.OffsetMicros - s.prevOffsetMicros
	return s.prevOffsetMicros + delta*elapsed/s.blendDurMicros
}

// CorrectedClock produces a UTC-anchored, monotonically non-decreasing,
// microsecond-resolution timestamp even when the local system clock is
// wrong or unsynchronized. It reconciles the system clock against zero
// or more ClockSynchronizers.
//
// Backward corrections are never applied instantaneously. When a refresh
// lowers the believed offset, the effective offset is blended linearly
// from the old value to the new one over a window of
// max(250ms, 2*|delta|), which caps the apparent slow-down at 50% and
// keeps observed time non-decreasing. Forward corrections apply at once.
//
// The periodic refresh runs on its own low-frequency goroutine, not on
// the core scheduler, so that the scheduler can depend on the clock
// without creating a cycle.
type CorrectedClock struct {
	start   time.Time // monotonic anchor
	baseUTC int64     // raw system UTC micros at start

	sample atomic.Pointer[TimeSample]
	floor  atomic.Int64 // highest value ever returned by NowMicros

	synchronizers  []ClockSynchronizer
	refreshTimeout time.Duration
	onSyncFailure  SyncFailureHandler
	logger         Logger
	metrics        Metrics

	refreshInterval time.Duration
	stopChan        chan struct{}
	stopOnce        sync.Once
	wg              sync.WaitGroup
}

// NewCorrectedClock creates a corrected clock from the given config and
// starts the periodic refresh goroutine when at least one synchronizer
// is configured. With no synchronizers the clock follows the raw system
// clock and both accuracy and the cross-refresh monotonic guarantee
// degrade together.
func NewCorrectedClock(config *Config) *CorrectedClock {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := config.withDefaults()

	start := time.Now()
	c := &CorrectedClock{
		start:           start,
		baseUTC:         start.UnixMicro(),
		synchronizers:   cfg.Synchronizers,
		refreshTimeout:  cfg.RefreshTimeout,
		refreshInterval: cfg.RefreshInterval,
		onSyncFailure:   cfg.OnSyncFailure,
		logger:          cfg.Logger,
		metrics:         cfg.Metrics,
		stopChan:        make(chan struct{}),
	}
	c.sample.Store(&TimeSample{CorrectedUTCMicros: c.baseUTC})
	c.floor.Store(c.baseUTC)

	if len(c.synchronizers) > 0 {
		c.wg.Add(1)
		go c.refreshLoop()
	}
	return c
}

// monoMicros returns microseconds elapsed on the monotonic counter since
// the clock was created.
func (c *CorrectedClock) monoMicros() int64 {
	return time.Since(c.start).Microseconds()
}

// NowMicros returns the corrected UTC time in microseconds. It is O(1),
// never blocks and never fails. Successive values are non-decreasing,
// for all callers, even across refreshes that lower the offset.
func (c *CorrectedClock) NowMicros() int64 {
	mono := c.monoMicros()
	s := c.sample.Load()
	now := c.baseUTC + mono + s.effectiveOffsetMicros(mono)

	for {
		prev := c.floor.Load()
		if now <= prev {
			return prev
		}
		if c.floor.CompareAndSwap(prev, now) {
			return now
		}
	}
}

// Now returns the corrected UTC time as a time.Time.
func (c *CorrectedClock) Now() time.Time {
	return time.UnixMicro(c.NowMicros()).UTC()
}

// Sample returns the current reconciliation snapshot.
func (c *CorrectedClock) Sample() *TimeSample {
	return c.sample.Load()
}

// Refresh runs one synchronization cycle: it queries all configured
// synchronizers, keeps the answer with the smallest expected precision
// among those that succeeded within the refresh timeout, and installs
// the resulting offset. When every source fails the previous offset is
// retained; the stale offset is still more trustworthy than the raw
// system clock. Refresh itself cannot fail.
func (c *CorrectedClock) Refresh() {
	if len(c.synchronizers) == 0 {
		return
	}

	type measurement struct {
		sync   ClockSynchronizer
		offset time.Duration
		err    error
	}

	results := make(chan measurement, len(c.synchronizers))
	for _, s := range c.synchronizers {
		go func(s ClockSynchronizer) {
			offset, err := s.MeasureOffset()
			results <- measurement{sync: s, offset: offset, err: err}
		}(s)
	}

	deadline := time.NewTimer(c.refreshTimeout)
	defer deadline.Stop()

	var best *measurement
	received := 0
collect:
	for received < len(c.synchronizers) {
		select {
		case m := <-results:
			received++
			if m.err != nil {
				c.metrics.RecordSyncFailure()
				c.onSyncFailure(m.sync, m.err)
				continue
			}
			if best == nil || m.sync.ExpectedPrecision() < best.sync.ExpectedPrecision() {
				m := m
				best = &m
			}
		case <-deadline.C:
			// Late answers are drained by the buffered channel.
			break collect
		}
	}

	if best == nil {
		c.logger.Warn("clock refresh: no synchronizer available, keeping previous offset",
			F("offset_us", c.sample.Load().OffsetMicros))
		return
	}

	c.applyOffset(best.offset.Microseconds(), best.sync.ExpectedPrecision().Microseconds())
}

// applyOffset installs a new target offset, arming a blend when the
// correction would move time backward.
func (c *CorrectedClock) applyOffset(offsetMicros, precisionMicros int64) {
	mono := c.monoMicros()
	old := c.sample.Load()
	oldEffective := old.effectiveOffsetMicros(mono)

	s := &TimeSample{
		LocalMonoMicros: mono,
		OffsetMicros:    offsetMicros,
		PrecisionMicros: precisionMicros,
	}
	if offsetMicros < oldEffective {
		delta := oldEffective - offsetMicros
		dur := 2 * delta
		if dur < minBlendWindowMicros {
			dur = minBlendWindowMicros
		}
		s.prevOffsetMicros = oldEffective
		s.blendStartMicros = mono
		s.blendDurMicros = dur
	}
	s.CorrectedUTCMicros = c.baseUTC + mono + s.effectiveOffsetMicros(mono)
	c.sample.Store(s)

	c.metrics.RecordClockOffset(time.Duration(offsetMicros) * time.Microsecond)
	c.logger.Debug("clock refreshed",
		F("offset_us", offsetMicros),
		F("precision_us", precisionMicros))
}

// refreshLoop runs Refresh at the configured interval until Close.
// The first refresh happens immediately so a freshly created clock does
// not stay on the raw system clock for a whole interval.
func (c *CorrectedClock) refreshLoop() {
	defer c.wg.Done()

	c.Refresh()

	ticker := time.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Refresh()
		case <-c.stopChan:
			return
		}
	}
}

// Close stops the refresh goroutine. NowMicros keeps working with the
// last installed offset. Close is idempotent.
func (c *CorrectedClock) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
}
