package core

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// recordingMetrics captures metric calls for assertions.
type recordingMetrics struct {
	mu           sync.Mutex
	syncFailures int
	panics       map[string]int
	offsets      []time.Duration
	ticks        map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		panics: make(map[string]int),
		ticks:  make(map[string]int),
	}
}

func (m *recordingMetrics) RecordTaskDuration(kind string, duration time.Duration) {}

func (m *recordingMetrics) RecordTaskPanic(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panics[kind]++
}

func (m *recordingMetrics) RecordHeapDepth(depth int) {}

func (m *recordingMetrics) RecordClockOffset(offset time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offsets = append(m.offsets, offset)
}

func (m *recordingMetrics) RecordSyncFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncFailures++
}

func (m *recordingMetrics) RecordTimelineTick(timeline string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[timeline]++
}

func (m *recordingMetrics) syncFailureCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.syncFailures
}

func (m *recordingMetrics) panicCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.panics[kind]
}

func (m *recordingMetrics) tickCount(timeline string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ticks[timeline]
}

// quietConfig returns a config whose background refresh loop stays out of
// the test's way.
func quietConfig(syncs ...ClockSynchronizer) *Config {
	return &Config{
		Synchronizers:   syncs,
		RefreshInterval: time.Hour,
		RefreshTimeout:  time.Second,
		Logger:          NewNoOpLogger(),
	}
}

// newTestClock builds a clock without the background refresh goroutine so
// tests fully control when Refresh runs.
func newTestClock(config *Config) *CorrectedClock {
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
	return c
}

func TestCorrectedClock_NoSynchronizersFollowsSystemClock(t *testing.T) {
	clock := NewCorrectedClock(quietConfig())
	defer clock.Close()

	system := time.Now().UnixMicro()
	corrected := clock.NowMicros()

	diff := corrected - system
	if diff < 0 {
		diff = -diff
	}
	// Allow generous scheduling tolerance
	if diff > 50*MicrosPerMilli {
		t.Errorf("Expected corrected time to track system clock, diff = %dµs", diff)
	}
}

func TestCorrectedClock_BestPrecisionWins(t *testing.T) {
	coarse := NewFixedOffsetSynchronizer(500*time.Millisecond, 50*time.Microsecond)
	precise := NewFixedOffsetSynchronizer(500200*time.Microsecond, 5*time.Microsecond)

	clock := newTestClock(quietConfig(coarse, precise))
	defer clock.Close()

	clock.Refresh()

	offset := clock.Sample().OffsetMicros
	if offset != 500200 {
		t.Errorf("Expected offset from the 5µs-precision source (500200µs), got %dµs", offset)
	}
	if clock.Sample().PrecisionMicros != 5 {
		t.Errorf("Expected precision 5µs, got %dµs", clock.Sample().PrecisionMicros)
	}
}

func TestCorrectedClock_ForwardCorrectionAppliesImmediately(t *testing.T) {
	source := NewFixedOffsetSynchronizer(2*time.Second, 10*time.Microsecond)

	clock := newTestClock(quietConfig(source))

	before := clock.NowMicros()
	clock.Refresh()
	after := clock.NowMicros()

	if clock.Sample().blendDurMicros != 0 {
		t.Error("Forward correction must not arm a blend")
	}
	jump := after - before
	if jump < MicrosPerSecond {
		t.Errorf("Expected an immediate ~2s forward jump, got %dµs", jump)
	}
}

func TestCorrectedClock_MonotonicUnderBackwardCorrection(t *testing.T) {
	source := NewFixedOffsetSynchronizer(500*time.Millisecond, 10*time.Microsecond)

	clock := newTestClock(quietConfig(source))
	clock.Refresh()

	// The source jumps back 2 seconds relative to its previous answer
	source.SetOffset(-1500 * time.Millisecond)
	clock.Refresh()

	prev := clock.NowMicros()
	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		now := clock.NowMicros()
		if now < prev {
			t.Fatalf("Clock went backward: %d -> %d", prev, now)
		}
		prev = now
		time.Sleep(time.Millisecond)
	}
}

func TestCorrectedClock_BackwardCorrectionConverges(t *testing.T) {
	source := NewFixedOffsetSynchronizer(500*time.Millisecond, 10*time.Microsecond)

	clock := newTestClock(quietConfig(source))
	clock.Refresh()

	source.SetOffset(400 * time.Millisecond)
	clock.Refresh()

	sample := clock.Sample()
	if sample.blendDurMicros == 0 {
		t.Fatal("Backward correction must arm a blend")
	}

	// After the blend window the effective offset equals the target
	monoAfter := sample.blendStartMicros + sample.blendDurMicros + 1
	if got := sample.effectiveOffsetMicros(monoAfter); got != sample.OffsetMicros {
		t.Errorf("Expected effective offset %dµs after blend, got %dµs", sample.OffsetMicros, got)
	}
}

func TestCorrectedClock_AllSourcesFailKeepsOffset(t *testing.T) {
	metrics := newRecordingMetrics()
	var failures int
	var mu sync.Mutex

	good := NewFixedOffsetSynchronizer(300*time.Millisecond, 10*time.Microsecond)
	config := quietConfig(good)
	config.Metrics = metrics
	config.OnSyncFailure = func(sync ClockSynchronizer, err error) {
		mu.Lock()
		failures++
		mu.Unlock()
	}

	clock := newTestClock(config)
	clock.Refresh()

	offsetBefore := clock.Sample().OffsetMicros
	if offsetBefore != 300*MicrosPerMilli {
		t.Fatalf("Expected offset 300ms before failure, got %dµs", offsetBefore)
	}

	good.SetError(errors.New("server unreachable"))
	clock.Refresh()

	if got := clock.Sample().OffsetMicros; got != offsetBefore {
		t.Errorf("Expected previous offset %dµs retained, got %dµs", offsetBefore, got)
	}
	if metrics.syncFailureCount() < 1 {
		t.Error("Expected at least one sync failure recorded")
	}
	mu.Lock()
	gotFailures := failures
	mu.Unlock()
	if gotFailures < 1 {
		t.Error("Expected OnSyncFailure to be called")
	}
}

func TestCorrectedClock_RefreshTimeoutSkipsSlowSource(t *testing.T) {
	slow := NewFixedOffsetSynchronizer(time.Second, time.Microsecond)
	slow.SetDelay(500 * time.Millisecond)
	fast := NewFixedOffsetSynchronizer(200*time.Millisecond, 50*time.Microsecond)

	config := quietConfig(slow, fast)
	config.RefreshTimeout = 100 * time.Millisecond

	clock := newTestClock(config)

	start := time.Now()
	clock.Refresh()
	elapsed := time.Since(start)

	if elapsed > 300*time.Millisecond {
		t.Errorf("Refresh should respect the timeout, took %v", elapsed)
	}
	if got := clock.Sample().OffsetMicros; got != 200*MicrosPerMilli {
		t.Errorf("Expected the fast source's 200ms offset, got %dµs", got)
	}
}

func TestCorrectedClock_CloseIsIdempotent(t *testing.T) {
	source := NewFixedOffsetSynchronizer(0, time.Microsecond)
	clock := NewCorrectedClock(quietConfig(source))

	clock.Close()
	clock.Close()

	// NowMicros keeps working after Close
	if clock.NowMicros() == 0 {
		t.Error("NowMicros should keep working after Close")
	}
}

func TestTimeSample_BlendInterpolation(t *testing.T) {
	s := &TimeSample{
		OffsetMicros:     0,
		prevOffsetMicros: 1000,
		blendStartMicros: 10000,
		blendDurMicros:   2000,
	}

	if got := s.effectiveOffsetMicros(9000); got != 1000 {
		t.Errorf("Before blend start: got %d, want 1000", got)
	}
	if got := s.effectiveOffsetMicros(11000); got != 500 {
		t.Errorf("At midpoint: got %d, want 500", got)
	}
	if got := s.effectiveOffsetMicros(12000); got != 0 {
		t.Errorf("After blend end: got %d, want 0", got)
	}
}
