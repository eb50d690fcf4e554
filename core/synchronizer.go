package core

import (
	"sync"
	"time"
)

// ClockSynchronizer measures the difference between the local system
// clock and some (relatively) reliable external reference, normally an
// internet time server. It lets the corrected clock return approximately
// correct UTC values despite large errors in the local clock setting.
//
// The network protocol behind a synchronizer is out of scope here: the
// corrected clock only consumes measurements through this interface.
type ClockSynchronizer interface {
	// ExpectedPrecision returns the precision this source is expected to
	// achieve. It must be non-blocking; it is only used to rank
	// successful measurements within one refresh cycle.
	ExpectedPrecision() time.Duration

	// MeasureOffset computes the local-to-reference clock offset. A
	// positive offset means the reference is ahead of the local clock.
	// It may block (bounded by the refresh timeout) and returns an error
	// when the source is unavailable for this cycle.
	MeasureOffset() (time.Duration, error)
}

// FixedOffsetSynchronizer reports a constant offset. Useful for tests,
// examples, and as a building block for fakes.
type FixedOffsetSynchronizer struct {
	mu        sync.Mutex
	offset    time.Duration
	precision time.Duration
	err       error
	delay     time.Duration
}

// NewFixedOffsetSynchronizer creates a synchronizer that always reports
// the given offset at the given expected precision.
func NewFixedOffsetSynchronizer(offset, precision time.Duration) *FixedOffsetSynchronizer {
	return &FixedOffsetSynchronizer{offset: offset, precision: precision}
}

// SetOffset changes the reported offset.
func (s *FixedOffsetSynchronizer) SetOffset(offset time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = offset
}

// SetError makes every subsequent measurement fail with err.
// Pass nil to recover.
func (s *FixedOffsetSynchronizer) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// SetDelay makes every subsequent measurement sleep before answering,
// to simulate a slow source.
func (s *FixedOffsetSynchronizer) SetDelay(delay time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = delay
}

// ExpectedPrecision returns the configured precision.
func (s *FixedOffsetSynchronizer) ExpectedPrecision() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.precision
}

// MeasureOffset returns the configured offset, error or delay.
func (s *FixedOffsetSynchronizer) MeasureOffset() (time.Duration, error) {
	s.mu.Lock()
	offset, err, delay := s.offset, s.err, s.delay
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return 0, err
	}
	return offset, nil
}
