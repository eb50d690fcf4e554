package chronon

import (
	"errors"
	"sync"
	"time"

	"github.com/chronon-io/chronon/core"
)

// ErrNotInitialized is returned by Default when the process-wide service
// has not been set up. Time queries fail hard rather than silently
// falling back to the raw system clock; silently trusting an unset
// service would defeat the point of a corrected clock.
var ErrNotInitialized = errors.New("chronon: time service not initialized, call Init first")

// CoreTimelineName is the name given to the root timeline of a
// TimeService.
const CoreTimelineName = "core"

// TimeService bundles the corrected clock, the core scheduler and the
// root timeline into one explicitly constructed, passed-around service
// object. Most applications create exactly one.
type TimeService struct {
	clock        *core.CorrectedClock
	scheduler    *core.CoreScheduler
	coreTimeline *core.Timeline
	logger       core.Logger

	closeOnce sync.Once
}

// NewTimeService creates and starts a TimeService: the clock begins
// refreshing against its synchronizers (if any), the scheduler driver
// goroutine starts, and the core timeline is attached to the tick flow.
func NewTimeService(config *Config) (*TimeService, error) {
	if config == nil {
		config = DefaultConfig()
	}

	clock := core.NewCorrectedClock(config)
	scheduler := core.NewCoreScheduler(clock, config)
	coreTimeline, err := core.NewCoreTimeline(CoreTimelineName, scheduler)
	if err != nil {
		scheduler.Close()
		clock.Close()
		return nil, err
	}

	logger := config.Logger
	if logger == nil {
		logger = core.NewDefaultLogger()
	}

	return &TimeService{
		clock:        clock,
		scheduler:    scheduler,
		coreTimeline: coreTimeline,
		logger:       logger,
	}, nil
}

// Clock returns the corrected clock.
func (s *TimeService) Clock() *CorrectedClock {
	return s.clock
}

// Scheduler returns the core scheduler.
func (s *TimeService) Scheduler() *CoreScheduler {
	return s.scheduler
}

// CoreTimeline returns the root timeline, advanced once per core tick.
func (s *TimeService) CoreTimeline() *Timeline {
	return s.coreTimeline
}

// NowMicros returns the corrected UTC time in microseconds.
func (s *TimeService) NowMicros() int64 {
	return s.clock.NowMicros()
}

// Now returns the corrected UTC time.
func (s *TimeService) Now() time.Time {
	return s.clock.Now()
}

// Since returns the corrected time elapsed since t.
func (s *TimeService) Since(t time.Time) time.Duration {
	return s.Now().Sub(t)
}

// Close stops the scheduler and the clock refresh. Idempotent.
func (s *TimeService) Close() {
	s.closeOnce.Do(func() {
		s.coreTimeline.Close()
		s.scheduler.Close()
		s.clock.Close()
	})
}

// =============================================================================
// Process-Wide Service (transitional global accessor)
// =============================================================================

var (
	globalService *TimeService
	globalMu      sync.Mutex
)

// Init initializes the process-wide TimeService. Calling Init twice
// without an intervening Shutdown is a no-op returning nil, matching a
// setup done once at program start. Prefer constructing a TimeService
// and passing it around; the global exists for ergonomic top-level
// access only.
func Init(config *Config) error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService != nil {
		return nil // already initialized
	}

	svc, err := NewTimeService(config)
	if err != nil {
		return err
	}
	globalService = svc
	return nil
}

// Default returns the process-wide TimeService, or ErrNotInitialized
// when Init has not been called (or Shutdown already was). It never
// blocks and never returns a wrong-but-plausible time source.
func Default() (*TimeService, error) {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService == nil {
		return nil, ErrNotInitialized
	}
	return globalService, nil
}

// Shutdown stops and clears the process-wide TimeService. Idempotent.
func Shutdown() {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalService != nil {
		globalService.Close()
		globalService = nil
	}
}
