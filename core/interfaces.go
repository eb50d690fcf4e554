package core

import (
	"fmt"
	"time"
)

// =============================================================================
// ErrorHandler: Interface for handling task failures
// =============================================================================

// ErrorHandler is called when a scheduled task or ticker panics during
// execution. The failure is contained: the driver goroutine recovers,
// reports here, and keeps going.
//
// Implementations should be thread-safe; the driver goroutine calls them,
// but nothing stops an application from sharing one handler across
// several schedulers.
type ErrorHandler interface {
	// HandleTaskError is called when a task panics.
	//
	// Parameters:
	// - kind: What kind of work failed ("timer", "ticker" or "listener")
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandleTaskError(kind string, panicInfo any, stackTrace []byte)
}

// DefaultErrorHandler provides a basic handler that logs through a Logger.
type DefaultErrorHandler struct {
	Logger Logger
}

// HandleTaskError logs the panic and its stack trace.
func (h *DefaultErrorHandler) HandleTaskError(kind string, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error(fmt.Sprintf("%s task panicked", kind),
		F("panic", panicInfo),
		F("stack", string(stackTrace)))
}

// SyncFailureHandler is called when a single clock synchronizer fails a
// refresh cycle. The failure is non-fatal; the synchronizer is simply
// skipped for that cycle.
type SyncFailureHandler func(sync ClockSynchronizer, err error)

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting timing subsystem metrics.
// Implementations can send metrics to monitoring systems (Prometheus, StatsD, etc.).
//
// Methods should be non-blocking and fast: most of them run on the single
// driver goroutine, where a slow metrics sink delays every timer and tick.
type Metrics interface {
	// RecordTaskDuration records how long a task took to execute.
	//
	// Parameters:
	// - kind: What kind of work ran ("timer" or "ticker")
	// - duration: How long the task took to execute
	RecordTaskDuration(kind string, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(kind string)

	// RecordHeapDepth records the current number of pending heap entries.
	RecordHeapDepth(depth int)

	// RecordClockOffset records the currently applied clock offset.
	RecordClockOffset(offset time.Duration)

	// RecordSyncFailure records that a clock synchronizer failed a
	// refresh cycle.
	RecordSyncFailure()

	// RecordTimelineTick records that a timeline produced a tick.
	RecordTimelineTick(timeline string)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

// RecordTaskDuration is a no-op.
func (m *NilMetrics) RecordTaskDuration(kind string, duration time.Duration) {}

// RecordTaskPanic is a no-op.
func (m *NilMetrics) RecordTaskPanic(kind string) {}

// RecordHeapDepth is a no-op.
func (m *NilMetrics) RecordHeapDepth(depth int) {}

// RecordClockOffset is a no-op.
func (m *NilMetrics) RecordClockOffset(offset time.Duration) {}

// RecordSyncFailure is a no-op.
func (m *NilMetrics) RecordSyncFailure() {}

// RecordTimelineTick is a no-op.
func (m *NilMetrics) RecordTimelineTick(timeline string) {}

// =============================================================================
// Config: Configuration for the timing subsystem
// =============================================================================

// Config holds configuration options for the corrected clock and the core
// scheduler. All handlers are optional; if not provided, default
// implementations will be used.
type Config struct {
	// TicksPerSecond is the core tick frequency. Defaults to
	// DefaultTicksPerSecond (60).
	TicksPerSecond int

	// Synchronizers is the ordered set of external time references used
	// by the corrected clock. May be empty, in which case the clock
	// degrades to the raw (possibly wrong) system clock.
	Synchronizers []ClockSynchronizer

	// RefreshInterval is how often the corrected clock re-queries its
	// synchronizers. Defaults to 10 minutes.
	RefreshInterval time.Duration

	// RefreshTimeout bounds how long a single refresh cycle waits for
	// synchronizer answers. Defaults to 5 seconds.
	RefreshTimeout time.Duration

	// ErrorHandler is called when a task panics and no per-task handler
	// was given. Defaults to DefaultErrorHandler.
	ErrorHandler ErrorHandler

	// OnSyncFailure is called for each synchronizer that fails a refresh
	// cycle. Defaults to logging through Logger.
	OnSyncFailure SyncFailureHandler

	// Logger is used for subsystem logging. Defaults to DefaultLogger.
	Logger Logger

	// Metrics is called to record timing metrics. Defaults to NilMetrics.
	Metrics Metrics
}

// DefaultConfig returns a config with default values and handlers.
func DefaultConfig() *Config {
	return &Config{
		TicksPerSecond:  DefaultTicksPerSecond,
		RefreshInterval: 10 * time.Minute,
		RefreshTimeout:  5 * time.Second,
		Logger:          NewDefaultLogger(),
		Metrics:         &NilMetrics{},
	}
}

// withDefaults fills missing fields so internal code never nil-checks them.
func (c *Config) withDefaults() *Config {
	out := *c
	if out.TicksPerSecond <= 0 {
		out.TicksPerSecond = DefaultTicksPerSecond
	}
	if out.RefreshInterval <= 0 {
		out.RefreshInterval = 10 * time.Minute
	}
	if out.RefreshTimeout <= 0 {
		out.RefreshTimeout = 5 * time.Second
	}
	if out.Logger == nil {
		out.Logger = NewDefaultLogger()
	}
	if out.Metrics == nil {
		out.Metrics = &NilMetrics{}
	}
	if out.ErrorHandler == nil {
		out.ErrorHandler = &DefaultErrorHandler{Logger: out.Logger}
	}
	if out.OnSyncFailure == nil {
		logger := out.Logger
		out.OnSyncFailure = func(sync ClockSynchronizer, err error) {
			logger.Warn("clock synchronizer failed",
				F("precision", sync.ExpectedPrecision()),
				F("error", err))
		}
	}
	return &out
}
