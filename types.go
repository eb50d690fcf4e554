package chronon

import "github.com/chronon-io/chronon/core"

// Re-export commonly used types from core package for convenience.
// This allows users to import only the chronon package for most use cases.

// Task is the unit of work (Closure)
type Task = core.Task

// TaskHandle is a cancellable registration returned by scheduling and
// listener-registration APIs
type TaskHandle = core.TaskHandle

// CorrectedClock reconciles the system clock against external references
type CorrectedClock = core.CorrectedClock

// TimeSample is an immutable snapshot of the clock reconciliation state
type TimeSample = core.TimeSample

// ClockSynchronizer measures the local-to-reference clock offset
type ClockSynchronizer = core.ClockSynchronizer

// FixedOffsetSynchronizer reports a constant offset (tests, examples)
type FixedOffsetSynchronizer = core.FixedOffsetSynchronizer

// CoreScheduler is the single driver goroutine behind all timing
type CoreScheduler = core.CoreScheduler

// Timeline is a node of the logical-clock hierarchy
type Timeline = core.Timeline

// TimelineBuilder creates child and sibling timelines
type TimelineBuilder = core.TimelineBuilder

// TimelineState is the lifecycle state of a Timeline
type TimelineState = core.TimelineState

// Time is one produced tick of a Timeline
type Time = core.Time

// TimeListener is called at every tick of the timeline it watches
type TimeListener = core.TimeListener

// Config holds configuration for the clock and the scheduler
type Config = core.Config

// Logger is the structured logging interface
type Logger = core.Logger

// Field is a structured logging key-value pair
type Field = core.Field

// ErrorHandler receives task panics
type ErrorHandler = core.ErrorHandler

// Metrics receives timing subsystem metrics
type Metrics = core.Metrics

// Timeline lifecycle states
const (
	StateRunning          = core.StateRunning
	StatePausedLocally    = core.StatePausedLocally
	StatePausedByAncestor = core.StatePausedByAncestor
	StateEnded            = core.StateEnded
)

// Convenience re-exports
var (
	DefaultConfig              = core.DefaultConfig
	NewCorrectedClock          = core.NewCorrectedClock
	NewCoreScheduler           = core.NewCoreScheduler
	NewCoreTimeline            = core.NewCoreTimeline
	NewFixedOffsetSynchronizer = core.NewFixedOffsetSynchronizer
	NewDefaultLogger           = core.NewDefaultLogger
	NewNoOpLogger              = core.NewNoOpLogger
	F                          = core.F
)

// Re-exported sentinel errors
var (
	ErrSchedulerClosed = core.ErrSchedulerClosed
	ErrNilTask         = core.ErrNilTask
	ErrInvalidPeriod   = core.ErrInvalidPeriod
	ErrInvalidTickStep = core.ErrInvalidTickStep
	ErrEmptyName       = core.ErrEmptyName
	ErrNoParent        = core.ErrNoParent
	ErrTimelineClosed  = core.ErrTimelineClosed
)
