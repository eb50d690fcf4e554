package core

import "errors"

// Errors reported synchronously to callers. Failures inside scheduled
// tasks and synchronizers are never surfaced through these; they go to
// the ErrorHandler and synchronizer failure callbacks instead.
var (
	// ErrSchedulerClosed is returned by scheduling calls after Close().
	ErrSchedulerClosed = errors.New("core scheduler is closed")

	// ErrNilTask is returned when a nil task or listener is submitted.
	ErrNilTask = errors.New("task must not be nil")

	// ErrInvalidPeriod is returned when a repeating schedule is requested
	// with a period <= 0.
	ErrInvalidPeriod = errors.New("period must be positive")

	// ErrInvalidTickStep is returned when a timeline is built with a
	// tick step <= 0.
	ErrInvalidTickStep = errors.New("tick step must be positive")

	// ErrEmptyName is returned when a timeline is created without a name.
	ErrEmptyName = errors.New("timeline name must not be empty")

	// ErrNoParent is returned when a sibling of the root timeline is
	// requested; the root has no parent to share.
	ErrNoParent = errors.New("timeline has no parent")

	// ErrTimelineClosed is returned by registration calls on a closed
	// timeline.
	ErrTimelineClosed = errors.New("timeline is closed")
)
