package core

import (
	"fmt"
	"sync/atomic"
)

// Time represents one produced tick of a Timeline: an application
// logical clock reading. Instances are created by the owning Timeline
// exactly when it decides to fire on a core tick and are immutable
// thereafter, except for the lastTick link, which the timeline clears
// when the next snapshot is created so chains never grow past length 1.
//
// Comparison is based strictly on RunningElapsedTimeMicros.
type Time struct {
	// Source is the Timeline that produced this tick.
	Source *Timeline

	// Ticks is the running elapsed tick count at this tick (resets to 0
	// on Timeline reset or loop).
	Ticks int64

	// CreationTimeMicros is the corrected UTC time at which this tick
	// was produced.
	CreationTimeMicros int64

	// TickDurationMicros is the corrected time elapsed since the
	// previous tick of the same timeline (or since its start, for the
	// first tick).
	TickDurationMicros int64

	// RunningElapsedTicks equals Ticks; kept separate from the paused
	// counters queryable on the Timeline.
	RunningElapsedTicks int64

	// RunningElapsedTimeMicros is the corrected time spent un-paused
	// since the timeline started (or last reset).
	RunningElapsedTimeMicros int64

	// Progress is the completed fraction of a fixed-duration timeline,
	// clamped to [0,1]. -1 when the timeline is unbounded.
	Progress float64

	// SecondStartMicros is the beginning of the current corrected-UTC
	// second, and SecondFraction the elapsed fraction within it.
	// Convenience for display loops that align to wall seconds.
	SecondStartMicros int64
	SecondFraction    float64

	last atomic.Pointer[Time]
}

func newTime(source *Timeline, nowMicros int64, prev *Time) *Time {
	secondStart := (nowMicros / MicrosPerSecond) * MicrosPerSecond
	t := &Time{
		Source:                   source,
		Ticks:                    source.runningElapsedTicks.Load(),
		CreationTimeMicros:       nowMicros,
		TickDurationMicros:       nowMicros - source.lastTickMicros,
		RunningElapsedTicks:      source.runningElapsedTicks.Load(),
		RunningElapsedTimeMicros: source.runningElapsedTimeMicros.Load(),
		Progress:                 source.progress(),
		SecondStartMicros:        secondStart,
		SecondFraction:           float64(nowMicros-secondStart) / float64(MicrosPerSecond),
	}
	t.last.Store(prev)
	if prev != nil {
		// Bound the chain: the previous snapshot forgets its own
		// predecessor once it is superseded.
		prev.last.Store(nil)
	}
	return t
}

// LastTick returns the previous snapshot, or nil once this snapshot has
// been superseded (the chain is bounded to length 1).
func (t *Time) LastTick() *Time {
	return t.last.Load()
}

// Compare orders two snapshots by running elapsed time. Ordering is
// total; a nil other sorts first.
func (t *Time) Compare(other *Time) int {
	if other == nil {
		return 1
	}
	switch {
	case t.RunningElapsedTimeMicros < other.RunningElapsedTimeMicros:
		return -1
	case t.RunningElapsedTimeMicros > other.RunningElapsedTimeMicros:
		return 1
	default:
		return 0
	}
}

func (t *Time) String() string {
	return fmt.Sprintf("Time(source=%s,ticks=%d,creationTime=%d,tickDuration=%d,runningElapsedTime=%d,progress=%v)",
		t.Source.Name(), t.Ticks, t.CreationTimeMicros, t.TickDurationMicros,
		t.RunningElapsedTimeMicros, t.Progress)
}
