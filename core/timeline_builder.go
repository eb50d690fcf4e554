package core

// TimelineBuilder creates a new Timeline as child or sibling of an
// existing one. Timelines are complex enough that a single create call
// cannot cover all use-cases; the builder collects overrides and
// finalizes with Create.
//
// The timeline parameters (tick step, scaling, offset, fixed duration,
// loop flag) are fixed at Create time; changing the shape of a running
// hierarchy is done by creating new timelines, not by mutating old ones.
type TimelineBuilder struct {
	parent *Timeline
	sched  *CoreScheduler

	paused              bool
	startTimePoint      *int64
	localTickStep       float64
	localTickScaling    float64
	timeOffset          float64
	fixedDurationTicks  int64
	loopWhenReachingEnd bool
}

// NewChildTimeline returns a builder for a child of this timeline. With
// cloneState the builder is seeded with the caller's current parameters
// (tick step, scaling, offset, fixed duration, loop flag, paused
// state); otherwise it starts from defaults (step 1, scaling 1, running,
// unbounded).
func (t *Timeline) NewChildTimeline(cloneState bool) *TimelineBuilder {
	b := &TimelineBuilder{
		parent:           t,
		sched:            t.sched,
		localTickStep:    1,
		localTickScaling: 1,
	}
	if cloneState {
		b.seedFrom(t)
	}
	return b
}

// NewSiblingTimeline returns a builder for a timeline sharing this
// timeline's parent. The root has no parent, so a sibling of the root
// is an error. With cloneState the builder is seeded from the caller
// (not the parent).
func (t *Timeline) NewSiblingTimeline(cloneState bool) (*TimelineBuilder, error) {
	if t.parent == nil {
		return nil, ErrNoParent
	}
	b := &TimelineBuilder{
		parent:           t.parent,
		sched:            t.sched,
		localTickStep:    1,
		localTickScaling: 1,
	}
	if cloneState {
		b.seedFrom(t)
	}
	return b, nil
}

func (b *TimelineBuilder) seedFrom(t *Timeline) {
	b.paused = t.pausedLocally.Load()
	b.localTickStep = t.localTickStep
	b.localTickScaling = t.localTickScaling
	b.timeOffset = t.timeOffset
	b.fixedDurationTicks = t.fixedDurationTicks
	b.loopWhenReachingEnd = t.loopWhenReachingEnd
}

// Paused makes the new timeline start in the paused state.
func (b *TimelineBuilder) Paused() *TimelineBuilder {
	b.paused = true
	return b
}

// Running makes the new timeline start in the running state.
func (b *TimelineBuilder) Running() *TimelineBuilder {
	b.paused = false
	return b
}

// SetStartTimePoint sets the corrected time, in microseconds, at which
// the new timeline's epoch starts. By default the time when Create is
// called is used.
func (b *TimelineBuilder) SetStartTimePoint(startMicros int64) *TimelineBuilder {
	b.startTimePoint = &startMicros
	return b
}

// SetLocalTickStep sets the parent ticks consumed per own tick. Must be
// positive; values below 1 make the child tick faster than its parent
// on average.
func (b *TimelineBuilder) SetLocalTickStep(step float64) *TimelineBuilder {
	b.localTickStep = step
	return b
}

// SetLocalTickScaling sets the local scaling applied to elapsed ticks
// when computing Time().
func (b *TimelineBuilder) SetLocalTickScaling(scaling float64) *TimelineBuilder {
	b.localTickScaling = scaling
	return b
}

// SetTimeOffset sets the fixed offset added to produce Time().
func (b *TimelineBuilder) SetTimeOffset(offset float64) *TimelineBuilder {
	b.timeOffset = offset
	return b
}

// SetFixedDurationTicks fixes the timeline's duration ahead of time, in
// own ticks. 0 means no fixed duration.
func (b *TimelineBuilder) SetFixedDurationTicks(ticks int64) *TimelineBuilder {
	b.fixedDurationTicks = ticks
	return b
}

// SetLoopWhenReachingEnd chooses, for a fixed-duration timeline,
// between ending and resetting when the end is reached.
func (b *TimelineBuilder) SetLoopWhenReachingEnd(loop bool) *TimelineBuilder {
	b.loopWhenReachingEnd = loop
	return b
}

// SetTicksPerSecond adjusts the local tick step to reach the desired
// own-tick frequency. Unless the frequency divides the parent cadence
// exactly, it is only followed on average; and a later pause or step
// change in the parent still applies on top.
func (b *TimelineBuilder) SetTicksPerSecond(ticksPerSecond float64) *TimelineBuilder {
	if ticksPerSecond > 0 {
		b.localTickStep = b.parent.TicksPerSecond() / ticksPerSecond
	} else {
		b.localTickStep = 0 // rejected in Create
	}
	return b
}

// Create builds the timeline with the currently specified parameters
// and attaches it to the parent's tick flow. The name cannot be empty.
func (b *TimelineBuilder) Create(name string) (*Timeline, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !(b.localTickStep > 0) {
		return nil, ErrInvalidTickStep
	}
	if b.fixedDurationTicks < 0 {
		b.fixedDurationTicks = 0
	}
	if b.parent.closed.Load() {
		return nil, ErrTimelineClosed
	}

	t := &Timeline{
		name:                name,
		sched:               b.sched,
		parent:              b.parent,
		localTickStep:       b.localTickStep,
		localTickScaling:    b.localTickScaling,
		timeOffset:          b.timeOffset,
		fixedDurationTicks:  b.fixedDurationTicks,
		loopWhenReachingEnd: b.loopWhenReachingEnd,
	}
	t.pausedLocally.Store(b.paused)

	start := b.sched.clock.NowMicros()
	if b.startTimePoint != nil {
		start = *b.startTimePoint
	}
	t.initEpoch(start)

	token := &childEntry{tl: t}
	t.childToken = token

	b.parent.mu.Lock()
	b.parent.children = append(b.parent.children, token)
	b.parent.mu.Unlock()

	return t, nil
}
