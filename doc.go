// Package chronon provides trustworthy time and a lightweight scheduling
// substrate for applications that cannot rely on the host clock being
// correct, monotonic, or even roughly synchronized.
//
// The library is built from three tightly coupled pieces:
//
// CorrectedClock reconciles the unreliable system clock against zero or
// more external time references (ClockSynchronizers) and produces a
// UTC-anchored, monotonically non-decreasing, microsecond-resolution
// timestamp. Backward corrections are absorbed gradually instead of
// stepping time backward.
//
// CoreScheduler is a single background goroutine driving all timing in
// the process: one-shot timers, fixed-rate and fixed-delay repeating
// timers, and a fixed-cadence core tick (default 60 Hz). All callbacks
// run on that one goroutine, totally ordered, never concurrently with
// each other.
//
// Timeline is a hierarchy of logical clocks derived from the core tick:
// virtual clocks with pause, scale and offset semantics independent of
// real time, suitable for simulations, cinematics and game loops.
//
// # Quick Start
//
// Construct a TimeService and pass it around:
//
//	svc, err := chronon.NewTimeService(chronon.DefaultConfig())
//	if err != nil {
//		// ...
//	}
//	defer svc.Close()
//
//	svc.Scheduler().ScheduleOnce(func(ctx context.Context) {
//		fmt.Println("fired at", svc.Now())
//	}, time.Second, nil)
//
// Or initialize the process-wide service once at startup:
//
//	if err := chronon.Init(chronon.DefaultConfig()); err != nil {
//		// ...
//	}
//	defer chronon.Shutdown()
//
// Derive a slower, looping timeline for a cinematic:
//
//	cam, err := svc.CoreTimeline().NewChildTimeline(false).
//		SetTicksPerSecond(20).
//		SetFixedDurationTicks(120).
//		SetLoopWhenReachingEnd(true).
//		Create("camera-swing")
//
//	cam.RegisterListener(func(t *chronon.Time) {
//		if t == nil {
//			return // timeline ended or closed
//		}
//		render(t.Progress)
//	})
//
// # Threading Model
//
// Exactly one goroutine (the scheduler driver) executes all timer
// callbacks, ticker callbacks and timeline listeners. Callbacks must
// therefore never block or run long: a slow callback delays every other
// timer and timeline in the process. Registration and cancellation are
// safe from any goroutine.
//
// The clock's periodic synchronizer refresh runs on its own
// low-frequency goroutine, independent of the scheduler, so the
// scheduler can depend on corrected time without a cycle.
package chronon
