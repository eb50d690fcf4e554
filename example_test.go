package chronon_test

import (
	"context"
	"fmt"
	"time"

	chronon "github.com/chronon-io/chronon"
)

// ExampleNewTimeService demonstrates basic scheduling with one import.
func ExampleNewTimeService() {
	svc, err := chronon.NewTimeService(nil)
	if err != nil {
		panic(err)
	}
	defer svc.Close()

	done := make(chan struct{})

	svc.Scheduler().ScheduleOnce(func(ctx context.Context) {
		fmt.Println("first")
	}, 10*time.Millisecond, nil)

	svc.Scheduler().ScheduleOnce(func(ctx context.Context) {
		fmt.Println("second")
		close(done)
	}, 30*time.Millisecond, nil)

	<-done

	// Output:
	// first
	// second
}

// ExampleTimeline demonstrates deriving a slower timeline from the core
// tick.
func ExampleTimeline() {
	config := chronon.DefaultConfig()
	config.TicksPerSecond = 100

	svc, err := chronon.NewTimeService(config)
	if err != nil {
		panic(err)
	}
	defer svc.Close()

	done := make(chan struct{})

	// Ticks once for every 10 core ticks, for exactly 3 ticks
	slow, err := svc.CoreTimeline().NewChildTimeline(false).
		SetLocalTickStep(10).
		SetFixedDurationTicks(3).
		Create("slow")
	if err != nil {
		panic(err)
	}
	defer slow.Close()

	slow.RegisterListener(func(t *chronon.Time) {
		if t == nil {
			fmt.Println("ended")
			close(done)
			return
		}
		fmt.Println("tick", t.Ticks)
	})

	<-done

	// Output:
	// tick 1
	// tick 2
	// tick 3
	// ended
}
