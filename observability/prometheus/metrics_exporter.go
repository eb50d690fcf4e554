package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/chronon-io/chronon/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	timelineTickTotal   *prom.CounterVec
	syncFailureTotal    prom.Counter
	heapDepth           prom.Gauge
	clockOffsetSeconds  prom.Gauge
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "chronon"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Scheduled task execution duration in seconds.",
		Buckets:   buckets,
	}, []string{"kind"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of task panics.",
	}, []string{"kind"})
	tickVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "timeline_tick_total",
		Help:      "Total number of ticks produced, per timeline.",
	}, []string{"timeline"})
	syncFailureCounter := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "sync_failure_total",
		Help:      "Total number of clock synchronizer failures.",
	})
	heapDepthGauge := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "heap_depth",
		Help:      "Current number of pending scheduler heap entries.",
	})
	clockOffsetGauge := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "clock_offset_seconds",
		Help:      "Currently applied clock offset in seconds.",
	})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if tickVec, err = registerCollector(reg, tickVec); err != nil {
		return nil, err
	}
	if syncFailureCounter, err = registerCollector(reg, syncFailureCounter); err != nil {
		return nil, err
	}
	if heapDepthGauge, err = registerCollector(reg, heapDepthGauge); err != nil {
		return nil, err
	}
	if clockOffsetGauge, err = registerCollector(reg, clockOffsetGauge); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		timelineTickTotal:   tickVec,
		syncFailureTotal:    syncFailureCounter,
		heapDepth:           heapDepthGauge,
		clockOffsetSeconds:  clockOffsetGauge,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(kind string, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(kind, "unknown")).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(kind string) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(kind, "unknown")).Inc()
}

// RecordHeapDepth records the pending heap entry count.
func (m *MetricsExporter) RecordHeapDepth(depth int) {
	if m == nil {
		return
	}
	m.heapDepth.Set(float64(depth))
}

// RecordClockOffset records the currently applied clock offset.
func (m *MetricsExporter) RecordClockOffset(offset time.Duration) {
	if m == nil {
		return
	}
	m.clockOffsetSeconds.Set(offset.Seconds())
}

// RecordSyncFailure records a clock synchronizer failure.
func (m *MetricsExporter) RecordSyncFailure() {
	if m == nil {
		return
	}
	m.syncFailureTotal.Inc()
}

// RecordTimelineTick records a produced timeline tick.
func (m *MetricsExporter) RecordTimelineTick(timeline string) {
	if m == nil {
		return
	}
	m.timelineTickTotal.WithLabelValues(normalizeLabel(timeline, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
