package prometheus

import (
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestMetricsExporter_RecordMethods(t *testing.T) {
	reg := prom.NewRegistry()
	exporter, err := NewMetricsExporter("chronon", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("NewMetricsExporter failed: %v", err)
	}

	exporter.RecordTaskDuration("timer", 250*time.Millisecond)
	exporter.RecordTaskPanic("ticker")
	exporter.RecordHeapDepth(7)
	exporter.RecordClockOffset(-1500 * time.Millisecond)
	exporter.RecordSyncFailure()
	exporter.RecordTimelineTick("core")
	exporter.RecordTimelineTick("core")

	panicTotal := testutil.ToFloat64(exporter.taskPanicTotal.WithLabelValues("ticker"))
	if panicTotal != 1 {
		t.Fatalf("panic total = %v, want 1", panicTotal)
	}

	heapDepth := testutil.ToFloat64(exporter.heapDepth)
	if heapDepth != 7 {
		t.Fatalf("heap depth = %v, want 7", heapDepth)
	}

	offset := testutil.ToFloat64(exporter.clockOffsetSeconds)
	if offset != -1.5 {
		t.Fatalf("clock offset = %v, want -1.5", offset)
	}

	syncFailures := testutil.ToFloat64(exporter.syncFailureTotal)
	if syncFailures != 1 {
		t.Fatalf("sync failure total = %v, want 1", syncFailures)
	}

	ticks := testutil.ToFloat64(exporter.timelineTickTotal.WithLabelValues("core"))
	if ticks != 2 {
		t.Fatalf("timeline tick total = %v, want 2", ticks)
	}

	histCount, err := histogramSampleCount(exporter.taskDurationSeconds.WithLabelValues("timer"))
	if err != nil {
		t.Fatalf("histogramSampleCount failed: %v", err)
	}
	if histCount != 1 {
		t.Fatalf("duration sample count = %d, want 1", histCount)
	}
}

func TestMetricsExporter_AlreadyRegisteredReuse(t *testing.T) {
	reg := prom.NewRegistry()
	first, err := NewMetricsExporter("chronon", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("first NewMetricsExporter failed: %v", err)
	}
	second, err := NewMetricsExporter("chronon", reg, ExporterOptions{})
	if err != nil {
		t.Fatalf("second NewMetricsExporter failed: %v", err)
	}

	first.RecordTaskPanic("timer")
	second.RecordTaskPanic("timer")

	got := testutil.ToFloat64(first.taskPanicTotal.WithLabelValues("timer"))
	if got != 2 {
		t.Fatalf("shared panic counter = %v, want 2", got)
	}
}

func TestMetricsExporter_NilReceiverIsNoOp(t *testing.T) {
	var exporter *MetricsExporter

	exporter.RecordTaskDuration("timer", time.Second)
	exporter.RecordTaskPanic("timer")
	exporter.RecordHeapDepth(1)
	exporter.RecordClockOffset(time.Second)
	exporter.RecordSyncFailure()
	exporter.RecordTimelineTick("core")
}

func histogramSampleCount(observer prom.Observer) (uint64, error) {
	collector, ok := observer.(prom.Collector)
	if !ok {
		return 0, nil
	}

	metricCh := make(chan prom.Metric, 1)
	collector.Collect(metricCh)
	close(metricCh)
	for metric := range metricCh {
		msg := &dto.Metric{}
		if err := metric.Write(msg); err != nil {
			return 0, err
		}
		if msg.Histogram != nil {
			return msg.Histogram.GetSampleCount(), nil
		}
	}
	return 0, nil
}
