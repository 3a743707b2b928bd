package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSchedulerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newSchedulerMetrics(registry, Config{ServiceName: "tunedesk", Environment: "test"})

	m.IncJobRun("stale_batches")
	m.ObserveJobDuration("stale_batches", 20*time.Millisecond)
	m.IncJobTimeout("stale_batches")
	m.IncJobError("stale_batches", context.DeadlineExceeded)
	m.AddProcessed("stale_batches", 3)
	m.AddProcessed("stale_batches", 0)

	if got := testutil.ToFloat64(m.jobRuns.WithLabelValues("stale_batches")); got != 1 {
		t.Fatalf("expected 1 run, got %v", got)
	}
	if got := testutil.ToFloat64(m.timeouts.WithLabelValues("stale_batches")); got != 1 {
		t.Fatalf("expected 1 timeout, got %v", got)
	}
	if got := testutil.ToFloat64(m.errors.WithLabelValues("stale_batches", SchedulerJobReasonDeadlineExceeded)); got != 1 {
		t.Fatalf("expected 1 deadline error, got %v", got)
	}
	if got := testutil.ToFloat64(m.processed.WithLabelValues("stale_batches")); got != 3 {
		t.Fatalf("expected 3 processed, got %v", got)
	}
}

func TestNilSchedulerMetricsAreSafe(t *testing.T) {
	var m *SchedulerMetrics
	m.IncJobRun("job")
	m.ObserveJobDuration("job", time.Second)
	m.IncJobTimeout("job")
	m.IncJobError("job", errors.New("boom"))
	m.AddProcessed("job", 1)
}

func TestClassifySchedulerError(t *testing.T) {
	if got := ClassifySchedulerError(context.Canceled); got != SchedulerJobReasonDeadlineExceeded {
		t.Fatalf("expected deadline reason, got %q", got)
	}
	if got := ClassifySchedulerError(&pgconn.PgError{Code: "40001"}); got != SchedulerJobReasonDB {
		t.Fatalf("expected db reason, got %q", got)
	}
	if got := ClassifySchedulerError(errors.New("boom")); got != SchedulerJobReasonUnknown {
		t.Fatalf("expected unknown reason, got %q", got)
	}
}
