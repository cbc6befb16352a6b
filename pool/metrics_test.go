package pool

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool[int, int](t, WithWorkerCount(2), WithName("metrics"), WithMetrics(reg))

	for i := range 6 {
		if _, err := p.Submit(failOdd, i); err != nil {
			t.Fatalf("submit failed: %v", err)
		}
	}
	p.Close()
	if err := p.Join(); err != nil {
		t.Fatalf("join failed: %v", err)
	}

	m := p.metrics
	if got := testutil.ToFloat64(m.submitted); got != 6 {
		t.Errorf("expected 6 submitted, got %v", got)
	}
	if got := testutil.ToFloat64(m.finished.WithLabelValues("done")); got != 3 {
		t.Errorf("expected 3 done, got %v", got)
	}
	if got := testutil.ToFloat64(m.finished.WithLabelValues("failed")); got != 3 {
		t.Errorf("expected 3 failed, got %v", got)
	}
	if got := testutil.ToFloat64(m.busy); got != 0 {
		t.Errorf("expected no busy workers after join, got %v", got)
	}

	n, err := testutil.GatherAndCount(reg, "futurepool_task_duration_seconds")
	if err != nil || n != 1 {
		t.Errorf("expected one duration histogram, got %d (%v)", n, err)
	}
}

func TestMetrics_QueueGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool[int, int](t, WithWorkerCount(1), WithName("gauges"), WithMetrics(reg))

	release := make(chan struct{})
	block := func(_ context.Context, n int) (int, error) {
		<-release
		return n, nil
	}

	first, _ := p.Submit(block, 1)
	waitForState(t, first, StateRunning, time.Second)
	_, _ = p.Submit(block, 2)
	_, _ = p.Submit(block, 3)

	expected := `
# HELP futurepool_queue_depth Current number of queued tasks
# TYPE futurepool_queue_depth gauge
futurepool_queue_depth{pool="gauges"} 2
# HELP futurepool_outstanding_tasks Current number of submitted tasks without a terminal state
# TYPE futurepool_outstanding_tasks gauge
futurepool_outstanding_tasks{pool="gauges"} 3
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"futurepool_queue_depth", "futurepool_outstanding_tasks"); err != nil {
		t.Error(err)
	}
	close(release)
}

func TestMetrics_CancelledCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := newTestPool[int, int](t, WithWorkerCount(1), WithMetrics(reg))

	f, _ := p.Submit(sleepMillis, 5000)
	waitForState(t, f, StateRunning, time.Second)
	_, _ = p.Submit(sleepMillis, 5000)
	p.Terminate()

	if got := testutil.ToFloat64(p.metrics.finished.WithLabelValues("cancelled")); got != 2 {
		t.Errorf("expected 2 cancelled, got %v", got)
	}
}

func TestMetrics_DuplicatePoolName(t *testing.T) {
	reg := prometheus.NewRegistry()
	_ = newTestPool[int, int](t, WithWorkerCount(1), WithName("dup"), WithMetrics(reg))

	p, err := New[int, int](WithWorkerCount(1), WithName("dup"), WithMetrics(reg))
	if err == nil {
		p.Terminate()
		t.Fatal("expected registering the same pool name twice to fail")
	}

	other, err := New[int, int](WithWorkerCount(1), WithName("other"), WithMetrics(reg))
	if err != nil {
		t.Fatalf("a different name should register fine: %v", err)
	}
	other.Terminate()
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *metrics
	m.taskSubmitted()
	m.taskStarted(time.Millisecond)
	m.taskEnded(time.Millisecond)
	m.taskFinished(StateDone)
	m.taskRetried()
	m.workerRespawned()
	m.unregister()
}
