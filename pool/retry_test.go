package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestRetry_EventuallySucceeds(t *testing.T) {
	var attempts atomic.Int32
	flaky := func(_ context.Context, n int) (int, error) {
		if attempts.Add(1) < 3 {
			return 0, errors.New("transient")
		}
		return n, nil
	}

	p := newTestPool[int, int](t, WithWorkerCount(1), WithRetryPolicy(3, time.Millisecond))
	f, _ := p.Submit(flaky, 7)

	v, err := f.GetWithTimeout(2 * time.Second)
	if err != nil || v != 7 {
		t.Fatalf("expected (7, nil), got (%d, %v)", v, err)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	var attempts atomic.Int32
	always := func(_ context.Context, n int) (int, error) {
		attempts.Add(1)
		return 0, errors.New("permanent")
	}

	var mu sync.Mutex
	var retried []int
	p := newTestPool[int, int](t,
		WithWorkerCount(1),
		WithRetryPolicy(4, 0),
		WithOnRetry(func(_ int, attempt int, err error) {
			mu.Lock()
			retried = append(retried, attempt)
			mu.Unlock()
		}),
	)

	f, _ := p.Submit(always, 1)
	_, err := f.GetWithTimeout(2 * time.Second)

	var te *TaskError
	if !errors.As(err, &te) || te.Err.Error() != "permanent" {
		t.Fatalf("expected the last error wrapped in *TaskError, got %v", err)
	}
	if attempts.Load() != 4 {
		t.Errorf("expected 4 attempts, got %d", attempts.Load())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(retried) != 3 || retried[0] != 1 || retried[2] != 3 {
		t.Errorf("expected onRetry for attempts [1 2 3], got %v", retried)
	}
}

func TestRetry_ExponentialDelay(t *testing.T) {
	var mu sync.Mutex
	var stamps []time.Time
	always := func(_ context.Context, n int) (int, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return 0, errors.New("fail")
	}

	p := newTestPool[int, int](t, WithWorkerCount(1), WithRetryPolicy(3, 20*time.Millisecond))
	f, _ := p.Submit(always, 1)
	_, _ = f.GetWithTimeout(2 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	if len(stamps) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(stamps))
	}
	if d := stamps[1].Sub(stamps[0]); d < 18*time.Millisecond {
		t.Errorf("first retry after %v, expected about 20ms", d)
	}
	if d := stamps[2].Sub(stamps[1]); d < 36*time.Millisecond {
		t.Errorf("second retry after %v, expected about 40ms", d)
	}
}

func TestRetry_MaxDelayCaps(t *testing.T) {
	b := newRetryBackOff(createConfig(WithRetryPolicy(5, 10*time.Millisecond), WithMaxRetryDelay(25*time.Millisecond)))

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 25 * time.Millisecond, 25 * time.Millisecond}
	for i, w := range want {
		if got := b.NextBackOff(); got != w {
			t.Errorf("delay %d: expected %v, got %v", i, w, got)
		}
	}
}

func TestRetry_StopsOnTerminate(t *testing.T) {
	var attempts atomic.Int32
	always := func(_ context.Context, n int) (int, error) {
		attempts.Add(1)
		return 0, errors.New("fail")
	}

	p := newTestPool[int, int](t, WithWorkerCount(1), WithRetryPolicy(100, 50*time.Millisecond))
	f, _ := p.Submit(always, 1)
	waitForState(t, f, StateRunning, time.Second)
	time.Sleep(10 * time.Millisecond)

	p.Terminate()
	if err := p.Join(); err != nil {
		t.Fatalf("join failed: %v", err)
	}
	if n := attempts.Load(); n > 2 {
		t.Errorf("expected retries to stop on terminate, got %d attempts", n)
	}
}

func TestRetry_SerializationNotRetried(t *testing.T) {
	if testing.Short() {
		t.Skip("process backend skipped in short mode")
	}

	var retries atomic.Int32
	p := newTestPool[int, int](t,
		WithWorkerCount(1),
		WithProcessBackend(testRegistry),
		WithRetryPolicy(3, 0),
		WithOnRetry(func(int, int, error) { retries.Add(1) }),
	)

	f, _ := p.Submit(unregistered, 1)
	_, err := f.GetWithTimeout(5 * time.Second)

	var se *SerializationError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SerializationError, got %v", err)
	}
	if retries.Load() != 0 {
		t.Errorf("serialization errors must not be retried, got %d retries", retries.Load())
	}
}
