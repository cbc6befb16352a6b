package pool

import (
	"testing"
	"time"
)

// backendConfig defines a test configuration for a backend and queue combination
type backendConfig struct {
	name    string
	process bool
	opts    []Option
}

// getAllBackends returns every backend and queue kind to test
func getAllBackends(workerCount int) []backendConfig {
	return []backendConfig{
		{
			name: "Goroutine",
			opts: []Option{WithWorkerCount(workerCount)},
		},
		{
			name: "GoroutineBounded",
			opts: []Option{WithWorkerCount(workerCount), WithQueueCapacity(64)},
		},
		{
			name: "GoroutineLockFree",
			opts: []Option{WithWorkerCount(workerCount), WithLockFreeQueue(64)},
		},
		{
			name:    "Process",
			process: true,
			opts:    []Option{WithWorkerCount(workerCount), WithProcessBackend(testRegistry)},
		},
	}
}

func runBackendTest(t *testing.T, testFunc func(t *testing.T, b backendConfig), workerCount int, additionalOpts ...Option) {
	t.Helper()
	for _, b := range getAllBackends(workerCount) {
		b.opts = append(b.opts, additionalOpts...)
		t.Run(b.name, func(t *testing.T) {
			if b.process && testing.Short() {
				t.Skip("process backend skipped in short mode")
			}
			testFunc(t, b)
		})
	}
}

// newTestPool creates a pool and terminates it when the test ends.
func newTestPool[T, R any](t *testing.T, opts ...Option) *Pool[T, R] {
	t.Helper()
	p, err := New[T, R](opts...)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(p.Terminate)
	return p
}

// waitForState polls until f reaches want or the timeout expires.
func waitForState[R any](t *testing.T, f *Future[R], want State, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for f.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("future %d: expected state %s, still %s after %v", f.ID(), want, f.State(), timeout)
		}
		time.Sleep(time.Millisecond)
	}
}
