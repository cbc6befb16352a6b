package pool

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/utkarsh5026/futurepool/internal/scheduler"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Option is a functional option for configuring a Pool.
type Option func(*config)

type config struct {
	name          string
	workerCount   int
	queueKind     scheduler.Kind
	queueCapacity int

	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	rateLimiter  *rate.Limiter

	// Hooks are stored untyped and checked against the pool's T and R in New.
	beforeTaskStart any
	onTaskEnd       any
	onRetry         any

	logger     *zap.Logger
	registerer prometheus.Registerer

	registry         *Registry
	executable       string
	workerEnv        []string
	respawnAttempts  uint
	handshakeTimeout time.Duration

	terminateGrace time.Duration
	cpuAffinity    bool
}

// WithName sets the pool id used in logs and metric labels.
// If not specified, a random UUID is used.
func WithName(name string) Option {
	return func(cfg *config) {
		cfg.name = name
	}
}

// WithWorkerCount sets the number of concurrent workers.
// If not specified, defaults to runtime.GOMAXPROCS(0).
func WithWorkerCount(count int) Option {
	return func(cfg *config) {
		if count > 0 {
			cfg.workerCount = count
		}
	}
}

// WithQueueCapacity bounds the submission queue. Once it holds capacity tasks,
// Submit blocks until a worker frees a slot (SubmitContext can give up early).
// If not specified, the queue is unbounded.
func WithQueueCapacity(capacity int) Option {
	return func(cfg *config) {
		if capacity > 0 {
			cfg.queueKind = scheduler.KindBounded
			cfg.queueCapacity = capacity
		}
	}
}

// WithLockFreeQueue backs the pool with a bounded lock-free MPMC ring buffer.
// The capacity is rounded up to a power of two of at least 2; 0 selects a default
// of 1024.
// It is optimized for many goroutines submitting concurrently.
func WithLockFreeQueue(capacity int) Option {
	return func(cfg *config) {
		cfg.queueKind = scheduler.KindLockFree
		cfg.queueCapacity = max(capacity, 0)
	}
}

// WithRetryPolicy sets a retry policy for task processing.
// maxAttempts specifies the maximum number of attempts for each task.
// initialDelay specifies the delay before the first retry; subsequent retries
// double it. If not specified, no retries are performed.
//
// A *SerializationError is never retried. Panics and lost worker processes are.
func WithRetryPolicy(maxAttempts int, initialDelay time.Duration) Option {
	return func(cfg *config) {
		if maxAttempts > 0 {
			cfg.maxAttempts = maxAttempts
		}

		if initialDelay > 0 {
			cfg.initialDelay = initialDelay
		}
	}
}

// WithMaxRetryDelay caps the exponential delay between retries.
func WithMaxRetryDelay(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.maxDelay = d
		}
	}
}

// WithRateLimit sets a rate limiter for controlling task throughput.
// tasksPerSecond specifies the maximum number of tasks to process per second.
// burst specifies the maximum number of tasks that can be processed in a burst.
// If not specified, no rate limiting is applied.
//
// Example:
//
//	WithRateLimit(10, 5) // Allow 10 tasks/sec with burst of 5
func WithRateLimit(tasksPerSecond float64, burst int) Option {
	return func(cfg *config) {
		if tasksPerSecond > 0 && burst > 0 {
			cfg.rateLimiter = rate.NewLimiter(rate.Limit(tasksPerSecond), burst)
		}
	}
}

// WithBeforeTaskStart registers a hook called with the task argument right before
// each task runs. T must match the pool's argument type, otherwise New fails.
func WithBeforeTaskStart[T any](fn func(arg T)) Option {
	return func(cfg *config) {
		cfg.beforeTaskStart = fn
	}
}

// WithOnTaskEnd registers a hook called after each task finishes, with its final
// result or error (after retries).
func WithOnTaskEnd[T any, R any](fn func(arg T, result R, err error)) Option {
	return func(cfg *config) {
		cfg.onTaskEnd = fn
	}
}

// WithOnRetry registers a hook called before each retry with the 1-based number of
// the attempt that just failed and its error.
func WithOnRetry[T any](fn func(arg T, attempt int, err error)) Option {
	return func(cfg *config) {
		cfg.onRetry = fn
	}
}

// WithLogger sets the logger. The pool logs nothing by default.
func WithLogger(logger *zap.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithMetrics registers the pool's Prometheus collectors with reg.
// Collectors carry a constant "pool" label holding the pool id.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(cfg *config) {
		cfg.registerer = reg
	}
}

// WithProcessBackend runs every task in a child process instead of a goroutine.
//
// Each worker starts one child by re-executing the current binary with
// POOLME_WORKER=1 set. The binary's main must call ServeWorker with a registry
// holding the same functions before doing anything else. Only functions registered
// in reg can be submitted, and arguments and results travel through reg's Codec.
func WithProcessBackend(reg *Registry) Option {
	return func(cfg *config) {
		cfg.registry = reg
	}
}

// WithWorkerExecutable overrides the binary started for process workers and appends
// env to its environment.
func WithWorkerExecutable(path string, env ...string) Option {
	return func(cfg *config) {
		cfg.executable = path
		cfg.workerEnv = append(cfg.workerEnv, env...)
	}
}

// WithRespawnAttempts sets how many times a process worker tries to start its child
// before failing the task at hand. Defaults to 5.
func WithRespawnAttempts(n uint) Option {
	return func(cfg *config) {
		if n > 0 {
			cfg.respawnAttempts = n
		}
	}
}

// WithHandshakeTimeout bounds how long a freshly started worker process may take to
// announce itself. Defaults to 10s.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.handshakeTimeout = d
		}
	}
}

// WithTerminateGrace makes Terminate drain the queue for up to d before forcing.
func WithTerminateGrace(d time.Duration) Option {
	return func(cfg *config) {
		if d > 0 {
			cfg.terminateGrace = d
		}
	}
}

// WithCPUAffinity pins each goroutine worker to its own OS thread and CPU core.
// It has no effect on the process backend.
func WithCPUAffinity() Option {
	return func(cfg *config) {
		cfg.cpuAffinity = true
	}
}

// hooks are the typed views of the configured hook functions.
type hooks[T any, R any] struct {
	beforeTaskStart func(T)
	onTaskEnd       func(T, R, error)
	onRetry         func(T, int, error)
}

// checkHooks validates user-supplied hook functions against the pool's argument and
// result types.
func checkHooks[T any, R any](cfg *config) (hooks[T, R], error) {
	var h hooks[T, R]
	var ok bool

	if cfg.beforeTaskStart != nil {
		if h.beforeTaskStart, ok = cfg.beforeTaskStart.(func(T)); !ok {
			return h, fmt.Errorf("WithBeforeTaskStart hook is %T, but pool processes %s", cfg.beforeTaskStart, typeName[T]())
		}
	}

	if cfg.onTaskEnd != nil {
		if h.onTaskEnd, ok = cfg.onTaskEnd.(func(T, R, error)); !ok {
			return h, fmt.Errorf("WithOnTaskEnd hook is %T, but pool processes %s into %s", cfg.onTaskEnd, typeName[T](), typeName[R]())
		}
	}

	if cfg.onRetry != nil {
		if h.onRetry, ok = cfg.onRetry.(func(T, int, error)); !ok {
			return h, fmt.Errorf("WithOnRetry hook is %T, but pool processes %s", cfg.onRetry, typeName[T]())
		}
	}

	return h, nil
}
