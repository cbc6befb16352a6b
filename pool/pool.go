package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/utkarsh5026/futurepool/internal/scheduler"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Pool runs submitted tasks on a fixed set of workers fed by one shared FIFO queue.
//
// A pool is Open after New, Closing after Close or Terminate, and Closed once every
// worker has exited. Every task accepted by Submit reaches exactly one terminal
// state on its Future before Join returns.
type Pool[T any, R any] struct {
	id      string
	cfg     *config
	hooks   hooks[T, R]
	logger  *zap.Logger
	metrics *metrics

	queue     scheduler.Queue[*job[T, R]]
	executors []executor[T, R]

	// ctx is passed to every task and cancelled by Terminate.
	ctx    context.Context
	cancel context.CancelFunc

	state  atomic.Int32
	nextID atomic.Int64

	mu          sync.Mutex
	outstanding map[int64]*Future[R]

	done          chan struct{}
	closeOnce     sync.Once
	terminateOnce sync.Once
}

// New creates a pool and starts its workers.
//
// It fails if a hook's types do not match T and R, if the metrics cannot be
// registered, or if a process worker cannot be started.
func New[T any, R any](opts ...Option) (*Pool[T, R], error) {
	cfg := createConfig(opts...)

	h, err := checkHooks[T, R](cfg)
	if err != nil {
		return nil, err
	}

	id := cfg.name
	if id == "" {
		id = uuid.NewString()
	}

	logger := cfg.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("pool", id))

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool[T, R]{
		id:          id,
		cfg:         cfg,
		hooks:       h,
		logger:      logger,
		queue:       scheduler.New[*job[T, R]](cfg.queueKind, cfg.queueCapacity),
		ctx:         ctx,
		cancel:      cancel,
		outstanding: make(map[int64]*Future[R]),
		done:        make(chan struct{}),
	}

	p.metrics, err = newMetrics(cfg.registerer, id,
		func() float64 { return float64(p.queue.Len()) },
		func() float64 { return float64(p.Outstanding()) },
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	p.executors, err = newExecutors[T, R](ctx, cfg, logger, p.metrics)
	if err != nil {
		cancel()
		p.metrics.unregister()
		return nil, err
	}

	p.start()
	logger.Info("pool started",
		zap.Int("workers", cfg.workerCount),
		zap.String("backend", backendName(cfg)),
		zap.Stringer("queue", cfg.queueKind),
	)
	return p, nil
}

func (p *Pool[T, R]) start() {
	var g errgroup.Group
	for i, ex := range p.executors {
		g.Go(func() error {
			return p.worker(i, ex)
		})
	}

	go func() {
		if err := g.Wait(); err != nil {
			p.logger.Error("worker stopped with error", zap.Error(err))
		}
		p.cancel()
		p.state.Store(int32(PoolClosed))
		p.logger.Info("pool closed")
		close(p.done)
	}()
}

// Submit schedules fn(ctx, arg) and returns its Pending future immediately.
// On a bounded queue it blocks while the queue is full.
// It fails with ErrPoolClosed once Close or Terminate has been called.
func (p *Pool[T, R]) Submit(fn ProcessFunc[T, R], arg T) (*Future[R], error) {
	return p.SubmitTask(context.Background(), Task[T, R]{Fn: fn, Arg: arg})
}

// SubmitContext is Submit where ctx bounds the wait for queue space.
func (p *Pool[T, R]) SubmitContext(ctx context.Context, fn ProcessFunc[T, R], arg T) (*Future[R], error) {
	return p.SubmitTask(ctx, Task[T, R]{Fn: fn, Arg: arg})
}

// SubmitTask schedules a prepared task. Its ID is overwritten with the next pool id.
func (p *Pool[T, R]) SubmitTask(ctx context.Context, t Task[T, R]) (*Future[R], error) {
	if t.Fn == nil {
		return nil, errors.New("submit: nil task function")
	}
	if p.State() != PoolOpen {
		return nil, ErrPoolClosed
	}

	t.ID = p.nextID.Add(1)
	f := newFuture[R](t.ID)
	p.track(f)

	pushCtx, stop := mergeContext(ctx, p.ctx)
	defer stop()

	if err := p.queue.Push(pushCtx, &job[T, R]{task: t, future: f, enqueued: time.Now()}); err != nil {
		p.untrack(t.ID)
		if errors.Is(err, scheduler.ErrQueueClosed) || p.ctx.Err() != nil {
			return nil, ErrPoolClosed
		}
		return nil, ctxError(err)
	}

	p.metrics.taskSubmitted()
	p.logger.Debug("task submitted", zap.Int64("task", t.ID))
	return f, nil
}

// SubmitAll submits one task per element of args, in order. On failure it returns
// the futures submitted so far together with the error.
func (p *Pool[T, R]) SubmitAll(ctx context.Context, fn ProcessFunc[T, R], args []T) ([]*Future[R], error) {
	futures := make([]*Future[R], 0, len(args))
	for _, arg := range args {
		f, err := p.SubmitContext(ctx, fn, arg)
		if err != nil {
			return futures, err
		}
		futures = append(futures, f)
	}
	return futures, nil
}

// Map runs fn over args and returns the results in input order, whatever order the
// tasks finish in.
//
// On the first failure in input order Map cancels every later task that has not
// started yet and returns that failure. Tasks already running finish in the
// background. If ctx ends first, Map stops waiting, cancels what has not started
// and returns the context error (ErrTimeout for a deadline).
func (p *Pool[T, R]) Map(ctx context.Context, fn ProcessFunc[T, R], args []T) ([]R, error) {
	futures, err := p.SubmitAll(ctx, fn, args)
	if err != nil {
		cancelFutures(futures)
		return nil, err
	}

	results := make([]R, len(futures))
	for i, f := range futures {
		v, err := f.GetWithContext(ctx)
		if err != nil {
			cancelFutures(futures[i:])
			return nil, err
		}
		results[i] = v
	}
	return results, nil
}

// Close stops accepting submissions. Queued tasks still run. It does not wait;
// use Join for that. Close is idempotent.
func (p *Pool[T, R]) Close() {
	p.closeOnce.Do(func() {
		p.state.CompareAndSwap(int32(PoolOpen), int32(PoolClosing))
		p.queue.Close()
		p.logger.Info("pool closing", zap.Int("queued", p.queue.Len()))
	})
}

// Join blocks until every accepted task is terminal and every worker has exited.
// It fails with ErrNotClosed if neither Close nor Terminate was called first.
func (p *Pool[T, R]) Join() error {
	return p.JoinContext(context.Background())
}

// JoinContext is Join bounded by ctx.
func (p *Pool[T, R]) JoinContext(ctx context.Context) error {
	if p.State() == PoolOpen {
		return ErrNotClosed
	}
	return waitUntil(ctx, p.done)
}

// Terminate shuts the pool down without waiting for queued work.
//
// Every future that is not terminal yet, queued or running, becomes Cancelled at
// once. What happens to running tasks depends on the backend: goroutine workers
// cannot be interrupted, so the task's context is cancelled and whatever it
// eventually returns is discarded; process workers are killed on the spot.
//
// With WithTerminateGrace, Terminate first behaves like Close and waits up to the
// grace period for the queue to drain, and only then forces what is left.
func (p *Pool[T, R]) Terminate() {
	p.terminateOnce.Do(func() {
		if grace := p.cfg.terminateGrace; grace > 0 {
			p.Close()
			ctx, cancel := context.WithTimeout(context.Background(), grace)
			err := waitUntil(ctx, p.done)
			cancel()
			if err == nil {
				return
			}
			p.logger.Warn("pool did not drain within grace period", zap.Duration("grace", grace))
		}

		p.state.CompareAndSwap(int32(PoolOpen), int32(PoolClosing))

		// Futures are cancelled before their tasks see the cancelled context, so a
		// task returning ctx.Err() cannot fail its future first.
		cause := fmt.Errorf("%w: pool terminated", ErrCancelled)
		cancelled := p.cancelOutstanding(cause)

		p.cancel()
		p.queue.Close()
		for _, ex := range p.executors {
			ex.kill()
		}

		// A Submit racing with Terminate may have slipped in after the first pass.
		cancelled += p.cancelOutstanding(cause)
		p.logger.Info("pool terminated", zap.Int("cancelled", cancelled))
	})
}

// cancelOutstanding force-cancels every tracked future and returns how many it
// moved to Cancelled.
func (p *Pool[T, R]) cancelOutstanding(cause error) int {
	n := 0
	for _, f := range p.snapshot() {
		if f.forceCancel(cause) == nil {
			n++
		}
	}
	return n
}

// Shutdown closes the pool and waits for it to drain. If ctx ends first the pool is
// terminated and the context error is returned.
func (p *Pool[T, R]) Shutdown(ctx context.Context) error {
	p.Close()
	if err := p.JoinContext(ctx); err != nil {
		p.Terminate()
		return err
	}
	return nil
}

// ID returns the pool's name, or the UUID generated for it.
func (p *Pool[T, R]) ID() string {
	return p.id
}

func (p *Pool[T, R]) State() PoolState {
	return PoolState(p.state.Load())
}

// Workers returns the number of workers.
func (p *Pool[T, R]) Workers() int {
	return len(p.executors)
}

// Outstanding returns the number of submitted tasks that are not terminal yet.
func (p *Pool[T, R]) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.outstanding)
}

// track registers f until it becomes terminal.
func (p *Pool[T, R]) track(f *Future[R]) {
	p.mu.Lock()
	p.outstanding[f.ID()] = f
	p.mu.Unlock()

	f.subscribe(func() {
		p.untrack(f.ID())
		p.metrics.taskFinished(f.State())
	})
}

func (p *Pool[T, R]) untrack(id int64) {
	p.mu.Lock()
	delete(p.outstanding, id)
	p.mu.Unlock()
}

func (p *Pool[T, R]) snapshot() []*Future[R] {
	p.mu.Lock()
	defer p.mu.Unlock()

	fs := make([]*Future[R], 0, len(p.outstanding))
	for _, f := range p.outstanding {
		fs = append(fs, f)
	}
	return fs
}

func cancelFutures[R any](fs []*Future[R]) {
	for _, f := range fs {
		f.Cancel()
	}
}

// mergeContext returns a context that ends when either ctx or other does.
func mergeContext(ctx, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(other, cancel)
	return merged, func() {
		stop()
		cancel()
	}
}
