package pool

import (
	"context"
	"time"

	"github.com/utkarsh5026/futurepool/internal/cpu"
	"go.uber.org/zap"
)

// worker pulls jobs off the shared queue until it is closed and drained, or until
// the pool is terminated.
func (p *Pool[T, R]) worker(id int, ex executor[T, R]) error {
	logger := p.logger.With(zap.Int("worker", id))

	if p.cfg.cpuAffinity && p.cfg.registry == nil {
		release, err := cpu.Pin(id)
		if err != nil {
			logger.Debug("cpu pinning unavailable", zap.Error(err))
		}
		defer release()
	}

	defer func() {
		if err := ex.close(); err != nil {
			logger.Warn("worker shutdown", zap.Error(err))
		}
	}()

	for {
		j, err := p.queue.Pop(p.ctx)
		if err != nil {
			logger.Debug("worker exiting", zap.Error(err))
			return nil
		}
		p.run(logger, ex, j)
	}
}

// run executes one job and settles its future.
func (p *Pool[T, R]) run(logger *zap.Logger, ex executor[T, R], j *job[T, R]) {
	f := j.future
	if !f.setRunning() {
		logger.Debug("skipping cancelled task", zap.Int64("task", j.task.ID))
		return
	}

	p.metrics.taskStarted(time.Since(j.enqueued))
	start := time.Now()
	result, err := p.execute(p.ctx, ex, j.task)
	p.metrics.taskEnded(time.Since(start))

	p.publish(logger, f, result, err)
}

// execute encapsulates rate limiting, hook execution and processing with retry.
// A panicking hook fails the task instead of the worker.
func (p *Pool[T, R]) execute(ctx context.Context, ex executor[T, R], t Task[T, R]) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverPanic(r)
		}
	}()

	if p.cfg.rateLimiter != nil {
		if err := p.cfg.rateLimiter.Wait(ctx); err != nil {
			var zero R
			// Rate limiter's error doesn't wrap context errors, so check context explicitly
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, err
		}
	}

	if p.hooks.beforeTaskStart != nil {
		p.hooks.beforeTaskStart(t.Arg)
	}

	result, err = p.processWithRetry(ctx, ex, t)

	if p.hooks.onTaskEnd != nil {
		p.hooks.onTaskEnd(t.Arg, result, err)
	}

	return result, err
}

// processWithRetry runs the task up to maxAttempts times with exponential backoff
// between attempts. Serialization failures are final.
func (p *Pool[T, R]) processWithRetry(ctx context.Context, ex executor[T, R], t Task[T, R]) (result R, err error) {
	maxAttempts := max(p.cfg.maxAttempts, 1)
	delays := newRetryBackOff(p.cfg)

	for attempt := range maxAttempts {
		if attempt > 0 {
			if p.cfg.initialDelay > 0 {
				if err := sleepCtx(ctx, delays.NextBackOff()); err != nil {
					return result, err
				}
			}
			p.metrics.taskRetried()
		}

		result, err = processWithRecovery(ctx, ex, t)
		if err == nil || isSerialization(err) || ctx.Err() != nil {
			return result, err
		}

		if p.hooks.onRetry != nil && attempt < maxAttempts-1 {
			p.hooks.onRetry(t.Arg, attempt+1, err)
		}
	}

	return result, err
}

// processWithRecovery converts a panic into a *PanicError to prevent crashing the worker.
func processWithRecovery[T, R any](ctx context.Context, ex executor[T, R], t Task[T, R]) (result R, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = recoverPanic(r)
		}
	}()

	return ex.execute(ctx, t)
}

// publish writes the outcome into the future. A future cancelled by Terminate while
// the task ran rejects it; the late outcome is only logged.
func (p *Pool[T, R]) publish(logger *zap.Logger, f *Future[R], result R, err error) {
	if err == nil {
		if perr := f.setResult(result); perr != nil {
			logger.Debug("discarding late result", zap.Int64("task", f.ID()), zap.Error(perr))
		}
		return
	}

	if !isSerialization(err) {
		err = &TaskError{TaskID: f.ID(), Err: err}
	}
	if perr := f.setError(err); perr != nil {
		logger.Debug("discarding late error", zap.Int64("task", f.ID()), zap.Error(perr), zap.NamedError("late", err))
		return
	}
	logger.Warn("task failed", zap.Int64("task", f.ID()), zap.Error(err))
}
