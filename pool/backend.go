package pool

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// executor runs tasks on behalf of one worker.
type executor[T any, R any] interface {
	execute(ctx context.Context, t Task[T, R]) (R, error)
	// close releases the executor once its worker has stopped.
	close() error
	// kill stops any in-flight execution. It may be called from any goroutine.
	kill()
}

// goroutineExecutor calls the task function on the worker goroutine itself.
type goroutineExecutor[T any, R any] struct{}

func (goroutineExecutor[T, R]) execute(ctx context.Context, t Task[T, R]) (R, error) {
	return t.Fn(ctx, t.Arg)
}

func (goroutineExecutor[T, R]) close() error {
	return nil
}

// kill is a no-op: goroutines cannot be stopped from outside. Terminate cancels the
// context passed to the task instead.
func (goroutineExecutor[T, R]) kill() {}

func backendName(cfg *config) string {
	if cfg.registry != nil {
		return "process"
	}
	return "goroutine"
}

// newExecutors creates one executor per worker. Process executors start their child
// processes concurrently; if any fails, the ones already started are shut down.
func newExecutors[T any, R any](ctx context.Context, cfg *config, logger *zap.Logger, m *metrics) ([]executor[T, R], error) {
	executors := make([]executor[T, R], cfg.workerCount)
	if cfg.registry == nil {
		for i := range executors {
			executors[i] = goroutineExecutor[T, R]{}
		}
		return executors, nil
	}

	procs := make([]*processExecutor[T, R], cfg.workerCount)
	g, gctx := errgroup.WithContext(ctx)
	for i := range procs {
		procs[i] = newProcessExecutor[T, R](i, cfg, logger, m)
		g.Go(func() error {
			_, err := procs[i].ensure(gctx)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		for _, p := range procs {
			p.kill()
			_ = p.close()
		}
		return nil, err
	}

	for i, p := range procs {
		executors[i] = p
	}
	return executors, nil
}
