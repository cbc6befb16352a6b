// Package pool provides a generic executor that runs tasks on a fixed set of
// workers and hands back futures for their results.
//
// The primary type is Pool[T, R]: workers take tasks off one shared FIFO queue,
// call a ProcessFunc[T, R] on the task's argument and settle the task's
// Future[R]. Workers are goroutines by default, or child processes with
// WithProcessBackend.
//
// # Basic Usage
//
//	p, err := pool.New[int, int](pool.WithWorkerCount(4))
//	if err != nil {
//	    return err
//	}
//	defer p.Terminate()
//
//	f, err := p.Submit(square, 7)
//	if err != nil {
//	    return err
//	}
//	v, err := f.Get() // 49
//
// # Ordered Results
//
// Map submits one task per argument and returns the results in argument order.
// The first failure, in argument order, cancels the tasks that have not started:
//
//	results, err := p.Map(ctx, square, []int{1, 2, 3})
//
// # Waiting On Several Futures
//
// Wait blocks until a policy holds and splits the futures into done and not done:
//
//	done, notDone := pool.WaitTimeout(futures, pool.FirstCompleted, time.Second)
//
// AsCompleted yields futures in the order they finish:
//
//	for f, err := range pool.AsCompleted(ctx, futures) {
//	    if err != nil {
//	        return err // ctx ended first
//	    }
//	    v, taskErr := f.Get()
//	    ...
//	}
//
// # Shutdown
//
// Close stops accepting tasks and lets the queue drain; Join waits for it.
// Terminate cancels everything that has not finished. Shutdown(ctx) does a Close
// and Join, and falls back to Terminate when ctx ends.
//
// # Retry And Rate Limiting
//
//	p, err := pool.New[string, Response](
//	    pool.WithWorkerCount(10),
//	    pool.WithRetryPolicy(3, 100*time.Millisecond), // 3 attempts: 100ms, then 200ms apart
//	    pool.WithRateLimit(5.0, 10),                   // 5 tasks/sec, burst of 10
//	)
//
// # Process Workers
//
// With WithProcessBackend each worker owns a child process running the same binary.
// Functions are sent by name and arguments by Codec, so they must be registered on
// a Registry in both processes, and main must hand control to ServeWorker first:
//
//	func main() {
//	    reg := pool.NewRegistry(nil)
//	    pool.Register(reg, square)
//	    if pool.ServeWorker(reg) {
//	        return
//	    }
//	    p, err := pool.New[int, int](pool.WithProcessBackend(reg))
//	    ...
//	}
//
// # Errors
//
// A failed future returns a *TaskError wrapping the task's error (a *PanicError if it
// panicked), or a *SerializationError. Cancelled futures return ErrCancelled, bounded
// waits ErrTimeout, and submissions to a closed pool ErrPoolClosed.
package pool
