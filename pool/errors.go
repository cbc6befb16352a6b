package pool

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrPoolClosed is returned by submissions to a pool that is no longer open.
	ErrPoolClosed = errors.New("pool is closed")
	// ErrTimeout is returned when a bounded wait expires.
	ErrTimeout = errors.New("timed out")
	// ErrCancelled is the error of a cancelled future.
	ErrCancelled = errors.New("task cancelled")
	// ErrInvalidState is returned when a future is asked to leave a terminal state.
	ErrInvalidState = errors.New("invalid future state transition")
	// ErrNotClosed is returned by Join on a pool that was never closed.
	ErrNotClosed = errors.New("pool is still open")
	// ErrWorkerLost is the cause of a task whose worker process died mid-task.
	ErrWorkerLost = errors.New("worker process lost")
	// ErrNotRegistered is the cause of a task whose function was never registered for the process backend.
	ErrNotRegistered = errors.New("function not registered")
	// ErrConsumed is yielded when an AsCompleted sequence is ranged over a second time.
	ErrConsumed = errors.New("completion sequence already consumed")
)

// TaskError is the error of a future whose task ran and failed.
type TaskError struct {
	TaskID int64
	Err    error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %d: %v", e.TaskID, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// PanicError carries a value recovered from a panicking task.
type PanicError struct {
	Value any
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("worker panic: %v\nstack trace:\n%s", e.Value, e.Stack)
}

// SerializationError reports an argument or result that could not cross the process boundary.
// Op is one of "encode argument", "decode argument", "encode result", "decode result" or "lookup".
type SerializationError struct {
	TaskID int64
	Op     string
	Err    error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("task %d: %s: %v", e.TaskID, e.Op, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ctxError turns an expired deadline into ErrTimeout, keeping context.DeadlineExceeded
// in the chain. Other errors pass through.
func ctxError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
