package pool

import (
	"context"
	"time"
)

// ProcessFunc is a function type that defines how individual tasks are processed in the pool.
// It takes a context for cancellation control and an argument of type T, returning a result of type R.
// A returned error fails the task's future; it never stops the pool.
//
// Type parameters:
//   - T: The type of input argument to be processed
//   - R: The type of result produced after processing
type ProcessFunc[T any, R any] func(ctx context.Context, arg T) (R, error)

// Task is a unit of work: a function bound to its argument.
// ID is assigned by the pool on submission and increases monotonically per pool.
type Task[T any, R any] struct {
	ID  int64
	Fn  ProcessFunc[T, R]
	Arg T
}

// State is the lifecycle state of a Future.
type State int32

const (
	// StatePending means the task is queued and no worker has picked it up yet.
	StatePending State = iota
	// StateRunning means a worker is executing the task.
	StateRunning
	// StateDone means the task returned a value.
	StateDone
	// StateFailed means the task returned an error, panicked or could not be serialized.
	StateFailed
	// StateCancelled means the task was cancelled before it produced a result.
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// PoolState is the lifecycle state of a Pool.
type PoolState int32

const (
	// PoolOpen accepts submissions.
	PoolOpen PoolState = iota
	// PoolClosing rejects submissions while queued work drains.
	PoolClosing
	// PoolClosed means every worker has exited.
	PoolClosed
)

func (s PoolState) String() string {
	switch s {
	case PoolOpen:
		return "open"
	case PoolClosing:
		return "closing"
	case PoolClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// WaitPolicy selects when Wait returns.
type WaitPolicy int

const (
	// FirstCompleted returns as soon as at least one future is terminal.
	FirstCompleted WaitPolicy = iota
	// FirstException returns when a future fails, or when all are terminal.
	FirstException
	// AllCompleted returns when every future is terminal.
	AllCompleted
)

func (p WaitPolicy) String() string {
	switch p {
	case FirstCompleted:
		return "first_completed"
	case FirstException:
		return "first_exception"
	case AllCompleted:
		return "all_completed"
	default:
		return "unknown"
	}
}

// ParseWaitPolicy is the inverse of WaitPolicy.String.
func ParseWaitPolicy(s string) (WaitPolicy, bool) {
	for _, p := range []WaitPolicy{FirstCompleted, FirstException, AllCompleted} {
		if p.String() == s {
			return p, true
		}
	}
	return 0, false
}

// job is the queue element: a task together with the future it settles.
type job[T any, R any] struct {
	task     Task[T, R]
	future   *Future[R]
	enqueued time.Time
}
