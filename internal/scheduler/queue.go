package scheduler

import (
	"context"
	"errors"
)

var (
	ErrQueueClosed = errors.New("queue is closed")
)

// Kind selects the data structure backing a pool's submission queue.
type Kind int

const (
	// KindUnbounded is a mutex-guarded slice queue. Push never blocks.
	KindUnbounded Kind = iota

	// KindBounded is a buffered channel. Push blocks while the queue is full.
	KindBounded

	// KindLockFree is a fixed-size MPMC ring buffer. Push blocks while the ring is full.
	KindLockFree
)

func (k Kind) String() string {
	switch k {
	case KindUnbounded:
		return "unbounded"
	case KindBounded:
		return "bounded"
	case KindLockFree:
		return "lock-free"
	default:
		return "unknown"
	}
}

// Queue is the FIFO shared by every worker of a pool.
//
// All implementations hand out each element to exactly one Pop caller and preserve
// the order in which Push calls returned. After Close, Push fails with ErrQueueClosed
// and Pop keeps returning the remaining elements before failing with ErrQueueClosed.
type Queue[E any] interface {
	// Push appends e, blocking on a full bounded queue until space frees up,
	// ctx is done, or the queue is closed.
	Push(ctx context.Context, e E) error

	// Pop removes the oldest element, blocking while the queue is empty.
	Pop(ctx context.Context) (E, error)

	// Close stops accepting new elements. It is idempotent.
	Close()

	// Len returns the approximate number of queued elements.
	Len() int

	// Cap returns the capacity, or 0 for an unbounded queue.
	Cap() int
}

// New creates a queue of the given kind. capacity is ignored for KindUnbounded.
func New[E any](kind Kind, capacity int) Queue[E] {
	switch kind {
	case KindBounded:
		return newChannelQueue[E](max(capacity, 1))
	case KindLockFree:
		return newMPMCQueue[E](capacity)
	default:
		return newListQueue[E]()
	}
}
