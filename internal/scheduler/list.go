package scheduler

import (
	"context"
	"sync"
)

// compactThreshold is the number of consumed slots after which the backing
// slice is shifted down instead of growing further.
const compactThreshold = 64

// listQueue is an unbounded FIFO guarded by a mutex.
//
// Waiting consumers park on notify, a one-slot channel. A consumer that takes an
// element while more remain re-arms notify, so a single token is enough to wake
// every consumer in turn.
type listQueue[E any] struct {
	mu     sync.Mutex
	items  []E
	head   int
	closed bool

	notify chan struct{}
	closeC chan struct{}
	once   sync.Once
}

func newListQueue[E any]() *listQueue[E] {
	return &listQueue[E]{
		notify: make(chan struct{}, 1),
		closeC: make(chan struct{}),
	}
}

func (q *listQueue[E]) Push(_ context.Context, e E) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrQueueClosed
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	q.signal()
	return nil
}

func (q *listQueue[E]) Pop(ctx context.Context) (E, error) {
	var zero E
	for {
		q.mu.Lock()
		if q.head < len(q.items) {
			e := q.items[q.head]
			q.items[q.head] = zero
			q.head++
			q.compact()
			more := q.head < len(q.items)
			q.mu.Unlock()

			if more {
				q.signal()
			}
			return e, nil
		}
		closed := q.closed
		q.mu.Unlock()

		if closed {
			return zero, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.notify:
		case <-q.closeC:
		}
	}
}

// compact must be called with mu held.
func (q *listQueue[E]) compact() {
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
		return
	}

	if q.head >= compactThreshold && q.head*2 >= len(q.items) {
		n := copy(q.items, q.items[q.head:])
		clear(q.items[n:])
		q.items = q.items[:n]
		q.head = 0
	}
}

func (q *listQueue[E]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}

func (q *listQueue[E]) Close() {
	q.once.Do(func() {
		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()
		close(q.closeC)
	})
}

func (q *listQueue[E]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) - q.head
}

func (q *listQueue[E]) Cap() int {
	return 0
}
