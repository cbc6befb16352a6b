package scheduler

import (
	"context"
	"sync"
)

// channelQueue is a bounded FIFO backed by a single buffered channel that every
// worker receives from.
//
// Shutdown follows the quit / wait / close sequence: quit releases producers
// blocked on a full buffer, the write lock waits for in-flight producers to leave,
// and only then is the task channel closed so consumers drain what is left.
type channelQueue[E any] struct {
	tasks chan E
	quit  chan struct{}

	mu     sync.RWMutex // producers hold the read side while sending
	closed bool
	once   sync.Once
}

func newChannelQueue[E any](capacity int) *channelQueue[E] {
	return &channelQueue[E]{
		tasks: make(chan E, capacity),
		quit:  make(chan struct{}),
	}
}

func (q *channelQueue[E]) Push(ctx context.Context, e E) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrQueueClosed
	}

	select {
	case q.tasks <- e:
		return nil
	case <-q.quit:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *channelQueue[E]) Pop(ctx context.Context) (E, error) {
	var zero E
	select {
	case e, ok := <-q.tasks:
		if !ok {
			return zero, ErrQueueClosed
		}
		return e, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (q *channelQueue[E]) Close() {
	q.once.Do(func() {
		close(q.quit)

		q.mu.Lock()
		q.closed = true
		q.mu.Unlock()

		close(q.tasks)
	})
}

func (q *channelQueue[E]) Len() int {
	return len(q.tasks)
}

func (q *channelQueue[E]) Cap() int {
	return cap(q.tasks)
}
