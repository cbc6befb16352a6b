package scheduler

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
)

const (
	// Cache line size for padding to prevent false sharing
	cacheLinePadding = 128
	// Default ring capacity when none is configured
	defaultRingCapacity = 1024
	// Smallest ring whose sequence numbers distinguish full from empty
	minRingCapacity = 2
	// Maximum spin attempts before parking
	maxSpinAttempts = 10
)

// mpmcSlot is a single slot in the ring buffer
type mpmcSlot[T any] struct {
	sequence uint64
	value    T
	_        [cacheLinePadding - 16]byte
}

// mpmcQueue is a bounded lock-free multi-producer multi-consumer ring.
//
// Slot ownership is arbitrated with per-slot sequence numbers. Producers and
// consumers spin briefly and then park on dataC / spaceC, both one-slot channels
// that are never closed. Every successful dequeue re-arms dataC while items remain
// so a parked consumer cannot miss an element published during its spin.
type mpmcQueue[T any] struct {
	ring []mpmcSlot[T]
	mask uint64

	_    [cacheLinePadding]byte
	head uint64
	_    [cacheLinePadding - 8]byte
	tail uint64
	_    [cacheLinePadding - 8]byte

	// gate keeps Close from sealing the ring while a producer is mid-publish.
	gate   sync.RWMutex
	closed atomic.Bool
	once   sync.Once

	dataC  chan struct{}
	spaceC chan struct{}
	closeC chan struct{}

	capacity int
}

func newMPMCQueue[T any](capacity int) *mpmcQueue[T] {
	if capacity <= 0 {
		capacity = defaultRingCapacity
	}

	// A one-slot ring cannot tell full from empty: the filled slot's sequence equals
	// the next tail, so a second push would overwrite it.
	capacity = max(nextPowerOfTwo(capacity), minRingCapacity)
	ring := make([]mpmcSlot[T], capacity)
	for i := range ring {
		ring[i].sequence = uint64(i) // #nosec G115 -- i is loop index within valid ring bounds
	}

	return &mpmcQueue[T]{
		ring:     ring,
		mask:     uint64(capacity - 1), // #nosec G115 -- capacity is validated positive
		capacity: capacity,
		dataC:    make(chan struct{}, 1),
		spaceC:   make(chan struct{}, 1),
		closeC:   make(chan struct{}),
	}
}

func (q *mpmcQueue[T]) Push(ctx context.Context, value T) error {
	spinCount := 0
	for {
		ok, err := q.tryPush(value)
		if err != nil || ok {
			return err
		}

		spinCount++
		if spinCount < maxSpinAttempts {
			runtime.Gosched()
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.closeC:
			return ErrQueueClosed
		case <-q.spaceC:
			spinCount = 0
		}
	}
}

// tryPush reports false when the ring is full.
func (q *mpmcQueue[T]) tryPush(value T) (bool, error) {
	q.gate.RLock()
	defer q.gate.RUnlock()

	if q.closed.Load() {
		return false, ErrQueueClosed
	}

	for {
		tail := atomic.LoadUint64(&q.tail)
		slot := &q.ring[tail&q.mask]
		seq := atomic.LoadUint64(&slot.sequence)
		diff := int64(seq) - int64(tail) // #nosec G115 -- intentional conversion for sequence comparison

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.tail, tail, tail+1) {
				slot.value = value
				atomic.StoreUint64(&slot.sequence, tail+1)
				notify(q.dataC)
				return true, nil
			}
		case diff < 0:
			return false, nil
		}
	}
}

func (q *mpmcQueue[T]) Pop(ctx context.Context) (T, error) {
	var zero T
	spinCount := 0

	for {
		if v, ok := q.tryPop(); ok {
			return v, nil
		}

		if q.closed.Load() && q.Len() == 0 {
			return zero, ErrQueueClosed
		}

		spinCount++
		if spinCount < maxSpinAttempts {
			runtime.Gosched()
			continue
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-q.closeC:
			// Drain whatever producers published before Close sealed the ring.
			if v, ok := q.tryPop(); ok {
				return v, nil
			}
			if q.Len() == 0 {
				return zero, ErrQueueClosed
			}
			runtime.Gosched()
		case <-q.dataC:
			spinCount = 0
		}
	}
}

func (q *mpmcQueue[T]) tryPop() (T, bool) {
	var zero T
	for {
		head := atomic.LoadUint64(&q.head)
		slot := &q.ring[head&q.mask]
		seq := atomic.LoadUint64(&slot.sequence)
		diff := int64(seq) - int64(head+1) // #nosec G115 -- intentional conversion for sequence comparison

		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.head, head, head+1) {
				value := slot.value
				slot.value = zero
				atomic.StoreUint64(&slot.sequence, head+q.mask+1)

				notify(q.spaceC)
				if q.Len() > 0 {
					notify(q.dataC)
				}
				return value, true
			}
		case diff < 0:
			return zero, false
		}
	}
}

// Len returns the approximate number of items in the ring.
func (q *mpmcQueue[T]) Len() int {
	head := atomic.LoadUint64(&q.head)
	tail := atomic.LoadUint64(&q.tail)

	if tail > head {
		return int(tail - head) // #nosec G115 -- tail > head guarantees result fits in int
	}
	return 0
}

func (q *mpmcQueue[T]) Cap() int {
	return q.capacity
}

func (q *mpmcQueue[T]) Close() {
	q.once.Do(func() {
		q.gate.Lock()
		q.closed.Store(true)
		q.gate.Unlock()
		close(q.closeC)
	})
}

func notify(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
