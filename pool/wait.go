package pool

import (
	"context"
	"fmt"
	"iter"
	"sync/atomic"
	"time"
)

// Awaitable is implemented by every *Future[R], whatever R is, so that futures of
// one pool can be waited on together.
type Awaitable interface {
	ID() int64
	State() State
	Done() <-chan struct{}

	subscribe(fn func()) (unsubscribe func())
}

// Wait blocks until policy holds for fs or ctx ends, then splits fs into the futures
// that are terminal and those that are not. Both slices keep the input order.
//
// With FirstException, only Failed futures count as exceptions; cancelled ones are
// merely terminal. When ctx ends first the partition is whatever holds at that moment.
func Wait[F Awaitable](ctx context.Context, fs []F, policy WaitPolicy) (done, notDone []F) {
	if satisfied(fs, policy) {
		return partition(fs)
	}

	wake := make(chan struct{}, 1)
	unsubs := make([]func(), 0, len(fs))
	for _, f := range fs {
		unsubs = append(unsubs, f.subscribe(func() { signal(wake) }))
	}
	defer func() {
		for _, unsub := range unsubs {
			unsub()
		}
	}()

	for !satisfied(fs, policy) {
		select {
		case <-wake:
		case <-ctx.Done():
			return partition(fs)
		}
	}
	return partition(fs)
}

// WaitTimeout is Wait with a deadline d after the call. A non-positive d takes a
// snapshot without blocking.
func WaitTimeout[F Awaitable](fs []F, policy WaitPolicy, d time.Duration) (done, notDone []F) {
	if d <= 0 {
		return partition(fs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return Wait(ctx, fs, policy)
}

// AsCompleted yields each distinct future of fs once, as it becomes terminal.
// Futures that are already terminal come first. The error is nil for every future;
// read the outcome with Get. If ctx ends before all futures finish, a single error
// wrapping ErrTimeout (or the context's error) is yielded with the number of futures
// left, and the sequence stops.
//
// The sequence can be ranged over once. A second range yields ErrConsumed.
func AsCompleted[F Awaitable](ctx context.Context, fs []F) iter.Seq2[F, error] {
	var consumed atomic.Bool

	return func(yield func(F, error) bool) {
		var zero F
		if !consumed.CompareAndSwap(false, true) {
			yield(zero, ErrConsumed)
			return
		}

		seen := make(map[any]struct{}, len(fs))
		unique := make([]F, 0, len(fs))
		for _, f := range fs {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			unique = append(unique, f)
		}

		// Each listener fires at most once, so the buffer never fills.
		ready := make(chan int, len(unique))
		unsubs := make([]func(), 0, len(unique))
		for i, f := range unique {
			unsubs = append(unsubs, f.subscribe(func() { ready <- i }))
		}
		defer func() {
			for _, unsub := range unsubs {
				unsub()
			}
		}()

		for remaining := len(unique); remaining > 0; remaining-- {
			var i int
			select {
			case i = <-ready:
			default:
				select {
				case i = <-ready:
				case <-ctx.Done():
					yield(zero, fmt.Errorf("%w: %d of %d futures unfinished", ctxError(ctx.Err()), remaining, len(unique)))
					return
				}
			}

			if !yield(unique[i], nil) {
				return
			}
		}
	}
}

func satisfied[F Awaitable](fs []F, policy WaitPolicy) bool {
	if len(fs) == 0 {
		return true
	}

	terminal := 0
	for _, f := range fs {
		s := f.State()
		switch {
		case s == StateFailed && policy == FirstException:
			return true
		case s.Terminal():
			if policy == FirstCompleted {
				return true
			}
			terminal++
		}
	}
	return terminal == len(fs)
}

func partition[F Awaitable](fs []F) (done, notDone []F) {
	for _, f := range fs {
		if f.State().Terminal() {
			done = append(done, f)
		} else {
			notDone = append(notDone, f)
		}
	}
	return done, notDone
}
