package pool

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Future is the handle of a submitted task's eventual outcome.
//
// A future moves from Pending to Running when a worker picks its task up, then to
// exactly one terminal state: Done (a value), Failed (an error) or Cancelled.
// A Pending future may also be cancelled directly. Terminate is the only path
// that cancels a Running future.
//
// Every method is safe for concurrent use.
type Future[R any] struct {
	id int64

	mu    sync.Mutex
	state State
	value R
	err   error
	done  chan struct{}

	nextListener uint64
	listeners    map[uint64]func()
	callbacks    []func(*Future[R])
}

func newFuture[R any](id int64) *Future[R] {
	return &Future[R]{
		id:   id,
		done: make(chan struct{}),
	}
}

// ID returns the id of the task this future belongs to.
func (f *Future[R]) ID() int64 {
	return f.id
}

// State returns the current state without blocking.
func (f *Future[R]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *Future[R]) IsRunning() bool {
	return f.State() == StateRunning
}

// IsDone reports whether the future reached a terminal state, whatever it is.
func (f *Future[R]) IsDone() bool {
	return f.State().Terminal()
}

func (f *Future[R]) IsCancelled() bool {
	return f.State() == StateCancelled
}

// Done returns a channel that is closed on the terminal transition.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Get blocks until the future is terminal.
//
// It returns the value of a Done future, the task's error (a *TaskError or
// *SerializationError) of a Failed one, and an error matching ErrCancelled for
// a Cancelled one.
func (f *Future[R]) Get() (R, error) {
	<-f.done
	return f.outcome()
}

// GetWithContext is Get bounded by ctx. An expired deadline is reported as ErrTimeout.
// Giving up never changes the future: a later Get still observes the outcome.
func (f *Future[R]) GetWithContext(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.outcome()
	default:
	}

	select {
	case <-f.done:
		return f.outcome()
	case <-ctx.Done():
		var zero R
		return zero, ctxError(ctx.Err())
	}
}

// GetWithTimeout waits at most d. A non-positive d checks once without blocking.
func (f *Future[R]) GetWithTimeout(d time.Duration) (R, error) {
	if d <= 0 {
		if v, err, ok := f.TryGet(); ok {
			return v, err
		}
		var zero R
		return zero, fmt.Errorf("%w: future %d is not finished", ErrTimeout, f.id)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-f.done:
		return f.outcome()
	case <-timer.C:
		var zero R
		return zero, fmt.Errorf("%w: future %d not finished after %v", ErrTimeout, f.id, d)
	}
}

// TryGet returns the outcome if the future is terminal; ok is false otherwise.
func (f *Future[R]) TryGet() (value R, err error, ok bool) {
	select {
	case <-f.done:
		value, err = f.outcome()
		return value, err, true
	default:
		return value, nil, false
	}
}

// Cancel cancels a Pending future. It reports false once a worker has started the task
// or the future is already terminal.
func (f *Future[R]) Cancel() bool {
	return f.cancel(ErrCancelled) == nil
}

// AddDoneCallback registers fn to run once the future is terminal, on the goroutine
// that completes it. If the future is already terminal fn runs immediately.
// A panicking callback is recovered and ignored.
func (f *Future[R]) AddDoneCallback(fn func(*Future[R])) {
	f.mu.Lock()
	if !f.state.Terminal() {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()
	f.runCallback(fn)
}

func (f *Future[R]) outcome() (R, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}

// setRunning moves a Pending future to Running. It reports false when the future was
// cancelled while queued, in which case the task must not run.
func (f *Future[R]) setRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StatePending {
		return false
	}
	f.state = StateRunning
	return true
}

func (f *Future[R]) setResult(v R) error {
	return f.finish(StateDone, v, nil, func(s State) bool { return s == StateRunning })
}

func (f *Future[R]) setError(err error) error {
	var zero R
	return f.finish(StateFailed, zero, err, func(s State) bool { return s == StateRunning })
}

// cancel only succeeds on a Pending future.
func (f *Future[R]) cancel(cause error) error {
	var zero R
	return f.finish(StateCancelled, zero, cause, func(s State) bool { return s == StatePending })
}

// forceCancel also cancels a Running future. Only Terminate uses it.
func (f *Future[R]) forceCancel(cause error) error {
	var zero R
	return f.finish(StateCancelled, zero, cause, func(s State) bool { return !s.Terminal() })
}

// finish performs the single terminal transition. Listeners and callbacks run after
// the lock is released.
func (f *Future[R]) finish(to State, v R, err error, allowed func(State) bool) error {
	f.mu.Lock()
	if !allowed(f.state) {
		from := f.state
		f.mu.Unlock()
		return fmt.Errorf("%w: future %d cannot move from %s to %s", ErrInvalidState, f.id, from, to)
	}

	f.state = to
	f.value = v
	f.err = err
	listeners := f.listeners
	callbacks := f.callbacks
	f.listeners = nil
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, l := range listeners {
		l()
	}
	for _, cb := range callbacks {
		f.runCallback(cb)
	}
	return nil
}

func (f *Future[R]) runCallback(fn func(*Future[R])) {
	defer func() {
		_ = recover()
	}()
	fn(f)
}

// subscribe registers fn to be called once on the terminal transition, or right away
// if the future is already terminal. The returned function removes the listener.
func (f *Future[R]) subscribe(fn func()) (unsubscribe func()) {
	f.mu.Lock()
	if f.state.Terminal() {
		f.mu.Unlock()
		fn()
		return func() {}
	}

	if f.listeners == nil {
		f.listeners = make(map[uint64]func())
	}
	key := f.nextListener
	f.nextListener++
	f.listeners[key] = fn
	f.mu.Unlock()

	return func() {
		f.mu.Lock()
		delete(f.listeners, key)
		f.mu.Unlock()
	}
}

func (f *Future[R]) String() string {
	return fmt.Sprintf("Future(%d, %s)", f.id, f.State())
}
