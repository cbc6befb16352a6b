package pool

import (
	"context"
	"errors"
	"reflect"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v5"
)

const (
	defaultRespawnAttempts  = 5
	defaultHandshakeTimeout = 10 * time.Second
	defaultMaxRetryDelay    = 30 * time.Second
)

func createConfig(opts ...Option) *config {
	cfg := &config{
		workerCount:      runtime.GOMAXPROCS(0),
		maxAttempts:      1,
		respawnAttempts:  defaultRespawnAttempts,
		handshakeTimeout: defaultHandshakeTimeout,
		maxDelay:         defaultMaxRetryDelay,
	}

	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// newRetryBackOff builds the delay schedule between attempts of one task:
// initialDelay, 2*initialDelay, 4*initialDelay, ... capped at maxDelay.
func newRetryBackOff(cfg *config) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = cfg.initialDelay
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = cfg.maxDelay
	b.Reset()
	return b
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// waitUntil blocks until either the done channel is closed or ctx ends.
// It is used during shutdown to wait for workers to complete their tasks.
func waitUntil(ctx context.Context, d <-chan struct{}) error {
	select {
	case <-d:
		return nil
	default:
	}

	select {
	case <-d:
		return nil
	case <-ctx.Done():
		return ctxError(ctx.Err())
	}
}

// recoverPanic converts a recovered value into a *PanicError with the current stack.
func recoverPanic(r any) error {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: r, Stack: string(buf[:n])}
}

func isSerialization(err error) bool {
	var se *SerializationError
	return errors.As(err, &se)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}

func signal(c chan struct{}) {
	select {
	case c <- struct{}{}:
	default:
	}
}
