package workload

import (
	"context"
	"math/rand/v2"
	"time"
)

// Relay connects a producer and a consumer task through a channel. The consumer
// never stops on its own; it runs until its context is cancelled.
type Relay struct {
	ch       chan string
	maxPause time.Duration
}

func NewRelay(buffer int, maxPause time.Duration) *Relay {
	return &Relay{
		ch:       make(chan string, buffer),
		maxPause: maxPause,
	}
}

// Produce sends values one by one, pausing randomly between them, and returns how
// many it sent.
func (r *Relay) Produce(ctx context.Context, values []string) (int, error) {
	for i, v := range values {
		select {
		case r.ch <- v:
		case <-ctx.Done():
			return i, ctx.Err()
		}

		if r.maxPause > 0 {
			select {
			case <-time.After(rand.N(r.maxPause)):
			case <-ctx.Done():
				return i + 1, ctx.Err()
			}
		}
	}
	return len(values), nil
}

// Consume calls seen for every received value until ctx is cancelled.
func (r *Relay) Consume(ctx context.Context, seen func(string)) (int, error) {
	n := 0
	for {
		select {
		case v := <-r.ch:
			n++
			seen(v)
		case <-ctx.Done():
			return n, ctx.Err()
		}
	}
}
