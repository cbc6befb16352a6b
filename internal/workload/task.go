package workload

import (
	"context"
	"math/rand/v2"
	"os"
	"time"
)

// Job is a named task that sleeps for a random time up to MaxDelay.
type Job struct {
	Name     string        `json:"name"`
	MaxDelay time.Duration `json:"max_delay"`
}

// Report describes where and how long a Job ran.
type Report struct {
	Name    string        `json:"name"`
	PID     int           `json:"pid"`
	Elapsed time.Duration `json:"elapsed"`
}

// LongTask sleeps for a random duration, standing in for slow I/O.
func LongTask(ctx context.Context, j Job) (Report, error) {
	start := time.Now()

	var d time.Duration
	if j.MaxDelay > 0 {
		d = rand.N(j.MaxDelay)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}

	return Report{Name: j.Name, PID: os.Getpid(), Elapsed: time.Since(start)}, nil
}
