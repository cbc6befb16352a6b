package workload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/utkarsh5026/futurepool/pool"
)

func TestGCD(t *testing.T) {
	tests := []struct {
		pair Pair
		want int64
	}{
		{Pair{12, 18}, 6},
		{Pair{18, 12}, 6},
		{Pair{7, 7}, 7},
		{Pair{5, 35}, 5},
		{Pair{13, 17}, 1},
		{Pair{1, 9}, 1},
		{Pair{100, 75}, 25},
	}

	for _, tt := range tests {
		t.Run(tt.pair.String(), func(t *testing.T) {
			got, err := GCD(context.Background(), tt.pair)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGCD_DefaultPairs(t *testing.T) {
	if testing.Short() {
		t.Skip("brute force over the default pairs is slow")
	}

	want := []int64{1, 5, 1, 5, 2, 3}
	for i, p := range DefaultPairs {
		got, err := GCD(context.Background(), p)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", p, err)
		}
		if got != want[i] {
			t.Errorf("%s: expected %d, got %d", p, want[i], got)
		}
	}
}

func TestGCD_DefaultPairsOnPool(t *testing.T) {
	if testing.Short() {
		t.Skip("brute force over the default pairs is slow")
	}

	start := time.Now()
	for _, pr := range DefaultPairs {
		if _, err := GCD(context.Background(), pr); err != nil {
			t.Fatalf("%s: unexpected error: %v", pr, err)
		}
	}
	serial := time.Since(start)

	p, err := pool.New[Pair, int64](pool.WithWorkerCount(2))
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	defer p.Terminate()

	start = time.Now()
	results, err := p.Map(context.Background(), GCD, DefaultPairs)
	parallel := time.Since(start)
	if err != nil {
		t.Fatalf("map failed: %v", err)
	}

	want := []int64{1, 5, 1, 5, 2, 3}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("%s: expected %d, got %d", DefaultPairs[i], want[i], results[i])
		}
	}

	if runtime.NumCPU() < 2 {
		t.Logf("single CPU, skipping timing check (serial %v, pool %v)", serial, parallel)
		return
	}
	if parallel >= serial {
		t.Errorf("two workers took %v, serial run took %v", parallel, serial)
	}
}

func TestGCD_InvalidPair(t *testing.T) {
	for _, p := range []Pair{{0, 4}, {4, -2}} {
		if _, err := GCD(context.Background(), p); !errors.Is(err, ErrInvalidPair) {
			t.Errorf("%s: expected ErrInvalidPair, got %v", p, err)
		}
	}
}

func TestGCD_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := GCD(ctx, Pair{1 << 40, 1<<40 + 1}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestLoadPairs(t *testing.T) {
	dir := t.TempDir()

	write := func(name, content string) string {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
		return path
	}

	t.Run("valid", func(t *testing.T) {
		pairs, err := LoadPairs(write("ok.yaml", "pairs:\n  - {a: 12, b: 18}\n  - a: 5\n    b: 35\n"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pairs) != 2 || pairs[0] != (Pair{12, 18}) || pairs[1] != (Pair{5, 35}) {
			t.Errorf("unexpected pairs %v", pairs)
		}
	})

	t.Run("empty", func(t *testing.T) {
		if _, err := LoadPairs(write("empty.yaml", "pairs: []\n")); err == nil {
			t.Error("expected an error for a file without pairs")
		}
	})

	t.Run("invalid pair", func(t *testing.T) {
		_, err := LoadPairs(write("bad.yaml", "pairs:\n  - {a: 0, b: 3}\n"))
		if !errors.Is(err, ErrInvalidPair) {
			t.Errorf("expected ErrInvalidPair, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		if _, err := LoadPairs(write("junk.yaml", "pairs: [\n")); err == nil {
			t.Error("expected a parse error")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if _, err := LoadPairs(filepath.Join(dir, "nope.yaml")); !errors.Is(err, os.ErrNotExist) {
			t.Errorf("expected os.ErrNotExist, got %v", err)
		}
	})
}

func TestLongTask(t *testing.T) {
	r, err := LongTask(context.Background(), Job{Name: "a", MaxDelay: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Name != "a" || r.PID != os.Getpid() {
		t.Errorf("unexpected report %+v", r)
	}
	if r.Elapsed >= 200*time.Millisecond {
		t.Errorf("slept too long: %v", r.Elapsed)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := LongTask(ctx, Job{Name: "b", MaxDelay: time.Hour}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestRelay(t *testing.T) {
	r := NewRelay(3, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 3)
	consumed := make(chan error, 1)
	go func() {
		_, err := r.Consume(ctx, func(v string) { got <- v })
		consumed <- err
	}()

	n, err := r.Produce(ctx, []string{"A", "B", "C"})
	if err != nil || n != 3 {
		t.Fatalf("expected (3, nil), got (%d, %v)", n, err)
	}

	for _, want := range []string{"A", "B", "C"} {
		select {
		case v := <-got:
			if v != want {
				t.Errorf("expected %s, got %s", want, v)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	if err := <-consumed; !errors.Is(err, context.Canceled) {
		t.Errorf("consumer should stop on cancel, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	if names := Registry().Names(); len(names) != 2 {
		t.Errorf("expected GCD and LongTask registered, got %v", names)
	}
}
