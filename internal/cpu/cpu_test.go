package cpu

import (
	"runtime"
	"testing"
)

func TestCore(t *testing.T) {
	n := runtime.NumCPU()
	tests := []struct {
		in, want int
	}{
		{0, 0},
		{n, 0},
		{n + 1, 1 % n},
		{-1, n - 1},
	}

	for _, tt := range tests {
		if got := Core(tt.in); got != tt.want {
			t.Errorf("Core(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestPin_Release(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		release, err := Pin(0)
		if err != nil {
			t.Logf("pinning unavailable: %v", err)
		}
		release()
	}()
	<-done
}
