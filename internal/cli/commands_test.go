package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

var smallPairs = []workload.Pair{{A: 12, B: 18}, {A: 100, B: 75}, {A: 13, B: 17}}

func testApp(backend string) *app {
	return &app{
		settings: Settings{Backend: backend, Workers: 2, Retries: 1, Burst: 1, LogFormat: "console"},
		logger:   zap.NewNop(),
		registry: workload.Registry(),
	}
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCmd(workload.Registry())
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writePairs(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pairs.yaml")
	content := "pairs:\n  - {a: 12, b: 18}\n  - {a: 100, b: 75}\n  - {a: 13, b: 17}\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGCDCommand(t *testing.T) {
	for _, mode := range []string{modeMap, modeSubmit} {
		t.Run(mode, func(t *testing.T) {
			out, err := runRoot(t, "gcd", "--pairs", writePairs(t), "--mode", mode, "--workers", "2")
			if err != nil {
				t.Fatalf("unexpected error: %v\n%s", err, out)
			}
			for _, want := range []string{"(12, 18)", "(100, 75)", "25", "serial", "pool"} {
				if !strings.Contains(out, want) {
					t.Errorf("output is missing %q:\n%s", want, out)
				}
			}
		})
	}
}

func TestGCDCommand_ProcessBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("process backend skipped in short mode")
	}

	out, err := runRoot(t, "gcd", "--pairs", writePairs(t), "--backend", "process", "--workers", "2", "--no-serial")
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "process workers") || !strings.Contains(out, "25") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestGCDCommand_BadInput(t *testing.T) {
	tests := [][]string{
		{"gcd", "--mode", "scatter"},
		{"gcd", "--backend", "threads"},
		{"gcd", "--pairs", filepath.Join(t.TempDir(), "missing.yaml")},
		{"wait", "--policy", "whenever"},
		{"tasks", "--count", "0"},
	}

	for _, args := range tests {
		t.Run(strings.Join(args, " "), func(t *testing.T) {
			if _, err := runRoot(t, args...); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestRunWait(t *testing.T) {
	var out bytes.Buffer
	a := testApp(backendGoroutine)

	if err := a.runWait(context.Background(), &out, smallPairs, pool.AllCompleted, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "3 done, 0 not done") {
		t.Errorf("expected every future done:\n%s", s)
	}
	for _, want := range []string{"Before waiting", "After waiting", "all_completed"} {
		if !strings.Contains(s, want) {
			t.Errorf("output is missing %q:\n%s", want, s)
		}
	}
}

func TestRunStream(t *testing.T) {
	var out, progress bytes.Buffer
	a := testApp(backendGoroutine)

	if err := a.runStream(context.Background(), &out, &progress, smallPairs, 0, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()
	for _, want := range []string{"completion order", "(12, 18)", "(100, 75)", "(13, 17)"} {
		if !strings.Contains(s, want) {
			t.Errorf("output is missing %q:\n%s", want, s)
		}
	}
	if strings.Contains(s, "Timed out") {
		t.Errorf("small pairs should not time out:\n%s", s)
	}
}

func TestRunStream_Timeout(t *testing.T) {
	var out, progress bytes.Buffer
	a := testApp(backendGoroutine)
	a.settings.Workers = 1

	slow := []workload.Pair{{A: 1 << 40, B: 1<<40 + 1}, {A: 1 << 40, B: 1<<40 + 1}}
	if err := a.runStream(context.Background(), &out, &progress, slow, 50*time.Millisecond, false); err != nil {
		t.Fatalf("a timeout is reported, not returned: %v", err)
	}
	if !strings.Contains(out.String(), "Timed out") {
		t.Errorf("expected a timeout notice:\n%s", out.String())
	}
}

func TestRunTasks(t *testing.T) {
	var out bytes.Buffer
	a := testApp(backendGoroutine)

	if err := a.runTasks(context.Background(), &out, 3, 10*time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()
	if !strings.Contains(s, "All jobs finished") || strings.Count(s, "done") < 3 {
		t.Errorf("expected three finished jobs:\n%s", s)
	}
}

func TestRunRelay(t *testing.T) {
	var out bytes.Buffer
	a := testApp(backendGoroutine)

	if err := a.runRelay(context.Background(), &out, []string{"A", "B", "C"}, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := out.String()
	for _, want := range []string{"Get A from queue.", "Get C from queue.", "producer: done, sent 3", "consumer: cancelled, received A,B,C"} {
		if !strings.Contains(s, want) {
			t.Errorf("output is missing %q:\n%s", want, s)
		}
	}
}
