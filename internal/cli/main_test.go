package cli

import (
	"os"
	"testing"

	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

// The test binary is the worker executable for process-backend commands.
func TestMain(m *testing.M) {
	if pool.ServeWorker(workload.Registry()) {
		return
	}
	os.Exit(m.Run())
}
