package main

import (
	"os"

	"github.com/utkarsh5026/futurepool/internal/cli"
	"github.com/utkarsh5026/futurepool/internal/workload"
	"github.com/utkarsh5026/futurepool/pool"
)

func main() {
	reg := workload.Registry()

	// Process-backend workers re-execute this binary and never get past here.
	if pool.ServeWorker(reg) {
		return
	}

	if err := cli.Execute(reg); err != nil {
		os.Exit(1)
	}
}
