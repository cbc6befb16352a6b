package workload

import (
	"github.com/utkarsh5026/futurepool/pool"
)

// Registry returns a registry holding every workload that can run in a process
// worker. The poolme binary passes it to pool.ServeWorker before anything else.
func Registry() *pool.Registry {
	reg := pool.NewRegistry(nil)
	pool.Register(reg, GCD)
	pool.Register(reg, LongTask)
	return reg
}
