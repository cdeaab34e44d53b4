package pool

import (
	"sync"
	"sync/atomic"
)

// globalIOExecutor runs every task on its own goroutine. There is exactly one
// per process and it is never shut down.
type globalIOExecutor struct {
	active    atomic.Int64
	largest   atomic.Int64
	completed atomic.Int64
}

var globalIO = sync.OnceValue(func() *globalIOExecutor {
	return &globalIOExecutor{}
})

// GlobalIOPool is a handle on the shared unbounded executor. Handles do not
// own the executor; there is nothing to close.
type GlobalIOPool struct {
	exec *globalIOExecutor
}

// GlobalIO returns a handle on the process-wide executor.
func GlobalIO() *GlobalIOPool {
	return &GlobalIOPool{exec: globalIO()}
}

// Submit starts task on a new goroutine.
func (p *GlobalIOPool) Submit(task func()) error {
	e := p.exec
	n := e.active.Add(1)
	for {
		l := e.largest.Load()
		if n <= l || e.largest.CompareAndSwap(l, n) {
			break
		}
	}
	go func() {
		defer func() {
			e.active.Add(-1)
			e.completed.Add(1)
		}()
		task()
	}()
	return nil
}

// Stats reports the shared executor state.
func (p *GlobalIOPool) Stats() Stats {
	e := p.exec
	return Stats{
		Kind:           "global_io",
		Workers:        int(e.active.Load()),
		LargestWorkers: int(e.largest.Load()),
		Completed:      e.completed.Load(),
	}
}
