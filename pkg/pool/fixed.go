package pool

import (
	"runtime"
	"sync"
	"time"
)

// DefaultIdleTimeout is how long a Fixed worker waits for work before exiting.
const DefaultIdleTimeout = 60 * time.Second

// FixedOption configures a Fixed pool.
type FixedOption func(*Fixed)

// WithMaxWorkers caps the number of concurrently running workers.
func WithMaxWorkers(n int) FixedOption {
	return func(p *Fixed) {
		if n > 0 {
			p.maxWorkers = n
		}
	}
}

// WithIdleTimeout sets how long an idle worker lingers before exiting.
func WithIdleTimeout(d time.Duration) FixedOption {
	return func(p *Fixed) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// Fixed is a bounded pool with no minimum of idle workers and an unbounded
// FIFO queue. Workers are spawned on demand up to the maximum and exit after
// the idle timeout. The executor is created on first use.
type Fixed struct {
	maxWorkers  int
	idleTimeout time.Duration

	once sync.Once
	exec *fixedExecutor
}

// NewFixed creates a Fixed pool. Max workers defaults to the number of CPUs.
func NewFixed(opts ...FixedOption) *Fixed {
	p := &Fixed{
		maxWorkers:  runtime.NumCPU(),
		idleTimeout: DefaultIdleTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Fixed) executor() *fixedExecutor {
	p.once.Do(func() {
		p.exec = &fixedExecutor{
			max:         p.maxWorkers,
			idleTimeout: p.idleTimeout,
			wake:        make(chan struct{}, p.maxWorkers),
			quit:        make(chan struct{}),
		}
	})
	return p.exec
}

// Submit enqueues task. It never blocks.
func (p *Fixed) Submit(task func()) error {
	return p.executor().submit(task)
}

// Stats reports the executor state. A pool that never ran anything reports
// zero workers.
func (p *Fixed) Stats() Stats {
	return p.executor().stats()
}

// Close stops accepting tasks, lets queued tasks finish and releases workers.
func (p *Fixed) Close() error {
	p.executor().close()
	return nil
}

type fixedExecutor struct {
	max         int
	idleTimeout time.Duration
	wake        chan struct{}
	quit        chan struct{}

	mu        sync.Mutex
	queue     []func()
	workers   int
	idle      int
	largest   int
	completed int64
	closed    bool
}

func (e *fixedExecutor) submit(task func()) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	e.queue = append(e.queue, task)
	// An idle worker covers one queued task at most.
	if len(e.queue) > e.idle && e.workers < e.max {
		e.workers++
		if e.workers > e.largest {
			e.largest = e.workers
		}
		go e.work()
	}
	e.mu.Unlock()

	e.signal()
	return nil
}

func (e *fixedExecutor) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
		// Enough wakeups are already pending.
	}
}

func (e *fixedExecutor) next() (func(), bool) {
	if len(e.queue) == 0 {
		return nil, false
	}
	task := e.queue[0]
	e.queue[0] = nil
	e.queue = e.queue[1:]
	return task, true
}

func (e *fixedExecutor) work() {
	timer := time.NewTimer(e.idleTimeout)
	defer timer.Stop()

	for {
		e.mu.Lock()
		task, ok := e.next()
		if !ok {
			if e.closed {
				e.workers--
				e.mu.Unlock()
				return
			}
			e.idle++
		}
		e.mu.Unlock()

		if ok {
			task()
			e.mu.Lock()
			e.completed++
			e.mu.Unlock()
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(e.idleTimeout)

		select {
		case <-e.wake:
			e.mu.Lock()
			e.idle--
			e.mu.Unlock()
		case <-e.quit:
			e.mu.Lock()
			e.idle--
			e.mu.Unlock()
		case <-timer.C:
			e.mu.Lock()
			e.idle--
			if len(e.queue) == 0 {
				e.workers--
				e.mu.Unlock()
				return
			}
			e.mu.Unlock()
		}
	}
}

func (e *fixedExecutor) close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	e.mu.Unlock()
	close(e.quit)
}

func (e *fixedExecutor) stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Stats{
		Kind:           "fixed",
		MaxWorkers:     e.max,
		Workers:        e.workers,
		LargestWorkers: e.largest,
		Queued:         len(e.queue),
		Completed:      e.completed,
	}
}
