// Package pool provides the executors contract verification runs on: a
// bounded Fixed pool owned by a single contract and the process-wide GlobalIO
// executor shared by everyone.
package pool

import (
	"errors"
	"fmt"
	"sync"
)

// ErrClosed is returned when submitting to a pool that has been closed.
var ErrClosed = errors.New("pool: closed")

// Pool accepts tasks for asynchronous execution. Submit never blocks the
// caller.
type Pool interface {
	Submit(task func()) error
	Stats() Stats
}

// Stats is a read-only view of an executor's state.
type Stats struct {
	Kind           string `json:"kind"`
	MaxWorkers     int    `json:"max_workers"` // 0 means unbounded
	Workers        int    `json:"workers"`
	LargestWorkers int    `json:"largest_workers"`
	Queued         int    `json:"queued"`
	Completed      int64  `json:"completed"`
}

// Future is the pending result of a task submitted with Go.
type Future[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(val T, err error) {
	f.once.Do(func() {
		f.val = val
		f.err = err
		close(f.done)
	})
}

// Done is closed once the future is resolved or rejected.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the future settles and returns its value or rejection.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.val, f.err
}

// Go submits fn to p and returns a future for its result. A panic inside fn
// rejects the future.
func Go[T any](p Pool, fn func() (T, error)) *Future[T] {
	f := newFuture[T]()
	err := p.Submit(func() {
		var (
			val T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				var zero T
				f.resolve(zero, fmt.Errorf("pool: task panicked: %v", r))
				return
			}
			f.resolve(val, err)
		}()
		val, err = fn()
	})
	if err != nil {
		var zero T
		f.resolve(zero, err)
	}
	return f
}

// ZipAll returns a future that resolves with the values of all inputs, in
// input order, once every input has resolved. It is rejected with the first
// rejection observed.
func ZipAll[T any](futures ...*Future[T]) *Future[[]T] {
	out := newFuture[[]T]()
	if len(futures) == 0 {
		out.resolve([]T{}, nil)
		return out
	}

	settled := make(chan int, len(futures))
	for i, f := range futures {
		go func(i int, f *Future[T]) {
			<-f.Done()
			settled <- i
		}(i, f)
	}

	go func() {
		for range futures {
			i := <-settled
			if err := futures[i].err; err != nil {
				out.resolve(nil, err)
				return
			}
		}
		vals := make([]T, len(futures))
		for i, f := range futures {
			vals[i] = f.val
		}
		out.resolve(vals, nil)
	}()
	return out
}
