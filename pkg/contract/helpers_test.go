package contract

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/cgast/contr/pkg/state"
)

// recorder is a logger that keeps every snapshot it receives.
type recorder struct {
	mu     sync.Mutex
	states []state.State
}

func (r *recorder) Log(_ context.Context, s state.State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) all() []state.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]state.State(nil), r.states...)
}

// memorySampler dedups per contract name for its whole lifetime.
type memorySampler struct {
	mu      sync.Mutex
	states  []state.State
	written map[string]bool
	err     error
}

func newMemorySampler() *memorySampler {
	return &memorySampler{written: make(map[string]bool)}
}

func (m *memorySampler) Sample(_ context.Context, s state.State) (*state.DumpInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.written[s.ContractName] {
		return nil, nil
	}
	m.written[s.ContractName] = true
	m.states = append(m.states, s)
	return &state.DumpInfo{Path: "mem://" + s.ContractName}, nil
}

func (m *memorySampler) all() []state.State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]state.State(nil), m.states...)
}

// counted wraps a constant evaluator and counts its calls.
type counted struct {
	calls atomic.Int32
	value bool
}

func (c *counted) ev() Evaluator {
	return Func0(func() bool {
		c.calls.Add(1)
		return c.value
	})
}

var errBoom = errors.New("boom")

func raises() Evaluator {
	return Func0(func() bool { panic(errBoom) })
}

func always(v bool) Evaluator {
	return Func0(func() bool { return v })
}

func sum(args []any) (any, error) {
	total := 0
	for _, a := range args {
		total += a.(int)
	}
	return total, nil
}

func op(args []any) Operation {
	return func() (any, error) { return sum(args) }
}
