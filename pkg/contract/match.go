package contract

import (
	"context"

	"github.com/google/uuid"

	"github.com/cgast/contr/pkg/state"
)

// Invocation is the input to a single verification.
type Invocation struct {
	Args   []any
	Result any
	Async  bool
}

// matcher evaluates one invocation against a contract. It is used by exactly
// one goroutine at a time.
type matcher struct {
	contract *Contract
	inv      Invocation

	okRules     []state.RuleOutcome
	failedRules []state.RuleOutcome
}

func newMatcher(c *Contract, inv Invocation) *matcher {
	return &matcher{
		contract:    c,
		inv:         inv,
		okRules:     []state.RuleOutcome{},
		failedRules: []state.RuleOutcome{},
	}
}

// evaluateAll runs rules in order and records their outcomes.
func (m *matcher) evaluateAll(rules []Rule) []state.RuleOutcome {
	outcomes := make([]state.RuleOutcome, len(rules))
	for i, rule := range rules {
		outcomes[i] = evaluate(rule, m.inv.Args, m.inv.Result)
	}
	m.record(outcomes)
	return outcomes
}

func (m *matcher) record(outcomes []state.RuleOutcome) {
	for _, o := range outcomes {
		if o.OK() {
			m.okRules = append(m.okRules, o)
		} else {
			m.failedRules = append(m.failedRules, o)
		}
	}
}

func (m *matcher) compileState() state.State {
	return state.State{
		ID:           uuid.NewString(),
		TS:           state.FormatTime(m.contract.now()),
		ContractName: m.contract.name,
		FailedRules:  m.failedRules,
		OKRules:      m.okRules,
		Async:        m.inv.Async,
		Args:         state.Capture(m.inv.Args),
		Result:       state.Capture(m.inv.Result),
	}
}

// dumpState samples the snapshot and then logs it. The logger only sees
// dump_info when the sampler wrote a new sample.
func (m *matcher) dumpState(ctx context.Context) {
	c := m.contract
	st := m.compileState()

	if c.sampler != nil {
		info, err := c.sampler.Sample(ctx, st)
		switch {
		case err != nil:
			c.log.WarnContext(ctx, "sample failed", "id", st.ID, "error", err)
		case info != nil:
			st.DumpInfo = info
			c.metrics.recordSample(ctx, c.name, m.inv.Async)
		}
	}

	if c.logger != nil {
		c.logger.Log(ctx, st)
	}
}

func (m *matcher) countUnexpected(ctx context.Context) {
	n := 0
	for _, o := range m.failedRules {
		if o.Status == state.StatusUnexpectedError {
			n++
		}
	}
	if n > 0 {
		m.contract.metrics.recordUnexpected(ctx, m.contract.name, m.inv.Async, n)
	}
}
