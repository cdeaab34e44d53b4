package contract

import (
	"context"

	"github.com/cgast/contr/pkg/pool"
	"github.com/cgast/contr/pkg/state"
)

// matchAsync schedules the whole verification, sampling and logging included,
// as one task on the main pool. Unless the contract is inline it returns
// without waiting. The task is detached from ctx cancellation: once
// submitted it runs to completion.
func (m *matcher) matchAsync(ctx context.Context) {
	c := m.contract
	ctx = context.WithoutCancel(ctx)

	task := pool.Go(c.mainPool, func() (struct{}, error) {
		m.verifyAsync(ctx)
		return struct{}{}, nil
	})

	if c.inline {
		if _, err := task.Wait(); err != nil {
			c.log.ErrorContext(ctx, "async check failed", "error", err)
		}
		return
	}

	select {
	case <-task.Done():
		if _, err := task.Wait(); err != nil {
			c.log.ErrorContext(ctx, "async check failed", "error", err)
		}
	default:
	}
}

// verifyAsync computes both aggregates unconditionally; unlike the
// synchronous path there is no short-circuit between guarantees and
// expectations.
func (m *matcher) verifyAsync(ctx context.Context) {
	c := m.contract
	c.metrics.recordCheck(ctx, c.name, true)

	var guarantees, expectations []state.RuleOutcome
	parallel := c.rulesPool != nil
	if parallel {
		outcomes, err := m.evaluateParallel()
		if err != nil {
			// The rules pool rejected work; evaluate on this worker instead.
			c.log.WarnContext(ctx, "rules pool unavailable, evaluating sequentially", "error", err)
			parallel = false
		} else {
			guarantees, expectations = partition(outcomes)
			m.record(guarantees)
			m.record(expectations)
		}
	}
	if !parallel {
		guarantees = m.evaluateAll(c.guarantees)
		expectations = m.evaluateAll(c.expectations)
	}
	m.countUnexpected(ctx)

	guaranteesFailed := anyFailed(guarantees)
	expectationsFailed := allFailed(expectations)
	if guaranteesFailed {
		c.metrics.recordViolation(ctx, c.name, true, state.KindGuarantee)
	}
	if expectationsFailed {
		c.metrics.recordViolation(ctx, c.name, true, state.KindExpectation)
	}

	if guaranteesFailed || expectationsFailed {
		m.dumpState(ctx)
	}
}

// evaluateParallel submits every rule to the rules pool and fans the
// outcomes back in submission order.
func (m *matcher) evaluateParallel() ([]state.RuleOutcome, error) {
	c := m.contract
	rules := make([]Rule, 0, len(c.guarantees)+len(c.expectations))
	rules = append(rules, c.guarantees...)
	rules = append(rules, c.expectations...)

	futures := make([]*pool.Future[state.RuleOutcome], len(rules))
	for i, rule := range rules {
		futures[i] = pool.Go(c.rulesPool, func() (state.RuleOutcome, error) {
			return evaluate(rule, m.inv.Args, m.inv.Result), nil
		})
	}
	return pool.ZipAll(futures...).Wait()
}

func partition(outcomes []state.RuleOutcome) (guarantees, expectations []state.RuleOutcome) {
	for _, o := range outcomes {
		if o.Kind == state.KindGuarantee {
			guarantees = append(guarantees, o)
		} else {
			expectations = append(expectations, o)
		}
	}
	return guarantees, expectations
}
