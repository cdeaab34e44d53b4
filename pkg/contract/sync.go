package contract

import (
	"context"

	"github.com/cgast/contr/pkg/state"
)

// matchSync checks guarantees and then expectations. Expectations are not
// evaluated once a guarantee has failed, so exactly one violation category
// is reported per invocation.
func (m *matcher) matchSync(ctx context.Context) error {
	c := m.contract
	c.metrics.recordCheck(ctx, c.name, false)
	defer m.countUnexpected(ctx)

	if guarantees := m.evaluateAll(c.guarantees); anyFailed(guarantees) {
		return m.fail(ctx, state.KindGuarantee)
	}
	if expectations := m.evaluateAll(c.expectations); allFailed(expectations) {
		return m.fail(ctx, state.KindExpectation)
	}
	return nil
}

func (m *matcher) fail(ctx context.Context, kind state.Kind) error {
	m.contract.metrics.recordViolation(ctx, m.contract.name, false, kind)
	m.dumpState(ctx)

	payload := RulesNotMatched{FailedRules: m.failedRules, Args: m.inv.Args}
	if kind == state.KindGuarantee {
		return &GuaranteesNotMatchedError{payload}
	}
	return &ExpectationsNotMatchedError{payload}
}
