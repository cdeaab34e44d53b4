package contract

import (
	"fmt"

	"github.com/cgast/contr/pkg/state"
)

// Evaluator wraps a rule body together with the number of parameters it
// declares. Build one with Func0, Func1 or Func2.
type Evaluator struct {
	arity int
	fn0   func() bool
	fn1   func(args []any) bool
	fn2   func(args []any, result any) bool
}

// Func0 builds an evaluator that ignores the arguments and the result.
func Func0(fn func() bool) Evaluator {
	return Evaluator{arity: 0, fn0: fn}
}

// Func1 builds an evaluator that inspects the operation arguments.
func Func1(fn func(args []any) bool) Evaluator {
	return Evaluator{arity: 1, fn1: fn}
}

// Func2 builds an evaluator that inspects the arguments and the result.
func Func2(fn func(args []any, result any) bool) Evaluator {
	return Evaluator{arity: 2, fn2: fn}
}

// Arity returns the number of parameters the evaluator declared.
func (e Evaluator) Arity() int {
	return e.arity
}

func (e Evaluator) valid() bool {
	switch e.arity {
	case 0:
		return e.fn0 != nil
	case 1:
		return e.fn1 != nil
	case 2:
		return e.fn2 != nil
	}
	return false
}

func (e Evaluator) call(args []any, result any) bool {
	switch e.arity {
	case 0:
		return e.fn0()
	case 1:
		return e.fn1(args)
	default:
		return e.fn2(args, result)
	}
}

// Rule is a named guarantee or expectation.
type Rule struct {
	Kind      state.Kind
	Name      string
	Evaluator Evaluator
}

// evaluate runs one rule. A panicking evaluator yields an unexpected_error
// outcome instead of unwinding into sibling rules or the caller.
func evaluate(rule Rule, args []any, result any) (out state.RuleOutcome) {
	out = state.RuleOutcome{Kind: rule.Kind, Name: rule.Name}
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if ok {
				err = fmt.Errorf("rule %s: %w", rule.Name, err)
			} else {
				err = fmt.Errorf("rule %s: %v", rule.Name, r)
			}
			out.Status = state.StatusUnexpectedError
			out.Err = err
			out.Error = err.Error()
		}
	}()

	if rule.Evaluator.call(args, result) {
		out.Status = state.StatusOK
	} else {
		out.Status = state.StatusFailed
	}
	return out
}

// anyFailed reports whether at least one outcome is not ok. Guarantees fail
// on this condition; an empty list passes.
func anyFailed(outcomes []state.RuleOutcome) bool {
	for _, o := range outcomes {
		if !o.OK() {
			return true
		}
	}
	return false
}

// allFailed reports whether every outcome is not ok. Expectations fail on
// this condition; an empty list passes.
func allFailed(outcomes []state.RuleOutcome) bool {
	if len(outcomes) == 0 {
		return false
	}
	for _, o := range outcomes {
		if o.OK() {
			return false
		}
	}
	return true
}
