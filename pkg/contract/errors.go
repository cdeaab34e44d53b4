package contract

import (
	"errors"
	"fmt"

	"github.com/cgast/contr/pkg/state"
)

var (
	// ErrConfig marks a contract that cannot be constructed.
	ErrConfig = errors.New("contract: invalid configuration")
	// ErrMainPoolDisabled is returned when the main pool is explicitly set to nil.
	ErrMainPoolDisabled = fmt.Errorf("%w: main pool can't be disabled", ErrConfig)

	ErrGuaranteesNotMatched   = errors.New("guarantees not matched")
	ErrExpectationsNotMatched = errors.New("expectations not matched")
)

// RulesNotMatched carries the diagnostic payload of a synchronous violation.
type RulesNotMatched struct {
	FailedRules []state.RuleOutcome
	Args        []any
}

// Minimized returns the failed rules as positional tuples.
func (e RulesNotMatched) Minimized() [][]any {
	out := make([][]any, len(e.FailedRules))
	for i, r := range e.FailedRules {
		out[i] = r.Minimized()
	}
	return out
}

func (e RulesNotMatched) message() string {
	return fmt.Sprintf("failed rules: %v, args: %v", e.Minimized(), e.Args)
}

func (e RulesNotMatched) ruleErrors() []error {
	var errs []error
	for _, r := range e.FailedRules {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

// GuaranteesNotMatchedError is returned by Check when at least one guarantee
// does not hold.
type GuaranteesNotMatchedError struct {
	RulesNotMatched
}

func (e *GuaranteesNotMatchedError) Error() string {
	return ErrGuaranteesNotMatched.Error() + ": " + e.message()
}

func (e *GuaranteesNotMatchedError) Is(target error) bool {
	return target == ErrGuaranteesNotMatched
}

// Unwrap exposes the errors recovered from rules that failed unexpectedly.
func (e *GuaranteesNotMatchedError) Unwrap() []error {
	return e.ruleErrors()
}

// ExpectationsNotMatchedError is returned by Check when guarantees hold but
// no expectation does.
type ExpectationsNotMatchedError struct {
	RulesNotMatched
}

func (e *ExpectationsNotMatchedError) Error() string {
	return ErrExpectationsNotMatched.Error() + ": " + e.message()
}

func (e *ExpectationsNotMatchedError) Is(target error) bool {
	return target == ErrExpectationsNotMatched
}

func (e *ExpectationsNotMatchedError) Unwrap() []error {
	return e.ruleErrors()
}
