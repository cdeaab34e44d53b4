package contract

import (
	"fmt"

	"github.com/cgast/contr/pkg/state"
)

// Definition declares the rules and default configuration of a contract
// type. Definitions form a chain through Extend; New flattens the chain,
// base first, into an immutable Contract.
type Definition struct {
	name         string
	parent       *Definition
	guarantees   []Rule
	expectations []Rule
	settings     settings
	errs         []error
}

// Define starts a new root definition.
func Define(name string) *Definition {
	return &Definition{name: name}
}

// Extend starts a definition that inherits d's rules and configuration.
func (d *Definition) Extend(name string) *Definition {
	return &Definition{name: name, parent: d}
}

// Name returns the contract name used in snapshots and sample paths.
func (d *Definition) Name() string {
	return d.name
}

// Guarantee adds a rule that must hold on every invocation.
func (d *Definition) Guarantee(name string, ev Evaluator) *Definition {
	d.guarantees = append(d.guarantees, d.rule(state.KindGuarantee, name, ev))
	return d
}

// Expect adds an expectation. A contract passes its expectations when at
// least one of them holds.
func (d *Definition) Expect(name string, ev Evaluator) *Definition {
	d.expectations = append(d.expectations, d.rule(state.KindExpectation, name, ev))
	return d
}

// Configure sets type-level configuration inherited by extensions.
func (d *Definition) Configure(opts ...Option) *Definition {
	for _, opt := range opts {
		opt(&d.settings)
	}
	return d
}

func (d *Definition) rule(kind state.Kind, name string, ev Evaluator) Rule {
	if name == "" {
		d.errs = append(d.errs, fmt.Errorf("%w: %s: %s without a name", ErrConfig, d.name, kind))
	}
	if !ev.valid() {
		d.errs = append(d.errs, fmt.Errorf("%w: %s: %s %q has no evaluator", ErrConfig, d.name, kind, name))
	}
	return Rule{Kind: kind, Name: name, Evaluator: ev}
}

// chain returns the definitions from the root down to d.
func (d *Definition) chain() []*Definition {
	var chain []*Definition
	for cur := d; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// resolve flattens the chain. Rules keep declaration order with base rules
// first; for each setting the instance options win over the nearest
// definition that set it explicitly.
func (d *Definition) resolve(opts []Option) (guarantees, expectations []Rule, s settings, err error) {
	if d.name == "" {
		return nil, nil, s, fmt.Errorf("%w: contract name is required", ErrConfig)
	}

	for _, def := range d.chain() {
		if len(def.errs) > 0 {
			return nil, nil, s, def.errs[0]
		}
		guarantees = append(guarantees, def.guarantees...)
		expectations = append(expectations, def.expectations...)
		s.merge(def.settings)
	}

	if err := checkDuplicates(d.name, guarantees); err != nil {
		return nil, nil, s, err
	}
	if err := checkDuplicates(d.name, expectations); err != nil {
		return nil, nil, s, err
	}

	var instance settings
	for _, opt := range opts {
		opt(&instance)
	}
	s.merge(instance)
	return guarantees, expectations, s, nil
}

func checkDuplicates(contract string, rules []Rule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if seen[r.Name] {
			return fmt.Errorf("%w: %s: duplicate %s %q", ErrConfig, contract, r.Kind, r.Name)
		}
		seen[r.Name] = true
	}
	return nil
}
