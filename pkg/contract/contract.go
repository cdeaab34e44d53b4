// Package contract verifies operations at runtime against declared
// guarantees and expectations.
//
// A contract type is declared once with Define and turned into a usable,
// immutable Contract with New:
//
//	orders := contract.Define("OrderContract").
//		Guarantee("positive total", contract.Func2(func(args []any, result any) bool {
//			return result.(int) > 0
//		})).
//		Expect("cache hit", contract.Func0(cacheWarm))
//
//	c, err := orders.New()
//	total, err := contract.Run(ctx, c, []any{order}, func() (int, error) {
//		return computeTotal(order)
//	})
//
// Check verifies synchronously and returns a *GuaranteesNotMatchedError or
// *ExpectationsNotMatchedError on violation. CheckAsync hands verification to
// the contract's main pool and returns the operation result straight away;
// violations are only visible through the sampler and the logger.
package contract

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/cgast/contr/pkg/logger"
	"github.com/cgast/contr/pkg/pool"
	"github.com/cgast/contr/pkg/sampler"
)

// Operation is the guarded code. Its error is returned to the caller
// untouched and no verification takes place.
type Operation func() (any, error)

// Contract is a resolved, immutable contract instance. It is safe for
// concurrent use.
type Contract struct {
	name         string
	guarantees   []Rule
	expectations []Rule

	logger    logger.Logger
	sampler   sampler.Sampler
	mainPool  pool.Pool
	rulesPool pool.Pool
	ownedPool *pool.Fixed

	inline  bool
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics
}

// New resolves the definition chain into a Contract. Settings not configured
// anywhere fall back to a JSON logger on stdout, a file sampler, a fixed main
// pool and no rules pool.
func (d *Definition) New(opts ...Option) (*Contract, error) {
	guarantees, expectations, s, err := d.resolve(opts)
	if err != nil {
		return nil, err
	}

	c := &Contract{
		name:         d.name,
		guarantees:   guarantees,
		expectations: expectations,
		inline:       s.inline.val,
		now:          time.Now,
	}

	switch {
	case !s.logger.set:
		c.logger = logger.NewJSON(os.Stdout)
	default:
		c.logger = s.logger.val
	}

	switch {
	case !s.sampler.set:
		if c.sampler, err = sampler.NewFile(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrConfig, err)
		}
	default:
		c.sampler = s.sampler.val
	}

	switch {
	case !s.mainPool.set:
		c.ownedPool = pool.NewFixed()
		c.mainPool = c.ownedPool
	case s.mainPool.val == nil:
		return nil, ErrMainPoolDisabled
	default:
		c.mainPool = s.mainPool.val
	}
	c.rulesPool = s.rulesPool.val

	if s.clock.set && s.clock.val != nil {
		c.now = s.clock.val
	}

	c.log = slog.Default()
	if s.slog.set && s.slog.val != nil {
		c.log = s.slog.val
	}
	c.log = c.log.With("component", "contract", "contract", c.name)

	mp := otel.GetMeterProvider()
	if s.meter.set && s.meter.val != nil {
		mp = s.meter.val
	}
	if c.metrics, err = newMetrics(mp); err != nil {
		return nil, err
	}

	return c, nil
}

// Name returns the contract name.
func (c *Contract) Name() string { return c.name }

// Guarantees returns the flattened guarantee list, base definitions first.
func (c *Contract) Guarantees() []Rule { return append([]Rule(nil), c.guarantees...) }

// Expectations returns the flattened expectation list, base definitions first.
func (c *Contract) Expectations() []Rule { return append([]Rule(nil), c.expectations...) }

// Logger returns the violation logger, or nil when logging is disabled.
func (c *Contract) Logger() logger.Logger { return c.logger }

// Sampler returns the sampler, or nil when sampling is disabled.
func (c *Contract) Sampler() sampler.Sampler { return c.sampler }

// MainPool returns the pool asynchronous checks run on.
func (c *Contract) MainPool() pool.Pool { return c.mainPool }

// RulesPool returns the pool rules are fanned out to, or nil when rules run
// sequentially.
func (c *Contract) RulesPool() pool.Pool { return c.rulesPool }

// Close releases the main pool if the contract created it. Pools supplied
// through options, including GlobalIO, are left alone.
func (c *Contract) Close() error {
	if c.ownedPool != nil {
		return c.ownedPool.Close()
	}
	return nil
}

// Check runs op and verifies its result synchronously.
func (c *Contract) Check(ctx context.Context, args []any, op Operation) (any, error) {
	result, err := op()
	if err != nil {
		return result, err
	}
	m := newMatcher(c, Invocation{Args: args, Result: result})
	if err := m.matchSync(ctx); err != nil {
		return result, err
	}
	return result, nil
}

// CheckAsync runs op and schedules verification of its result on the main
// pool. The returned error is only ever op's own error.
func (c *Contract) CheckAsync(ctx context.Context, args []any, op Operation) (any, error) {
	result, err := op()
	if err != nil {
		return result, err
	}
	m := newMatcher(c, Invocation{Args: args, Result: result, Async: true})
	m.matchAsync(ctx)
	return result, nil
}

// Run is the typed form of Contract.Check.
func Run[T any](ctx context.Context, c *Contract, args []any, op func() (T, error)) (T, error) {
	var typed T
	_, err := c.Check(ctx, args, func() (any, error) {
		var err error
		typed, err = op()
		return typed, err
	})
	return typed, err
}

// RunAsync is the typed form of Contract.CheckAsync.
func RunAsync[T any](ctx context.Context, c *Contract, args []any, op func() (T, error)) (T, error) {
	var typed T
	_, err := c.CheckAsync(ctx, args, func() (any, error) {
		var err error
		typed, err = op()
		return typed, err
	})
	return typed, err
}
