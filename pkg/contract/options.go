package contract

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/cgast/contr/pkg/logger"
	"github.com/cgast/contr/pkg/pool"
	"github.com/cgast/contr/pkg/sampler"
)

// optional distinguishes "never configured" from "configured, possibly to nil".
type optional[T any] struct {
	set bool
	val T
}

func (o *optional[T]) override(other optional[T]) {
	if other.set {
		*o = other
	}
}

type settings struct {
	logger    optional[logger.Logger]
	sampler   optional[sampler.Sampler]
	mainPool  optional[pool.Pool]
	rulesPool optional[pool.Pool]
	inline    optional[bool]
	clock     optional[func() time.Time]
	meter     optional[metric.MeterProvider]
	slog      optional[*slog.Logger]
}

// merge applies every setting that other configured explicitly.
func (s *settings) merge(other settings) {
	s.logger.override(other.logger)
	s.sampler.override(other.sampler)
	s.mainPool.override(other.mainPool)
	s.rulesPool.override(other.rulesPool)
	s.inline.override(other.inline)
	s.clock.override(other.clock)
	s.meter.override(other.meter)
	s.slog.override(other.slog)
}

// Option configures a contract, either on a Definition (inherited by
// extensions) or on a single instance passed to New.
type Option func(*settings)

// WithLogger sets the violation logger. nil disables logging.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		s.logger = optional[logger.Logger]{set: true, val: l}
	}
}

// WithSampler sets the snapshot sampler. nil disables sampling.
func WithSampler(smp sampler.Sampler) Option {
	return func(s *settings) {
		s.sampler = optional[sampler.Sampler]{set: true, val: smp}
	}
}

// WithMainPool sets the pool asynchronous checks run on. It cannot be nil.
func WithMainPool(p pool.Pool) Option {
	return func(s *settings) {
		s.mainPool = optional[pool.Pool]{set: true, val: p}
	}
}

// WithRulesPool enables rule-level parallelism for asynchronous checks. nil
// evaluates rules sequentially on the main pool.
func WithRulesPool(p pool.Pool) Option {
	return func(s *settings) {
		s.rulesPool = optional[pool.Pool]{set: true, val: p}
	}
}

// WithInline makes CheckAsync wait for the verification task. Intended for
// tests that need deterministic assertions.
func WithInline(inline bool) Option {
	return func(s *settings) {
		s.inline = optional[bool]{set: true, val: inline}
	}
}

// WithClock overrides the time source used to stamp snapshots.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		s.clock = optional[func() time.Time]{set: true, val: now}
	}
}

// WithMeterProvider sets where contract metrics are recorded.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *settings) {
		s.meter = optional[metric.MeterProvider]{set: true, val: mp}
	}
}

// WithSlog sets the logger used for the contract's own operational messages
// (sampler failures, rejected submissions). Violations go to WithLogger.
func WithSlog(l *slog.Logger) Option {
	return func(s *settings) {
		s.slog = optional[*slog.Logger]{set: true, val: l}
	}
}
