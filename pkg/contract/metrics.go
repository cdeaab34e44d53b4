package contract

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/cgast/contr/pkg/state"
)

const meterName = "github.com/cgast/contr/pkg/contract"

type metrics struct {
	checks     metric.Int64Counter
	violations metric.Int64Counter
	unexpected metric.Int64Counter
	samples    metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)
	m := &metrics{}

	var err error
	if m.checks, err = meter.Int64Counter("contr.checks",
		metric.WithDescription("Verifications performed")); err != nil {
		return nil, fmt.Errorf("create checks counter: %w", err)
	}
	if m.violations, err = meter.Int64Counter("contr.violations",
		metric.WithDescription("Contract violations by rule kind")); err != nil {
		return nil, fmt.Errorf("create violations counter: %w", err)
	}
	if m.unexpected, err = meter.Int64Counter("contr.rule.unexpected_errors",
		metric.WithDescription("Rules that panicked during evaluation")); err != nil {
		return nil, fmt.Errorf("create unexpected errors counter: %w", err)
	}
	if m.samples, err = meter.Int64Counter("contr.samples",
		metric.WithDescription("Snapshots written by the sampler")); err != nil {
		return nil, fmt.Errorf("create samples counter: %w", err)
	}
	return m, nil
}

func attrs(contract string, async bool, extra ...attribute.KeyValue) metric.MeasurementOption {
	mode := "sync"
	if async {
		mode = "async"
	}
	kv := append([]attribute.KeyValue{
		attribute.String("contract", contract),
		attribute.String("mode", mode),
	}, extra...)
	return metric.WithAttributes(kv...)
}

func (m *metrics) recordCheck(ctx context.Context, contract string, async bool) {
	m.checks.Add(ctx, 1, attrs(contract, async))
}

func (m *metrics) recordViolation(ctx context.Context, contract string, async bool, kind state.Kind) {
	m.violations.Add(ctx, 1, attrs(contract, async, attribute.String("kind", string(kind))))
}

func (m *metrics) recordUnexpected(ctx context.Context, contract string, async bool, n int) {
	m.unexpected.Add(ctx, int64(n), attrs(contract, async))
}

func (m *metrics) recordSample(ctx context.Context, contract string, async bool) {
	m.samples.Add(ctx, 1, attrs(contract, async))
}
