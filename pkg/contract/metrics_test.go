package contract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/cgast/contr/pkg/pool"
)

// counterValues sums every data point of every Int64 sum by metric name and
// the given attribute.
func counterValues(t *testing.T, reader *sdkmetric.ManualReader, key attribute.Key) map[string]map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(key)
				if out[m.Name] == nil {
					out[m.Name] = make(map[string]int64)
				}
				out[m.Name][v.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer mp.Shutdown(context.Background())

	c, err := Define("Metered").
		Guarantee("g", Func1(func(args []any) bool { return args[0].(int) > 0 })).
		Expect("e", raises()).
		Expect("e2", Func1(func(args []any) bool { return args[0].(int) < 10 })).
		New(
			WithLogger(nil),
			WithSampler(newMemorySampler()),
			WithMainPool(pool.GlobalIO()),
			WithInline(true),
			WithMeterProvider(mp),
		)
	require.NoError(t, err)
	ctx := context.Background()

	_, _ = c.Check(ctx, []any{1}, op([]any{1}))
	_, _ = c.Check(ctx, []any{-1}, op([]any{-1}))
	_, _ = c.Check(ctx, []any{20}, op([]any{20}))
	_, _ = c.CheckAsync(ctx, []any{20}, op([]any{20}))

	byMode := counterValues(t, reader, "mode")
	assert.Equal(t, map[string]int64{"sync": 3, "async": 1}, byMode["contr.checks"])
	assert.Equal(t, map[string]int64{"sync": 2, "async": 1}, byMode["contr.rule.unexpected_errors"])
	assert.Equal(t, map[string]int64{"sync": 1}, byMode["contr.samples"])

	byKind := counterValues(t, reader, "kind")
	assert.Equal(t, map[string]int64{"guarantee": 1, "expectation": 2}, byKind["contr.violations"])

	byContract := counterValues(t, reader, "contract")
	assert.Equal(t, map[string]int64{"Metered": 4}, byContract["contr.checks"])
}
