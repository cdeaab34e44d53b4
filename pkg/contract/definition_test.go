package contract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cgast/contr/pkg/logger"
	"github.com/cgast/contr/pkg/pool"
	"github.com/cgast/contr/pkg/sampler"
)

func ruleNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name
	}
	return names
}

func TestNewDefaults(t *testing.T) {
	c, err := Define("Defaults").New()
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, "Defaults", c.Name())
	assert.IsType(t, &logger.Slog{}, c.Logger())
	assert.IsType(t, &sampler.File{}, c.Sampler())
	assert.IsType(t, &pool.Fixed{}, c.MainPool())
	assert.Nil(t, c.RulesPool())
	assert.Empty(t, c.Guarantees())
	assert.Empty(t, c.Expectations())
}

func TestExtendFlattensRulesBaseFirst(t *testing.T) {
	base := Define("Base").
		Guarantee("g1", always(true)).
		Expect("e1", always(true))
	child := base.Extend("Child").
		Guarantee("g2", always(true)).
		Expect("e2", always(true))
	grandchild := child.Extend("Grandchild").
		Guarantee("g3", always(true))

	c, err := grandchild.New(WithMainPool(pool.GlobalIO()))
	require.NoError(t, err)

	assert.Equal(t, "Grandchild", c.Name())
	assert.Equal(t, []string{"g1", "g2", "g3"}, ruleNames(c.Guarantees()))
	assert.Equal(t, []string{"e1", "e2"}, ruleNames(c.Expectations()))

	// The parent is unaffected by its extensions.
	p, err := base.New(WithMainPool(pool.GlobalIO()))
	require.NoError(t, err)
	assert.Equal(t, []string{"g1"}, ruleNames(p.Guarantees()))
}

func TestSettingsPrecedence(t *testing.T) {
	baseLog, childLog, instanceLog := &recorder{}, &recorder{}, &recorder{}
	baseSampler := newMemorySampler()

	base := Define("Base").Configure(
		WithLogger(baseLog),
		WithSampler(baseSampler),
		WithMainPool(pool.GlobalIO()),
	)
	child := base.Extend("Child").Configure(WithLogger(childLog))

	c, err := child.New()
	require.NoError(t, err)
	assert.Same(t, childLog, c.Logger())
	assert.Same(t, baseSampler, c.Sampler())
	assert.Equal(t, pool.GlobalIO(), c.MainPool())

	c, err = child.New(WithLogger(instanceLog))
	require.NoError(t, err)
	assert.Same(t, instanceLog, c.Logger())
}

func TestExplicitNilDisables(t *testing.T) {
	base := Define("Base").Configure(WithLogger(&recorder{}), WithSampler(newMemorySampler()))
	child := base.Extend("Child").Configure(WithSampler(nil))

	c, err := child.New(WithLogger(nil), WithRulesPool(nil), WithMainPool(pool.GlobalIO()))
	require.NoError(t, err)
	assert.Nil(t, c.Logger())
	assert.Nil(t, c.Sampler())
	assert.Nil(t, c.RulesPool())
}

func TestMainPoolCannotBeDisabled(t *testing.T) {
	_, err := Define("NoPool").New(WithMainPool(nil))
	assert.ErrorIs(t, err, ErrMainPoolDisabled)
	assert.ErrorIs(t, err, ErrConfig)

	_, err = Define("NoPool").Configure(WithMainPool(nil)).Extend("Child").New()
	assert.ErrorIs(t, err, ErrMainPoolDisabled)
}

func TestDefinitionErrors(t *testing.T) {
	tests := []struct {
		name string
		def  *Definition
	}{
		{"empty contract name", Define("")},
		{"unnamed rule", Define("C").Guarantee("", always(true))},
		{"missing evaluator", Define("C").Expect("e", Evaluator{})},
		{"nil function", Define("C").Guarantee("g", Func1(nil))},
		{"duplicate guarantee", Define("C").Guarantee("g", always(true)).Guarantee("g", always(false))},
		{"duplicate across chain", Define("B").Expect("e", always(true)).Extend("C").Expect("e", always(true))},
		{"broken base", Define("B").Guarantee("", always(true)).Extend("C")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.def.New(WithMainPool(pool.GlobalIO()))
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

func TestSameNameAcrossKindsAllowed(t *testing.T) {
	_, err := Define("C").
		Guarantee("positive", always(true)).
		Expect("positive", always(true)).
		New(WithMainPool(pool.GlobalIO()))
	assert.NoError(t, err)
}

func TestCloseLeavesSuppliedPools(t *testing.T) {
	shared := pool.NewFixed()
	defer shared.Close()

	c, err := Define("C").New(WithMainPool(shared), WithLogger(nil), WithSampler(nil))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.NoError(t, shared.Submit(func() {}))
}

func TestCloseStopsOwnedPool(t *testing.T) {
	c, err := Define("C").New(WithLogger(nil), WithSampler(nil))
	require.NoError(t, err)
	require.NoError(t, c.Close())

	assert.ErrorIs(t, c.MainPool().Submit(func() {}), pool.ErrClosed)
}

func TestClockStampsSnapshots(t *testing.T) {
	log := &recorder{}
	at := time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	c, err := Define("Clock").
		Guarantee("g", always(false)).
		New(WithLogger(log), WithSampler(nil), WithMainPool(pool.GlobalIO()), WithClock(func() time.Time { return at }))
	require.NoError(t, err)

	_, err = c.Check(context.Background(), nil, op(nil))
	require.Error(t, err)
	require.Len(t, log.all(), 1)
	assert.Equal(t, "1999-01-01T00:00:00.000Z", log.all()[0].TS)
}
