package sampler

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestBolt(t *testing.T, opts ...Option) *Bolt {
	t.Helper()
	b, err := OpenBolt(filepath.Join(t.TempDir(), "samples.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func TestBoltSampleWritesOncePerPeriod(t *testing.T) {
	clock := &fakeClock{t: time.Unix(915148800, 0)}
	b := openTestBolt(t, WithPeriod(600*time.Second), WithClock(clock.now))
	ctx := context.Background()

	info, err := b.Sample(ctx, testState("OrderContract"))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.True(t, strings.HasPrefix(info.Path, "bolt://"))
	assert.True(t, strings.HasSuffix(info.Path, "#OrderContract/1525248"))

	clock.advance(10 * time.Second)
	again, err := b.Sample(ctx, testState("OrderContract"))
	require.NoError(t, err)
	assert.Nil(t, again)

	clock.advance(600 * time.Second)
	next, err := b.Sample(ctx, testState("OrderContract"))
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.True(t, strings.HasSuffix(next.Path, "#OrderContract/1525249"))
}

func TestBoltRoundTrip(t *testing.T) {
	clock := &fakeClock{t: time.Unix(915148800, 0)}
	b := openTestBolt(t, WithPeriod(600*time.Second), WithClock(clock.now))
	ctx := context.Background()

	want := testState("OrderContract")
	info, err := b.Sample(ctx, want)
	require.NoError(t, err)
	require.NotNil(t, info)

	byPath, err := b.Read(ctx, AtPath(info.Path))
	require.NoError(t, err)
	assert.Equal(t, want, byPath)

	byKey, err := b.Read(ctx, AtPath("OrderContract/1525248"))
	require.NoError(t, err)
	assert.Equal(t, want, byKey)

	byComponents, err := b.Read(ctx, At("OrderContract", 1525248))
	require.NoError(t, err)
	assert.Equal(t, want, byComponents)
}

func TestBoltReadErrors(t *testing.T) {
	b := openTestBolt(t)
	ctx := context.Background()

	_, err := b.Read(ctx, Location{ContractName: "A"})
	assert.ErrorIs(t, err, ErrInvalidLocation)

	_, err = b.Read(ctx, At("A", 1))
	assert.ErrorContains(t, err, "sample not found")
}

func TestBoltList(t *testing.T) {
	clock := &fakeClock{t: time.Unix(915148800, 0)}
	b := openTestBolt(t, WithClock(clock.now))
	ctx := context.Background()

	older := testState("B")
	older.TS = "1998-12-31T23:59:59.000Z"
	_, err := b.Sample(ctx, testState("A"))
	require.NoError(t, err)
	_, err = b.Sample(ctx, older)
	require.NoError(t, err)

	infos, err := b.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "B", infos[0].ContractName)
	assert.Equal(t, "A", infos[1].ContractName)

	got, err := b.Read(ctx, AtPath(infos[1].Path))
	require.NoError(t, err)
	assert.Equal(t, "A", got.ContractName)
}

func TestOpenBoltRejectsBadPeriod(t *testing.T) {
	_, err := OpenBolt(filepath.Join(t.TempDir(), "x.db"), WithPeriod(0))
	assert.Error(t, err)
}
