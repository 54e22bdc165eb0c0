package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flightops/pkg/tracking"
)

type flightStub struct {
	Number string `json:"number"`
	Gate   string `json:"gate"`
}

func newDualTierForTest(t *testing.T) (*DualTierGateway, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	cfg := GatewayConfig{
		Redis:      RedisConfig{Enabled: true, Addr: mr.Addr()},
		DefaultTTL: time.Minute,
		Stats:      NewStatisticsTracker(),
	}
	g := NewGateway(cfg)
	t.Cleanup(func() { _ = g.Close() })

	dual, ok := g.(*DualTierGateway)
	require.True(t, ok, "a reachable distributed tier selects the dual-tier strategy")
	return dual, mr
}

func TestNewGateway_LocalOnlyWhenUnconfigured(t *testing.T) {
	g := NewGateway(GatewayConfig{})
	defer func() { _ = g.Close() }()

	assert.Equal(t, ModeLocalOnly, g.Mode())
	assert.ErrorIs(t, g.PingDistributed(context.Background()), ErrDistributedUnavailable)
}

func TestNewGateway_LocalOnlyWhenUnreachableWithoutRecovery(t *testing.T) {
	g := NewGateway(GatewayConfig{
		Redis: RedisConfig{
			Enabled:        true,
			Addr:           "127.0.0.1:1",
			ConnectTimeout: 200 * time.Millisecond,
		},
	})
	defer func() { _ = g.Close() }()

	assert.Equal(t, ModeLocalOnly, g.Mode())
}

func TestNewGateway_DualTierWhenReachable(t *testing.T) {
	g, _ := newDualTierForTest(t)
	assert.Equal(t, ModeDualTier, g.Mode())
	assert.NoError(t, g.PingDistributed(context.Background()))
}

func TestDualTierGateway_SetGet(t *testing.T) {
	g, mr := newDualTierForTest(t)
	ctx := context.Background()

	want := flightStub{Number: "BA117", Gate: "A4"}
	require.NoError(t, g.Set(ctx, "flight:BA117", want, time.Minute))

	var got flightStub
	found, err := g.Get(ctx, "flight:BA117", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	assert.True(t, mr.Exists("flightops:cache:flight:BA117"))
}

// A write followed by a read still works when the distributed tier dies in
// between: the caller sees the value, never the outage.
func TestDualTierGateway_SurvivesDistributedFailure(t *testing.T) {
	g, mr := newDualTierForTest(t)
	ctx := context.Background()

	want := flightStub{Number: "LH400", Gate: "B12"}

	mr.Close()

	require.NoError(t, g.Set(ctx, "flight:LH400", want, time.Minute))

	var got flightStub
	found, err := g.Get(ctx, "flight:LH400", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)
}

// A distributed hit is written back into the local tier so the next read
// skips the network hop.
func TestDualTierGateway_WriteBackOnDistributedHit(t *testing.T) {
	g, _ := newDualTierForTest(t)
	ctx := context.Background()

	d := g.distributed.Load()
	require.NotNil(t, d)
	require.NoError(t, d.Set(ctx, "flight:AF22", []byte(`{"number":"AF22","gate":"C1"}`), time.Minute))

	// Not in the local tier yet
	_, err := g.local.Get(ctx, "flight:AF22")
	require.ErrorIs(t, err, ErrNotFound)

	var got flightStub
	found, err := g.Get(ctx, "flight:AF22", &got)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "AF22", got.Number)

	data, err := g.local.Get(ctx, "flight:AF22")
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":"AF22","gate":"C1"}`, string(data))
}

func TestDualTierGateway_RemoveByPattern(t *testing.T) {
	g, mr := newDualTierForTest(t)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "flights:departure:2025-01-01", "a", time.Minute))
	require.NoError(t, g.Set(ctx, "flights:departure:2025-01-02", "b", time.Minute))
	require.NoError(t, g.Set(ctx, "flight:42", "c", time.Minute))

	removed, err := g.RemoveByPattern(ctx, "flights:*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	var out string
	found, err := g.Get(ctx, "flight:42", &out)
	require.NoError(t, err)
	assert.True(t, found)

	assert.False(t, mr.Exists("flightops:cache:flights:departure:2025-01-01"))
	assert.True(t, mr.Exists("flightops:cache:flight:42"))
}

// A bare wildcard would wipe the whole cache; it must be rejected before
// either tier is touched.
func TestGateway_RejectsBareWildcardPattern(t *testing.T) {
	g, mr := newDualTierForTest(t)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "flight:42", "c", time.Minute))

	for _, pattern := range []string{"*", "**", "***"} {
		removed, err := g.RemoveByPattern(ctx, pattern)
		assert.Equal(t, 0, removed, "pattern %q", pattern)
		require.Error(t, err, "pattern %q", pattern)
		assert.True(t, tracking.IsValidationError(err), "pattern %q", pattern)
	}

	// Nothing was deleted by the rejected patterns
	assert.Equal(t, 1, g.local.Len())
	assert.True(t, mr.Exists("flightops:cache:flight:42"))
}

func TestGateway_RejectsInvalidKeys(t *testing.T) {
	g := NewGateway(GatewayConfig{})
	defer func() { _ = g.Close() }()
	ctx := context.Background()

	_, err := g.Get(ctx, "", new(string))
	assert.True(t, tracking.IsValidationError(err))

	long := make([]byte, MaxKeyLength+1)
	for i := range long {
		long[i] = 'k'
	}
	err = g.Set(ctx, string(long), "v", time.Minute)
	assert.True(t, tracking.IsValidationError(err))
}

// Concurrent misses must be counted exactly, one per lookup.
func TestGateway_ConcurrentMissesCountedExactly(t *testing.T) {
	stats := NewStatisticsTracker()
	g := NewGateway(GatewayConfig{Stats: stats})
	defer func() { _ = g.Close() }()

	const lookups = 100
	var wg sync.WaitGroup
	for i := 0; i < lookups; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var out string
			found, err := g.Get(context.Background(), "absent", &out)
			assert.NoError(t, err)
			assert.False(t, found)
		}()
	}
	wg.Wait()

	s := g.StatsSnapshot()
	assert.Equal(t, int64(lookups), s.Memory.Misses)
	assert.Equal(t, int64(0), s.Memory.Hits)
	assert.Equal(t, 0.0, s.Memory.HitRate())
}

// A failed distributed lookup records neither a hit nor a miss for that
// tier; only the local tier that answered is counted.
func TestDualTierGateway_FailedTierRecordsNothing(t *testing.T) {
	g, mr := newDualTierForTest(t)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "flight:42", "c", time.Minute))
	before := g.StatsSnapshot()

	mr.Close()

	var out string
	found, err := g.Get(ctx, "flight:42", &out)
	require.NoError(t, err)
	assert.True(t, found)

	after := g.StatsSnapshot()
	assert.Equal(t, before.Distributed.Hits, after.Distributed.Hits)
	assert.Equal(t, before.Distributed.Misses, after.Distributed.Misses)
	assert.Equal(t, before.Memory.Hits+1, after.Memory.Hits)
}

func TestGateway_ClearAll(t *testing.T) {
	g, mr := newDualTierForTest(t)
	ctx := context.Background()

	require.NoError(t, g.Set(ctx, "a", 1, time.Minute))
	require.NoError(t, g.Set(ctx, "b", 2, time.Minute))

	removed, err := g.ClearAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, g.local.Len())
	assert.False(t, mr.Exists("flightops:cache:a"))
}

func TestGateway_RecoveryUpgradesToDualTier(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	cfg := GatewayConfig{
		Redis: RedisConfig{
			Enabled:        true,
			Addr:           addr,
			ConnectTimeout: 200 * time.Millisecond,
		},
		RecoveryEnabled: true,
		Stats:           NewStatisticsTracker(),
	}
	g := NewGateway(cfg)
	defer func() { _ = g.Close() }()

	// The shell is dual-tier from the start; the slot is just vacant
	require.Equal(t, ModeDualTier, g.Mode())
	assert.ErrorIs(t, g.PingDistributed(context.Background()), ErrDistributedUnavailable)

	dual, ok := g.(*DualTierGateway)
	require.True(t, ok)

	// Bring the server back on the same address and let the loop attach it
	mr2, err := miniredis.Run()
	require.NoError(t, err)
	defer mr2.Close()

	tier, err := NewRedisTier(RedisConfig{Enabled: true, Addr: mr2.Addr()}, nil)
	require.NoError(t, err)
	dual.distributed.Store(tier)

	assert.NoError(t, g.PingDistributed(context.Background()))
}
