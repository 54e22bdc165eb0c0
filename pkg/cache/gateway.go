package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/flightops/flightops/pkg/observability"
	"github.com/flightops/flightops/pkg/tracking"
)

// Mode identifies the gateway strategy selected at construction
type Mode string

// Gateway modes
const (
	ModeDualTier  Mode = "dual-tier"
	ModeLocalOnly Mode = "local-only"
)

// ErrDistributedUnavailable is returned by PingDistributed when the gateway
// has no live distributed tier.
var ErrDistributedUnavailable = errors.New("distributed cache tier unavailable")

// Gateway is the caching surface used by business logic. Distributed-tier
// failures never escape it: the worst case a caller observes is a miss.
type Gateway interface {
	// Get loads the value stored under key into value and reports whether
	// it was found in either tier.
	Get(ctx context.Context, key string, value interface{}) (bool, error)

	// Set stores value under key in every available tier. A distributed
	// write failure is absorbed; the local write decides the outcome.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Remove deletes key from every tier; absence is not an error
	Remove(ctx context.Context, key string) error

	// RemoveByPattern bulk-deletes keys matching a validated glob pattern
	// and returns the number of local-tier keys removed.
	RemoveByPattern(ctx context.Context, pattern string) (int, error)

	// ClearAll removes every cached entry from every tier
	ClearAll(ctx context.Context) (int, error)

	// Mode reports the strategy fixed at construction
	Mode() Mode

	// PingDistributed checks distributed-tier reachability for health probes
	PingDistributed(ctx context.Context) error

	// StatsSnapshot returns the current statistics with live key counts
	StatsSnapshot() StatisticsSnapshot

	Close() error
}

// GatewayConfig configures gateway construction
type GatewayConfig struct {
	Redis RedisConfig `mapstructure:"redis"`

	MemoryMaxItems int           `mapstructure:"memory_max_items"`
	MemoryTTL      time.Duration `mapstructure:"memory_ttl"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`

	// RecoveryEnabled re-probes a configured-but-unreachable distributed
	// tier in the background and attaches it when it comes back.
	RecoveryEnabled     bool          `mapstructure:"recovery_enabled"`
	RecoveryMaxInterval time.Duration `mapstructure:"recovery_max_interval"`

	Logger  observability.Logger
	Metrics observability.MetricsClient
	Stats   *StatisticsTracker
}

// NewGateway selects the caching strategy once, at construction. A gateway
// whose distributed tier is not configured is built permanently local-only;
// a configured-but-unreachable tier falls back to local-only, optionally
// with background recovery.
func NewGateway(cfg GatewayConfig) Gateway {
	if cfg.Logger == nil {
		cfg.Logger = observability.NewNoopLogger()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = observability.NewNoopMetricsClient()
	}
	if cfg.Stats == nil {
		cfg.Stats = NewStatisticsTracker()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 10 * time.Minute
	}
	if cfg.RecoveryMaxInterval <= 0 {
		cfg.RecoveryMaxInterval = 2 * time.Minute
	}

	local := NewMemoryTier(cfg.MemoryMaxItems, cfg.MemoryTTL)
	logger := cfg.Logger.WithPrefix("cache.gateway")

	if !cfg.Redis.Enabled || cfg.Redis.Addr == "" {
		logger.Info("distributed tier not configured, running local-only", nil)
		return newLocalOnlyGateway(local, cfg, logger)
	}

	distributed, err := NewRedisTier(cfg.Redis, cfg.Logger)
	if err == nil {
		g := newDualTierGateway(local, cfg, logger)
		g.distributed.Store(distributed)
		return g
	}

	logger.Warn("distributed tier unreachable at startup, falling back to local-only", map[string]interface{}{
		"addr":  cfg.Redis.Addr,
		"error": err.Error(),
	})
	cfg.Metrics.IncrementCounter("cache_fallback_events_total", 1)

	if !cfg.RecoveryEnabled {
		return newLocalOnlyGateway(local, cfg, logger)
	}

	// Dual-tier shell with a vacant distributed slot; a background loop
	// re-probes and fills the slot when the tier recovers. Per-call cost
	// is one atomic load, never a network check.
	g := newDualTierGateway(local, cfg, logger)
	go g.recoverLoop()
	return g
}

// DualTierGateway serves reads distributed-first with local write-back and
// writes through to both tiers.
type DualTierGateway struct {
	local       *MemoryTier
	distributed atomic.Pointer[RedisTier]

	cfg        GatewayConfig
	defaultTTL time.Duration
	stats      *StatisticsTracker
	logger     observability.Logger
	metrics    observability.MetricsClient

	stop     chan struct{}
	stopOnce sync.Once
}

func newDualTierGateway(local *MemoryTier, cfg GatewayConfig, logger observability.Logger) *DualTierGateway {
	return &DualTierGateway{
		local:      local,
		cfg:        cfg,
		defaultTTL: cfg.DefaultTTL,
		stats:      cfg.Stats,
		logger:     logger,
		metrics:    cfg.Metrics,
		stop:       make(chan struct{}),
	}
}

// lookupOutcome makes tier fallback explicit control flow: a failed tier is
// distinguishable from a tier that was queried and simply had no entry.
type lookupOutcome struct {
	data       []byte
	found      bool
	tierFailed bool
}

// lookup queries one tier and records exactly one hit or one miss for it.
// A tier that failed records neither.
func lookup(ctx context.Context, tier Tier, key string, stats *StatisticsTracker) lookupOutcome {
	start := time.Now()
	data, err := tier.Get(ctx, key)
	latencyMs := float64(time.Since(start).Microseconds()) / 1000

	switch {
	case err == nil:
		stats.RecordHit(tier.Name(), latencyMs, int64(len(data)))
		return lookupOutcome{data: data, found: true}
	case errors.Is(err, ErrNotFound):
		stats.RecordMiss(tier.Name(), latencyMs)
		return lookupOutcome{}
	default:
		return lookupOutcome{tierFailed: true}
	}
}

// Get implements Gateway.Get
func (g *DualTierGateway) Get(ctx context.Context, key string, value interface{}) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	if d := g.distributed.Load(); d != nil {
		out := lookup(ctx, d, key, g.stats)
		if out.tierFailed {
			g.noteFallback("get", key)
		} else if out.found {
			if err := json.Unmarshal(out.data, value); err != nil {
				return false, fmt.Errorf("decode cached value for %q: %w", key, err)
			}
			// Write-back so the next request skips the network hop
			_ = g.local.Set(ctx, key, out.data, g.defaultTTL)
			g.metrics.RecordCacheOperation("get", true, 0)
			return true, nil
		}
	}

	out := lookup(ctx, g.local, key, g.stats)
	if !out.found {
		g.metrics.RecordCacheOperation("get", false, 0)
		return false, nil
	}
	if err := json.Unmarshal(out.data, value); err != nil {
		return false, fmt.Errorf("decode cached value for %q: %w", key, err)
	}
	g.metrics.RecordCacheOperation("get", true, 0)
	return true, nil
}

// Set implements Gateway.Set
func (g *DualTierGateway) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = g.defaultTTL
	}

	if err := g.local.Set(ctx, key, data, ttl); err != nil {
		return fmt.Errorf("local cache set: %w", err)
	}

	if d := g.distributed.Load(); d != nil {
		if err := d.Set(ctx, key, data, ttl); err != nil {
			// The local write already succeeded; the entry stays
			// retrievable, so this is a fallback event, not a failure.
			g.noteFallback("set", key)
		} else {
			g.stats.RecordKeysAdded(TierDistributed, 1)
		}
	}
	return nil
}

// Remove implements Gateway.Remove
func (g *DualTierGateway) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	_ = g.local.Delete(ctx, key)
	if d := g.distributed.Load(); d != nil {
		if err := d.Delete(ctx, key); err != nil {
			g.noteFallback("remove", key)
		} else {
			g.stats.RecordKeysRemoved(TierDistributed, 1)
		}
	}
	return nil
}

// RemoveByPattern implements Gateway.RemoveByPattern
func (g *DualTierGateway) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	if err := tracking.ValidatePattern(pattern); err != nil {
		return 0, err
	}

	removed, err := g.local.DeletePattern(ctx, pattern)
	if err != nil {
		return removed, fmt.Errorf("local pattern delete: %w", err)
	}

	if d := g.distributed.Load(); d != nil {
		n, err := d.DeletePattern(ctx, pattern)
		if err != nil {
			g.noteFallback("remove_pattern", pattern)
		} else {
			g.stats.RecordKeysRemoved(TierDistributed, int64(n))
		}
	}

	g.logger.Info("pattern invalidation", map[string]interface{}{
		"pattern":       pattern,
		"local_removed": removed,
	})
	return removed, nil
}

// ClearAll implements Gateway.ClearAll
func (g *DualTierGateway) ClearAll(ctx context.Context) (int, error) {
	removed, _ := g.local.Clear(ctx)
	if d := g.distributed.Load(); d != nil {
		n, err := d.Clear(ctx)
		if err != nil {
			g.noteFallback("clear_all", "")
		} else {
			g.stats.RecordKeysRemoved(TierDistributed, int64(n))
		}
	}
	g.logger.Info("cache cleared", map[string]interface{}{"local_removed": removed})
	return removed, nil
}

// Mode implements Gateway.Mode
func (g *DualTierGateway) Mode() Mode {
	return ModeDualTier
}

// PingDistributed implements Gateway.PingDistributed
func (g *DualTierGateway) PingDistributed(ctx context.Context) error {
	d := g.distributed.Load()
	if d == nil {
		return ErrDistributedUnavailable
	}
	return d.Ping(ctx)
}

// StatsSnapshot implements Gateway.StatsSnapshot. The local tier's live key
// count is observable exactly, so it overlays the tracker's view.
func (g *DualTierGateway) StatsSnapshot() StatisticsSnapshot {
	s := g.stats.GetSnapshot()
	s.Memory.CurrentKeyCount = int64(g.local.Len())
	s.Combined.CurrentKeyCount = s.Memory.CurrentKeyCount + s.Distributed.CurrentKeyCount
	return s
}

// Close stops the recovery loop and closes both tiers
func (g *DualTierGateway) Close() error {
	g.stopOnce.Do(func() { close(g.stop) })
	_ = g.local.Close()
	if d := g.distributed.Load(); d != nil {
		return d.Close()
	}
	return nil
}

func (g *DualTierGateway) noteFallback(operation, key string) {
	g.metrics.IncrementCounter("cache_fallback_events_total", 1)
	g.logger.Warn("distributed tier failed, serving from local tier", map[string]interface{}{
		"operation": operation,
		"key":       key,
	})
}

// recoverLoop re-probes the configured distributed tier with exponential
// backoff and attaches it once it answers.
func (g *DualTierGateway) recoverLoop() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Second
	bo.MaxInterval = g.cfg.RecoveryMaxInterval
	bo.MaxElapsedTime = 0 // retry until shutdown

	timer := time.NewTimer(bo.NextBackOff())
	defer timer.Stop()

	for {
		select {
		case <-g.stop:
			return
		case <-timer.C:
			tier, err := NewRedisTier(g.cfg.Redis, g.cfg.Logger)
			if err == nil {
				g.distributed.Store(tier)
				g.logger.Info("distributed tier recovered, upgraded to dual-tier mode", map[string]interface{}{
					"addr": g.cfg.Redis.Addr,
				})
				g.metrics.IncrementCounter("cache_recovery_events_total", 1)
				return
			}
			g.logger.Debug("distributed tier still unreachable", map[string]interface{}{
				"error": err.Error(),
			})
			timer.Reset(bo.NextBackOff())
		}
	}
}

// LocalOnlyGateway serves everything from the in-process tier. It is chosen
// once at startup when no distributed tier is configured, so callers never
// pay a repeated capability check.
type LocalOnlyGateway struct {
	local      *MemoryTier
	defaultTTL time.Duration
	stats      *StatisticsTracker
	logger     observability.Logger
	metrics    observability.MetricsClient
}

func newLocalOnlyGateway(local *MemoryTier, cfg GatewayConfig, logger observability.Logger) *LocalOnlyGateway {
	return &LocalOnlyGateway{
		local:      local,
		defaultTTL: cfg.DefaultTTL,
		stats:      cfg.Stats,
		logger:     logger,
		metrics:    cfg.Metrics,
	}
}

// Get implements Gateway.Get
func (g *LocalOnlyGateway) Get(ctx context.Context, key string, value interface{}) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	out := lookup(ctx, g.local, key, g.stats)
	if !out.found {
		g.metrics.RecordCacheOperation("get", false, 0)
		return false, nil
	}
	if err := json.Unmarshal(out.data, value); err != nil {
		return false, fmt.Errorf("decode cached value for %q: %w", key, err)
	}
	g.metrics.RecordCacheOperation("get", true, 0)
	return true, nil
}

// Set implements Gateway.Set
func (g *LocalOnlyGateway) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value for %q: %w", key, err)
	}
	if ttl <= 0 {
		ttl = g.defaultTTL
	}
	return g.local.Set(ctx, key, data, ttl)
}

// Remove implements Gateway.Remove
func (g *LocalOnlyGateway) Remove(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	return g.local.Delete(ctx, key)
}

// RemoveByPattern implements Gateway.RemoveByPattern
func (g *LocalOnlyGateway) RemoveByPattern(ctx context.Context, pattern string) (int, error) {
	if err := tracking.ValidatePattern(pattern); err != nil {
		return 0, err
	}
	removed, err := g.local.DeletePattern(ctx, pattern)
	if err != nil {
		return removed, fmt.Errorf("local pattern delete: %w", err)
	}
	g.logger.Info("pattern invalidation", map[string]interface{}{
		"pattern":       pattern,
		"local_removed": removed,
	})
	return removed, nil
}

// ClearAll implements Gateway.ClearAll
func (g *LocalOnlyGateway) ClearAll(ctx context.Context) (int, error) {
	removed, _ := g.local.Clear(ctx)
	g.logger.Info("cache cleared", map[string]interface{}{"local_removed": removed})
	return removed, nil
}

// Mode implements Gateway.Mode
func (g *LocalOnlyGateway) Mode() Mode {
	return ModeLocalOnly
}

// PingDistributed implements Gateway.PingDistributed
func (g *LocalOnlyGateway) PingDistributed(ctx context.Context) error {
	return ErrDistributedUnavailable
}

// StatsSnapshot implements Gateway.StatsSnapshot
func (g *LocalOnlyGateway) StatsSnapshot() StatisticsSnapshot {
	s := g.stats.GetSnapshot()
	s.Memory.CurrentKeyCount = int64(g.local.Len())
	s.Combined.CurrentKeyCount = s.Memory.CurrentKeyCount
	return s
}

// Close closes the local tier
func (g *LocalOnlyGateway) Close() error {
	return g.local.Close()
}

func validateKey(key string) error {
	if key == "" {
		return &tracking.ValidationError{Field: "key", Message: "key must not be empty"}
	}
	if len(key) > MaxKeyLength {
		return &tracking.ValidationError{Field: "key", Message: fmt.Sprintf("key exceeds %d characters", MaxKeyLength)}
	}
	return nil
}
