package health

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/flightops/flightops/pkg/cache"
)

// Probe thresholds
const (
	// StoreProbe
	DefaultStoreLatencyThreshold = 250 * time.Millisecond

	// CachePerformanceProbe
	hitRateDegradedPercent  = 50.0
	hitRateUnhealthyPercent = 25.0

	// SystemResourceProbe
	cpuCriticalPercent  = 90.0
	cpuDegradedPercent  = 75.0
	memCriticalBytes    = 2 * 1024 * 1024 * 1024
	memDegradedBytes    = 1536 * 1024 * 1024
	diskDegradedPercent = 90.0
	resourceSampleSpan  = 200 * time.Millisecond
)

// StoreProbe checks connectivity to the persistent store and runs one cheap
// count query. Slow queries degrade the verdict; a failed connection is
// unhealthy.
type StoreProbe struct {
	db               *sqlx.DB
	countQuery       string
	latencyThreshold time.Duration
}

// NewStoreProbe creates a StoreProbe. countQuery defaults to counting the
// flights table; latencyThreshold to DefaultStoreLatencyThreshold.
func NewStoreProbe(db *sqlx.DB, countQuery string, latencyThreshold time.Duration) *StoreProbe {
	if countQuery == "" {
		countQuery = "SELECT COUNT(1) FROM flights"
	}
	if latencyThreshold <= 0 {
		latencyThreshold = DefaultStoreLatencyThreshold
	}
	return &StoreProbe{db: db, countQuery: countQuery, latencyThreshold: latencyThreshold}
}

// Name implements Probe.Name
func (p *StoreProbe) Name() string { return "store" }

// Probe implements Probe.Probe
func (p *StoreProbe) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	result := ProbeResult{Name: p.Name(), CheckedAt: start}

	if p.db == nil {
		result.Status = StatusUnhealthy
		result.Error = "store not configured"
		return result
	}

	if err := p.db.PingContext(ctx); err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("store connectivity failed: %v", err)
		result.ResponseTimeMs = time.Since(start).Milliseconds()
		return result
	}

	var count int64
	err := p.db.QueryRowContext(ctx, p.countQuery).Scan(&count)
	elapsed := time.Since(start)
	result.ResponseTimeMs = elapsed.Milliseconds()

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("store query failed: %v", err)
		return result
	}

	result.Metadata = map[string]interface{}{
		"row_count":  count,
		"latency_ms": elapsed.Milliseconds(),
	}
	if elapsed > p.latencyThreshold {
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("store query latency %s exceeds %s", elapsed, p.latencyThreshold)
		return result
	}
	result.Status = StatusHealthy
	return result
}

// DistributedPinger is the slice of the cache gateway the distributed-tier
// probe needs.
type DistributedPinger interface {
	PingDistributed(ctx context.Context) error
	Mode() cache.Mode
}

// DistributedCacheProbe checks availability of the distributed cache tier.
// An unavailable tier is Degraded rather than Unhealthy: the gateway already
// tolerates it, the system is only slower and less shared.
type DistributedCacheProbe struct {
	gateway DistributedPinger
}

// NewDistributedCacheProbe creates a DistributedCacheProbe
func NewDistributedCacheProbe(gateway DistributedPinger) *DistributedCacheProbe {
	return &DistributedCacheProbe{gateway: gateway}
}

// Name implements Probe.Name
func (p *DistributedCacheProbe) Name() string { return "distributed_cache" }

// Probe implements Probe.Probe
func (p *DistributedCacheProbe) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	result := ProbeResult{
		Name:      p.Name(),
		CheckedAt: start,
		Metadata:  map[string]interface{}{"mode": string(p.gateway.Mode())},
	}

	err := p.gateway.PingDistributed(ctx)
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	if err != nil {
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("distributed tier unavailable: %v", err)
		return result
	}
	result.Status = StatusHealthy
	return result
}

// CacheStats is the slice of the cache gateway the performance probe needs
type CacheStats interface {
	StatsSnapshot() cache.StatisticsSnapshot
}

// CachePerformanceProbe reads the combined cache statistics and classifies
// the hit rate.
type CachePerformanceProbe struct {
	stats CacheStats
}

// NewCachePerformanceProbe creates a CachePerformanceProbe
func NewCachePerformanceProbe(stats CacheStats) *CachePerformanceProbe {
	return &CachePerformanceProbe{stats: stats}
}

// Name implements Probe.Name
func (p *CachePerformanceProbe) Name() string { return "cache_performance" }

// Probe implements Probe.Probe
func (p *CachePerformanceProbe) Probe(ctx context.Context) ProbeResult {
	start := time.Now()
	snapshot := p.stats.StatsSnapshot()
	combined := snapshot.Combined
	hitRate := combined.HitRate()

	result := ProbeResult{
		Name:           p.Name(),
		CheckedAt:      start,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Metadata: map[string]interface{}{
			"hit_rate_percent": hitRate,
			"hits":             combined.Hits,
			"misses":           combined.Misses,
			"avg_latency_ms":   combined.AverageLatencyMs(),
			"key_count":        combined.CurrentKeyCount,
		},
	}

	total := combined.Hits + combined.Misses
	switch {
	case total == 0:
		result.Status = StatusHealthy
		result.Metadata["note"] = "no cache traffic recorded yet"
	case hitRate < hitRateUnhealthyPercent:
		result.Status = StatusUnhealthy
		result.Error = fmt.Sprintf("cache hit rate %.2f%% below %.0f%%", hitRate, hitRateUnhealthyPercent)
	case hitRate < hitRateDegradedPercent:
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("cache hit rate %.2f%% below %.0f%%", hitRate, hitRateDegradedPercent)
	default:
		result.Status = StatusHealthy
	}
	return result
}

// SystemResourceProbe samples CPU usage over a short fixed window, working
// set memory, disk usage, and goroutine count, and classifies them against
// absolute thresholds.
type SystemResourceProbe struct {
	diskPath string
}

// NewSystemResourceProbe creates a SystemResourceProbe sampling disk usage
// for diskPath (defaults to "/").
func NewSystemResourceProbe(diskPath string) *SystemResourceProbe {
	if diskPath == "" {
		diskPath = "/"
	}
	return &SystemResourceProbe{diskPath: diskPath}
}

// Name implements Probe.Name
func (p *SystemResourceProbe) Name() string { return "system_resources" }

// Probe implements Probe.Probe
func (p *SystemResourceProbe) Probe(ctx context.Context) ProbeResult {
	start := time.Now()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	workingSet := memStats.Sys

	cpuPct := sampleCPUPercent(ctx, resourceSampleSpan)
	diskPct := sampleDiskUsedPercent(p.diskPath)
	goroutines := runtime.NumGoroutine()

	result := ProbeResult{
		Name:           p.Name(),
		CheckedAt:      start,
		ResponseTimeMs: time.Since(start).Milliseconds(),
		Metadata: map[string]interface{}{
			"cpu_percent":       cpuPct,
			"memory_bytes":      workingSet,
			"heap_alloc_bytes":  memStats.HeapAlloc,
			"disk_used_percent": diskPct,
			"goroutines":        goroutines,
			"cpu_cores":         runtime.NumCPU(),
		},
	}

	switch {
	case cpuPct > cpuCriticalPercent || workingSet > memCriticalBytes:
		result.Status = StatusCritical
		result.Error = fmt.Sprintf("resources critical: cpu=%.1f%% memory=%dMB", cpuPct, workingSet/1024/1024)
	case cpuPct > cpuDegradedPercent || workingSet > memDegradedBytes || diskPct > diskDegradedPercent:
		result.Status = StatusDegraded
		result.Error = fmt.Sprintf("resources degraded: cpu=%.1f%% memory=%dMB disk=%.1f%%", cpuPct, workingSet/1024/1024, diskPct)
	default:
		result.Status = StatusHealthy
	}
	return result
}
