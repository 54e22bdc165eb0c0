package cache

import (
	"math"
	"sync"
	"time"
)

// TierStatistics is a point-in-time snapshot of one tier's counters.
// Counters are monotonically non-decreasing between Reset calls.
type TierStatistics struct {
	Hits             int64   `json:"hits"`
	Misses           int64   `json:"misses"`
	TotalLatencyMs   float64 `json:"total_latency_ms"`
	SampleCount      int64   `json:"sample_count"`
	CurrentKeyCount  int64   `json:"current_key_count"`
	TotalBytesStored int64   `json:"total_bytes_stored"`
}

// HitRate returns hits / (hits+misses) * 100 rounded to two decimals,
// and 0 when no requests were recorded.
func (s TierStatistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return math.Round(float64(s.Hits)/float64(total)*100*100) / 100
}

// AverageLatencyMs returns the mean recorded latency, 0 with no samples
func (s TierStatistics) AverageLatencyMs() float64 {
	if s.SampleCount == 0 {
		return 0
	}
	return math.Round(s.TotalLatencyMs/float64(s.SampleCount)*100) / 100
}

// StatisticsSnapshot is a consistent snapshot across both tiers. Combined is
// derived by element-wise summation of the two tier snapshots taken together;
// it is never independently mutated.
type StatisticsSnapshot struct {
	Memory      TierStatistics `json:"memory"`
	Distributed TierStatistics `json:"distributed"`
	Combined    TierStatistics `json:"combined"`
	StartedAt   time.Time      `json:"started_at"`
	TakenAt     time.Time      `json:"taken_at"`
}

// tierCounters is the mutable per-tier state; each instance carries its own
// lock so the two tiers never contend with each other on the hot path.
type tierCounters struct {
	mu    sync.Mutex
	stats TierStatistics
}

func (c *tierCounters) recordHit(latencyMs float64, bytes int64) {
	c.mu.Lock()
	c.stats.Hits++
	c.stats.TotalLatencyMs += latencyMs
	c.stats.SampleCount++
	c.stats.TotalBytesStored += bytes
	c.mu.Unlock()
}

func (c *tierCounters) recordMiss(latencyMs float64) {
	c.mu.Lock()
	c.stats.Misses++
	c.stats.TotalLatencyMs += latencyMs
	c.stats.SampleCount++
	c.mu.Unlock()
}

func (c *tierCounters) recordKeys(delta int64) {
	c.mu.Lock()
	c.stats.CurrentKeyCount += delta
	if c.stats.CurrentKeyCount < 0 {
		c.stats.CurrentKeyCount = 0
	}
	c.mu.Unlock()
}

func (c *tierCounters) snapshot() TierStatistics {
	c.mu.Lock()
	s := c.stats
	c.mu.Unlock()
	return s
}

func (c *tierCounters) reset() {
	c.mu.Lock()
	c.stats = TierStatistics{}
	c.mu.Unlock()
}

// StatisticsTracker tracks per-tier cache statistics under concurrent access.
// One shared instance is constructed at process start and injected into every
// component that needs it. Locking is per tier and every critical section is
// a handful of integer updates, so the tracker never becomes the bottleneck
// for cache operations.
type StatisticsTracker struct {
	memory      tierCounters
	distributed tierCounters

	startMu   sync.Mutex
	startedAt time.Time
}

// NewStatisticsTracker creates a new tracker with a fresh start timestamp
func NewStatisticsTracker() *StatisticsTracker {
	return &StatisticsTracker{startedAt: time.Now()}
}

// RecordHit records a cache hit on the given tier along with the observed
// latency and the size of the entry served.
func (t *StatisticsTracker) RecordHit(tier TierName, latencyMs float64, bytes int64) {
	t.counters(tier).recordHit(latencyMs, bytes)
}

// RecordMiss records a cache miss on the given tier
func (t *StatisticsTracker) RecordMiss(tier TierName, latencyMs float64) {
	t.counters(tier).recordMiss(latencyMs)
}

// RecordKeysAdded adjusts the live key count for the tier upward
func (t *StatisticsTracker) RecordKeysAdded(tier TierName, n int64) {
	t.counters(tier).recordKeys(n)
}

// RecordKeysRemoved adjusts the live key count for the tier downward
func (t *StatisticsTracker) RecordKeysRemoved(tier TierName, n int64) {
	t.counters(tier).recordKeys(-n)
}

// GetSnapshot returns a consistent point-in-time copy of all counters.
// Each tier is read under its own lock in a single observation; the combined
// view is derived from those two copies.
func (t *StatisticsTracker) GetSnapshot() StatisticsSnapshot {
	mem := t.memory.snapshot()
	dist := t.distributed.snapshot()

	t.startMu.Lock()
	startedAt := t.startedAt
	t.startMu.Unlock()

	return StatisticsSnapshot{
		Memory:      mem,
		Distributed: dist,
		Combined: TierStatistics{
			Hits:             mem.Hits + dist.Hits,
			Misses:           mem.Misses + dist.Misses,
			TotalLatencyMs:   mem.TotalLatencyMs + dist.TotalLatencyMs,
			SampleCount:      mem.SampleCount + dist.SampleCount,
			CurrentKeyCount:  mem.CurrentKeyCount + dist.CurrentKeyCount,
			TotalBytesStored: mem.TotalBytesStored + dist.TotalBytesStored,
		},
		StartedAt: startedAt,
		TakenAt:   time.Now(),
	}
}

// Reset zeroes all counters and records a new start timestamp
func (t *StatisticsTracker) Reset() {
	t.memory.reset()
	t.distributed.reset()

	t.startMu.Lock()
	t.startedAt = time.Now()
	t.startMu.Unlock()
}

func (t *StatisticsTracker) counters(tier TierName) *tierCounters {
	if tier == TierDistributed {
		return &t.distributed
	}
	return &t.memory
}
