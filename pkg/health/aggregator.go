package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/flightops/flightops/pkg/observability"
)

// Aggregator defaults
const (
	DefaultProbeTimeout = 5 * time.Second
	DefaultReportTTL    = 30 * time.Second
)

// Soft thresholds that turn into warnings and recommendations
const (
	hitRateWarningPercent = 70.0
	cpuWarningPercent     = 75.0
)

// Probe is an independent, timeout-bounded check of one dependency or metric
type Probe interface {
	// Name identifies the probe in the composite report
	Name() string

	// Probe runs the check. Implementations should honor ctx; the
	// aggregator abandons results that arrive after the deadline.
	Probe(ctx context.Context) ProbeResult
}

// Aggregator dispatches all registered probes in parallel, bounds each by an
// individual timeout, and merges the results by severity. Because a full
// aggregation performs live dependency checks, the composite report is cached
// for a short window so orchestrator polling does not re-trigger the probes
// on every request.
type Aggregator struct {
	probes       []Probe
	probeTimeout time.Duration
	reportTTL    time.Duration
	logger       observability.Logger
	metrics      observability.MetricsClient

	mu       sync.RWMutex
	cached   *Report
	cachedAt time.Time

	group singleflight.Group
}

// AggregatorOption customizes an Aggregator
type AggregatorOption func(*Aggregator)

// WithProbeTimeout sets the per-probe timeout
func WithProbeTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.probeTimeout = d }
}

// WithReportTTL sets how long a composite report is served from cache.
// Zero disables memoization.
func WithReportTTL(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.reportTTL = d }
}

// WithMetrics attaches a metrics client
func WithMetrics(m observability.MetricsClient) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

// NewAggregator creates an Aggregator over a fixed ordered set of probes
func NewAggregator(probes []Probe, logger observability.Logger, opts ...AggregatorOption) *Aggregator {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	a := &Aggregator{
		probes:       probes,
		probeTimeout: DefaultProbeTimeout,
		reportTTL:    DefaultReportTTL,
		logger:       logger.WithPrefix("health"),
		metrics:      observability.NewNoopMetricsClient(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Check returns the composite health report, serving a cached report when it
// is still fresh. Concurrent callers share a single aggregation run. The run
// itself is detached from any caller's context and bounded only by the probe
// timeout, so one client disconnecting cannot poison the memoized report for
// everyone else; ctx only caps how long this caller waits for the shared
// result.
func (a *Aggregator) Check(ctx context.Context) *Report {
	if report := a.cachedReport(); report != nil {
		return report
	}

	ch := a.group.DoChan("aggregate", func() (interface{}, error) {
		report := a.aggregate()
		a.mu.Lock()
		a.cached = report
		a.cachedAt = time.Now()
		a.mu.Unlock()
		return report, nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Report)
	case <-ctx.Done():
		// The shared run keeps going and will fill the cache; only this
		// caller gets the abandonment report.
		return &Report{
			Status:    StatusError,
			Timestamp: time.Now(),
			Probes:    []ProbeResult{},
			Summary: Summary{
				Issues:          []string{fmt.Sprintf("health check abandoned: %v", ctx.Err())},
				Warnings:        []string{},
				Recommendations: []string{},
			},
		}
	}
}

// Invalidate drops the memoized report so the next Check runs the probes
func (a *Aggregator) Invalidate() {
	a.mu.Lock()
	a.cached = nil
	a.mu.Unlock()
}

func (a *Aggregator) cachedReport() *Report {
	if a.reportTTL <= 0 {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.cached != nil && time.Since(a.cachedAt) < a.reportTTL {
		return a.cached
	}
	return nil
}

// aggregate dispatches every probe concurrently and waits against a shared
// absolute deadline, so total wall clock is bounded by the single-probe
// timeout rather than the sum of all timeouts.
func (a *Aggregator) aggregate() *Report {
	stop := a.metrics.StartTimer("health_aggregation_duration_seconds", nil)
	defer stop()

	deadline := time.Now().Add(a.probeTimeout)

	channels := make([]chan ProbeResult, len(a.probes))
	for i, p := range a.probes {
		ch := make(chan ProbeResult, 1)
		channels[i] = ch
		go a.runProbe(p, deadline, ch)
	}

	timeout := time.NewTimer(time.Until(deadline))
	defer timeout.Stop()

	results := make([]ProbeResult, len(a.probes))
	for i, ch := range channels {
		select {
		case r := <-ch:
			results[i] = r
		case <-timeout.C:
			// Abandon this probe and every later one still running;
			// their buffered channels absorb any late result.
			results[i] = a.timedOutResult(a.probes[i].Name())
			for j := i + 1; j < len(channels); j++ {
				select {
				case r := <-channels[j]:
					results[j] = r
				default:
					results[j] = a.timedOutResult(a.probes[j].Name())
				}
			}
			return a.buildReport(results)
		}
	}
	return a.buildReport(results)
}

// runProbe executes one probe under its own deadline, converting panics into
// Error results so nothing escapes the dispatch boundary.
func (a *Aggregator) runProbe(p Probe, deadline time.Time, ch chan<- ProbeResult) {
	probeCtx, cancel := context.WithDeadline(context.Background(), deadline)
	defer cancel()

	defer func() {
		if rec := recover(); rec != nil {
			a.logger.Error("probe panicked", map[string]interface{}{
				"probe": p.Name(),
				"panic": fmt.Sprintf("%v", rec),
			})
			ch <- ProbeResult{
				Name:      p.Name(),
				Status:    StatusError,
				Error:     fmt.Sprintf("probe panicked: %v", rec),
				CheckedAt: time.Now(),
			}
		}
	}()

	ch <- p.Probe(probeCtx)
}

func (a *Aggregator) timedOutResult(name string) ProbeResult {
	a.logger.Warn("probe timed out", map[string]interface{}{
		"probe":   name,
		"timeout": a.probeTimeout.String(),
	})
	return ProbeResult{
		Name:           name,
		Status:         StatusError,
		ResponseTimeMs: a.probeTimeout.Milliseconds(),
		Error:          "timed out",
		CheckedAt:      time.Now(),
	}
}

func (a *Aggregator) buildReport(results []ProbeResult) *Report {
	overall := StatusHealthy
	summary := Summary{
		Issues:          []string{},
		Warnings:        []string{},
		Recommendations: []string{},
	}

	for _, r := range results {
		if r.Status.Severity() > overall.Severity() {
			overall = r.Status
		}

		switch r.Status {
		case StatusUnhealthy, StatusCritical, StatusError:
			msg := r.Error
			if msg == "" {
				msg = string(r.Status)
			}
			summary.Issues = append(summary.Issues, fmt.Sprintf("%s: %s", r.Name, msg))
		case StatusDegraded:
			msg := r.Error
			if msg == "" {
				msg = "degraded"
			}
			summary.Warnings = append(summary.Warnings, fmt.Sprintf("%s: %s", r.Name, msg))
		}

		a.applyThresholds(r, &summary)
		a.metrics.RecordGauge("health_probe_status", float64(r.Status.Severity()), map[string]string{
			"probe": r.Name,
		})
	}

	a.metrics.RecordGauge("health_overall_severity", float64(overall.Severity()), nil)

	return &Report{
		Status:    overall,
		Timestamp: time.Now(),
		Probes:    results,
		Summary:   summary,
	}
}

// applyThresholds turns soft-threshold crossings in probe metadata into
// warnings and heuristic recommendations.
func (a *Aggregator) applyThresholds(r ProbeResult, summary *Summary) {
	if v, ok := metadataFloat(r.Metadata, "hit_rate_percent"); ok && v < hitRateWarningPercent {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%s: cache hit rate %.2f%% below %.0f%%", r.Name, v, hitRateWarningPercent))
		summary.Recommendations = append(summary.Recommendations,
			"cache hit rate is low: tune TTLs or warm frequently accessed keys")
	}
	if v, ok := metadataFloat(r.Metadata, "cpu_percent"); ok && v > cpuWarningPercent {
		summary.Warnings = append(summary.Warnings,
			fmt.Sprintf("%s: CPU usage %.2f%% above %.0f%%", r.Name, v, cpuWarningPercent))
		summary.Recommendations = append(summary.Recommendations,
			"CPU usage is high: scale out or reduce per-instance load")
	}
}

func metadataFloat(metadata map[string]interface{}, key string) (float64, bool) {
	if metadata == nil {
		return 0, false
	}
	switch v := metadata[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
