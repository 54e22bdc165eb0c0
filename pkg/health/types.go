// Package health runs independent, timeout-bounded probes concurrently and
// folds their verdicts into one composite report for liveness/readiness
// surfaces.
package health

import (
	"net/http"
	"time"
)

// Status is a probe or composite health verdict
type Status string

// Statuses, ordered by severity
const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
	StatusCritical  Status = "critical"
	StatusError     Status = "error"
)

// Severity ranks statuses for the composite fold; Critical and Error share
// the top rank.
func (s Status) Severity() int {
	switch s {
	case StatusHealthy:
		return 0
	case StatusDegraded:
		return 1
	case StatusUnhealthy:
		return 2
	case StatusCritical, StatusError:
		return 3
	default:
		return 3
	}
}

// ProbeResult is the outcome of one probe invocation. Results are created
// fresh on every invocation and never persisted.
type ProbeResult struct {
	Name           string                 `json:"name"`
	Status         Status                 `json:"status"`
	ResponseTimeMs int64                  `json:"response_time_ms"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Error          string                 `json:"error,omitempty"`
	CheckedAt      time.Time              `json:"checked_at"`
}

// Summary collects human-readable findings from a composite check
type Summary struct {
	Issues          []string `json:"issues"`
	Warnings        []string `json:"warnings"`
	Recommendations []string `json:"recommendations"`
}

// Report is the composite health report: one overall status, one result per
// probe, and a summary. It is immutable once returned.
type Report struct {
	Status    Status        `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Probes    []ProbeResult `json:"probes"`
	Summary   Summary       `json:"summary"`
}

// HTTPStatus maps the composite status to an HTTP code so orchestrators can
// alarm on it: Healthy/Degraded succeed, everything else is a server error.
func (r *Report) HTTPStatus() int {
	switch r.Status {
	case StatusHealthy, StatusDegraded:
		return http.StatusOK
	default:
		return http.StatusServiceUnavailable
	}
}
