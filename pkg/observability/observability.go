// Package observability provides unified logging and metrics for the
// flightops services. Components receive a Logger and a MetricsClient by
// injection; nothing in this package is a process-global.
package observability

import (
	"time"
)

// LogLevel defines log message severity
type LogLevel string

// Log levels
const (
	LogLevelDebug LogLevel = "DEBUG"
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// Logger defines the interface for logging
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})

	// WithPrefix returns a logger that prefixes every message
	WithPrefix(prefix string) Logger
}

// MetricsClient defines the interface for metrics collection
type MetricsClient interface {
	RecordCounter(name string, value float64, labels map[string]string)
	RecordGauge(name string, value float64, labels map[string]string)
	RecordHistogram(name string, value float64, labels map[string]string)
	RecordDuration(name string, duration time.Duration, labels map[string]string)

	// IncrementCounter increments a counter without labels
	IncrementCounter(name string, value float64)

	// StartTimer starts a timer and returns a function that records
	// the elapsed duration when called
	StartTimer(name string, labels map[string]string) func()

	// RecordCacheOperation records one cache operation outcome
	RecordCacheOperation(operation string, hit bool, duration time.Duration)

	Close() error
}
