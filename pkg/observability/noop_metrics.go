package observability

import "time"

// NoopMetricsClient is a MetricsClient that discards all metrics
type NoopMetricsClient struct{}

// NewNoopMetricsClient creates a new NoopMetricsClient
func NewNoopMetricsClient() MetricsClient {
	return &NoopMetricsClient{}
}

// RecordCounter implements MetricsClient.RecordCounter
func (m *NoopMetricsClient) RecordCounter(name string, value float64, labels map[string]string) {}

// RecordGauge implements MetricsClient.RecordGauge
func (m *NoopMetricsClient) RecordGauge(name string, value float64, labels map[string]string) {}

// RecordHistogram implements MetricsClient.RecordHistogram
func (m *NoopMetricsClient) RecordHistogram(name string, value float64, labels map[string]string) {}

// RecordDuration implements MetricsClient.RecordDuration
func (m *NoopMetricsClient) RecordDuration(name string, duration time.Duration, labels map[string]string) {
}

// IncrementCounter implements MetricsClient.IncrementCounter
func (m *NoopMetricsClient) IncrementCounter(name string, value float64) {}

// StartTimer implements MetricsClient.StartTimer
func (m *NoopMetricsClient) StartTimer(name string, labels map[string]string) func() {
	return func() {}
}

// RecordCacheOperation implements MetricsClient.RecordCacheOperation
func (m *NoopMetricsClient) RecordCacheOperation(operation string, hit bool, duration time.Duration) {
}

// Close implements MetricsClient.Close
func (m *NoopMetricsClient) Close() error {
	return nil
}
