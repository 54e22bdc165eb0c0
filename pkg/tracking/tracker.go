package tracking

import (
	"github.com/flightops/flightops/pkg/observability"
)

// Tracker is the fire-and-forget metric/event tracking surface. Inputs are
// validated before they reach the metrics sink; a validation failure is
// returned to the caller, a sink failure is not.
type Tracker struct {
	metrics observability.MetricsClient
	logger  observability.Logger
}

// NewTracker creates a new Tracker
func NewTracker(metrics observability.MetricsClient, logger observability.Logger) *Tracker {
	if metrics == nil {
		metrics = observability.NewNoopMetricsClient()
	}
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &Tracker{
		metrics: metrics,
		logger:  logger.WithPrefix("tracking"),
	}
}

// TrackMetric records a named gauge value with optional tags
func (t *Tracker) TrackMetric(name string, value float64, tags map[string]string) error {
	if err := ValidateMetricName(name); err != nil {
		return err
	}
	if err := ValidateTags(tags); err != nil {
		return err
	}

	t.metrics.RecordGauge(name, value, tags)
	t.logger.Debug("metric tracked", map[string]interface{}{
		"name":  name,
		"value": value,
	})
	return nil
}

// TrackEvent records a named event occurrence with optional tags
func (t *Tracker) TrackEvent(name string, tags map[string]string) error {
	if err := ValidateEventName(name); err != nil {
		return err
	}
	if err := ValidateTags(tags); err != nil {
		return err
	}

	t.metrics.RecordCounter(name, 1, tags)
	t.logger.Debug("event tracked", map[string]interface{}{"name": name})
	return nil
}
