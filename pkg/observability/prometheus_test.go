package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeMetricName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"flight.create.count", "flight_create_count"},
		{"api-latency-p99", "api_latency_p99"},
		{"already_valid_name", "already_valid_name"},
		{"with:colons", "with:colons"},
		{"9starts.with.digit", "_starts_with_digit"},
		{"mixed.UPPER-case_ok", "mixed_UPPER_case_ok"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, sanitizeMetricName(tc.in), "input %q", tc.in)
	}
}

// Dotted names come straight from the tracking surface; recording them must
// never panic, and the sanitized series must land in the registry.
func TestPrometheusMetricsClient_DottedNames(t *testing.T) {
	client := NewPrometheusMetricsClient("flightops")

	require.NotPanics(t, func() {
		client.RecordCounter("flight.create.count", 1, nil)
		client.RecordGauge("flight.delay.minutes", 12.5, map[string]string{"origin": "LHR"})
		client.RecordHistogram("flight.lookup.seconds", 0.02, nil)
	})

	n, err := testutil.GatherAndCount(client.Registry(),
		"flightops_flight_create_count",
		"flightops_flight_delay_minutes",
		"flightops_flight_lookup_seconds",
	)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// Reusing a metric name with a different tag keyset must not panic; the
// conflicting series is dropped while the original keeps recording.
func TestPrometheusMetricsClient_LabelSetChanges(t *testing.T) {
	client := NewPrometheusMetricsClient("flightops")

	client.RecordCounter("requests_total", 1, map[string]string{"route": "/health"})

	require.NotPanics(t, func() {
		client.RecordCounter("requests_total", 1, map[string]string{"method": "GET"})
		client.RecordCounter("requests_total", 1, nil)
	})

	client.RecordCounter("requests_total", 1, map[string]string{"route": "/metrics"})

	n, err := testutil.GatherAndCount(client.Registry(), "flightops_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestPrometheusMetricsClient_CounterAccumulates(t *testing.T) {
	client := NewPrometheusMetricsClient("flightops")

	client.IncrementCounter("cache_fallback_events_total", 1)
	client.IncrementCounter("cache_fallback_events_total", 1)

	families, err := client.Registry().Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Len(t, families[0].GetMetric(), 1)
	assert.Equal(t, 2.0, families[0].GetMetric()[0].GetCounter().GetValue())
}

func TestPrometheusMetricsClient_TimerAndCacheOperation(t *testing.T) {
	client := NewPrometheusMetricsClient("flightops")

	stop := client.StartTimer("op.duration.seconds", nil)
	stop()
	client.RecordDuration("op.duration.seconds", 5*time.Millisecond, nil)
	client.RecordCacheOperation("get", true, time.Millisecond)
	client.RecordCacheOperation("get", false, time.Millisecond)

	n, err := testutil.GatherAndCount(client.Registry(),
		"flightops_op_duration_seconds",
		"flightops_cache_operations_total",
	)
	require.NoError(t, err)
	// one histogram series plus hit and miss counter series
	assert.Equal(t, 3, n)
}
