package health

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flightops/pkg/cache"
)

const countQueryPattern = `SELECT COUNT\(1\) FROM flights`

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "sqlmock"), mock
}

func TestStoreProbe_Healthy(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectQuery(countQueryPattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(42))

	probe := NewStoreProbe(db, "", 0)
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, int64(42), result.Metadata["row_count"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreProbe_UnhealthyWhenNotConfigured(t *testing.T) {
	probe := NewStoreProbe(nil, "", 0)
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "not configured")
}

func TestStoreProbe_UnhealthyOnPingFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	probe := NewStoreProbe(db, "", 0)
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "connectivity failed")
}

func TestStoreProbe_UnhealthyOnQueryFailure(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectQuery(countQueryPattern).
		WillReturnError(errors.New("relation does not exist"))

	probe := NewStoreProbe(db, "", 0)
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "query failed")
}

func TestStoreProbe_DegradedWhenSlow(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectQuery(countQueryPattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1)).
		WillDelayFor(5 * time.Millisecond)

	probe := NewStoreProbe(db, "", time.Nanosecond)
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusDegraded, result.Status)
	assert.Contains(t, result.Error, "latency")
}

func TestStoreProbe_CustomQuery(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectPing()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1")).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))

	probe := NewStoreProbe(db, "SELECT 1", 0)
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusHealthy, result.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type fakePinger struct {
	err  error
	mode cache.Mode
}

func (f *fakePinger) PingDistributed(ctx context.Context) error { return f.err }
func (f *fakePinger) Mode() cache.Mode                          { return f.mode }

func TestDistributedCacheProbe(t *testing.T) {
	t.Run("healthy when reachable", func(t *testing.T) {
		probe := NewDistributedCacheProbe(&fakePinger{mode: cache.ModeDualTier})
		result := probe.Probe(context.Background())

		assert.Equal(t, StatusHealthy, result.Status)
		assert.Equal(t, "dual-tier", result.Metadata["mode"])
	})

	t.Run("degraded when unavailable", func(t *testing.T) {
		probe := NewDistributedCacheProbe(&fakePinger{
			err:  cache.ErrDistributedUnavailable,
			mode: cache.ModeLocalOnly,
		})
		result := probe.Probe(context.Background())

		// The gateway already tolerates the outage, so this is not unhealthy
		assert.Equal(t, StatusDegraded, result.Status)
		assert.Contains(t, result.Error, "unavailable")
	})
}

type fakeStats struct {
	hits, misses int64
}

func (f *fakeStats) StatsSnapshot() cache.StatisticsSnapshot {
	return cache.StatisticsSnapshot{
		Combined: cache.TierStatistics{Hits: f.hits, Misses: f.misses},
	}
}

func TestCachePerformanceProbe(t *testing.T) {
	cases := []struct {
		name         string
		hits, misses int64
		want         Status
	}{
		{"no traffic yet", 0, 0, StatusHealthy},
		{"high hit rate", 8, 2, StatusHealthy},
		{"at degraded boundary", 5, 5, StatusHealthy},
		{"degraded hit rate", 4, 6, StatusDegraded},
		{"unhealthy hit rate", 1, 9, StatusUnhealthy},
		{"all misses", 0, 10, StatusUnhealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			probe := NewCachePerformanceProbe(&fakeStats{hits: tc.hits, misses: tc.misses})
			result := probe.Probe(context.Background())

			assert.Equal(t, tc.want, result.Status)
			assert.Contains(t, result.Metadata, "hit_rate_percent")
		})
	}
}

func TestCachePerformanceProbe_NoTrafficNote(t *testing.T) {
	probe := NewCachePerformanceProbe(&fakeStats{})
	result := probe.Probe(context.Background())

	assert.Equal(t, StatusHealthy, result.Status)
	assert.Equal(t, "no cache traffic recorded yet", result.Metadata["note"])
}

func TestSystemResourceProbe(t *testing.T) {
	probe := NewSystemResourceProbe("")
	result := probe.Probe(context.Background())

	assert.Equal(t, "system_resources", result.Name)
	assert.Contains(t, result.Metadata, "cpu_percent")
	assert.Contains(t, result.Metadata, "memory_bytes")
	assert.Contains(t, result.Metadata, "disk_used_percent")
	assert.Contains(t, result.Metadata, "goroutines")
	assert.Contains(t, []Status{StatusHealthy, StatusDegraded, StatusCritical}, result.Status)
}
