package flights

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flightops/flightops/pkg/cache"
)

// fakeRepository is an in-memory Repository that counts store reads so tests
// can tell a cache hit from a round trip.
type fakeRepository struct {
	flights map[uuid.UUID]Flight
	reads   atomic.Int64
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{flights: map[uuid.UUID]Flight{}}
}

func (r *fakeRepository) Create(ctx context.Context, f *Flight) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	r.flights[f.ID] = *f
	return nil
}

func (r *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*Flight, error) {
	r.reads.Add(1)
	f, ok := r.flights[id]
	if !ok {
		return nil, ErrFlightNotFound
	}
	return &f, nil
}

func (r *fakeRepository) Update(ctx context.Context, f *Flight) error {
	if _, ok := r.flights[f.ID]; !ok {
		return ErrFlightNotFound
	}
	r.flights[f.ID] = *f
	return nil
}

func (r *fakeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := r.flights[id]; !ok {
		return ErrFlightNotFound
	}
	delete(r.flights, id)
	return nil
}

func (r *fakeRepository) ListByDepartureDate(ctx context.Context, date time.Time) ([]Flight, error) {
	r.reads.Add(1)
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	out := []Flight{}
	for _, f := range r.flights {
		if !f.ScheduledDeparture.Before(dayStart) && f.ScheduledDeparture.Before(dayEnd) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (r *fakeRepository) Count(ctx context.Context) (int64, error) {
	return int64(len(r.flights)), nil
}

func newServiceForTest(t *testing.T) (*Service, *fakeRepository, cache.Gateway) {
	t.Helper()
	repo := newFakeRepository()
	gateway := cache.NewGateway(cache.GatewayConfig{})
	t.Cleanup(func() { _ = gateway.Close() })
	return NewService(repo, gateway, nil, nil), repo, gateway
}

func seedFlight(t *testing.T, repo *fakeRepository, departure time.Time) Flight {
	t.Helper()
	f := Flight{
		Number:             "BA117",
		Origin:             "LHR",
		Destination:        "JFK",
		ScheduledDeparture: departure,
		ScheduledArrival:   departure.Add(7 * time.Hour),
	}
	require.NoError(t, repo.Create(context.Background(), &f))
	return f
}

func TestService_GetReadsThroughCache(t *testing.T) {
	svc, repo, _ := newServiceForTest(t)
	ctx := context.Background()
	f := seedFlight(t, repo, time.Now().Add(2*time.Hour))

	first, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Number, first.Number)
	assert.Equal(t, int64(1), repo.reads.Load())

	// Second read is served from cache, no store round trip
	second, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Number, second.Number)
	assert.Equal(t, int64(1), repo.reads.Load())
}

func TestService_GetMissing(t *testing.T) {
	svc, _, _ := newServiceForTest(t)

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrFlightNotFound)
}

func TestService_UpdateInvalidatesCachedFlight(t *testing.T) {
	svc, repo, _ := newServiceForTest(t)
	ctx := context.Background()
	f := seedFlight(t, repo, time.Now().Add(2*time.Hour))

	_, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)

	f.Gate = "B7"
	require.NoError(t, svc.Update(ctx, &f))

	// The stale entry was removed, so this read hits the store again
	got, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "B7", got.Gate)
	assert.Equal(t, int64(2), repo.reads.Load())
}

func TestService_DeleteInvalidatesCachedFlight(t *testing.T) {
	svc, repo, _ := newServiceForTest(t)
	ctx := context.Background()
	f := seedFlight(t, repo, time.Now().Add(2*time.Hour))

	_, err := svc.Get(ctx, f.ID)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, f.ID))

	_, err = svc.Get(ctx, f.ID)
	assert.ErrorIs(t, err, ErrFlightNotFound)
}

func TestService_ListByDateCachesListing(t *testing.T) {
	svc, repo, _ := newServiceForTest(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	seedFlight(t, repo, date.Add(12*time.Hour))

	first, err := svc.ListByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.Equal(t, int64(1), repo.reads.Load())

	second, err := svc.ListByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, int64(1), repo.reads.Load())
}

// A write invalidates date listings but leaves singular flight entries alone
func TestService_CreateInvalidatesListingsOnly(t *testing.T) {
	svc, repo, gateway := newServiceForTest(t)
	ctx := context.Background()
	date := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	existing := seedFlight(t, repo, date.Add(10*time.Hour))

	// Warm both a singular entry and a listing
	_, err := svc.Get(ctx, existing.ID)
	require.NoError(t, err)
	_, err = svc.ListByDate(ctx, date)
	require.NoError(t, err)
	readsBefore := repo.reads.Load()

	newFlight := Flight{
		Number:             "LH400",
		Origin:             "FRA",
		Destination:        "JFK",
		ScheduledDeparture: date.Add(14 * time.Hour),
		ScheduledArrival:   date.Add(22 * time.Hour),
	}
	require.NoError(t, svc.Create(ctx, &newFlight))

	// The listing is rebuilt and now includes the new flight
	views, err := svc.ListByDate(ctx, date)
	require.NoError(t, err)
	assert.Len(t, views, 2)
	assert.Equal(t, readsBefore+1, repo.reads.Load())

	// The singular entry survived the pattern invalidation
	_, err = svc.Get(ctx, existing.ID)
	require.NoError(t, err)
	assert.Equal(t, readsBefore+1, repo.reads.Load())

	snapshot := gateway.StatsSnapshot()
	assert.NotZero(t, snapshot.Memory.Hits)
}

func TestService_ListByDateAnnotatesStatus(t *testing.T) {
	svc, repo, _ := newServiceForTest(t)
	ctx := context.Background()

	// A flight whose departure already passed shows as departed
	date := time.Now().UTC().Add(-time.Hour)
	seedFlight(t, repo, date)

	views, err := svc.ListByDate(ctx, date)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, StatusDeparted, views[0].Status)
}
