package flights

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/flightops/flightops/pkg/cache"
	"github.com/flightops/flightops/pkg/observability"
	"github.com/flightops/flightops/pkg/tracking"
)

// Cache key layout: single flights under "flight:<id>", date listings under
// "flights:departure:<date>". Listing invalidation uses the "flights:*"
// pattern so the singular keys survive.
const (
	flightKeyFormat  = "flight:%s"
	listingKeyFormat = "flights:departure:%s"
	listingPattern   = "flights:*"

	flightTTL  = 10 * time.Minute
	listingTTL = 2 * time.Minute
)

// Service serves flight reads through the cache gateway and keeps the cache
// coherent on writes.
type Service struct {
	repo    Repository
	gateway cache.Gateway
	tracker *tracking.Tracker
	logger  observability.Logger
}

// NewService creates a flight Service
func NewService(repo Repository, gateway cache.Gateway, tracker *tracking.Tracker, logger observability.Logger) *Service {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	if tracker == nil {
		tracker = tracking.NewTracker(nil, nil)
	}
	return &Service{
		repo:    repo,
		gateway: gateway,
		tracker: tracker,
		logger:  logger.WithPrefix("flights"),
	}
}

// Create stores a new flight and invalidates affected listings
func (s *Service) Create(ctx context.Context, f *Flight) error {
	if err := s.repo.Create(ctx, f); err != nil {
		return err
	}
	s.invalidateListings(ctx)
	_ = s.tracker.TrackEvent("flight.created", map[string]string{"number": f.Number})
	return nil
}

// Get returns one flight, read through the cache
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Flight, error) {
	key := fmt.Sprintf(flightKeyFormat, id)

	var cached Flight
	found, err := s.gateway.Get(ctx, key, &cached)
	if err != nil {
		// Validation/codec problems only; fall through to the store
		s.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	if found {
		return &cached, nil
	}

	f, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gateway.Set(ctx, key, f, flightTTL); err != nil {
		s.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	return f, nil
}

// Update rewrites a flight and invalidates its cache entries
func (s *Service) Update(ctx context.Context, f *Flight) error {
	if err := s.repo.Update(ctx, f); err != nil {
		return err
	}
	_ = s.gateway.Remove(ctx, fmt.Sprintf(flightKeyFormat, f.ID))
	s.invalidateListings(ctx)
	_ = s.tracker.TrackEvent("flight.updated", map[string]string{"number": f.Number})
	return nil
}

// Delete removes a flight and invalidates its cache entries
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.gateway.Remove(ctx, fmt.Sprintf(flightKeyFormat, id))
	s.invalidateListings(ctx)
	_ = s.tracker.TrackEvent("flight.deleted", nil)
	return nil
}

// ListByDate returns status-annotated flights departing on the given date,
// read through the cache.
func (s *Service) ListByDate(ctx context.Context, date time.Time) ([]FlightView, error) {
	key := fmt.Sprintf(listingKeyFormat, date.UTC().Format("2006-01-02"))

	var flights []Flight
	found, err := s.gateway.Get(ctx, key, &flights)
	if err != nil {
		s.logger.Warn("cache read failed", map[string]interface{}{"key": key, "error": err.Error()})
	}
	if !found {
		flights, err = s.repo.ListByDepartureDate(ctx, date)
		if err != nil {
			return nil, err
		}
		if err := s.gateway.Set(ctx, key, flights, listingTTL); err != nil {
			s.logger.Warn("cache write failed", map[string]interface{}{"key": key, "error": err.Error()})
		}
	}

	now := time.Now()
	views := make([]FlightView, 0, len(flights))
	for _, f := range flights {
		views = append(views, f.View(now))
	}
	return views, nil
}

func (s *Service) invalidateListings(ctx context.Context) {
	if _, err := s.gateway.RemoveByPattern(ctx, listingPattern); err != nil {
		s.logger.Warn("listing invalidation failed", map[string]interface{}{"error": err.Error()})
	}
}
