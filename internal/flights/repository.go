package flights

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ErrFlightNotFound is returned when a flight does not exist in the store
var ErrFlightNotFound = errors.New("flight not found")

// Repository is the persistent-store access layer for flights
type Repository interface {
	Create(ctx context.Context, f *Flight) error
	GetByID(ctx context.Context, id uuid.UUID) (*Flight, error)
	Update(ctx context.Context, f *Flight) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListByDepartureDate(ctx context.Context, date time.Time) ([]Flight, error)
	Count(ctx context.Context) (int64, error)
}

// SQLRepository implements Repository over a sqlx database handle
type SQLRepository struct {
	db *sqlx.DB
}

// NewSQLRepository creates a SQLRepository
func NewSQLRepository(db *sqlx.DB) *SQLRepository {
	return &SQLRepository{db: db}
}

// Create inserts a flight
func (r *SQLRepository) Create(ctx context.Context, f *Flight) error {
	now := time.Now().UTC()
	f.CreatedAt = now
	f.UpdatedAt = now
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO flights (id, number, origin, destination, scheduled_departure, scheduled_arrival, gate, cancelled, created_at, updated_at)
		VALUES (:id, :number, :origin, :destination, :scheduled_departure, :scheduled_arrival, :gate, :cancelled, :created_at, :updated_at)`,
		f)
	if err != nil {
		return fmt.Errorf("insert flight: %w", err)
	}
	return nil
}

// GetByID fetches one flight
func (r *SQLRepository) GetByID(ctx context.Context, id uuid.UUID) (*Flight, error) {
	var f Flight
	err := r.db.GetContext(ctx, &f, `SELECT * FROM flights WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFlightNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select flight: %w", err)
	}
	return &f, nil
}

// Update rewrites a flight's mutable fields
func (r *SQLRepository) Update(ctx context.Context, f *Flight) error {
	f.UpdatedAt = time.Now().UTC()

	res, err := r.db.NamedExecContext(ctx, `
		UPDATE flights
		SET number = :number, origin = :origin, destination = :destination,
		    scheduled_departure = :scheduled_departure, scheduled_arrival = :scheduled_arrival,
		    gate = :gate, cancelled = :cancelled, updated_at = :updated_at
		WHERE id = :id`,
		f)
	if err != nil {
		return fmt.Errorf("update flight: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFlightNotFound
	}
	return nil
}

// Delete removes a flight
func (r *SQLRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM flights WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete flight: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrFlightNotFound
	}
	return nil
}

// ListByDepartureDate returns flights departing on the given UTC date
func (r *SQLRepository) ListByDepartureDate(ctx context.Context, date time.Time) ([]Flight, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	flights := []Flight{}
	err := r.db.SelectContext(ctx, &flights, `
		SELECT * FROM flights
		WHERE scheduled_departure >= $1 AND scheduled_departure < $2
		ORDER BY scheduled_departure`,
		dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list flights: %w", err)
	}
	return flights, nil
}

// Count returns the number of stored flights
func (r *SQLRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM flights`); err != nil {
		return 0, fmt.Errorf("count flights: %w", err)
	}
	return count, nil
}
