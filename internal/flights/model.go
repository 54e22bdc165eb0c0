// Package flights implements flight records and the service that serves them
// through the cache gateway.
package flights

import (
	"time"

	"github.com/google/uuid"
)

// FlightStatus is derived from the flight's time windows, never stored
type FlightStatus string

// Flight statuses
const (
	StatusScheduled FlightStatus = "scheduled"
	StatusBoarding  FlightStatus = "boarding"
	StatusDeparted  FlightStatus = "departed"
	StatusArrived   FlightStatus = "arrived"
	StatusCancelled FlightStatus = "cancelled"
)

// boardingWindow is how long before scheduled departure boarding opens
const boardingWindow = 40 * time.Minute

// Flight is a flight record
type Flight struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	Number             string    `db:"number" json:"number"`
	Origin             string    `db:"origin" json:"origin"`
	Destination        string    `db:"destination" json:"destination"`
	ScheduledDeparture time.Time `db:"scheduled_departure" json:"scheduled_departure"`
	ScheduledArrival   time.Time `db:"scheduled_arrival" json:"scheduled_arrival"`
	Gate               string    `db:"gate" json:"gate"`
	Cancelled          bool      `db:"cancelled" json:"cancelled"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// Status derives the flight status from its time windows at the given instant
func (f *Flight) Status(now time.Time) FlightStatus {
	switch {
	case f.Cancelled:
		return StatusCancelled
	case now.After(f.ScheduledArrival):
		return StatusArrived
	case now.After(f.ScheduledDeparture):
		return StatusDeparted
	case now.After(f.ScheduledDeparture.Add(-boardingWindow)):
		return StatusBoarding
	default:
		return StatusScheduled
	}
}

// FlightView is a Flight with its derived status, as served to clients
type FlightView struct {
	Flight
	Status FlightStatus `json:"status"`
}

// View derives the status-annotated representation of f
func (f Flight) View(now time.Time) FlightView {
	return FlightView{Flight: f, Status: f.Status(now)}
}
