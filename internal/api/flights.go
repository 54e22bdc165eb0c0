package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/flightops/flightops/internal/flights"
)

type flightRequest struct {
	Number             string    `json:"number" binding:"required"`
	Origin             string    `json:"origin" binding:"required"`
	Destination        string    `json:"destination" binding:"required"`
	ScheduledDeparture time.Time `json:"scheduled_departure" binding:"required"`
	ScheduledArrival   time.Time `json:"scheduled_arrival" binding:"required"`
	Gate               string    `json:"gate"`
	Cancelled          bool      `json:"cancelled"`
}

func (s *Server) handleCreateFlight(c *gin.Context) {
	var req flightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := &flights.Flight{
		Number:             req.Number,
		Origin:             req.Origin,
		Destination:        req.Destination,
		ScheduledDeparture: req.ScheduledDeparture,
		ScheduledArrival:   req.ScheduledArrival,
		Gate:               req.Gate,
		Cancelled:          req.Cancelled,
	}
	if err := s.flightService.Create(c.Request.Context(), f); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, f.View(time.Now()))
}

func (s *Server) handleGetFlight(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight id"})
		return
	}

	f, err := s.flightService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, flights.ErrFlightNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flight not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, f.View(time.Now()))
}

func (s *Server) handleUpdateFlight(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight id"})
		return
	}

	var req flightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	f := &flights.Flight{
		ID:                 id,
		Number:             req.Number,
		Origin:             req.Origin,
		Destination:        req.Destination,
		ScheduledDeparture: req.ScheduledDeparture,
		ScheduledArrival:   req.ScheduledArrival,
		Gate:               req.Gate,
		Cancelled:          req.Cancelled,
	}
	if err := s.flightService.Update(c.Request.Context(), f); err != nil {
		if errors.Is(err, flights.ErrFlightNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flight not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, f.View(time.Now()))
}

func (s *Server) handleDeleteFlight(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight id"})
		return
	}

	if err := s.flightService.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, flights.ErrFlightNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "flight not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// handleListFlights lists flights departing on ?date=YYYY-MM-DD (default today)
func (s *Server) handleListFlights(c *gin.Context) {
	date := time.Now().UTC()
	if raw := c.Query("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	views, err := s.flightService.ListByDate(c.Request.Context(), date)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date.Format("2006-01-02"), "flights": views})
}
