package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// handleHealth returns the composite health report. Healthy and Degraded map
// to 200, everything else to 503, so orchestrators can alarm on the code.
func (s *Server) handleHealth(c *gin.Context) {
	report := s.aggregator.Check(c.Request.Context())
	c.JSON(report.HTTPStatus(), report)
}

// handleLiveness answers the orchestrator liveness probe: the process is up
func (s *Server) handleLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReadiness answers the readiness probe with the composite verdict
func (s *Server) handleReadiness(c *gin.Context) {
	report := s.aggregator.Check(c.Request.Context())
	c.JSON(report.HTTPStatus(), gin.H{
		"status": report.Status,
		"time":   report.Timestamp.UTC().Format(time.RFC3339),
	})
}
