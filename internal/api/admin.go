package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flightops/flightops/pkg/tracking"
)

type invalidateRequest struct {
	Pattern string `json:"pattern" binding:"required"`
}

// handleCacheClear flushes every cache entry from every tier
func (s *Server) handleCacheClear(c *gin.Context) {
	removed, err := s.gateway.ClearAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	s.logger.Info("administrative cache clear", map[string]interface{}{"removed": removed})
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

// handleCacheInvalidate bulk-deletes cache entries matching a pattern.
// Malformed or overly broad patterns are rejected with 400.
func (s *Server) handleCacheInvalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}

	removed, err := s.gateway.RemoveByPattern(c.Request.Context(), req.Pattern)
	if err != nil {
		if tracking.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"pattern": req.Pattern, "removed": removed})
}

// handleCacheStats reports the current cache statistics snapshot
func (s *Server) handleCacheStats(c *gin.Context) {
	snapshot := s.gateway.StatsSnapshot()
	c.JSON(http.StatusOK, gin.H{
		"mode":              s.gateway.Mode(),
		"memory":            snapshot.Memory,
		"distributed":       snapshot.Distributed,
		"combined":          snapshot.Combined,
		"hit_rate_percent":  snapshot.Combined.HitRate(),
		"avg_latency_ms":    snapshot.Combined.AverageLatencyMs(),
		"tracking_since":    snapshot.StartedAt,
		"snapshot_taken_at": snapshot.TakenAt,
	})
}
