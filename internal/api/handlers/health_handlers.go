package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// CheckFunc probes one dependency
type CheckFunc func(ctx context.Context) error

// HealthHandlers reports liveness and dependency readiness
type HealthHandlers struct {
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *zap.Logger
}

// NewHealthHandlers creates a new HealthHandlers instance
func NewHealthHandlers(checks map[string]CheckFunc, logger *zap.Logger) *HealthHandlers {
	return &HealthHandlers{
		checks:  checks,
		timeout: 5 * time.Second,
		logger:  logger,
	}
}

// Health handles GET /health
func (h *HealthHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC()})
}

// Ready handles GET /ready, probing every dependency
func (h *HealthHandlers) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	status := http.StatusOK
	results := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("readiness check failed", zap.String("dependency", name), zap.Error(err))
			results[name] = gin.H{"healthy": false, "error": err.Error()}
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = gin.H{"healthy": true}
	}
	c.JSON(status, gin.H{"checks": results})
}
