package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
)

var startTime = time.Now()

// HealthChecker is anything that can report its own reachability
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	checks map[string]HealthChecker
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

// NewHealthHandler checks every named dependency. A nil checker reports as
// not configured.
func NewHealthHandler(checks map[string]HealthChecker) *HealthHandler {
	return &HealthHandler{checks: checks}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	services := make(map[string]string, len(h.checks))
	overallStatus := "healthy"
	for name, check := range h.checks {
		if check == nil {
			services[name] = "unhealthy: not configured"
		} else if err := check.HealthCheck(ctx); err != nil {
			services[name] = "unhealthy: " + err.Error()
		} else {
			services[name] = "healthy"
		}
		if services[name] != "healthy" {
			overallStatus = "unhealthy"
		}
	}

	code := http.StatusOK
	if overallStatus != "healthy" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, HealthResponse{
		Status:    overallStatus,
		Timestamp: time.Now(),
		Services:  services,
		Version:   os.Getenv("APP_VERSION"),
		Uptime:    time.Since(startTime).String(),
	})
}
