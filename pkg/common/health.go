package common

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const dependencyCheckTimeout = 2 * time.Second

// DependencyCheck probes one backing service. A nil error means healthy.
type DependencyCheck func(ctx context.Context) error

// HealthStatus is the health endpoint response body.
type HealthStatus struct {
	Status       string            `json:"status"`
	Service      string            `json:"service"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// HealthCheckWithDeps returns a handler that probes every dependency under a
// shared timeout and reports 503 when any probe fails.
func HealthCheckWithDeps(serviceName, version string, checks map[string]DependencyCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), dependencyCheckTimeout)
		defer cancel()

		status := "healthy"
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = "unhealthy: " + err.Error()
				status = "unhealthy"
			} else {
				results[name] = "healthy"
			}
		}

		code := http.StatusOK
		if status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, HealthStatus{
			Status:       status,
			Service:      serviceName,
			Version:      version,
			Dependencies: results,
		})
	}
}
