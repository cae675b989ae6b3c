package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// RequestMetrics holds in-memory request counters
type RequestMetrics struct {
	mu                 sync.RWMutex
	TotalRequests      uint64
	RequestsByEndpoint map[string]uint64
	ResponsesByStatus  map[int]uint64
}

var metrics = &RequestMetrics{
	RequestsByEndpoint: make(map[string]uint64),
	ResponsesByStatus:  make(map[int]uint64),
}

// GetMetrics returns a snapshot of the current request metrics
func GetMetrics() RequestMetrics {
	metrics.mu.RLock()
	defer metrics.mu.RUnlock()
	return RequestMetrics{
		TotalRequests:      metrics.TotalRequests,
		RequestsByEndpoint: copyCounts(metrics.RequestsByEndpoint),
		ResponsesByStatus:  copyCounts(metrics.ResponsesByStatus),
	}
}

func copyCounts[K comparable](src map[K]uint64) map[K]uint64 {
	dst := make(map[K]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// StructuredLoggingMiddleware provides structured logging with request latency
// and keeps the in-memory request counters current
func StructuredLoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		logger.Info("request started",
			"method", method,
			"path", path,
			"query_params", c.Request.URL.Query().Encode(),
			"remote_addr", c.ClientIP(),
		)

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		metrics.mu.Lock()
		metrics.TotalRequests++
		// FullPath keeps parameterized routes as one endpoint
		endpoint := method + " " + c.FullPath()
		if c.FullPath() == "" {
			endpoint = method + " " + path
		}
		metrics.RequestsByEndpoint[endpoint]++
		metrics.ResponsesByStatus[statusCode]++
		metrics.mu.Unlock()

		logger.Info("request completed",
			"method", method,
			"path", path,
			"status_code", statusCode,
			"latency_ms", latency.Milliseconds(),
			"bytes_written", c.Writer.Size(),
		)

		if len(c.Errors) > 0 {
			for _, err := range c.Errors {
				logger.Error("request error",
					"method", method,
					"path", path,
					"error", err.Error(),
					"latency_ms", latency.Milliseconds(),
				)
			}
		}
	}
}
