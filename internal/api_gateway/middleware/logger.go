package middleware

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
)

// Logger middleware logs HTTP request details. Hospital scope and acting
// user are included so request logs line up with the audit trail.
func Logger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		correlationID := GetCorrelationID(c)

		requestLogger := logger
		if correlationID != "" {
			requestLogger = logger.With("correlation_id", correlationID)
		}

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method

		if raw != "" {
			path = path + "?" + raw
		}

		attrs := []any{
			"method", method,
			"path", path,
			"status", statusCode,
			"latency", latency,
			"client_ip", clientIP,
		}
		if hospitalID := c.Param("hospital_id"); hospitalID != "" {
			attrs = append(attrs, "hospital_id", hospitalID)
		}
		if actor := c.GetHeader("X-Actor"); actor != "" {
			attrs = append(attrs, "actor", actor)
		}

		requestLogger.Info("HTTP request", attrs...)
	}
}
