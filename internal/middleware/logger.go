package middleware

import (
	"fmt"
	"time"

	"github.com/clicktoassignment/backend/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID tags each request with a uuid, reusing a valid incoming one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

// CustomLoggerMiddleware logs one line per request.
func CustomLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		line := fmt.Sprintf("[API] %s | %s | %d | %s | %s | User: %d | req: %s",
			c.Request.Method,
			c.Request.URL.Path,
			c.Writer.Status(),
			latency.String(),
			c.ClientIP(),
			CurrentUserID(c),
			c.GetString(ContextRequestID),
		)

		entry := logger.WithContext(map[string]interface{}{
			"component": "http",
			"status":    c.Writer.Status(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error(line)
		case c.Writer.Status() >= 400:
			entry.Warn(line)
		default:
			entry.Info(line)
		}
	}
}
