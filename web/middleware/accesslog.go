package middleware

import (
	"net/http"
	"time"

	"github.com/postboard/postboard/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	RequestIDHeader = "X-Request-Id"
	requestIDKey    = "request_id"
)

// AccessLog tags each request with an id (kept from the client when it is a
// UUID) and logs method, path, status and latency once the handler returns.
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(RequestIDHeader, id)

		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		latency := time.Since(start)
		if status >= http.StatusInternalServerError {
			logger.Warningf("%s %s %s %d %v %s", id, c.Request.Method, c.Request.URL.Path, status, latency, c.Errors.String())
			return
		}
		logger.Debugf("%s %s %s %d %v", id, c.Request.Method, c.Request.URL.Path, status, latency)
	}
}

// RequestID returns the id AccessLog assigned to this request.
func RequestID(c *gin.Context) string {
	return c.GetString(requestIDKey)
}
