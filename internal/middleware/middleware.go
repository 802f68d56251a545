package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"
	headerUserID    = "X-User-ID"

	ContextRequestID = "request_id"
	ContextUserID    = "user_id"
)

// RequestID tags every request with an id, reusing the caller's when present.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(headerRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(ContextRequestID, requestID)
		c.Header(headerRequestID, requestID)
		c.Next()
	}
}

// Logger writes one access-log line per request.
func Logger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("http_request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", c.GetString(ContextRequestID)))
	}
}

// UserID extracts the authenticated user's id injected by the upstream auth
// layer. Authentication itself is not this service's concern.
func UserID() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(headerUserID)
		userID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || userID <= 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid user identity"})
			return
		}
		c.Set(ContextUserID, userID)
		c.Next()
	}
}

func UserFromContext(c *gin.Context) int64 {
	return c.GetInt64(ContextUserID)
}
