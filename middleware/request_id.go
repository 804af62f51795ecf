package middleware

import (
	"log/slog"

	"cv-rag-platform/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const RequestIDHeader = "X-Request-ID"

// RequestIDMiddleware reuses an incoming X-Request-ID or mints one, and
// stores a logger carrying it for handlers.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set("request_id", requestID)
		c.Set("logger", logger.With("request_id", requestID))
		c.Header(RequestIDHeader, requestID)

		c.Next()
	}
}

func GetRequestID(c *gin.Context) string {
	return c.GetString("request_id")
}

// RequestLogger falls back to the package logger outside RequestIDMiddleware.
func RequestLogger(c *gin.Context) *slog.Logger {
	if v, exists := c.Get("logger"); exists {
		if l, ok := v.(*slog.Logger); ok {
			return l
		}
	}
	return logger.With()
}
