package httpserver

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/healtharchive/internal/logger"
)

const requestIDByteLen = 16

// RequestIDMiddleware stamps every request with a request_id, from the
// inbound header if present, generated otherwise.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-ID", requestID)
		c.Next()
	}
}

// LoggerMiddleware logs one structured entry per request.
func LoggerMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []logger.Field{
			logger.String("method", method),
			logger.String("path", path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)),
		}
		if reqID, ok := c.Get("request_id"); ok {
			if id, ok := reqID.(string); ok {
				fields = append(fields, logger.String("request_id", id))
			}
		}

		if len(c.Errors) > 0 {
			messages := make([]string, len(c.Errors))
			for i, e := range c.Errors {
				messages[i] = e.Err.Error()
			}
			fields = append(fields, logger.Strings("errors", messages))
			log.Error("http request", fields...)
			return
		}
		log.Info("http request", fields...)
	}
}

// RecoveryMiddleware turns a panic into a logged 500 instead of killing
// the process — this server shares a process with the worker loop or a
// watchdog loop, which must keep running.
func RecoveryMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered",
					logger.Any("error", err),
					logger.String("path", c.Request.URL.Path),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": "internal server error",
				})
			}
		}()
		c.Next()
	}
}

func generateRequestID() string {
	b := make([]byte, requestIDByteLen)
	if _, err := rand.Read(b); err != nil {
		now := time.Now().UnixNano()
		for i := requestIDByteLen - 1; i >= 0; i-- {
			b[i] = byte(now)
			now >>= 8
		}
	}
	return hex.EncodeToString(b)
}
