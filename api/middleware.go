package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey = "X-Request-ID"

	// Context keys set by the collect handler for request logging.
	ctxSiteKey       = "ba-site"
	ctxEventCountKey = "ba-event-count"
)

// RequestIDMiddleware attaches a request ID, minting one when the
// client did not send its own.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDKey)
		if requestID == "" {
			requestID = uuid.New().String()
		}

		c.Set(requestIDKey, requestID)
		c.Header(requestIDKey, requestID)

		c.Next()
	}
}

// CORSMiddleware handles CORS for browser SDK clients. The collection
// endpoint is hit cross-origin from every tracked site, so the policy
// is wide open.
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Authorization, X-Request-ID, X-BA-Server, X-BA-Batch")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}

// LoggingMiddleware logs one line per request, enriched with the site
// key and event count when the collect handler recorded them.
func LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		entry := log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Str("request_id", c.GetString(requestIDKey))

		if site := c.GetString(ctxSiteKey); site != "" {
			entry = entry.Str("site", site)
		}
		if count, ok := c.Get(ctxEventCountKey); ok {
			if n, ok := count.(int); ok {
				entry = entry.Int("events", n)
			}
		}

		entry.Msg("collect API request")
	}
}
