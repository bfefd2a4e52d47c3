package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/ridloal/storefront-checkout-service/internal/platform/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID tags every request with an id (honoring one supplied by the
// caller) and logs the request line with its latency, so checkout failures
// can be correlated with the pipeline logs.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Set("request_id", requestID)
		c.Writer.Header().Set(RequestIDHeader, requestID)

		start := time.Now()
		c.Next()

		logger.Info("%s %s %d %v request_id=%s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start), requestID)
	}
}
