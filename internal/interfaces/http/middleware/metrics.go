package middleware

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPRecorder is implemented by telemetry.Metrics
type HTTPRecorder interface {
	HTTPRequestStarted() func(method, route string, status int, duration time.Duration)
}

// HTTPMetrics records request count, latency and in-flight requests labelled
// by the route pattern, so /orders/:id stays one series.
func HTTPMetrics(recorder HTTPRecorder, skipPathPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		for _, prefix := range skipPathPrefixes {
			if strings.HasPrefix(c.Request.URL.Path, prefix) {
				c.Next()
				return
			}
		}

		start := time.Now()
		done := recorder.HTTPRequestStarted()
		c.Next()
		done(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}
