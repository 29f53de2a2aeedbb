package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"

	"deckforge/internal/metrics"
	"deckforge/internal/observability"
	"deckforge/pkg/logger"
)

// observe records a span, a latency sample and a debug line per request.
func observe() gin.HandlerFunc {
	log := logger.Get().With("component", "http")

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		ctx, span := observability.StartSpan(c.Request.Context(), "http "+route,
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", route),
		)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		var err error
		if last := c.Errors.Last(); last != nil {
			err = last.Err
		}
		observability.EndSpan(span, err)

		metrics.RecordHTTPRequest(c.Request.Method, route, status, elapsed)
		log.Debugw("HTTP request",
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"latency", elapsed,
		)
	}
}
