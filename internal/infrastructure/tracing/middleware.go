package tracing

import (
	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/x11host/internal/infrastructure/logging"
)

// HTTPMiddleware creates Gin middleware for request tracing
func HTTPMiddleware(logger *logging.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.For("http")

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		if incoming := c.GetHeader(TraceHeader); validTraceID(incoming) {
			ctx = WithTraceID(ctx, incoming)
		}

		name := c.FullPath()
		if name == "" {
			name = "unmatched"
		}

		span, ctx := StartSpan(ctx, name)
		span.SetTag("method", c.Request.Method)
		span.SetTag("client_ip", c.ClientIP())

		c.Request = c.Request.WithContext(ctx)
		c.Header(TraceHeader, span.TraceID)

		c.Next()

		span.StatusCode = c.Writer.Status()
		if len(c.Errors) > 0 {
			span.Err = c.Errors.Last()
		}
		span.Finish()

		if span.StatusCode >= 500 {
			logger.Warn("Request failed", span.Fields()...)
		} else {
			logger.Debug("Request", span.Fields()...)
		}
	}
}
