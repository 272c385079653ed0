package middleware

import (
	"net/http"

	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracingConfig holds configuration for the tracing middleware.
type TracingConfig struct {
	// ServiceName is the name of the service for trace identification.
	ServiceName string
	// Enabled controls whether tracing is active.
	Enabled bool
}

// Tracing returns OpenTelemetry tracing middleware. It wraps otelgin, so span
// names follow "HTTP METHOD route" (e.g. "GET /api/v1/invoices/:id").
func Tracing(cfg TracingConfig) gin.HandlerFunc {
	if !cfg.Enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return otelgin.Middleware(cfg.ServiceName)
}

// SpanScope tags the current span with the request scope and marks it as
// failed for 5xx responses. Place it after Tracing and RequestScope.
func SpanScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		span := trace.SpanFromContext(c.Request.Context())
		if span.IsRecording() {
			enrichSpan(c, span)
		}

		c.Next()

		if !span.IsRecording() {
			return
		}
		status := c.Writer.Status()
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
		if len(c.Errors) > 0 {
			span.SetAttributes(attribute.String("error.message", c.Errors.Last().Error()))
		}
	}
}

func enrichSpan(c *gin.Context, span trace.Span) {
	for _, key := range []string{logger.GinKeyRequestID, logger.GinKeyTenantID, logger.GinKeyActorID, logger.GinKeyCorrelationID} {
		if v := c.GetString(key); v != "" {
			span.SetAttributes(attribute.String(key, v))
		}
	}
}
