package middleware

import (
	"context"

	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
)

// Profiling attaches pyroscope labels for the matched route and tenant to the
// rest of the handler chain. Place it after RequestScope. Unmatched routes are
// not labelled.
func Profiling(enabled bool) gin.HandlerFunc {
	if !enabled {
		return func(c *gin.Context) {
			c.Next()
		}
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			c.Next()
			return
		}
		labels := map[string]string{
			telemetry.ProfilingLabelRoute:    route,
			telemetry.ProfilingLabelTenantID: c.GetString(logger.GinKeyTenantID),
		}
		telemetry.WithProfilingLabels(c.Request.Context(), labels, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
