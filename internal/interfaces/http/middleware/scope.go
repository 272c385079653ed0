package middleware

import (
	"net/http"
	"strings"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Request scope headers
const (
	HeaderTenantID      = "X-Tenant-ID"
	HeaderActorID       = "X-Actor-ID"
	HeaderCorrelationID = "X-Correlation-ID"

	// HeaderIdempotencyKey makes a create request safe to retry
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay is set to "true" on replayed responses
	HeaderIdempotentReplay = "Idempotent-Replayed"
)

// TenantContextKey holds the shared.TenantContext of the request in gin.Context
const TenantContextKey = "tenant_context"

// MaxCorrelationIDLength bounds client supplied correlation ids. Longer values
// are replaced by a generated id.
const MaxCorrelationIDLength = 128

// ScopeConfig holds configuration for the request scope middleware
type ScopeConfig struct {
	// SkipPaths are served without tenant and actor (health checks)
	SkipPaths []string
}

// DefaultScopeConfig returns the default request scope configuration
func DefaultScopeConfig() ScopeConfig {
	return ScopeConfig{
		SkipPaths: []string{"/health", "/healthz", "/ready"},
	}
}

// RequestScope resolves the tenant, actor and correlation id of every request.
// The correlation id is echoed on every response, including rejected ones.
// A missing or malformed tenant id is rejected with MISSING_TENANT_ID and a
// missing actor with UNAUTHORIZED.
func RequestScope(cfg ScopeConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := strings.TrimSpace(c.GetHeader(HeaderCorrelationID))
		if correlationID == "" || len(correlationID) > MaxCorrelationIDLength {
			correlationID = uuid.NewString()
		}
		c.Set(logger.GinKeyCorrelationID, correlationID)
		c.Header(HeaderCorrelationID, correlationID)

		path := c.Request.URL.Path
		for _, skip := range cfg.SkipPaths {
			if path == skip || strings.HasPrefix(path, skip+"/") {
				c.Next()
				return
			}
		}

		tc, err := shared.NewTenantContext(c.GetHeader(HeaderTenantID), c.GetHeader(HeaderActorID), correlationID)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		c.Set(TenantContextKey, tc)
		c.Set(logger.GinKeyTenantID, tc.TenantID.String())
		c.Set(logger.GinKeyActorID, tc.ActorID)

		// The context keeps the unscoped logger; logger.L adds the scope fields.
		base := logger.GetGinLogger(c)
		ctx, _ := logger.WithRequestScope(c.Request.Context(), base, tc.TenantID.String(), tc.ActorID, tc.CorrelationID)
		c.Request = c.Request.WithContext(logger.WithContext(ctx, base))

		c.Next()
	}
}

// GetTenantContext returns the tenant context resolved by RequestScope
func GetTenantContext(c *gin.Context) (shared.TenantContext, bool) {
	v, ok := c.Get(TenantContextKey)
	if !ok {
		return shared.TenantContext{}, false
	}
	tc, ok := v.(shared.TenantContext)
	return tc, ok
}

// CorrelationID returns the correlation id of the request
func CorrelationID(c *gin.Context) string {
	return c.GetString(logger.GinKeyCorrelationID)
}

// AbortWithError writes the error body for err and stops the handler chain.
// Server side failures are logged with the original error.
func AbortWithError(c *gin.Context, err error) {
	status, body := dto.NewErrorResponse(err, CorrelationID(c))
	if status >= http.StatusInternalServerError {
		logger.L(c.Request.Context()).Error("request failed",
			zap.String("code", string(shared.CodeOf(err))),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, body)
}
