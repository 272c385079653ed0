package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func scopedRouter(t *testing.T, captured *shared.TenantContext) *gin.Engine {
	t.Helper()
	r := gin.New()
	r.Use(RequestScope(DefaultScopeConfig()))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/test", func(c *gin.Context) {
		tc, ok := GetTenantContext(c)
		require.True(t, ok)
		*captured = tc
		c.Status(http.StatusOK)
	})
	return r
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var body dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequestScope(t *testing.T) {
	tenantID := uuid.New()

	t.Run("resolves the tenant context", func(t *testing.T) {
		var tc shared.TenantContext
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderTenantID, tenantID.String())
		req.Header.Set(HeaderActorID, "clerk-001")
		req.Header.Set(HeaderCorrelationID, "corr-7")
		w := serve(scopedRouter(t, &tc), req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, tenantID, tc.TenantID)
		assert.Equal(t, "clerk-001", tc.ActorID)
		assert.Equal(t, "corr-7", tc.CorrelationID)
		assert.Equal(t, "corr-7", w.Header().Get(HeaderCorrelationID))
	})

	t.Run("generates a correlation id", func(t *testing.T) {
		var tc shared.TenantContext
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderTenantID, tenantID.String())
		req.Header.Set(HeaderActorID, "clerk-001")
		w := serve(scopedRouter(t, &tc), req)

		require.NotEmpty(t, tc.CorrelationID)
		assert.Equal(t, tc.CorrelationID, w.Header().Get(HeaderCorrelationID))
	})

	t.Run("missing tenant is a 400", func(t *testing.T) {
		var tc shared.TenantContext
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderActorID, "clerk-001")
		req.Header.Set(HeaderCorrelationID, "corr-8")
		w := serve(scopedRouter(t, &tc), req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, shared.CodeMissingTenantID, body.Code)
		assert.Equal(t, "corr-8", body.CorrelationID)
		assert.Equal(t, "corr-8", w.Header().Get(HeaderCorrelationID))
	})

	t.Run("malformed tenant is a 400", func(t *testing.T) {
		var tc shared.TenantContext
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderTenantID, "acme")
		req.Header.Set(HeaderActorID, "clerk-001")
		w := serve(scopedRouter(t, &tc), req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeMissingTenantID, decodeError(t, w).Code)
	})

	t.Run("missing actor is a 401", func(t *testing.T) {
		var tc shared.TenantContext
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderTenantID, tenantID.String())
		w := serve(scopedRouter(t, &tc), req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Equal(t, shared.CodeUnauthorized, decodeError(t, w).Code)
	})

	t.Run("health is served without scope", func(t *testing.T) {
		var tc shared.TenantContext
		w := serve(scopedRouter(t, &tc), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NotEmpty(t, w.Header().Get(HeaderCorrelationID))
	})

	t.Run("scope fields reach the request logger", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		r := gin.New()
		r.Use(logger.GinMiddleware(zap.New(core)), RequestScope(DefaultScopeConfig()))
		r.GET("/test", func(c *gin.Context) {
			logger.L(c.Request.Context()).Info("inside")
			c.Status(http.StatusOK)
		})
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(HeaderTenantID, tenantID.String())
		req.Header.Set(HeaderActorID, "clerk-001")
		req.Header.Set(HeaderCorrelationID, "corr-9")
		serve(r, req)

		entries := logs.FilterMessage("inside").All()
		require.Len(t, entries, 1)
		fields := entries[0].ContextMap()
		assert.Equal(t, tenantID.String(), fields["tenant_id"])
		assert.Equal(t, "clerk-001", fields["actor_id"])
		assert.Equal(t, "corr-9", fields["correlation_id"])
	})
}

func TestAbortWithError(t *testing.T) {
	r := gin.New()
	r.Use(RequestScope(ScopeConfig{SkipPaths: []string{"/internal", "/conflict"}}))
	r.GET("/internal", func(c *gin.Context) {
		AbortWithError(c, errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	})
	r.GET("/conflict", func(c *gin.Context) {
		AbortWithError(c, shared.VersionConflict(shared.EntityVendor, uuid.New(), 1, 2))
	})

	w := serve(r, httptest.NewRequest(http.MethodGet, "/internal", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeError(t, w)
	assert.Equal(t, shared.CodeInternal, body.Code)
	assert.NotContains(t, w.Body.String(), "10.0.0.5")
	assert.NotEmpty(t, body.CorrelationID)

	w = serve(r, httptest.NewRequest(http.MethodGet, "/conflict", nil))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "vendor", decodeError(t, w).Entity)
}
