package middleware

import (
	"net/http"
	"net/http/httptest"
	"runtime/pprof"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestProfiling(t *testing.T) {
	t.Run("disabled leaves the context alone", func(t *testing.T) {
		r := gin.New()
		r.Use(Profiling(false))
		var labelled bool
		r.GET("/test", func(c *gin.Context) {
			_, labelled = pprof.Label(c.Request.Context(), "route")
			c.Status(http.StatusOK)
		})

		w := serve(r, httptest.NewRequest(http.MethodGet, "/test", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.False(t, labelled)
	})

	t.Run("labels route and tenant", func(t *testing.T) {
		tenantID := uuid.New()
		r := gin.New()
		r.Use(RequestScope(DefaultScopeConfig()), Profiling(true))
		var route, tenant string
		r.GET("/api/v1/invoices/:id", func(c *gin.Context) {
			route, _ = pprof.Label(c.Request.Context(), "route")
			tenant, _ = pprof.Label(c.Request.Context(), "tenant_id")
			c.Status(http.StatusOK)
		})

		req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+uuid.NewString(), nil)
		req.Header.Set(HeaderTenantID, tenantID.String())
		req.Header.Set(HeaderActorID, "clerk-001")
		w := serve(r, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "/api/v1/invoices/:id", route)
		assert.Equal(t, tenantID.String(), tenant)
	})
}
