package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/erp/finkernel/internal/application/finance"
	"github.com/erp/finkernel/internal/application/kernel"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/erp/finkernel/internal/infrastructure/cache"
	"github.com/erp/finkernel/internal/infrastructure/persistence"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/interfaces/http/dto"
	"github.com/erp/finkernel/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	clerk   = "clerk-001"
	manager = "manager-001"
)

type api struct {
	router   *gin.Engine
	tenantID uuid.UUID
}

func newAPI(t *testing.T) *api {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(models.All()...))
	database, err := persistence.Wrap(db)
	require.NoError(t, err)

	a := &api{tenantID: uuid.New()}
	dir := sod.NewMemoryDirectory().
		Grant(a.tenantID, clerk, sod.RoleStaff).
		Grant(a.tenantID, manager, sod.RoleManager)

	repos := persistence.NewFinanceRepositories(database.Guard)
	auditRepo := persistence.NewGormAuditRepository(database.Guard)
	svc := finance.NewServices(kernel.Deps{
		Tx:     database,
		Policy: sod.NewPolicy(dir, dir, dir),
		Audit:  auditRepo,
		Clock:  shared.NewFixedClock(time.Date(2025, 11, 10, 9, 30, 0, 0, time.UTC)),
		IDs:    shared.UUIDGenerator{},
	}, finance.Repositories{
		Vendors:      repos.Vendors,
		Customers:    repos.Customers,
		BankAccounts: repos.BankAccounts,
		Invoices:     repos.Invoices,
		CreditNotes:  repos.CreditNotes,
		Receipts:     repos.Receipts,
		Payments:     repos.Payments,
		Journals:     repos.Journals,
		Periods:      persistence.NewGormPeriodRepository(database.Guard),
		Audit:        auditRepo,
	})
	idem := finance.NewIdempotency(cache.NewInMemoryIdempotencyStore(), shared.IdempotencyConfig{Enabled: true, TTL: time.Hour})

	a.router = gin.New()
	NewSystemHandler("finkernel", "test", map[string]Pinger{"database": database}).RegisterRoutes(&a.router.RouterGroup)
	v1 := a.router.Group("/api/v1", middleware.RequestScope(middleware.DefaultScopeConfig()))
	for _, r := range NewFinanceHandlers(svc, idem).Registrars() {
		r.RegisterRoutes(v1)
	}
	return a
}

func (a *api) do(t *testing.T, actor, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.HeaderTenantID, a.tenantID.String())
	req.Header.Set(middleware.HeaderActorID, actor)
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) (T, *dto.Meta) {
	t.Helper()
	var resp struct {
		Success bool      `json:"success"`
		Data    T         `json:"data"`
		Meta    *dto.Meta `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	require.True(t, resp.Success, w.Body.String())
	return resp.Data, resp.Meta
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	assert.False(t, resp.Success)
	return resp
}

func vendorBody(code string) finance.VendorRequest {
	return finance.VendorRequest{Code: code, Name: "Vendor " + code, Currency: "USD"}
}

func version(v int) *int { return &v }

// ==================== System ====================

func TestSystemHandler(t *testing.T) {
	a := newAPI(t)

	t.Run("health needs no scope", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)
		info, _ := decodeData[SystemInfoResponse](t, w)
		assert.Equal(t, "finkernel", info.Name)
	})

	t.Run("ready probes every check", func(t *testing.T) {
		r := gin.New()
		NewSystemHandler("finkernel", "test", map[string]Pinger{
			"database": pingFunc(func(context.Context) error { return nil }),
			"redis":    pingFunc(func(context.Context) error { return errors.New("connection refused") }),
		}).RegisterRoutes(&r.RouterGroup)

		req := httptest.NewRequest(http.MethodGet, "/ready", nil)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		var resp struct {
			Data ReadinessResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.False(t, resp.Data.Ready)
		assert.Equal(t, "ok", resp.Data.Checks["database"])
		assert.Equal(t, "connection refused", resp.Data.Checks["redis"])
	})
}

type pingFunc func(context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// ==================== Entities ====================

func TestEntityHandler(t *testing.T) {
	a := newAPI(t)

	w := a.do(t, clerk, http.MethodPost, "/api/v1/vendors", vendorBody("V-001"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	vendor, _ := decodeData[finance.VendorResponse](t, w)
	assert.Equal(t, "draft", vendor.Status)
	assert.Equal(t, 1, vendor.Version)
	path := "/api/v1/vendors/" + vendor.ID.String()

	t.Run("get", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, w.Code)
		got, _ := decodeData[finance.VendorResponse](t, w)
		assert.Equal(t, "V-001", got.Code)
	})

	t.Run("non uuid id is not found", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, "/api/v1/vendors/not-a-uuid", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, shared.CodeNotFound, resp.Code)
		assert.Equal(t, "vendor", resp.Entity)
	})

	t.Run("other tenant cannot see the vendor", func(t *testing.T) {
		other := *a
		other.tenantID = uuid.New()
		w := other.do(t, clerk, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("update without version", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodPut, path, finance.UpdateVendorRequest{VendorRequest: vendorBody("V-001")})
		assert.Equal(t, http.StatusPreconditionRequired, w.Code)
		assert.Equal(t, shared.CodeVersionRequired, decodeError(t, w).Code)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodPut, path, finance.UpdateVendorRequest{
			VendorRequest:   vendorBody("V-001"),
			ExpectedVersion: version(7),
		})
		assert.Equal(t, http.StatusConflict, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, shared.CodeVersionConflict, resp.Code)
		assert.EqualValues(t, 7, resp.Details["expected"])
	})

	t.Run("available actions", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, path+"/actions", nil)
		require.Equal(t, http.StatusOK, w.Code)
		got, _ := decodeData[dto.ActionsResponse](t, w)
		assert.Contains(t, got.Actions, "submit")
	})

	t.Run("maker cannot approve", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodPost, path+"/actions", finance.ActionRequest{Action: "submit", ExpectedVersion: version(1)})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())

		w = a.do(t, clerk, http.MethodPost, path+"/actions", finance.ActionRequest{Action: "approve", ExpectedVersion: version(2)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeSoDViolation, decodeError(t, w).Code)

		w = a.do(t, manager, http.MethodPost, path+"/actions", finance.ActionRequest{Action: "approve", ExpectedVersion: version(2)})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got, _ := decodeData[finance.VendorResponse](t, w)
		assert.Equal(t, "active", got.Status)
	})

	t.Run("list with meta", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodPost, "/api/v1/vendors", vendorBody("V-002"))
		require.Equal(t, http.StatusCreated, w.Code)

		w = a.do(t, clerk, http.MethodGet, "/api/v1/vendors?status=active&page_size=10", nil)
		require.Equal(t, http.StatusOK, w.Code)
		items, meta := decodeData[[]finance.VendorResponse](t, w)
		require.Len(t, items, 1)
		assert.Equal(t, "V-001", items[0].Code)
		require.NotNil(t, meta)
		assert.Equal(t, int64(1), meta.Total)
		assert.Equal(t, 10, meta.PageSize)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/vendors", bytes.NewBufferString("{"))
		req.Header.Set(middleware.HeaderTenantID, a.tenantID.String())
		req.Header.Set(middleware.HeaderActorID, clerk)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeValidation, decodeError(t, w).Code)
	})

	t.Run("missing tenant", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/vendors", nil)
		req.Header.Set(middleware.HeaderActorID, clerk)
		w := httptest.NewRecorder()
		a.router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeMissingTenantID, decodeError(t, w).Code)
	})
}

func TestEntityHandler_Idempotency(t *testing.T) {
	a := newAPI(t)
	key := middleware.HeaderIdempotencyKey

	first := a.do(t, clerk, http.MethodPost, "/api/v1/vendors", vendorBody("V-100"), key, "create-v100")
	require.Equal(t, http.StatusCreated, first.Code, first.Body.String())
	assert.Empty(t, first.Header().Get(middleware.HeaderIdempotentReplay))

	again := a.do(t, clerk, http.MethodPost, "/api/v1/vendors", vendorBody("V-100"), key, "create-v100")
	require.Equal(t, http.StatusCreated, again.Code, again.Body.String())
	assert.Equal(t, "true", again.Header().Get(middleware.HeaderIdempotentReplay))

	v1, _ := decodeData[finance.VendorResponse](t, first)
	v2, _ := decodeData[finance.VendorResponse](t, again)
	assert.Equal(t, v1.ID, v2.ID)

	w := a.do(t, clerk, http.MethodGet, "/api/v1/vendors", nil)
	_, meta := decodeData[[]finance.VendorResponse](t, w)
	assert.Equal(t, int64(1), meta.Total)
}

// ==================== Periods ====================

func TestPeriodHandler(t *testing.T) {
	a := newAPI(t)

	t.Run("unknown period is open at version 0", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, "/api/v1/periods/2025-10", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		p, _ := decodeData[finance.PeriodResponse](t, w)
		assert.Equal(t, "2025-10", p.PeriodID)
		assert.True(t, p.CanPost)
		assert.Equal(t, 0, p.Version)
	})

	t.Run("close needs director", func(t *testing.T) {
		w := a.do(t, manager, http.MethodPost, "/api/v1/periods/2025-10/actions", finance.PeriodActionRequest{
			Action:          "hard_close",
			ExpectedVersion: version(0),
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeSoDViolation, decodeError(t, w).Code)
	})

	t.Run("unknown action", func(t *testing.T) {
		w := a.do(t, manager, http.MethodPost, "/api/v1/periods/2025-10/actions", finance.PeriodActionRequest{Action: "archive"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, shared.CodeValidation, decodeError(t, w).Code)
	})

	t.Run("open periods", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, "/api/v1/periods/open", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"period_id":"2025-11"`)
	})
}

// ==================== Audit ====================

func TestAuditHandler(t *testing.T) {
	a := newAPI(t)
	w := a.do(t, clerk, http.MethodPost, "/api/v1/vendors", vendorBody("V-200"))
	require.Equal(t, http.StatusCreated, w.Code)
	vendor, _ := decodeData[finance.VendorResponse](t, w)

	t.Run("filter by resource id", func(t *testing.T) {
		w := a.do(t, manager, http.MethodGet, "/api/v1/audit/events?resource_id="+vendor.ID.String(), nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		events, meta := decodeData[[]finance.AuditEventResponse](t, w)
		require.NotEmpty(t, events)
		assert.Equal(t, clerk, events[0].ActorID)
		assert.Equal(t, int64(len(events)), meta.Total)
	})

	t.Run("bad timestamp", func(t *testing.T) {
		w := a.do(t, manager, http.MethodGet, "/api/v1/audit/events?from=yesterday", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		resp := decodeError(t, w)
		assert.Equal(t, shared.CodeValidation, resp.Code)
		assert.Equal(t, "from", resp.Details["field"])
	})

	t.Run("bad resource id", func(t *testing.T) {
		w := a.do(t, manager, http.MethodGet, "/api/v1/audit/events?resource_id=42", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// ==================== SoD ====================

func TestSoDHandler(t *testing.T) {
	a := newAPI(t)

	t.Run("requirements", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, "/api/v1/sod/requirements?amount=30000&currency=USD", nil)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		req, _ := decodeData[sod.ApprovalRequirement](t, w)
		assert.Equal(t, 2, req.Levels)
		assert.False(t, req.RequiresExecutive)
	})

	t.Run("bad amount", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodGet, "/api/v1/sod/requirements?amount=lots&currency=USD", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "amount", decodeError(t, w).Details["field"])
	})

	t.Run("maker is denied as checker", func(t *testing.T) {
		w := a.do(t, clerk, http.MethodPost, "/api/v1/sod/can-approve", map[string]any{
			"checker_id": manager,
			"makers":     []string{manager},
			"amount":     "1000",
			"currency":   "USD",
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		got, _ := decodeData[finance.CanApproveResponse](t, w)
		assert.False(t, got.Allowed)
	})
}
