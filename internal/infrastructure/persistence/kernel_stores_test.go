package persistence

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/erp/finkernel/internal/domain/audit"
	"github.com/erp/finkernel/internal/domain/period"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/domain/sod"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amountPtr(v string) *decimal.Decimal {
	d := decimal.RequireFromString(v)
	return &d
}

// =============================================================================
// Period repository
// =============================================================================

func TestGormPeriodRepository(t *testing.T) {
	ctx := context.Background()
	d := setupTestDatabase(t)
	repo := NewGormPeriodRepository(d.Guard)
	tc := newTenant("controller")
	clock := shared.NewFixedClock(testNow)

	p, err := period.NewPeriod(tc, shared.UUIDGenerator{}, clock, "2025-10")
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, tc, p))

	t.Run("find by period id", func(t *testing.T) {
		got, found, err := repo.FindByPeriodID(ctx, tc, "2025-10")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, p.ID, got.ID)
		assert.Equal(t, period.StatusOpen, got.LockStatus())

		_, found, err = repo.FindByPeriodID(ctx, tc, "2025-09")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("status follows updates", func(t *testing.T) {
		p.Status = string(period.StatusSoftClose)
		p.ClosedBy = tc.ActorID
		require.NoError(t, repo.Update(ctx, tc, p, 1, nil))

		st, found, err := repo.FindStatus(ctx, tc, "2025-10")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, period.StatusSoftClose, st)
	})

	t.Run("rows of other tenants are invisible", func(t *testing.T) {
		_, found, err := repo.FindStatus(ctx, newTenant("controller"), "2025-10")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("drives the period lock", func(t *testing.T) {
		closed, err := period.NewPeriod(tc, shared.UUIDGenerator{}, clock, "2025-08")
		require.NoError(t, err)
		closed.Status = string(period.StatusHardClose)
		require.NoError(t, repo.Create(ctx, tc, closed))

		lock := period.NewLock(repo, clock)
		_, err = lock.CheckPosting(ctx, tc, period.Posting{
			Date:  time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
			Class: period.PostingAdjustment,
		})
		assert.True(t, shared.IsCode(err, shared.CodePeriodClosed))

		open, err := lock.GetOpenPeriods(ctx, tc)
		require.NoError(t, err)
		ids := make([]string, len(open))
		for i, st := range open {
			ids[i] = st.PeriodID
		}
		assert.Equal(t, []string{"2025-10", "2025-11"}, ids)
	})
}

// =============================================================================
// Audit repository
// =============================================================================

func TestGormAuditRepository(t *testing.T) {
	ctx := context.Background()
	d := setupTestDatabase(t)
	repo := NewGormAuditRepository(d.Guard)
	tc := newTenant("user-001")
	invoiceID := uuid.New()

	record := func(action string, resource shared.EntityKind, resourceID uuid.UUID, at time.Time) {
		e, err := audit.NewEvent(tc, uuid.New(), action, resource, resourceID,
			map[string]string{"status": "draft"}, map[string]string{"status": "pending_approval"}, at)
		require.NoError(t, err)
		require.NoError(t, repo.Record(ctx, tc, e))
	}
	record("create", shared.EntityInvoice, invoiceID, testNow)
	record("submit", shared.EntityInvoice, invoiceID, testNow.Add(time.Minute))
	record("create", shared.EntityVendor, uuid.New(), testNow.Add(2*time.Minute))

	t.Run("filters by resource newest first", func(t *testing.T) {
		events, total, err := repo.Query(ctx, tc, audit.Filter{
			Resource:   string(shared.EntityInvoice),
			ResourceID: &invoiceID,
		}, shared.DefaultPagination())
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		require.Len(t, events, 2)
		assert.Equal(t, "submit", events[0].Action)
		assert.Equal(t, tc.CorrelationID, events[0].CorrelationID)
		assert.Equal(t, audit.ResultSuccess, events[0].Result)

		var after map[string]string
		require.NoError(t, json.Unmarshal(events[0].After, &after))
		assert.Equal(t, "pending_approval", after["status"])
	})

	t.Run("filters by time window and action", func(t *testing.T) {
		from := testNow.Add(30 * time.Second)
		_, total, err := repo.Query(ctx, tc, audit.Filter{From: &from, Action: "create"}, shared.DefaultPagination())
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
	})

	t.Run("scoped to tenant", func(t *testing.T) {
		events, total, err := repo.Query(ctx, newTenant("user-001"), audit.Filter{}, shared.DefaultPagination())
		require.NoError(t, err)
		assert.Equal(t, int64(0), total)
		assert.Empty(t, events)
	})

	t.Run("rejects events of another tenant", func(t *testing.T) {
		e, err := audit.NewEvent(newTenant("user-002"), uuid.New(), "create", shared.EntityVendor, uuid.New(), nil, nil, testNow)
		require.NoError(t, err)
		err = repo.Record(ctx, tc, e)
		assert.True(t, shared.IsCode(err, shared.CodeTenantMismatch))
	})

	t.Run("events cannot be rewritten", func(t *testing.T) {
		err := d.DB.WithContext(ctx).Table(tenant.AuditEvents.Name()).
			Where("tenant_id = ?", tc.TenantID).
			Update("action", "tampered").Error
		assert.True(t, shared.IsCode(err, shared.CodeInvalidTable))
	})
}

// =============================================================================
// SoD directory
// =============================================================================

func TestGormSoDDirectory_RolesAndExemptions(t *testing.T) {
	ctx := context.Background()
	d := setupTestDatabase(t)
	dir := NewGormSoDDirectory(d.Guard, nil, shared.NewFixedClock(testNow))
	tc := newTenant("admin")

	require.NoError(t, dir.Grant(ctx, tc, "alice", sod.RoleManager))
	require.NoError(t, dir.Grant(ctx, tc, "alice", "director"))

	roles, err := dir.Roles(ctx, tc, "alice")
	require.NoError(t, err)
	assert.ElementsMatch(t, []sod.Role{sod.RoleManager, sod.RoleDirector}, roles)

	roles, err = dir.Roles(ctx, newTenant("admin"), "alice")
	require.NoError(t, err)
	assert.Empty(t, roles)

	err = dir.Grant(ctx, tc, "bob", "janitor")
	assert.True(t, shared.IsCode(err, shared.CodeValidation))

	err = dir.Exempt(ctx, tc, "alice", "bob", " ")
	assert.True(t, shared.IsCode(err, shared.CodeValidation))

	require.NoError(t, dir.Exempt(ctx, tc, "alice", "bob", "two-person branch office"))
	exempt, err := dir.IsExempt(ctx, tc, "alice", "bob")
	require.NoError(t, err)
	assert.True(t, exempt)

	exempt, err = dir.IsExempt(ctx, tc, "bob", "alice")
	require.NoError(t, err)
	assert.False(t, exempt, "exemptions are directional")
}

func TestGormSoDDirectory_Thresholds(t *testing.T) {
	ctx := context.Background()
	d := setupTestDatabase(t)
	dir := NewGormSoDDirectory(d.Guard, nil, nil)

	require.NoError(t, d.DB.Create(&[]models.DefaultThresholdModel{
		{ID: uuid.New(), Currency: "USD", MaxAmount: amountPtr("1000"), LevelRoles: models.RoleNames(nil)},
		{ID: uuid.New(), Currency: "USD", LevelRoles: models.RoleNames([]sod.Role{sod.RoleManager})},
	}).Error)

	t.Run("tenant without overrides reads the global defaults", func(t *testing.T) {
		tiers, configured, err := dir.Thresholds(ctx, newTenant("admin"), "USD")
		require.NoError(t, err)
		assert.True(t, configured)
		assert.Len(t, tiers, 2)
	})

	t.Run("currency without defaults is not configured", func(t *testing.T) {
		tiers, configured, err := dir.Thresholds(ctx, newTenant("admin"), "JPY")
		require.NoError(t, err)
		assert.False(t, configured)
		assert.Empty(t, tiers)
	})

	t.Run("tenant overrides win and fail closed for other currencies", func(t *testing.T) {
		tc := newTenant("admin")
		err := d.InTx(ctx, func(ctx context.Context) error {
			return dir.ConfigureThresholds(ctx, tc, "eur", []sod.Tier{
				{MaxAmount: amountPtr("10000"), LevelRoles: []sod.Role{sod.RoleManager}},
				{LevelRoles: []sod.Role{sod.RoleManager, sod.RoleCFO}, RequiresExecutive: true},
			})
		})
		require.NoError(t, err)

		tiers, configured, err := dir.Thresholds(ctx, tc, "EUR")
		require.NoError(t, err)
		assert.True(t, configured)
		require.Len(t, tiers, 2)

		table, err := sod.NewTierTable(tiers)
		require.NoError(t, err)
		assert.Equal(t, 2, table.Lookup(decimal.NewFromInt(20000)).Levels())

		tiers, configured, err = dir.Thresholds(ctx, tc, "USD")
		require.NoError(t, err)
		assert.True(t, configured, "defaults do not apply once the tenant has overrides")
		assert.Empty(t, tiers)
	})

	t.Run("configuration is validated and written once", func(t *testing.T) {
		tc := newTenant("admin")
		err := dir.ConfigureThresholds(ctx, tc, "USD", []sod.Tier{
			{MaxAmount: amountPtr("10000"), LevelRoles: []sod.Role{sod.RoleDirector}},
			{LevelRoles: []sod.Role{sod.RoleManager}},
		})
		assert.True(t, shared.IsCode(err, shared.CodeValidation), "seniority may not decrease")

		valid := []sod.Tier{{LevelRoles: []sod.Role{sod.RoleManager}}}
		require.NoError(t, dir.ConfigureThresholds(ctx, tc, "USD", valid))
		err = dir.ConfigureThresholds(ctx, tc, "USD", valid)
		assert.True(t, shared.IsCode(err, shared.CodeValidation))
	})
}
