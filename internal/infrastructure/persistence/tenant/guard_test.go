package tenant

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return gormDB, mock, mockDB
}

const periodsDDL = `CREATE TABLE periods (
	id TEXT PRIMARY KEY,
	tenant_id TEXT NOT NULL,
	period_id TEXT NOT NULL,
	status TEXT NOT NULL,
	version INTEGER NOT NULL,
	note TEXT,
	closed_by TEXT,
	closed_at DATETIME,
	created_by TEXT,
	updated_by TEXT,
	created_at DATETIME,
	updated_at DATETIME
)`

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Exec(periodsDDL).Error)
	return db
}

func testTenant() shared.TenantContext {
	return shared.TenantContext{TenantID: uuid.New(), ActorID: "user-001", CorrelationID: "corr-1"}
}

type periodRow struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	PeriodID string
	Status   string
	Version  int
	Note     string
}

func insertPeriod(t *testing.T, g *Guard, tc shared.TenantContext, periodID, status string) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, g.Insert(context.Background(), tc, Periods, Values{
		ColID:        id,
		ColPeriodID:  periodID,
		ColStatus:    status,
		ColVersion:   1,
		ColCreatedBy: tc.ActorID,
		ColUpdatedBy: tc.ActorID,
		ColCreatedAt: now,
		ColUpdatedAt: now,
	}))
	return id
}

// =============================================================================
// Catalog
// =============================================================================

func TestCatalog(t *testing.T) {
	t.Run("every scoped table declares tenant_id", func(t *testing.T) {
		for _, tbl := range Tables() {
			if tbl.Kind() == Scoped {
				assert.True(t, tbl.Has(ColTenantID), tbl.Name())
			} else {
				assert.False(t, tbl.Has(ColTenantID), tbl.Name())
			}
		}
	})

	t.Run("lookup returns the registered instance", func(t *testing.T) {
		got, ok := Lookup("invoices")
		require.True(t, ok)
		assert.Same(t, Invoices, got)
		_, ok = Lookup("users; DROP TABLE invoices")
		assert.False(t, ok)
	})

	t.Run("audit table is append-only and unversioned", func(t *testing.T) {
		assert.True(t, AuditEvents.AppendOnly())
		assert.False(t, AuditEvents.Versioned())
		assert.True(t, Invoices.Versioned())
	})
}

// =============================================================================
// SQL shape
// =============================================================================

func TestGuard_Read_SQL(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()
	g := NewGuard(db)
	tc := testTenant()

	mock.ExpectQuery(`SELECT "id","status" FROM "periods" WHERE "tenant_id" = \$1 AND "status" IN \(\$2,\$3\) AND "period_id" >= \$4 ORDER BY "period_id" DESC`).
		WithArgs(tc.TenantID.String(), "OPEN", "SOFT_CLOSE", "2025-01").
		WillReturnRows(sqlmock.NewRows([]string{"id", "status"}))

	var rows []periodRow
	err := g.Read(context.Background(), tc, Periods, &rows, Query{
		Columns: []Column{ColID, ColStatus},
		Where: []Predicate{
			In(ColStatus, "OPEN", "SOFT_CLOSE"),
			Gte(ColPeriodID, "2025-01"),
		},
		OrderBy: []Order{Desc(ColPeriodID)},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_UpdateVersioned_SQL(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()
	g := NewGuard(db)
	tc := testTenant()
	id := uuid.New()

	mock.ExpectExec(`UPDATE "periods" SET "note"=\$1,"version"=version \+ 1 WHERE "tenant_id" = \$2 AND "id" = \$3 AND "version" = \$4 AND "status" NOT IN \(\$5\)`).
		WithArgs("closing", tc.TenantID.String(), id.String(), 3, "HARD_CLOSE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	version, err := g.UpdateVersioned(context.Background(), tc, Periods, id, 3,
		Values{ColNote: "closing"},
		UpdateOptions{Entity: shared.EntityPeriod, LockedStates: []string{"HARD_CLOSE"}})
	require.NoError(t, err)
	assert.Equal(t, 4, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGuard_Insert_SQL(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()
	g := NewGuard(db)
	tc := testTenant()

	mock.ExpectExec(`INSERT INTO "sod_role_assignments" \("actor_id","id","role","tenant_id"\) VALUES \(\$1,\$2,\$3,\$4\)`).
		WithArgs("user-002", sqlmock.AnyArg(), "MANAGER", tc.TenantID.String()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := g.Insert(context.Background(), tc, RoleAssignments, Values{
		ColID:      uuid.New(),
		ColActorID: "user-002",
		ColRole:    "MANAGER",
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// =============================================================================
// Whitelist and tenant checks
// =============================================================================

func TestGuard_Rejections(t *testing.T) {
	db, mock, mockDB := setupMockDB(t)
	defer mockDB.Close()
	g := NewGuard(db)
	tc := testTenant()
	ctx := context.Background()
	var rows []periodRow

	tests := []struct {
		name string
		run  func() error
		code shared.ErrorCode
	}{
		{"unregistered table", func() error {
			return g.Read(ctx, tc, &Table{name: "periods"}, &rows, Query{})
		}, shared.CodeInvalidTable},
		{"nil table", func() error {
			return g.Read(ctx, tc, nil, &rows, Query{})
		}, shared.CodeInvalidTable},
		{"global table through tenant read", func() error {
			return g.Read(ctx, tc, DefaultApprovalThresholds, &rows, Query{})
		}, shared.CodeInvalidTable},
		{"tenant table through global read", func() error {
			return g.ReadGlobal(ctx, Periods, &rows, Query{})
		}, shared.CodeInvalidTable},
		{"undeclared select column", func() error {
			return g.Read(ctx, tc, Periods, &rows, Query{Columns: []Column{ColAmount}})
		}, shared.CodeInvalidColumn},
		{"undeclared filter column", func() error {
			return g.Read(ctx, tc, Periods, &rows, Query{Where: []Predicate{Eq(ColAmount, 1)}})
		}, shared.CodeInvalidColumn},
		{"undeclared order column", func() error {
			return g.Read(ctx, tc, Periods, &rows, Query{OrderBy: []Order{Asc(ColAmount)}})
		}, shared.CodeInvalidColumn},
		{"undeclared sum column", func() error {
			_, err := g.Sum(ctx, tc, Periods, ColAmount)
			return err
		}, shared.CodeInvalidColumn},
		{"insert for another tenant", func() error {
			return g.Insert(ctx, tc, Periods, Values{ColTenantID: uuid.New(), ColID: uuid.New()})
		}, shared.CodeTenantMismatch},
		{"update for another tenant", func() error {
			_, err := g.UpdateVersioned(ctx, tc, Periods, uuid.New(), 1, Values{ColTenantID: uuid.NewString()}, UpdateOptions{})
			return err
		}, shared.CodeTenantMismatch},
		{"update writes version", func() error {
			_, err := g.UpdateVersioned(ctx, tc, Periods, uuid.New(), 1, Values{ColVersion: 9}, UpdateOptions{})
			return err
		}, shared.CodeInvalidColumn},
		{"update on append-only table", func() error {
			_, err := g.UpdateVersioned(ctx, tc, AuditEvents, uuid.New(), 1, Values{ColAction: "x"}, UpdateOptions{})
			return err
		}, shared.CodeInvalidTable},
		{"missing tenant context", func() error {
			return g.Read(ctx, shared.TenantContext{ActorID: "user-001"}, Periods, &rows, Query{})
		}, shared.CodeMissingTenantID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.Equal(t, tt.code, shared.CodeOf(err))
		})
	}
	assert.NoError(t, mock.ExpectationsWereMet(), "rejected statements never reach the database")
}

func TestGuard_TenantIsolation(t *testing.T) {
	db := setupSQLite(t)
	g := NewGuard(db)
	ctx := context.Background()
	a, b := testTenant(), testTenant()

	idA := insertPeriod(t, g, a, "2025-10", "OPEN")
	insertPeriod(t, g, b, "2025-10", "HARD_CLOSE")

	t.Run("reads only see the caller's rows", func(t *testing.T) {
		var rows []periodRow
		require.NoError(t, g.Read(ctx, a, Periods, &rows, Query{}))
		require.Len(t, rows, 1)
		assert.Equal(t, a.TenantID, rows[0].TenantID)

		n, err := g.Count(ctx, b, Periods)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})

	t.Run("another tenant's id reads as absent", func(t *testing.T) {
		var row periodRow
		found, err := g.ReadOne(ctx, b, Periods, &row, Query{Where: []Predicate{Eq(ColID, idA)}})
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("another tenant's id cannot be updated", func(t *testing.T) {
		_, err := g.UpdateVersioned(ctx, b, Periods, idA, 1, Values{ColNote: "x"}, UpdateOptions{Entity: shared.EntityPeriod})
		assert.True(t, shared.IsCode(err, shared.CodeNotFound))

		var row periodRow
		found, err := g.ReadOne(ctx, a, Periods, &row, Query{Where: []Predicate{Eq(ColID, idA)}})
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, 1, row.Version)
		assert.Empty(t, row.Note)
	})
}

func TestGuard_UpdateVersioned(t *testing.T) {
	db := setupSQLite(t)
	g := NewGuard(db)
	ctx := context.Background()
	tc := testTenant()
	opts := UpdateOptions{Entity: shared.EntityPeriod, LockedStates: []string{"HARD_CLOSE"}}

	t.Run("increments version by one", func(t *testing.T) {
		id := insertPeriod(t, g, tc, "2025-09", "OPEN")
		v, err := g.UpdateVersioned(ctx, tc, Periods, id, 1, Values{ColNote: "first"}, opts)
		require.NoError(t, err)
		assert.Equal(t, 2, v)
		v, err = g.UpdateVersioned(ctx, tc, Periods, id, 2, Values{ColNote: "second"}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, v)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		id := insertPeriod(t, g, tc, "2025-08", "OPEN")
		_, err := g.UpdateVersioned(ctx, tc, Periods, id, 1, Values{ColNote: "a"}, opts)
		require.NoError(t, err)

		_, err = g.UpdateVersioned(ctx, tc, Periods, id, 1, Values{ColNote: "b"}, opts)
		require.Error(t, err)
		ke, ok := shared.AsKernelError(err)
		require.True(t, ok)
		assert.Equal(t, shared.CodeVersionConflict, ke.Code)
		assert.Equal(t, 1, ke.Details["expected"])
		assert.Equal(t, 2, ke.Details["actual"])
	})

	t.Run("locked state blocks field edit", func(t *testing.T) {
		id := insertPeriod(t, g, tc, "2025-07", "HARD_CLOSE")
		_, err := g.UpdateVersioned(ctx, tc, Periods, id, 1, Values{ColNote: "late"}, opts)
		assert.True(t, shared.IsCode(err, shared.CodeInvalidStateTransition))
	})

	t.Run("status change ignores locked states when not a field edit", func(t *testing.T) {
		id := insertPeriod(t, g, tc, "2025-06", "SOFT_CLOSE")
		v, err := g.UpdateVersioned(ctx, tc, Periods, id, 1, Values{ColStatus: "HARD_CLOSE"}, UpdateOptions{Entity: shared.EntityPeriod})
		require.NoError(t, err)
		assert.Equal(t, 2, v)
	})

	t.Run("concurrent writers with the same version: exactly one wins", func(t *testing.T) {
		id := insertPeriod(t, g, tc, "2025-05", "OPEN")
		results := make(chan error, 5)
		for i := 0; i < 5; i++ {
			go func(i int) {
				_, err := g.UpdateVersioned(ctx, tc, Periods, id, 1, Values{ColNote: fmt.Sprint(i)}, opts)
				results <- err
			}(i)
		}
		wins := 0
		for i := 0; i < 5; i++ {
			if err := <-results; err == nil {
				wins++
			} else {
				assert.True(t, shared.IsCode(err, shared.CodeVersionConflict))
			}
		}
		assert.Equal(t, 1, wins)
	})
}

func TestGuard_WithTx(t *testing.T) {
	db := setupSQLite(t)
	g := NewGuard(db)
	tc := testTenant()

	err := db.Transaction(func(tx *gorm.DB) error {
		ctx := WithTx(context.Background(), tx)
		insertPeriodCtx(t, ctx, g, tc, "2025-04")
		return fmt.Errorf("rollback")
	})
	require.Error(t, err)

	n, err := g.Count(context.Background(), tc, Periods)
	require.NoError(t, err)
	assert.Zero(t, n, "insert inside the rolled back transaction is gone")
}

func insertPeriodCtx(t *testing.T, ctx context.Context, g *Guard, tc shared.TenantContext, periodID string) {
	t.Helper()
	require.NoError(t, g.Insert(ctx, tc, Periods, Values{
		ColID: uuid.New(), ColPeriodID: periodID, ColStatus: "OPEN", ColVersion: 1,
	}))
}
