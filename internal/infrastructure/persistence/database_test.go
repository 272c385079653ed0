package persistence

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/erp/finkernel/internal/domain/shared"
	"github.com/erp/finkernel/internal/infrastructure/persistence/models"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// setupTestDatabase opens an isolated in-memory SQLite database with the
// kernel schema and the strict tenant scope installed.
func setupTestDatabase(t *testing.T) *Database {
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

	// Schema first: migrator statements do not carry tenant predicates.
	require.NoError(t, db.AutoMigrate(models.All()...))

	database, err := Wrap(db)
	require.NoError(t, err)
	return database
}

func newTenant(actor string) shared.TenantContext {
	return shared.TenantContext{TenantID: uuid.New(), ActorID: actor, CorrelationID: uuid.NewString()}
}

type recordingPlugin struct {
	calls int
	err   error
}

func (p *recordingPlugin) RegisterOtelGorm(*gorm.DB) error {
	p.calls++
	return p.err
}

// =============================================================================
// Database
// =============================================================================

func TestConnectionStats_Struct(t *testing.T) {
	stats := ConnectionStats{OpenConnections: 10, InUse: 6, Idle: 4}
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestWrap(t *testing.T) {
	t.Run("registers plugins after the tenant scope", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory", uuid.NewString())), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		require.NoError(t, err)

		plugin := &recordingPlugin{}
		database, err := Wrap(db, plugin, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, plugin.calls)
		assert.NotNil(t, database.Guard)
		assert.NoError(t, database.Ping(context.Background()))

		stats, err := database.Stats()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, stats.OpenConnections, 0)
	})

	t.Run("plugin failure is returned", func(t *testing.T) {
		db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory", uuid.NewString())), &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		require.NoError(t, err)

		_, err = Wrap(db, &recordingPlugin{err: errors.New("boom")})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "register gorm plugin")
	})
}

func TestDatabase_InTx(t *testing.T) {
	ctx := context.Background()

	insert := func(ctx context.Context, d *Database, tc shared.TenantContext, actor string) error {
		return d.Guard.Insert(ctx, tc, tenant.RoleAssignments, tenant.Values{
			tenant.ColID:        uuid.New(),
			tenant.ColActorID:   actor,
			tenant.ColRole:      "MANAGER",
			tenant.ColCreatedBy: tc.ActorID,
			tenant.ColCreatedAt: time.Now().UTC(),
		})
	}
	count := func(d *Database, tc shared.TenantContext) int64 {
		n, err := d.Guard.Count(ctx, tc, tenant.RoleAssignments)
		require.NoError(t, err)
		return n
	}

	t.Run("commits on success", func(t *testing.T) {
		d := setupTestDatabase(t)
		tc := newTenant("admin")
		err := d.InTx(ctx, func(ctx context.Context) error {
			return insert(ctx, d, tc, "user-001")
		})
		require.NoError(t, err)
		assert.Equal(t, int64(1), count(d, tc))
	})

	t.Run("rolls back every statement on error", func(t *testing.T) {
		d := setupTestDatabase(t)
		tc := newTenant("admin")
		boom := errors.New("boom")
		err := d.InTx(ctx, func(ctx context.Context) error {
			require.NoError(t, insert(ctx, d, tc, "user-001"))
			require.NoError(t, insert(ctx, d, tc, "user-002"))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int64(0), count(d, tc))
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		d := setupTestDatabase(t)
		tc := newTenant("admin")
		err := d.InTx(ctx, func(ctx context.Context) error {
			outer, _ := tenant.TxFrom(ctx)
			if err := d.InTx(ctx, func(inner context.Context) error {
				tx, _ := tenant.TxFrom(inner)
				assert.Same(t, outer, tx)
				return insert(inner, d, tc, "user-001")
			}); err != nil {
				return err
			}
			return errors.New("abort outer")
		})
		require.Error(t, err)
		assert.Equal(t, int64(0), count(d, tc))
	})
}
