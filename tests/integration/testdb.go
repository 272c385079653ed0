//go:build integration

// Package integration runs the finance kernel against a real PostgreSQL
// started with testcontainers.
package integration

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/erp/finkernel/internal/infrastructure/migration"
	"github.com/erp/finkernel/internal/infrastructure/persistence"
	"github.com/erp/finkernel/migrations"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	sharedContainer    testcontainers.Container
	sharedContainerMu  sync.Mutex
	sharedContainerDSN string
)

// TestDB is a migrated database with the tenant scope installed
type TestDB struct {
	*persistence.Database
	SqlDB *sql.DB
	DSN   string
}

// NewSharedTestDB connects to a package wide PostgreSQL container, starting
// and migrating it on first use. Tests isolate themselves by tenant.
func NewSharedTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	ctx := context.Background()
	if sharedContainer == nil {
		container, err := tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("finkernel_test"),
			tcpostgres.WithUsername("postgres"),
			tcpostgres.WithPassword("admin123"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second)),
		)
		require.NoError(t, err, "Failed to start PostgreSQL container")

		dsn, err := container.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err, "Failed to get connection string")

		sqlDB, err := sql.Open("postgres", dsn)
		require.NoError(t, err)
		m, err := migration.NewFromFS(sqlDB, migrations.FS, zap.NewNop())
		require.NoError(t, err, "Failed to create migrator")
		require.NoError(t, m.Up(), "Failed to run migrations")
		_ = m.Close()

		sharedContainer = container
		sharedContainerDSN = dsn
	}

	db, err := gorm.Open(gormpostgres.Open(sharedContainerDSN), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
		TranslateError:         true,
	})
	require.NoError(t, err, "Failed to connect to database")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(10)
	t.Cleanup(func() { _ = sqlDB.Close() })

	database, err := persistence.Wrap(db)
	require.NoError(t, err)
	return &TestDB{Database: database, SqlDB: sqlDB, DSN: sharedContainerDSN}
}

// CleanupSharedContainer terminates the shared container. Call it from
// TestMain.
func CleanupSharedContainer() {
	sharedContainerMu.Lock()
	defer sharedContainerMu.Unlock()

	if sharedContainer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = sharedContainer.Terminate(ctx)
		sharedContainer = nil
		sharedContainerDSN = ""
	}
}
