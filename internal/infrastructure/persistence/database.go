package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/finkernel/internal/infrastructure/config"
	"github.com/erp/finkernel/internal/infrastructure/logger"
	"github.com/erp/finkernel/internal/infrastructure/persistence/tenant"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Plugin is registered on the connection after the strict tenant scope,
// e.g. the otelgorm tracing plugin.
type Plugin interface {
	RegisterOtelGorm(db *gorm.DB) error
}

// Database holds the database connection and provides methods for database operations
type Database struct {
	DB    *gorm.DB
	Guard *tenant.Guard
}

// NewDatabase opens a Postgres connection, applies pool settings and installs
// the strict tenant scope callbacks.
func NewDatabase(cfg *config.DatabaseConfig, zapLogger *zap.Logger, plugins ...Plugin) (*Database, error) {
	if zapLogger == nil {
		zapLogger = zap.NewNop()
	}
	gormLogger := logger.NewGormLogger(zapLogger, logger.GormConfig{
		Level:        cfg.LogLevel,
		MaxSQLLength: 2048,
	})

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return Wrap(db, plugins...)
}

// Wrap prepares an already opened connection: strict tenant scope first,
// then plugins.
func Wrap(db *gorm.DB, plugins ...Plugin) (*Database, error) {
	if err := tenant.RegisterStrictScope(db); err != nil {
		return nil, fmt.Errorf("install tenant scope: %w", err)
	}
	for _, p := range plugins {
		if p == nil {
			continue
		}
		if err := p.RegisterOtelGorm(db); err != nil {
			return nil, fmt.Errorf("register gorm plugin: %w", err)
		}
	}
	return &Database{DB: db, Guard: tenant.NewGuard(db)}, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Stats returns database connection pool statistics and an error if unable to retrieve
func (d *Database) Stats() (ConnectionStats, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return ConnectionStats{}, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	stats := sqlDB.Stats()
	return ConnectionStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration,
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}, nil
}

// ConnectionStats holds database connection pool statistics
type ConnectionStats struct {
	MaxOpenConnections int
	OpenConnections    int
	InUse              int
	Idle               int
	WaitCount          int64
	WaitDuration       time.Duration
	MaxIdleClosed      int64
	MaxIdleTimeClosed  int64
	MaxLifetimeClosed  int64
}

// InTx runs fn inside one transaction. Guarded statements issued with the
// context passed to fn join the transaction. A nested call reuses the outer
// transaction.
func (d *Database) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := tenant.TxFrom(ctx); ok {
		return fn(ctx)
	}
	return d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(tenant.WithTx(ctx, tx))
	})
}
