package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/finkernel/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig configures DBPlugin.
type DBConfig struct {
	Enabled         bool
	LogFullSQL      bool // keep query variables in span statements (dev only)
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DBConfigFrom derives the database options from the telemetry config.
func DBConfigFrom(cfg config.TelemetryConfig) DBConfig {
	thresh := cfg.DBSlowQueryThresh
	if thresh <= 0 {
		thresh = 200 * time.Millisecond
	}
	return DBConfig{
		Enabled:         cfg.DBTraceEnabled,
		LogFullSQL:      cfg.DBLogFullSQL,
		SlowQueryThresh: thresh,
		DBSystem:        "postgresql",
	}
}

// DBPlugin installs otelgorm tracing plus query timing on a gorm connection.
// It satisfies persistence.Plugin.
type DBPlugin struct {
	cfg      DBConfig
	logger   *zap.Logger
	duration *Histogram
}

// NewDBPlugin creates a plugin. meter may be nil to skip the duration histogram.
func NewDBPlugin(cfg DBConfig, meter metric.Meter, logger *zap.Logger) (*DBPlugin, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DBPlugin{cfg: cfg, logger: logger}
	if meter != nil {
		h, err := NewHistogram(meter, HistogramOpts{
			Name:        "finkernel_db_query_duration_seconds",
			Description: "Duration of database statements",
			Unit:        "s",
			Boundaries:  DBDurationBuckets,
		})
		if err != nil {
			return nil, err
		}
		p.duration = h
	}
	return p, nil
}

type queryStartKey struct{}

// RegisterOtelGorm registers the plugin callbacks on db.
func (p *DBPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.cfg.Enabled {
		p.logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.cfg.DBSystem)}
	if !p.cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) { p.afterStatement(db, op) }
	}

	cb := db.Callback()
	for _, err := range []error{
		cb.Create().Before("gorm:create").Register("finkernel_timing:before_create", before),
		cb.Query().Before("gorm:query").Register("finkernel_timing:before_query", before),
		cb.Update().Before("gorm:update").Register("finkernel_timing:before_update", before),
		cb.Delete().Before("gorm:delete").Register("finkernel_timing:before_delete", before),
		cb.Row().Before("gorm:row").Register("finkernel_timing:before_row", before),
		cb.Raw().Before("gorm:raw").Register("finkernel_timing:before_raw", before),

		cb.Create().After("gorm:create").Register("finkernel_timing:after_create", after("insert")),
		cb.Query().After("gorm:query").Register("finkernel_timing:after_query", after("select")),
		cb.Update().After("gorm:update").Register("finkernel_timing:after_update", after("update")),
		cb.Delete().After("gorm:delete").Register("finkernel_timing:after_delete", after("delete")),
		cb.Row().After("gorm:row").Register("finkernel_timing:after_row", after("select")),
		cb.Raw().After("gorm:raw").Register("finkernel_timing:after_raw", after("raw")),
	} {
		if err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", p.cfg.SlowQueryThresh),
		zap.String("db_system", p.cfg.DBSystem),
	)
	return nil
}

func (p *DBPlugin) afterStatement(db *gorm.DB, op string) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	started, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	elapsed := time.Since(started)
	table := db.Statement.Table

	if p.duration != nil {
		p.duration.RecordDuration(ctx, elapsed, AttrDBOperation.String(op), AttrDBTable.String(table))
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
		if table != "" {
			span.SetAttributes(attribute.String("db.sql.table", table))
		}
		if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
			RecordError(span, db.Error)
		}
	}

	if elapsed > p.cfg.SlowQueryThresh {
		if span.IsRecording() {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
		}
		p.logger.Warn("Slow query",
			zap.String("table", table),
			zap.String("operation", op),
			zap.Duration("elapsed", elapsed),
			zap.Duration("threshold", p.cfg.SlowQueryThresh),
		)
	}
}
