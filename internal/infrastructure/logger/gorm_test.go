package logger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func newObservedGorm(cfg GormConfig) (*GormLogger, *observer.ObservedLogs) {
	core, recorded := observer.New(zapcore.DebugLevel)
	return NewGormLogger(zap.New(core), cfg), recorded
}

func statement(sql string, rows int64) func() (string, int64) {
	return func() (string, int64) { return sql, rows }
}

func scopedContext() context.Context {
	ctx := context.WithValue(context.Background(), TenantIDKey, "tenant-1")
	ctx = context.WithValue(ctx, ActorIDKey, "clerk-001")
	return context.WithValue(ctx, CorrelationIDKey, "corr-1")
}

// =============================================================================
// Construction
// =============================================================================

func TestNewGormLogger(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		l := NewGormLogger(nil, GormConfig{})
		assert.Equal(t, gormlogger.Warn, l.level)
		assert.Equal(t, DefaultSlowQuery, l.slow)
		assert.False(t, l.logNotFound)
	})

	t.Run("config is applied", func(t *testing.T) {
		l := NewGormLogger(zap.NewNop(), GormConfig{Level: "info", SlowThreshold: time.Second, MaxSQLLength: 64, LogNotFound: true})
		assert.Equal(t, gormlogger.Info, l.level)
		assert.Equal(t, time.Second, l.slow)
		assert.Equal(t, 64, l.maxSQL)
		assert.True(t, l.logNotFound)
	})

	t.Run("LogMode copies", func(t *testing.T) {
		l := NewGormLogger(zap.NewNop(), GormConfig{Level: "info"})
		quiet, ok := l.LogMode(gormlogger.Silent).(*GormLogger)
		require.True(t, ok)
		assert.Equal(t, gormlogger.Silent, quiet.level)
		assert.Equal(t, gormlogger.Info, l.level)
	})
}

func TestMapGormLogLevel(t *testing.T) {
	for level, want := range map[string]gormlogger.LogLevel{
		"silent": gormlogger.Silent,
		"error":  gormlogger.Error,
		"warn":   gormlogger.Warn,
		"info":   gormlogger.Info,
		"debug":  gormlogger.Info,
		"":       gormlogger.Warn,
		"loud":   gormlogger.Warn,
	} {
		assert.Equal(t, want, MapGormLogLevel(level), level)
	}
}

// =============================================================================
// Trace
// =============================================================================

func TestGormLogger_Trace(t *testing.T) {
	slow := time.Now().Add(-time.Second)
	tests := []struct {
		name    string
		level   string
		begin   time.Time
		err     error
		message string
		want    zapcore.Level
	}{
		{"query at info", "info", time.Now(), nil, "SQL", zapcore.DebugLevel},
		{"query hidden at warn", "warn", time.Now(), nil, "", 0},
		{"slow query", "warn", slow, nil, "Slow SQL", zapcore.WarnLevel},
		{"slow query hidden at error", "error", slow, nil, "", 0},
		{"driver error", "error", time.Now(), errors.New("connection reset"), "SQL error", zapcore.ErrorLevel},
		{"duplicate key", "error", time.Now(), gorm.ErrDuplicatedKey, "SQL constraint violation", zapcore.WarnLevel},
		{"locked row trigger", "error", time.Now(), fmt.Errorf("update: %w", gorm.ErrCheckConstraintViolated), "SQL constraint violation", zapcore.WarnLevel},
		{"not found is dropped", "info", time.Now(), gormlogger.ErrRecordNotFound, "", 0},
		{"silent", "silent", slow, errors.New("boom"), "", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, recorded := newObservedGorm(GormConfig{Level: tt.level})
			l.Trace(context.Background(), tt.begin, statement(`SELECT * FROM "invoices"`, 1), tt.err)

			if tt.message == "" {
				assert.Empty(t, recorded.All())
				return
			}
			logs := recorded.All()
			require.Len(t, logs, 1)
			assert.Equal(t, tt.message, logs[0].Message)
			assert.Equal(t, tt.want, logs[0].Level)
			assert.Equal(t, "select", logs[0].ContextMap()["op"])
		})
	}

	t.Run("not found can be logged", func(t *testing.T) {
		l, recorded := newObservedGorm(GormConfig{Level: "error", LogNotFound: true})
		l.Trace(context.Background(), time.Now(), statement(`SELECT * FROM "vendors"`, 0), gormlogger.ErrRecordNotFound)
		assert.Equal(t, 1, recorded.Len())
	})
}

func TestGormLogger_RequestScope(t *testing.T) {
	t.Run("slow query names the tenant", func(t *testing.T) {
		l, recorded := newObservedGorm(GormConfig{Level: "warn", SlowThreshold: time.Millisecond})
		l.Trace(scopedContext(), time.Now().Add(-time.Second),
			statement(`UPDATE "payments" SET "status"=$1 WHERE "tenant_id" = $2`, 1), nil)

		logs := recorded.All()
		require.Len(t, logs, 1)
		fields := logs[0].ContextMap()
		assert.Equal(t, "tenant-1", fields["tenant_id"])
		assert.Equal(t, "clerk-001", fields["actor_id"])
		assert.Equal(t, "corr-1", fields["correlation_id"])
		assert.Equal(t, "update", fields["op"])
		assert.Equal(t, time.Millisecond, fields["threshold"])
		assert.NotContains(t, fields, "request_id")
	})

	t.Run("gorm messages carry the scope", func(t *testing.T) {
		l, recorded := newObservedGorm(GormConfig{Level: "info"})
		l.Warn(scopedContext(), "prepared statement %s evicted", "s1")

		logs := recorded.All()
		require.Len(t, logs, 1)
		assert.Equal(t, "prepared statement s1 evicted", logs[0].Message)
		assert.Equal(t, "tenant-1", logs[0].ContextMap()["tenant_id"])
	})

	t.Run("levels gate the printf methods", func(t *testing.T) {
		l, recorded := newObservedGorm(GormConfig{Level: "error"})
		l.Info(context.Background(), "info")
		l.Warn(context.Background(), "warn")
		l.Error(context.Background(), "error")
		require.Equal(t, 1, recorded.Len())
		assert.Equal(t, zapcore.ErrorLevel, recorded.All()[0].Level)
	})
}

func TestGormLogger_LongStatements(t *testing.T) {
	l, recorded := newObservedGorm(GormConfig{Level: "info", MaxSQLLength: 16})
	sql := `INSERT INTO "audit_events" ` + strings.Repeat("(?),", 50)
	l.Trace(context.Background(), time.Now(), statement(sql, 50), nil)

	logs := recorded.All()
	require.Len(t, logs, 1)
	assert.Equal(t, sql[:16]+"...", logs[0].ContextMap()["sql"])
	assert.Equal(t, "insert", logs[0].ContextMap()["op"])
}

func TestStatementOp(t *testing.T) {
	assert.Equal(t, "select", statementOp(`  SELECT count(*) FROM "vendors"`))
	assert.Equal(t, "with", statementOp("WITH x AS (SELECT 1) SELECT * FROM x"))
	assert.Equal(t, "begin", statementOp("BEGIN"))
	assert.Equal(t, "", statementOp(""))
}
