package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultSlowQuery is the statement duration logged as slow when GormConfig
// leaves SlowThreshold unset.
const DefaultSlowQuery = 200 * time.Millisecond

// GormConfig configures the statement logger.
type GormConfig struct {
	// Level is one of silent, error, warn, info or debug.
	Level         string
	SlowThreshold time.Duration
	// MaxSQLLength cuts logged statements; zero keeps them whole.
	MaxSQLLength int
	// LogNotFound logs record-not-found lookups as errors. The kernel turns
	// them into NOT_FOUND responses, so they are dropped by default.
	LogNotFound bool
}

// GormLogger writes GORM output to zap. Every line carries the request
// scope (tenant, actor, correlation id) of the context that issued the
// statement. Constraint violations are logged as warnings because the
// repositories translate them into kernel errors.
type GormLogger struct {
	base        *zap.Logger
	level       gormlogger.LogLevel
	slow        time.Duration
	maxSQL      int
	logNotFound bool
}

var _ gormlogger.Interface = (*GormLogger)(nil)

// NewGormLogger creates a GORM logger backed by base
func NewGormLogger(base *zap.Logger, cfg GormConfig) *GormLogger {
	if base == nil {
		base = zap.NewNop()
	}
	slow := cfg.SlowThreshold
	if slow == 0 {
		slow = DefaultSlowQuery
	}
	return &GormLogger{
		base:        base.Named("gorm"),
		level:       MapGormLogLevel(cfg.Level),
		slow:        slow,
		maxSQL:      cfg.MaxSQLLength,
		logNotFound: cfg.LogNotFound,
	}
}

// LogMode implements gormlogger.Interface
func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	cp := *l
	cp.level = level
	return &cp
}

// Info implements gormlogger.Interface
func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Info {
		l.scoped(ctx).Sugar().Infof(msg, data...)
	}
}

// Warn implements gormlogger.Interface
func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Warn {
		l.scoped(ctx).Sugar().Warnf(msg, data...)
	}
}

// Error implements gormlogger.Interface
func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= gormlogger.Error {
		l.scoped(ctx).Sugar().Errorf(msg, data...)
	}
}

// Trace implements gormlogger.Interface
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)

	switch {
	case err != nil && l.level >= gormlogger.Error:
		if errors.Is(err, gormlogger.ErrRecordNotFound) && !l.logNotFound {
			return
		}
		fields := append(l.statement(fc, elapsed), zap.Error(err))
		if constraintViolation(err) {
			l.scoped(ctx).Warn("SQL constraint violation", fields...)
			return
		}
		l.scoped(ctx).Error("SQL error", fields...)

	case elapsed > l.slow && l.level >= gormlogger.Warn:
		fields := append(l.statement(fc, elapsed), zap.Duration("threshold", l.slow))
		l.scoped(ctx).Warn("Slow SQL", fields...)

	case l.level >= gormlogger.Info:
		l.scoped(ctx).Debug("SQL", l.statement(fc, elapsed)...)
	}
}

func (l *GormLogger) scoped(ctx context.Context) *zap.Logger {
	var fields []zap.Field
	for _, key := range requestFields {
		if v := getField(ctx, key); v != "" {
			fields = append(fields, zap.String(string(key), v))
		}
	}
	if len(fields) == 0 {
		return l.base
	}
	return l.base.With(fields...)
}

func (l *GormLogger) statement(fc func() (string, int64), elapsed time.Duration) []zap.Field {
	sql, rows := fc()
	if l.maxSQL > 0 && len(sql) > l.maxSQL {
		sql = sql[:l.maxSQL] + "..."
	}
	return []zap.Field{
		zap.String("op", statementOp(sql)),
		zap.Duration("elapsed", elapsed),
		zap.Int64("rows", rows),
		zap.String("sql", sql),
	}
}

// statementOp returns the leading SQL keyword in lower case.
func statementOp(sql string) string {
	sql = strings.TrimSpace(sql)
	if i := strings.IndexAny(sql, " \t\n("); i > 0 {
		sql = sql[:i]
	}
	return strings.ToLower(sql)
}

func constraintViolation(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated)
}

// MapGormLogLevel maps a configured level name to a GORM log level
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch level {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "warn":
		return gormlogger.Warn
	case "info", "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
