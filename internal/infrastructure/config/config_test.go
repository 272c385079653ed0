package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var configEnvKeys = []string{
	"ERP_APP_NAME",
	"ERP_APP_ENV",
	"ERP_APP_PORT",
	"ERP_DATABASE_HOST",
	"ERP_DATABASE_PORT",
	"ERP_DATABASE_USER",
	"ERP_DATABASE_PASSWORD",
	"ERP_DATABASE_DBNAME",
	"ERP_DATABASE_SSLMODE",
	"ERP_DATABASE_MAX_OPEN_CONNS",
	"ERP_DATABASE_MAX_IDLE_CONNS",
	"ERP_DATABASE_STATEMENT_TIMEOUT",
	"ERP_IDEMPOTENCY_ENABLED",
	"ERP_IDEMPOTENCY_BACKEND",
	"ERP_IDEMPOTENCY_TTL",
	"ERP_TELEMETRY_SAMPLING_RATIO",
	"ERP_TELEMETRY_DB_LOG_FULL_SQL",
	"ERP_AUDIT_ARCHIVE_ENABLED",
	"ERP_AUDIT_ARCHIVE_BUCKET",
}

// isolateEnv clears every config variable for the duration of the test.
func isolateEnv(t *testing.T) {
	t.Helper()
	original := make(map[string]string, len(configEnvKeys))
	for _, k := range configEnvKeys {
		original[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	t.Cleanup(func() {
		for k, v := range original {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	})
}

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		isolateEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "finkernel", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "finkernel", cfg.Database.DBName)
		assert.Equal(t, "disable", cfg.Database.SSLMode)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 5, cfg.Database.MaxIdleConns)
		assert.Equal(t, 30*time.Second, cfg.Database.StatementTimeout)
		assert.True(t, cfg.Idempotency.Enabled)
		assert.Equal(t, "redis", cfg.Idempotency.Backend)
		assert.Equal(t, 24*time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, "finkernel", cfg.Telemetry.ServiceName)
		assert.Equal(t, "audit", cfg.AuditArchive.Prefix)
	})

	t.Run("loads values from environment variables with ERP prefix", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_APP_NAME", "ledger-test")
		os.Setenv("ERP_APP_ENV", "testing")
		os.Setenv("ERP_APP_PORT", "9000")
		os.Setenv("ERP_DATABASE_HOST", "testdb.local")
		os.Setenv("ERP_DATABASE_PORT", "5433")
		os.Setenv("ERP_DATABASE_PASSWORD", "testpass")
		os.Setenv("ERP_DATABASE_STATEMENT_TIMEOUT", "5s")
		os.Setenv("ERP_IDEMPOTENCY_ENABLED", "false")
		os.Setenv("ERP_IDEMPOTENCY_BACKEND", "memory")
		os.Setenv("ERP_IDEMPOTENCY_TTL", "1h")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "ledger-test", cfg.App.Name)
		assert.Equal(t, "testing", cfg.App.Env)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, "testpass", cfg.Database.Password)
		assert.Equal(t, 5*time.Second, cfg.Database.StatementTimeout)
		assert.False(t, cfg.Idempotency.Enabled)
		assert.Equal(t, "memory", cfg.Idempotency.Backend)
		assert.Equal(t, time.Hour, cfg.Idempotency.TTL)
		assert.Equal(t, "ledger-test", cfg.Telemetry.ServiceName)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("validates MaxIdleConns cannot be negative", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_DATABASE_MAX_IDLE_CONNS", "-1")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "max_idle_conns cannot be negative")
	})

	t.Run("rejects unknown idempotency backend", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_IDEMPOTENCY_BACKEND", "memcached")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency.backend")
	})

	t.Run("rejects sampling ratio out of range", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})

	t.Run("audit archive requires a bucket", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_AUDIT_ARCHIVE_ENABLED", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audit_archive.bucket")

		os.Setenv("ERP_AUDIT_ARCHIVE_BUCKET", "finkernel-audit")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "finkernel-audit", cfg.AuditArchive.Bucket)
	})
}

func TestLoad_ProductionValidation(t *testing.T) {
	setValidProductionBase := func() {
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_PASSWORD", "secure-password")
		os.Setenv("ERP_DATABASE_SSLMODE", "require")
	}

	t.Run("requires database.password in production", func(t *testing.T) {
		isolateEnv(t)
		os.Setenv("ERP_APP_ENV", "production")
		os.Setenv("ERP_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password is required in production")
	})

	t.Run("requires SSL enabled in production", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()
		os.Setenv("ERP_DATABASE_SSLMODE", "disable")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.sslmode cannot be 'disable' in production")
	})

	t.Run("rejects in-memory idempotency in production", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()
		os.Setenv("ERP_IDEMPOTENCY_BACKEND", "memory")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "idempotency.backend=memory")
	})

	t.Run("rejects full SQL logging in production", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()
		os.Setenv("ERP_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})

	t.Run("passes validation with valid production config", func(t *testing.T) {
		isolateEnv(t)
		setValidProductionBase()

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "production", cfg.App.Env)
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("generates valid DSN", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "testuser",
			Password: "testpass",
			DBName:   "testdb",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "localhost:5432")
		assert.Contains(t, dsn, "testuser")
		assert.Contains(t, dsn, "/testdb")
		assert.Contains(t, dsn, "sslmode=disable")
		assert.NotContains(t, dsn, "statement_timeout")
	})

	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "user",
			Password: "pass@word#123",
			DBName:   "db",
			SSLMode:  "disable",
		}

		assert.Contains(t, cfg.DSN(), "pass%40word%23123")
	})

	t.Run("passes statement timeout as connection option", func(t *testing.T) {
		cfg := DatabaseConfig{
			Host:             "localhost",
			Port:             5432,
			User:             "user",
			DBName:           "db",
			SSLMode:          "disable",
			StatementTimeout: 2500 * time.Millisecond,
		}

		assert.Contains(t, cfg.DSN(), "options=-c+statement_timeout%3D2500")
		assert.NotContains(t, cfg.MigrateDSN(), "statement_timeout")
	})
}
