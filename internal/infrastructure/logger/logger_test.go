package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestConfigs(t *testing.T) {
	dev := DefaultConfig()
	assert.Equal(t, "console", dev.Format)
	assert.Equal(t, "info", dev.Level)

	prod := ProductionConfig()
	assert.Equal(t, "json", prod.Format)
	assert.Equal(t, dev.TimeFormat, prod.TimeFormat)
}

func TestNewForEnvironment(t *testing.T) {
	for _, env := range []string{"development", "production", "staging"} {
		t.Run(env, func(t *testing.T) {
			log, err := NewForEnvironment(env)
			require.NoError(t, err)
			assert.NotNil(t, log)
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"DEBUG", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"fatal", zapcore.FatalLevel},
		{"", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.level))
		})
	}
}

func TestNew_TeesExtraCores(t *testing.T) {
	extra, logs := observer.New(zapcore.InfoLevel)
	cfg := ProductionConfig()
	cfg.Output = filepath.Join(t.TempDir(), "kernel.log")

	log, err := New(cfg, extra)
	require.NoError(t, err)

	log.Info("mutation committed", zap.String("entity", "invoice"))
	require.NoError(t, log.Sync())

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "invoice", logs.All()[0].ContextMap()["entity"])

	raw, err := os.ReadFile(cfg.Output)
	require.NoError(t, err)
	var line map[string]any
	require.NoError(t, json.Unmarshal(raw, &line))
	assert.Equal(t, "mutation committed", line["msg"])
	assert.Equal(t, "info", line["level"])
}

func TestNewCore_LevelFilter(t *testing.T) {
	cfg := &Config{Level: "warn", Format: "json", Output: "stderr", TimeFormat: "2006-01-02"}
	core := NewCore(cfg)
	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))
}

func TestCreateWriter(t *testing.T) {
	for _, out := range []string{"stdout", "STDERR", ""} {
		assert.NotNil(t, createWriter(out))
	}
	assert.NotNil(t, createWriter(filepath.Join(t.TempDir(), "x.log")))
}
