package telemetry

import (
	"context"
	"runtime/pprof"
	"testing"

	"github.com/erp/finkernel/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartProfiler(t *testing.T) {
	t.Run("disabled profiler is a no-op", func(t *testing.T) {
		p, err := StartProfiler(config.TelemetryConfig{}, nil)
		require.NoError(t, err)
		assert.False(t, p.Enabled())
		assert.NoError(t, p.Stop())
		assert.NoError(t, p.Stop())
	})

	t.Run("requires a server address", func(t *testing.T) {
		_, err := StartProfiler(config.TelemetryConfig{ProfilingEnabled: true, ServiceName: "finkernel"}, nil)
		assert.Error(t, err)
	})
}

func TestWithProfilingLabels(t *testing.T) {
	var got map[string]string
	WithProfilingLabels(context.Background(), map[string]string{
		"Tenant-ID": "t-1",
		"action":    "approve",
		"empty":     "",
	}, func(ctx context.Context) {
		got = map[string]string{}
		pprof.ForLabels(ctx, func(k, v string) bool {
			got[k] = v
			return true
		})
	})
	assert.Equal(t, map[string]string{"tenant_id": "t-1", "action": "approve"}, got)

	called := false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
	assert.True(t, called)
}

func TestLabelPairs(t *testing.T) {
	assert.Equal(t, []string{"action", "post", "entity", "invoice"},
		labelPairs(map[string]string{"entity": "invoice", "action": "post"}))
	assert.Equal(t, "route__v1_invoices", sanitizeLabelKey(" Route /v1.invoices"))
}
