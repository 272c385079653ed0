package logger

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func bufferLogger() (*zap.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewCore(encoder, zapcore.AddSync(&buf), zapcore.DebugLevel)
	return zap.New(core), &buf
}

func TestFromContext(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		base, _ := bufferLogger()
		ctx := WithContext(context.Background(), base)
		assert.Same(t, base, FromContext(ctx))
	})

	t.Run("falls back to nop", func(t *testing.T) {
		ctx := context.WithValue(context.Background(), LoggerKey, "not a logger")
		assert.NotPanics(t, func() { FromContext(ctx).Info("test") })
	})
}

func TestRequestScopeFields(t *testing.T) {
	base, _ := bufferLogger()
	ctx := context.Background()

	ctx, _ = WithRequestID(ctx, base, "req-1")
	ctx, _ = WithTenantID(ctx, base, "tenant-1")
	ctx, _ = WithActorID(ctx, base, "user-001")
	ctx, _ = WithCorrelationID(ctx, base, "corr-1")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Equal(t, "user-001", GetActorID(ctx))
	assert.Equal(t, "corr-1", GetCorrelationID(ctx))

	t.Run("later value overrides", func(t *testing.T) {
		ctx2, _ := WithActorID(ctx, base, "user-002")
		assert.Equal(t, "user-002", GetActorID(ctx2))
		assert.Equal(t, "user-001", GetActorID(ctx))
	})

	t.Run("missing values are empty", func(t *testing.T) {
		assert.Empty(t, GetActorID(context.Background()))
		assert.Empty(t, GetCorrelationID(context.Background()))
	})
}

func TestWithRequestScope(t *testing.T) {
	base, buf := bufferLogger()
	ctx, log := WithRequestScope(context.Background(), base, "tenant-9", "user-9", "")

	assert.Equal(t, "tenant-9", GetTenantID(ctx))
	assert.Equal(t, "user-9", GetActorID(ctx))
	assert.Empty(t, GetCorrelationID(ctx))

	log.Info("scoped")
	assert.Contains(t, buf.String(), `"tenant_id":"tenant-9"`)
	assert.Contains(t, buf.String(), `"actor_id":"user-9"`)
	assert.NotContains(t, buf.String(), "correlation_id")
}

// =============================================================================
// Trace correlation
// =============================================================================

func TestTraceIDs_NoSpan(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, GetSpanID(ctx))

	base := zap.NewNop()
	assert.Equal(t, base, WithTraceContext(ctx, base))
}

func TestTraceIDs_NoopSpan(t *testing.T) {
	ctx, span := noop.NewTracerProvider().Tracer("test").Start(context.Background(), "span")
	defer span.End()

	// noop spans carry an invalid span context
	assert.Empty(t, GetTraceID(ctx))
	assert.NotNil(t, WithTraceContext(ctx, zap.NewNop()))
}

// =============================================================================
// ContextLogger
// =============================================================================

func TestContextLogger_EnrichesWithRequestFields(t *testing.T) {
	base, buf := bufferLogger()

	ctx := context.Background()
	ctx = context.WithValue(ctx, RequestIDKey, "req-aaa")
	ctx = context.WithValue(ctx, TenantIDKey, "tenant-bbb")
	ctx = context.WithValue(ctx, ActorIDKey, "user-ccc")
	ctx = context.WithValue(ctx, CorrelationIDKey, "corr-ddd")

	WithLogger(ctx, base).Info("test message", zap.String("extra_field", "extra_value"))

	output := buf.String()
	assert.Contains(t, output, `"request_id":"req-aaa"`)
	assert.Contains(t, output, `"tenant_id":"tenant-bbb"`)
	assert.Contains(t, output, `"actor_id":"user-ccc"`)
	assert.Contains(t, output, `"correlation_id":"corr-ddd"`)
	assert.Contains(t, output, `"extra_field":"extra_value"`)
}

func TestContextLogger_With(t *testing.T) {
	base, buf := bufferLogger()
	cl := L(WithContext(context.Background(), base))

	child := cl.With(zap.String("component", "guard"))
	require.NotNil(t, child)
	child.Warn("rejected")

	assert.Contains(t, buf.String(), `"component":"guard"`)
	assert.Contains(t, buf.String(), `"level":"warn"`)
}

func TestContextLogger_NilLogger(t *testing.T) {
	cl := &ContextLogger{ctx: context.Background()}
	assert.NotPanics(t, func() {
		cl.Debug("d")
		cl.Info("i")
		cl.Error("e")
		_ = cl.Zap()
	})
}
