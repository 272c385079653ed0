package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrMap(attrs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		m[string(a.Key)] = a.Value.Emit()
	}
	return m
}

func TestStartSpan(t *testing.T) {
	recorder := setupSpanRecorder(t)
	id := uuid.New()

	ctx, span := StartSpan(context.Background(), "invoice", "approve",
		SpanAttrEntityID, id,
		SpanAttrVersion, 3,
		42, "ignored key",
	)
	assert.NotEmpty(t, TraceID(ctx))
	SetAttributes(span, SpanAttrToState, "approved")
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "invoice.approve", ended[0].Name())
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, id.String(), attrs[SpanAttrEntityID])
	assert.Equal(t, "3", attrs[SpanAttrVersion])
	assert.Equal(t, "approved", attrs[SpanAttrToState])
	assert.Len(t, attrs, 3)
}

func TestRecordError(t *testing.T) {
	recorder := setupSpanRecorder(t)

	_, span := StartSpan(context.Background(), "payment", "complete")
	RecordError(span, nil)
	RecordError(span, errors.New("insufficient funds"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "insufficient funds", ended[0].Status().Description)
	assert.Len(t, ended[0].Events(), 1)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}
