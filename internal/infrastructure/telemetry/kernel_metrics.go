package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// KernelMetrics counts kernel mutations by entity, action and outcome.
// A nil *KernelMetrics records nothing.
type KernelMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	mutationTotal       *Counter
	mutationDuration    *Histogram
	deniedTotal         *Counter
	approvedAmountTotal *Counter
}

// KernelMetricsConfig holds configuration for kernel metrics.
type KernelMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// MutationBuckets are bucket boundaries for kernel mutation latency (seconds).
var MutationBuckets = []float64{0.002, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// NewKernelMetrics creates a new KernelMetrics instance.
func NewKernelMetrics(cfg KernelMetricsConfig) (*KernelMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	km := &KernelMetrics{meter: cfg.Meter, logger: logger}

	var err error
	if km.mutationTotal, err = NewCounter(cfg.Meter,
		"finkernel_mutation_total",
		"Total number of attempted kernel mutations",
		"{mutations}",
	); err != nil {
		return nil, err
	}
	if km.mutationDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "finkernel_mutation_duration_seconds",
		Description: "Kernel mutation latency including the database transaction",
		Unit:        "s",
		Boundaries:  MutationBuckets,
	}); err != nil {
		return nil, err
	}
	if km.deniedTotal, err = NewCounter(cfg.Meter,
		"finkernel_mutation_denied_total",
		"Mutations refused by a kernel rule, by error code",
		"{mutations}",
	); err != nil {
		return nil, err
	}
	if km.approvedAmountTotal, err = NewCounter(cfg.Meter,
		"finkernel_approved_amount_total",
		"Approved amount in minor currency units",
		"{minor_units}",
	); err != nil {
		return nil, err
	}
	return km, nil
}

// Mutation outcome labels.
const (
	ResultSuccess = "success"
	ResultDenied  = "denied"
	ResultError   = "error"
)

// Mutation describes one finished kernel mutation.
type Mutation struct {
	TenantID uuid.UUID
	Entity   string
	Action   string
	Result   string
	// Code is the kernel error code of a denied or failed mutation.
	Code     string
	Duration time.Duration
}

// RecordMutation records the outcome and latency of a mutation.
func (km *KernelMetrics) RecordMutation(ctx context.Context, m Mutation) {
	if km == nil {
		return
	}
	attrs := []attribute.KeyValue{
		AttrTenantID.String(m.TenantID.String()),
		AttrEntity.String(m.Entity),
		AttrAction.String(m.Action),
		AttrResult.String(m.Result),
	}
	km.mutationTotal.Inc(ctx, attrs...)
	km.mutationDuration.RecordDuration(ctx, m.Duration, attrs[1:]...)
	if m.Result == ResultDenied {
		km.deniedTotal.Inc(ctx,
			AttrEntity.String(m.Entity),
			AttrAction.String(m.Action),
			AttrErrorCode.String(m.Code),
		)
	}
}

// RecordApprovedAmount adds a fully approved amount. Amounts are converted to
// minor units with two decimals.
func (km *KernelMetrics) RecordApprovedAmount(ctx context.Context, tenantID uuid.UUID, entity string, amount decimal.Decimal, currency string) {
	if km == nil {
		return
	}
	km.approvedAmountTotal.Add(ctx, amount.Shift(2).IntPart(),
		AttrTenantID.String(tenantID.String()),
		AttrEntity.String(entity),
		AttrCurrency.String(currency),
	)
}

// =============================================================================
// Error Types
// =============================================================================

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewKernelMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
