package telemetry

import (
	"context"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// AllocationMetrics tracks allocation attempt outcomes and stock movement.
// All methods are safe for concurrent use and never fail the caller.
type AllocationMetrics struct {
	logger *zap.Logger

	attemptsTotal     metric.Int64Counter
	shortfallTotal    metric.Int64Counter
	retriesHistogram  metric.Int64Histogram
	reservedQuantity  metric.Float64Counter
	releasedQuantity  metric.Float64Counter
}

// AllocationOutcome labels the terminal result of an allocation attempt
type AllocationOutcome string

const (
	OutcomeFull    AllocationOutcome = "full"
	OutcomePartial AllocationOutcome = "partial"
	OutcomeNoStock AllocationOutcome = "no_stock"
	OutcomeFailed  AllocationOutcome = "failed"
)

// NewAllocationMetrics creates the allocation instrument set on the given meter
func NewAllocationMetrics(meter metric.Meter, logger *zap.Logger) (*AllocationMetrics, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &AllocationMetrics{logger: logger}

	var err error
	m.attemptsTotal, err = meter.Int64Counter(
		"wms_allocation_attempts_total",
		metric.WithDescription("Total number of allocation attempts by outcome"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	m.shortfallTotal, err = meter.Int64Counter(
		"wms_allocation_shortfall_total",
		metric.WithDescription("Total number of attempts that ended with unmet quantity"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	m.retriesHistogram, err = meter.Int64Histogram(
		"wms_allocation_transaction_attempts",
		metric.WithDescription("Transaction attempts consumed per allocation request"),
		metric.WithUnit("{attempts}"),
	)
	if err != nil {
		return nil, err
	}

	m.reservedQuantity, err = meter.Float64Counter(
		"wms_stock_reserved_quantity",
		metric.WithDescription("Quantity reserved through allocations"),
		metric.WithUnit("{units}"),
	)
	if err != nil {
		return nil, err
	}

	m.releasedQuantity, err = meter.Float64Counter(
		"wms_stock_released_quantity",
		metric.WithDescription("Quantity released back through reversals"),
		metric.WithUnit("{units}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordOutcome records the terminal result of an allocation request
func (m *AllocationMetrics) RecordOutcome(ctx context.Context, outcome AllocationOutcome) {
	m.attemptsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(outcome)),
	))
	if outcome == OutcomePartial || outcome == OutcomeNoStock {
		m.shortfallTotal.Add(ctx, 1)
	}
}

// RecordTransactionAttempts records how many transaction attempts a request consumed
func (m *AllocationMetrics) RecordTransactionAttempts(ctx context.Context, attempts int) {
	m.retriesHistogram.Record(ctx, int64(attempts))
}

// RecordReserved records quantity reserved by a successful allocation
func (m *AllocationMetrics) RecordReserved(ctx context.Context, quantity decimal.Decimal) {
	f, _ := quantity.Float64()
	m.reservedQuantity.Add(ctx, f)
}

// RecordReleased records quantity returned by a reversal
func (m *AllocationMetrics) RecordReleased(ctx context.Context, quantity decimal.Decimal) {
	f, _ := quantity.Float64()
	m.releasedQuantity.Add(ctx, f)
}
