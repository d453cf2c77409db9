package allocation

import (
	"context"

	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/infrastructure/telemetry"
)

// MetricsHandler feeds allocation domain events into the telemetry
// instruments. It is subscribed on the event bus so metric recording never
// sits on the allocation transaction path.
type MetricsHandler struct {
	metrics *telemetry.AllocationMetrics
	logger  *zap.Logger
}

// NewMetricsHandler creates a metrics event handler
func NewMetricsHandler(metrics *telemetry.AllocationMetrics, logger *zap.Logger) *MetricsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetricsHandler{
		metrics: metrics,
		logger:  logger,
	}
}

// EventTypes returns the event types this handler consumes
func (h *MetricsHandler) EventTypes() []string {
	return []string{
		inventory.EventTypeAllocationRecorded,
		inventory.EventTypeAllocationReversed,
		inventory.EventTypeAllocationFailed,
	}
}

// Handle records metrics for one allocation event
func (h *MetricsHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	switch e := ev.(type) {
	case *inventory.AllocationRecordedEvent:
		outcome := telemetry.OutcomeFull
		if e.Allocated.IsZero() {
			outcome = telemetry.OutcomeNoStock
		} else if e.Shortfall.IsPositive() {
			outcome = telemetry.OutcomePartial
		}
		h.metrics.RecordOutcome(ctx, outcome)
		h.metrics.RecordReserved(ctx, e.Allocated)

	case *inventory.AllocationReversedEvent:
		h.metrics.RecordReleased(ctx, e.Released)

	case *inventory.AllocationFailedEvent:
		h.metrics.RecordOutcome(ctx, telemetry.OutcomeFailed)
		h.metrics.RecordTransactionAttempts(ctx, e.Attempts)

	default:
		h.logger.Debug("ignoring unexpected event type",
			zap.String("event_type", ev.EventType()),
		)
	}
	return nil
}

// Ensure MetricsHandler implements EventHandler
var _ shared.EventHandler = (*MetricsHandler)(nil)
