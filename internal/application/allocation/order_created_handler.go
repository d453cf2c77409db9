package allocation

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/trade"
)

// OrderCreatedHandler allocates stock for every item of a freshly created
// order. Failures are logged, not returned: a shortfall or lost retry
// leaves the item in a reportable status, and the next allocation attempt
// for the order can pick it up again.
type OrderCreatedHandler struct {
	service       *Service
	orderItemRepo trade.OrderItemRepository
	logger        *zap.Logger
}

// NewOrderCreatedHandler creates an order created event handler
func NewOrderCreatedHandler(service *Service, orderItemRepo trade.OrderItemRepository, logger *zap.Logger) *OrderCreatedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderCreatedHandler{
		service:       service,
		orderItemRepo: orderItemRepo,
		logger:        logger,
	}
}

// EventTypes returns the event types this handler consumes
func (h *OrderCreatedHandler) EventTypes() []string {
	return []string{trade.EventTypeOrderCreated}
}

// Handle allocates each pending item of the created order
func (h *OrderCreatedHandler) Handle(ctx context.Context, ev shared.DomainEvent) error {
	created, ok := ev.(*trade.OrderCreatedEvent)
	if !ok {
		return nil
	}

	items, err := h.orderItemRepo.FindByOrder(ctx, created.AggregateID())
	if err != nil {
		return fmt.Errorf("load items for order %s: %w", created.AggregateID(), err)
	}

	for _, item := range items {
		if item.Status != trade.ItemStatusPending {
			continue
		}

		// the event ID scopes the attempt key so a redelivered event
		// cannot double-allocate
		result, err := h.service.AllocateItem(ctx, AllocateItemRequest{
			OrderItemID: item.ID,
			AttemptKey:  fmt.Sprintf("%s:%s", created.EventID(), item.ID),
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateAttempt) {
				continue
			}
			h.logger.Error("allocation for created order item failed",
				zap.String("order_id", created.AggregateID().String()),
				zap.String("order_item_id", item.ID.String()),
				zap.Error(err),
			)
			continue
		}

		h.logger.Info("order item allocated",
			zap.String("order_item_id", item.ID.String()),
			zap.String("status", string(result.ItemStatus)),
			zap.String("allocated", result.Allocated.String()),
		)
	}
	return nil
}

// Ensure OrderCreatedHandler implements EventHandler
var _ shared.EventHandler = (*OrderCreatedHandler)(nil)
