package trade

import (
	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// Event type constants for the trade domain
const (
	EventTypeOrderCreated       = "trade.order_created"
	EventTypeOrderStatusChanged = "trade.order_status_changed"
	EventTypeItemStatusChanged  = "trade.item_status_changed"
)

// OrderCreatedEvent is raised when an order is created
type OrderCreatedEvent struct {
	shared.BaseDomainEvent
	OrderNumber string    `json:"order_number"`
	CustomerID  uuid.UUID `json:"customer_id"`
	ItemCount   int       `json:"item_count"`
}

// NewOrderCreatedEvent creates a new order created event
func NewOrderCreatedEvent(orderID uuid.UUID, orderNumber string, customerID uuid.UUID, itemCount int) *OrderCreatedEvent {
	return &OrderCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderCreated, "Order", orderID),
		OrderNumber:     orderNumber,
		CustomerID:      customerID,
		ItemCount:       itemCount,
	}
}

// OrderStatusChangedEvent is raised when the derived order status changes
type OrderStatusChangedEvent struct {
	shared.BaseDomainEvent
	OldStatus OrderSummaryStatus `json:"old_status"`
	NewStatus OrderSummaryStatus `json:"new_status"`
}

// NewOrderStatusChangedEvent creates a new order status changed event
func NewOrderStatusChangedEvent(orderID uuid.UUID, oldStatus, newStatus OrderSummaryStatus) *OrderStatusChangedEvent {
	return &OrderStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeOrderStatusChanged, "Order", orderID),
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}

// ItemStatusChangedEvent is raised when an order item's allocation status
// changes
type ItemStatusChangedEvent struct {
	shared.BaseDomainEvent
	OrderID   uuid.UUID            `json:"order_id"`
	OldStatus ItemAllocationStatus `json:"old_status"`
	NewStatus ItemAllocationStatus `json:"new_status"`
}

// NewItemStatusChangedEvent creates a new item status changed event
func NewItemStatusChangedEvent(itemID, orderID uuid.UUID, oldStatus, newStatus ItemAllocationStatus) *ItemStatusChangedEvent {
	return &ItemStatusChangedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeItemStatusChanged, "OrderItem", itemID),
		OrderID:         orderID,
		OldStatus:       oldStatus,
		NewStatus:       newStatus,
	}
}
