package trade

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// ItemAllocationStatus represents the allocation state of a single order item
type ItemAllocationStatus string

const (
	ItemStatusPending            ItemAllocationStatus = "PENDING"
	ItemStatusPartiallyAllocated ItemAllocationStatus = "PARTIALLY_ALLOCATED"
	ItemStatusFullyAllocated     ItemAllocationStatus = "FULLY_ALLOCATED"
	ItemStatusAllocationFailed   ItemAllocationStatus = "ALLOCATION_FAILED"
)

// IsValid checks if the status is a valid ItemAllocationStatus
func (s ItemAllocationStatus) IsValid() bool {
	switch s {
	case ItemStatusPending, ItemStatusPartiallyAllocated, ItemStatusFullyAllocated, ItemStatusAllocationFailed:
		return true
	}
	return false
}

// String returns the string representation
func (s ItemAllocationStatus) String() string {
	return string(s)
}

// OrderItem is a demand for a quantity of a product SKU or packaging
// material, belonging to an order
type OrderItem struct {
	shared.BaseEntity
	OrderID           uuid.UUID            `gorm:"type:uuid;not null;index"`
	ItemID            uuid.UUID            `gorm:"type:uuid;not null;index"` // product or packaging material
	RequestedQuantity decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	AllocatedQuantity decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	Status            ItemAllocationStatus `gorm:"type:varchar(30);not null;default:'PENDING'"`
}

// TableName returns the table name for GORM
func (OrderItem) TableName() string {
	return "order_items"
}

// NewOrderItem creates a new order item
func NewOrderItem(orderID, itemID uuid.UUID, requested decimal.Decimal) (*OrderItem, error) {
	if orderID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER", "Order ID cannot be empty")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	return &OrderItem{
		BaseEntity:        shared.NewBaseEntity(),
		OrderID:           orderID,
		ItemID:            itemID,
		RequestedQuantity: requested,
		AllocatedQuantity: decimal.Zero,
		Status:            ItemStatusPending,
	}, nil
}

// Outstanding returns the unallocated portion of the demand
func (i *OrderItem) Outstanding() decimal.Decimal {
	outstanding := i.RequestedQuantity.Sub(i.AllocatedQuantity)
	if outstanding.IsNegative() {
		return decimal.Zero
	}
	return outstanding
}

// RecordAllocation adds the allocated quantity and derives the new status.
// The allocated total never exceeds the requested quantity.
func (i *OrderItem) RecordAllocation(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Allocated quantity must be positive")
	}
	newTotal := i.AllocatedQuantity.Add(qty)
	if newTotal.GreaterThan(i.RequestedQuantity) {
		return shared.NewDomainError("OVER_ALLOCATION",
			fmt.Sprintf("allocated %s would exceed requested %s", newTotal, i.RequestedQuantity))
	}

	i.AllocatedQuantity = newTotal
	i.Status = i.deriveStatus()
	i.UpdatedAt = time.Now()
	return nil
}

// ReverseAllocation removes a previously allocated quantity and rederives
// the status
func (i *OrderItem) ReverseAllocation(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return shared.NewDomainError("INVALID_QUANTITY", "Released quantity must be positive")
	}
	if qty.GreaterThan(i.AllocatedQuantity) {
		return shared.NewDomainError("OVER_RELEASE",
			fmt.Sprintf("release %s exceeds allocated %s", qty, i.AllocatedQuantity))
	}

	i.AllocatedQuantity = i.AllocatedQuantity.Sub(qty)
	i.Status = i.deriveStatus()
	i.UpdatedAt = time.Now()
	return nil
}

// MarkAllocationFailed marks the item failed after a terminal allocation
// error. Only items with nothing allocated can be marked failed; a
// partially allocated item stays partially allocated.
func (i *OrderItem) MarkAllocationFailed() error {
	if i.AllocatedQuantity.GreaterThan(decimal.Zero) {
		return shared.ErrInvalidState
	}
	i.Status = ItemStatusAllocationFailed
	i.UpdatedAt = time.Now()
	return nil
}

// deriveStatus maps the allocated/requested ratio onto a status
func (i *OrderItem) deriveStatus() ItemAllocationStatus {
	switch {
	case i.AllocatedQuantity.IsZero():
		return ItemStatusPending
	case i.AllocatedQuantity.GreaterThanOrEqual(i.RequestedQuantity):
		return ItemStatusFullyAllocated
	default:
		return ItemStatusPartiallyAllocated
	}
}

// IsFullyAllocated returns true when the demand is completely covered
func (i *OrderItem) IsFullyAllocated() bool {
	return i.Status == ItemStatusFullyAllocated
}

// Order aggregates order items. Its allocation status is always derived
// from the items via the status aggregator, never set directly.
type Order struct {
	shared.BaseAggregateRoot
	OrderNumber string             `gorm:"type:varchar(50);not null;uniqueIndex"`
	CustomerID  uuid.UUID          `gorm:"type:uuid;not null;index"`
	Status      OrderSummaryStatus `gorm:"type:varchar(30);not null;default:'PENDING_ALLOCATION'"`

	Items []OrderItem `gorm:"foreignKey:OrderID;references:ID"`
}

// TableName returns the table name for GORM
func (Order) TableName() string {
	return "orders"
}

// NewOrder creates a new order
func NewOrder(orderNumber string, customerID uuid.UUID) (*Order, error) {
	if orderNumber == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_NUMBER", "Order number is required")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}

	return &Order{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		OrderNumber:       orderNumber,
		CustomerID:        customerID,
		Status:            OrderStatusPendingAllocation,
		Items:             make([]OrderItem, 0),
	}, nil
}

// AddItem adds a demand line to the order
func (o *Order) AddItem(itemID uuid.UUID, requested decimal.Decimal) (*OrderItem, error) {
	item, err := NewOrderItem(o.ID, itemID, requested)
	if err != nil {
		return nil, err
	}
	o.Items = append(o.Items, *item)
	o.UpdatedAt = time.Now()
	return item, nil
}

// RefreshStatus rederives the order status from its items
func (o *Order) RefreshStatus() {
	statuses := make([]ItemAllocationStatus, len(o.Items))
	for idx, item := range o.Items {
		statuses[idx] = item.Status
	}
	o.Status = SummarizeAllocation(statuses)
	o.UpdatedAt = time.Now()
	o.IncrementVersion()
}
