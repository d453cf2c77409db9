package allocation

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/trade"
)

// AllocateItemRequest asks for stock to be allocated against one order item
type AllocateItemRequest struct {
	// OrderItemID identifies the demand line
	OrderItemID uuid.UUID `json:"order_item_id"`
	// Scopes restricts allocation to the given warehouses or locations.
	// Empty means any scope.
	Scopes []inventory.Scope `json:"scopes,omitempty"`
	// AttemptKey deduplicates retried requests. Empty disables the check.
	AttemptKey string `json:"attempt_key,omitempty"`
}

// AllocateItemResult reports the outcome of one allocation request. A
// shortfall is part of a successful result; the caller decides whether to
// retry later, source elsewhere, or accept partial fulfillment.
type AllocateItemResult struct {
	OrderItemID uuid.UUID                   `json:"order_item_id"`
	AttemptID   uuid.UUID                   `json:"attempt_id"`
	Requested   decimal.Decimal             `json:"requested"`
	Allocated   decimal.Decimal             `json:"allocated"`
	Shortfall   decimal.Decimal             `json:"shortfall"`
	Tuples      []inventory.AllocationTuple `json:"tuples"`
	ItemStatus  trade.ItemAllocationStatus  `json:"item_status"`
	OrderStatus trade.OrderSummaryStatus    `json:"order_status"`
	Attempts    int                         `json:"attempts"`
}

// ReleaseItemRequest asks for all stock allocated to an order item to be
// released (order cancellation, line removal)
type ReleaseItemRequest struct {
	OrderItemID uuid.UUID `json:"order_item_id"`
	Reason      string    `json:"reason,omitempty"`
}

// ReleaseItemResult reports how much stock a release returned to the pool
type ReleaseItemResult struct {
	OrderItemID uuid.UUID                  `json:"order_item_id"`
	Released    decimal.Decimal            `json:"released"`
	ItemStatus  trade.ItemAllocationStatus `json:"item_status"`
	OrderStatus trade.OrderSummaryStatus   `json:"order_status"`
}

// ItemAllocationsResult lists the allocation rows recorded for an order item
type ItemAllocationsResult struct {
	OrderItemID uuid.UUID              `json:"order_item_id"`
	Allocations []inventory.Allocation `json:"allocations"`
	Total       decimal.Decimal        `json:"total"`
}
