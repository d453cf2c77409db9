package inventory

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// Event type constants
const (
	EventTypeStockReserved       = "inventory.stock_reserved"
	EventTypeStockReleased       = "inventory.stock_released"
	EventTypeAllocationRecorded  = "inventory.allocation_recorded"
	EventTypeAllocationReversed  = "inventory.allocation_reversed"
	EventTypeAllocationFailed    = "inventory.allocation_failed"
	EventTypeAllocationShortfall = "inventory.allocation_shortfall"
)

// StockReservedEvent is emitted when reserved quantity increases on a ledger entry
type StockReservedEvent struct {
	shared.BaseDomainEvent
	BatchID          uuid.UUID       `json:"batch_id"`
	Scope            Scope           `json:"scope"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
	TotalQuantity    decimal.Decimal `json:"total_quantity"`
}

// NewStockReservedEvent creates a new StockReservedEvent
func NewStockReservedEvent(entry *LedgerEntry, qty decimal.Decimal) *StockReservedEvent {
	return &StockReservedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStockReserved, "LedgerEntry", entry.ID),
		BatchID:          entry.BatchID,
		Scope:            entry.Scope,
		Quantity:         qty,
		ReservedQuantity: entry.ReservedQuantity,
		TotalQuantity:    entry.TotalQuantity,
	}
}

// StockReleasedEvent is emitted when reserved quantity decreases on a ledger entry
type StockReleasedEvent struct {
	shared.BaseDomainEvent
	BatchID          uuid.UUID       `json:"batch_id"`
	Scope            Scope           `json:"scope"`
	Quantity         decimal.Decimal `json:"quantity"`
	ReservedQuantity decimal.Decimal `json:"reserved_quantity"`
}

// NewStockReleasedEvent creates a new StockReleasedEvent
func NewStockReleasedEvent(entry *LedgerEntry, qty decimal.Decimal) *StockReleasedEvent {
	return &StockReleasedEvent{
		BaseDomainEvent:  shared.NewBaseDomainEvent(EventTypeStockReleased, "LedgerEntry", entry.ID),
		BatchID:          entry.BatchID,
		Scope:            entry.Scope,
		Quantity:         qty,
		ReservedQuantity: entry.ReservedQuantity,
	}
}

// AllocationRecordedEvent is emitted when an order item's allocation attempt
// commits, listing every tuple written
type AllocationRecordedEvent struct {
	shared.BaseDomainEvent
	OrderItemID uuid.UUID         `json:"order_item_id"`
	AttemptID   uuid.UUID         `json:"attempt_id"`
	Tuples      []AllocationTuple `json:"tuples"`
	Allocated   decimal.Decimal   `json:"allocated"`
	Shortfall   decimal.Decimal   `json:"shortfall"`
}

// NewAllocationRecordedEvent creates a new AllocationRecordedEvent
func NewAllocationRecordedEvent(orderItemID, attemptID uuid.UUID, tuples []AllocationTuple, allocated, shortfall decimal.Decimal) *AllocationRecordedEvent {
	return &AllocationRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationRecorded, "OrderItem", orderItemID),
		OrderItemID:     orderItemID,
		AttemptID:       attemptID,
		Tuples:          tuples,
		Allocated:       allocated,
		Shortfall:       shortfall,
	}
}

// AllocationReversedEvent is emitted when an order item's allocations are
// released back to the ledger
type AllocationReversedEvent struct {
	shared.BaseDomainEvent
	OrderItemID uuid.UUID       `json:"order_item_id"`
	Released    decimal.Decimal `json:"released"`
	Reason      string          `json:"reason"`
}

// NewAllocationReversedEvent creates a new AllocationReversedEvent
func NewAllocationReversedEvent(orderItemID uuid.UUID, released decimal.Decimal, reason string) *AllocationReversedEvent {
	return &AllocationReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationReversed, "OrderItem", orderItemID),
		OrderItemID:     orderItemID,
		Released:        released,
		Reason:          reason,
	}
}

// AllocationFailedEvent is emitted when an allocation attempt exhausts its
// retries and the item is marked failed
type AllocationFailedEvent struct {
	shared.BaseDomainEvent
	OrderItemID uuid.UUID `json:"order_item_id"`
	AttemptID   uuid.UUID `json:"attempt_id"`
	Attempts    int       `json:"attempts"`
	Reason      string    `json:"reason"`
}

// NewAllocationFailedEvent creates a new AllocationFailedEvent
func NewAllocationFailedEvent(orderItemID, attemptID uuid.UUID, attempts int, reason string) *AllocationFailedEvent {
	return &AllocationFailedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationFailed, "OrderItem", orderItemID),
		OrderItemID:     orderItemID,
		AttemptID:       attemptID,
		Attempts:        attempts,
		Reason:          reason,
	}
}

// AllocationShortfallEvent is emitted when demand could only be partially met
type AllocationShortfallEvent struct {
	shared.BaseDomainEvent
	OrderItemID uuid.UUID       `json:"order_item_id"`
	Shortfall   decimal.Decimal `json:"shortfall"`
}

// NewAllocationShortfallEvent creates a new AllocationShortfallEvent
func NewAllocationShortfallEvent(orderItemID uuid.UUID, shortfall decimal.Decimal) *AllocationShortfallEvent {
	return &AllocationShortfallEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeAllocationShortfall, "OrderItem", orderItemID),
		OrderItemID:     orderItemID,
		Shortfall:       shortfall,
	}
}
