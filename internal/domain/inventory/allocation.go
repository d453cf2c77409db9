package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// Allocation links one order item to one batch in one scope with the
// quantity committed. Allocations are append-mostly: the quantity is never
// mutated in place. Reversing an allocation deletes the row and releases
// the ledger within the same transaction, so history is either present or
// gone, never silently adjusted.
type Allocation struct {
	shared.BaseEntity
	OrderItemID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	BatchID           uuid.UUID       `gorm:"type:uuid;not null;index"`
	Scope             Scope           `gorm:"embedded"`
	AllocatedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	AttemptID         uuid.UUID       `gorm:"type:uuid;not null;index"` // groups rows written by one allocation attempt
}

// TableName returns the table name for GORM
func (Allocation) TableName() string {
	return "allocations"
}

// NewAllocation creates an allocation record
func NewAllocation(orderItemID, batchID uuid.UUID, scope Scope, qty decimal.Decimal, attemptID uuid.UUID) (*Allocation, error) {
	if orderItemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER_ITEM", "Order item ID cannot be empty")
	}
	if batchID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BATCH", "Batch ID cannot be empty")
	}
	if !scope.Type.IsValid() || scope.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SCOPE", "Scope must reference a warehouse or location")
	}
	if qty.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidQuantity
	}
	if attemptID == uuid.Nil {
		attemptID = uuid.New()
	}

	return &Allocation{
		BaseEntity:        shared.NewBaseEntity(),
		OrderItemID:       orderItemID,
		BatchID:           batchID,
		Scope:             scope,
		AllocatedQuantity: qty,
		AttemptID:         attemptID,
	}, nil
}

// SumAllocated sums the allocated quantity across a set of allocations
func SumAllocated(allocations []Allocation) decimal.Decimal {
	total := decimal.Zero
	for _, a := range allocations {
		total = total.Add(a.AllocatedQuantity)
	}
	return total
}

// AgeOf returns how long ago the allocation was recorded
func (a *Allocation) AgeOf(now time.Time) time.Duration {
	return now.Sub(a.CreatedAt)
}
