package inventory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// ScopeType identifies the kind of stock-keeping context a ledger entry
// belongs to
type ScopeType string

const (
	ScopeTypeWarehouse ScopeType = "WAREHOUSE"
	ScopeTypeLocation  ScopeType = "LOCATION"
)

// IsValid checks if the scope type is valid
func (t ScopeType) IsValid() bool {
	switch t {
	case ScopeTypeWarehouse, ScopeTypeLocation:
		return true
	}
	return false
}

// String returns the string representation
func (t ScopeType) String() string {
	return string(t)
}

// Scope is a warehouse or location context in which stock is tracked
type Scope struct {
	Type ScopeType `gorm:"column:scope_type;type:varchar(20);not null;uniqueIndex:idx_ledger_batch_scope,priority:2"`
	ID   uuid.UUID `gorm:"column:scope_id;type:uuid;not null;uniqueIndex:idx_ledger_batch_scope,priority:3"`
}

// NewWarehouseScope creates a warehouse scope
func NewWarehouseScope(warehouseID uuid.UUID) Scope {
	return Scope{Type: ScopeTypeWarehouse, ID: warehouseID}
}

// NewLocationScope creates a location scope
func NewLocationScope(locationID uuid.UUID) Scope {
	return Scope{Type: ScopeTypeLocation, ID: locationID}
}

// String returns a readable representation, e.g. "WAREHOUSE/1f3c..."
func (s Scope) String() string {
	return fmt.Sprintf("%s/%s", s.Type, s.ID)
}

// LedgerEntry is the single source of truth for available quantity of one
// batch in one scope. It is the aggregate root for reserve and release
// operations; allocation rows are a derived journal explaining why reserved
// quantity changed.
//
// Invariant: 0 <= ReservedQuantity <= TotalQuantity after every operation.
type LedgerEntry struct {
	shared.BaseAggregateRoot
	BatchID          uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_batch_scope,priority:1"`
	Scope            Scope           `gorm:"embedded"`
	TotalQuantity    decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReservedQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
}

// TableName returns the table name for GORM
func (LedgerEntry) TableName() string {
	return "ledger_entries"
}

// NewLedgerEntry creates a ledger entry for a batch-scope combination
func NewLedgerEntry(batchID uuid.UUID, scope Scope, totalQuantity decimal.Decimal) (*LedgerEntry, error) {
	if batchID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_BATCH", "Batch ID cannot be empty")
	}
	if !scope.Type.IsValid() || scope.ID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_SCOPE", "Scope must reference a warehouse or location")
	}
	if totalQuantity.IsNegative() {
		return nil, ErrInvalidQuantity
	}

	return &LedgerEntry{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		BatchID:           batchID,
		Scope:             scope,
		TotalQuantity:     totalQuantity,
		ReservedQuantity:  decimal.Zero,
	}, nil
}

// Available returns the quantity not yet reserved
func (e *LedgerEntry) Available() decimal.Decimal {
	return e.TotalQuantity.Sub(e.ReservedQuantity)
}

// CanReserve returns true if the requested quantity fits in the available
// quantity
func (e *LedgerEntry) CanReserve(qty decimal.Decimal) bool {
	return qty.GreaterThan(decimal.Zero) && qty.LessThanOrEqual(e.Available())
}

// Reserve increments the reserved quantity. Fails with ErrInvalidQuantity
// for non-positive quantities and ErrInsufficientStock when the request
// exceeds the available quantity.
func (e *LedgerEntry) Reserve(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	if qty.GreaterThan(e.Available()) {
		return ErrInsufficientStock
	}

	e.ReservedQuantity = e.ReservedQuantity.Add(qty)
	e.UpdatedAt = time.Now()
	e.IncrementVersion()

	e.AddDomainEvent(NewStockReservedEvent(e, qty))
	return nil
}

// Release decrements the reserved quantity. Fails with ErrInvalidQuantity
// for non-positive quantities and ErrOverRelease when the request exceeds
// the reserved quantity; over-release is a data integrity fault and must
// never be retried.
func (e *LedgerEntry) Release(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	if qty.GreaterThan(e.ReservedQuantity) {
		return ErrOverRelease
	}

	e.ReservedQuantity = e.ReservedQuantity.Sub(qty)
	e.UpdatedAt = time.Now()
	e.IncrementVersion()

	e.AddDomainEvent(NewStockReleasedEvent(e, qty))
	return nil
}

// AddStock increases the total quantity (receiving, returns)
func (e *LedgerEntry) AddStock(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	e.TotalQuantity = e.TotalQuantity.Add(qty)
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	return nil
}

// RemoveStock decreases the total quantity (shipment of reserved stock,
// write-off of unreserved stock). The remaining total must still cover the
// reserved quantity.
func (e *LedgerEntry) RemoveStock(qty decimal.Decimal) error {
	if qty.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidQuantity
	}
	remaining := e.TotalQuantity.Sub(qty)
	if remaining.LessThan(e.ReservedQuantity) {
		return shared.NewDomainError("STOCK_UNDERFLOW", "Removal would drop total below reserved quantity")
	}
	e.TotalQuantity = remaining
	e.UpdatedAt = time.Now()
	e.IncrementVersion()
	return nil
}

// CheckInvariant verifies 0 <= reserved <= total. Repositories call this
// before persisting as a last line of defense.
func (e *LedgerEntry) CheckInvariant() error {
	if e.ReservedQuantity.IsNegative() || e.ReservedQuantity.GreaterThan(e.TotalQuantity) {
		return shared.NewDomainError("LEDGER_INVARIANT_VIOLATED",
			fmt.Sprintf("reserved=%s total=%s on batch %s scope %s",
				e.ReservedQuantity, e.TotalQuantity, e.BatchID, e.Scope))
	}
	return nil
}

// IsDepleted returns true when nothing is left to reserve or ship
func (e *LedgerEntry) IsDepleted() bool {
	return e.TotalQuantity.IsZero()
}
