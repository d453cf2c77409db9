package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// LedgerRepository defines persistence for ledger entries.
//
// Reserve and release flows MUST use FindForUpdate inside a transaction so
// the row is locked until commit; plain Find methods are for reads that
// tolerate staleness (listing, candidate pre-selection).
type LedgerRepository interface {
	// FindByID finds a ledger entry by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*LedgerEntry, error)

	// FindByBatchAndScope finds the entry for a batch-scope combination
	FindByBatchAndScope(ctx context.Context, batchID uuid.UUID, scope Scope) (*LedgerEntry, error)

	// FindForUpdate finds the entry for a batch-scope combination with a
	// row-level lock (SELECT ... FOR UPDATE). Must be called inside a
	// transaction scope.
	FindForUpdate(ctx context.Context, batchID uuid.UUID, scope Scope) (*LedgerEntry, error)

	// FindByBatch finds all entries for a batch across scopes
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]LedgerEntry, error)

	// FindByScope finds all entries within a scope
	FindByScope(ctx context.Context, scope Scope, filter shared.Filter) ([]LedgerEntry, error)

	// FindCandidates returns allocatable (batch, scope, available) rows for
	// an item across the given scopes, ordered by expiry ascending
	FindCandidates(ctx context.Context, itemID uuid.UUID, scopes []Scope) ([]BatchCandidate, error)

	// Save creates or updates a ledger entry
	Save(ctx context.Context, entry *LedgerEntry) error

	// Create inserts a new ledger entry, failing on duplicates
	Create(ctx context.Context, entry *LedgerEntry) error

	// SumAvailableByItem sums available quantity for an item across scopes
	SumAvailableByItem(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error)

	// Delete removes a ledger entry
	Delete(ctx context.Context, id uuid.UUID) error
}

// AllocationRepository defines persistence for allocation records.
// Rows are insert-only during recording; reversal deletes them.
type AllocationRepository interface {
	// FindByID finds an allocation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Allocation, error)

	// FindByOrderItem finds all allocations for an order item
	FindByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]Allocation, error)

	// FindByOrderItems finds allocations for a set of order items
	FindByOrderItems(ctx context.Context, orderItemIDs []uuid.UUID) ([]Allocation, error)

	// FindByBatch finds all allocations against a batch
	FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) ([]Allocation, error)

	// Create inserts a new allocation row
	Create(ctx context.Context, allocation *Allocation) error

	// CreateBatch inserts multiple allocation rows
	CreateBatch(ctx context.Context, allocations []*Allocation) error

	// DeleteByOrderItem deletes all allocations for an order item and
	// returns the deleted rows so the caller can release the ledger
	DeleteByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]Allocation, error)

	// SumByOrderItem sums the allocated quantity for an order item
	SumByOrderItem(ctx context.Context, orderItemID uuid.UUID) (decimal.Decimal, error)
}

// BatchRepository defines persistence for batches
type BatchRepository interface {
	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Batch, error)

	// FindByItem finds all batches for a product or packaging material
	FindByItem(ctx context.Context, itemID uuid.UUID, filter shared.Filter) ([]Batch, error)

	// FindByBatchNumber finds a batch by item and batch number
	FindByBatchNumber(ctx context.Context, itemID uuid.UUID, batchNumber string) (*Batch, error)

	// FindExpiringSoon finds active batches expiring within the given days
	FindExpiringSoon(ctx context.Context, withinDays int, filter shared.Filter) ([]Batch, error)

	// Create inserts a new batch
	Create(ctx context.Context, batch *Batch) error

	// Save updates a batch (status only; other fields are immutable)
	Save(ctx context.Context, batch *Batch) error

	// CountByItem counts batches for an item
	CountByItem(ctx context.Context, itemID uuid.UUID) (int64, error)
}
