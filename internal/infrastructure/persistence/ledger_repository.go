package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
)

// GormLedgerRepository implements LedgerRepository using GORM
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// FindByID finds a ledger entry by its ID
func (r *GormLedgerRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.LedgerEntry, error) {
	var entry inventory.LedgerEntry
	if err := r.db.WithContext(ctx).First(&entry, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindByBatchAndScope finds the entry for a batch-scope combination
func (r *GormLedgerRepository) FindByBatchAndScope(ctx context.Context, batchID uuid.UUID, scope inventory.Scope) (*inventory.LedgerEntry, error) {
	var entry inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("batch_id = ? AND scope_type = ? AND scope_id = ?", batchID, scope.Type, scope.ID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindForUpdate finds the entry for a batch-scope combination with a
// row-level lock. Must run inside a transaction; the lock is held until
// commit or rollback.
func (r *GormLedgerRepository) FindForUpdate(ctx context.Context, batchID uuid.UUID, scope inventory.Scope) (*inventory.LedgerEntry, error) {
	var entry inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("batch_id = ? AND scope_type = ? AND scope_id = ?", batchID, scope.Type, scope.ID).
		First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &entry, nil
}

// FindByBatch finds all entries for a batch across scopes
func (r *GormLedgerRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	if err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindByScope finds all entries within a scope
func (r *GormLedgerRepository) FindByScope(ctx context.Context, scope inventory.Scope, filter shared.Filter) ([]inventory.LedgerEntry, error) {
	var entries []inventory.LedgerEntry
	query := applyFilter(
		r.db.WithContext(ctx).Model(&inventory.LedgerEntry{}).
			Where("scope_type = ? AND scope_id = ?", scope.Type, scope.ID),
		filter,
	)

	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// FindCandidates returns allocatable (batch, scope, available) rows for an
// item, ordered by expiry ascending with no-expiry batches last. Only
// active, unexpired batches with available quantity appear.
func (r *GormLedgerRepository) FindCandidates(ctx context.Context, itemID uuid.UUID, scopes []inventory.Scope) ([]inventory.BatchCandidate, error) {
	var batches []inventory.Batch
	if err := r.db.WithContext(ctx).
		Where("item_id = ? AND status = ?", itemID, inventory.BatchStatusActive).
		Where("expiry_date IS NULL OR expiry_date >= CURRENT_DATE").
		Order("expiry_date ASC NULLS LAST, created_at ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}
	if len(batches) == 0 {
		return nil, nil
	}

	batchByID := make(map[uuid.UUID]inventory.Batch, len(batches))
	batchIDs := make([]uuid.UUID, 0, len(batches))
	for _, b := range batches {
		batchByID[b.ID] = b
		batchIDs = append(batchIDs, b.ID)
	}

	query := r.db.WithContext(ctx).
		Where("batch_id IN ?", batchIDs).
		Where("total_quantity > reserved_quantity")
	if len(scopes) > 0 {
		pairs := r.db.Where("1 = 0")
		for _, s := range scopes {
			pairs = pairs.Or("scope_type = ? AND scope_id = ?", s.Type, s.ID)
		}
		query = query.Where(pairs)
	}

	var entries []inventory.LedgerEntry
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}

	// preserve the batch expiry ordering across entries
	entriesByBatch := make(map[uuid.UUID][]inventory.LedgerEntry, len(entries))
	for _, e := range entries {
		entriesByBatch[e.BatchID] = append(entriesByBatch[e.BatchID], e)
	}

	candidates := make([]inventory.BatchCandidate, 0, len(entries))
	for _, id := range batchIDs {
		for _, e := range entriesByBatch[id] {
			candidates = append(candidates, inventory.BatchCandidate{
				Batch:     batchByID[id],
				Scope:     e.Scope,
				Available: e.Available(),
			})
		}
	}
	return candidates, nil
}

// Save updates a ledger entry with optimistic locking on the version
// column. A stale version surfaces as ErrConcurrentModification so the
// allocation retry loop can re-read candidates.
func (r *GormLedgerRepository) Save(ctx context.Context, entry *inventory.LedgerEntry) error {
	if err := entry.CheckInvariant(); err != nil {
		return err
	}

	result := r.db.WithContext(ctx).
		Model(entry).
		Where("id = ? AND version = ?", entry.ID, entry.Version-1).
		Updates(map[string]interface{}{
			"total_quantity":    entry.TotalQuantity,
			"reserved_quantity": entry.ReservedQuantity,
			"version":           entry.Version,
			"updated_at":        entry.UpdatedAt,
		})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return inventory.ErrConcurrentModification
	}
	return nil
}

// Create inserts a new ledger entry, failing on duplicates
func (r *GormLedgerRepository) Create(ctx context.Context, entry *inventory.LedgerEntry) error {
	if err := entry.CheckInvariant(); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// SumAvailableByItem sums available quantity for an item across scopes
func (r *GormLedgerRepository) SumAvailableByItem(ctx context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Table("ledger_entries").
		Select("COALESCE(SUM(ledger_entries.total_quantity - ledger_entries.reserved_quantity), 0) AS total").
		Joins("JOIN batches ON batches.id = ledger_entries.batch_id").
		Where("batches.item_id = ?", itemID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Delete removes a ledger entry
func (r *GormLedgerRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&inventory.LedgerEntry{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormLedgerRepository implements LedgerRepository
var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)
