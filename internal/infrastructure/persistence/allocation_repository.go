package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
)

// GormAllocationRepository implements AllocationRepository using GORM
type GormAllocationRepository struct {
	db *gorm.DB
}

// NewGormAllocationRepository creates a new GormAllocationRepository
func NewGormAllocationRepository(db *gorm.DB) *GormAllocationRepository {
	return &GormAllocationRepository{db: db}
}

// FindByID finds an allocation by its ID
func (r *GormAllocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*inventory.Allocation, error) {
	var allocation inventory.Allocation
	if err := r.db.WithContext(ctx).First(&allocation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &allocation, nil
}

// FindByOrderItem finds all allocations for an order item
func (r *GormAllocationRepository) FindByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]inventory.Allocation, error) {
	var allocations []inventory.Allocation
	if err := r.db.WithContext(ctx).
		Where("order_item_id = ?", orderItemID).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// FindByOrderItems finds allocations for a set of order items
func (r *GormAllocationRepository) FindByOrderItems(ctx context.Context, orderItemIDs []uuid.UUID) ([]inventory.Allocation, error) {
	if len(orderItemIDs) == 0 {
		return nil, nil
	}
	var allocations []inventory.Allocation
	if err := r.db.WithContext(ctx).
		Where("order_item_id IN ?", orderItemIDs).
		Order("created_at ASC").
		Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// FindByBatch finds all allocations against a batch
func (r *GormAllocationRepository) FindByBatch(ctx context.Context, batchID uuid.UUID, filter shared.Filter) ([]inventory.Allocation, error) {
	var allocations []inventory.Allocation
	query := applyFilter(
		r.db.WithContext(ctx).Model(&inventory.Allocation{}).
			Where("batch_id = ?", batchID),
		filter,
	)

	if err := query.Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

// Create inserts a new allocation row
func (r *GormAllocationRepository) Create(ctx context.Context, allocation *inventory.Allocation) error {
	return r.db.WithContext(ctx).Create(allocation).Error
}

// CreateBatch inserts multiple allocation rows
func (r *GormAllocationRepository) CreateBatch(ctx context.Context, allocations []*inventory.Allocation) error {
	if len(allocations) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(allocations).Error
}

// DeleteByOrderItem deletes all allocations for an order item and returns
// the deleted rows so the caller can release the ledger
func (r *GormAllocationRepository) DeleteByOrderItem(ctx context.Context, orderItemID uuid.UUID) ([]inventory.Allocation, error) {
	var deleted []inventory.Allocation
	if err := r.db.WithContext(ctx).
		Where("order_item_id = ?", orderItemID).
		Find(&deleted).Error; err != nil {
		return nil, err
	}
	if len(deleted) == 0 {
		return nil, nil
	}

	if err := r.db.WithContext(ctx).
		Delete(&inventory.Allocation{}, "order_item_id = ?", orderItemID).Error; err != nil {
		return nil, err
	}
	return deleted, nil
}

// SumByOrderItem sums the allocated quantity for an order item
func (r *GormAllocationRepository) SumByOrderItem(ctx context.Context, orderItemID uuid.UUID) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&inventory.Allocation{}).
		Select("COALESCE(SUM(allocated_quantity), 0) AS total").
		Where("order_item_id = ?", orderItemID).
		Scan(&result).Error
	if err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// Ensure GormAllocationRepository implements AllocationRepository
var _ inventory.AllocationRepository = (*GormAllocationRepository)(nil)
