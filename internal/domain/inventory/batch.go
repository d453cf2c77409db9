package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// BatchKind discriminates what a batch holds. Product batches and packaging
// material batches share one table and one allocation path; the kind tag
// replaces ad hoc field-presence checks.
type BatchKind string

const (
	BatchKindProduct           BatchKind = "PRODUCT"
	BatchKindPackagingMaterial BatchKind = "PACKAGING_MATERIAL"
)

// IsValid checks if the kind is a valid BatchKind
func (k BatchKind) IsValid() bool {
	switch k {
	case BatchKindProduct, BatchKindPackagingMaterial:
		return true
	}
	return false
}

// String returns the string representation
func (k BatchKind) String() string {
	return string(k)
}

// BatchStatus represents the lifecycle status of a batch
type BatchStatus string

const (
	BatchStatusActive   BatchStatus = "ACTIVE"
	BatchStatusInactive BatchStatus = "INACTIVE"
	BatchStatusDepleted BatchStatus = "DEPLETED"
)

// IsValid checks if the status is a valid BatchStatus
func (s BatchStatus) IsValid() bool {
	switch s {
	case BatchStatusActive, BatchStatusInactive, BatchStatusDepleted:
		return true
	}
	return false
}

// String returns the string representation
func (s BatchStatus) String() string {
	return string(s)
}

// Batch represents a lot of product or packaging material with manufacture
// and expiry metadata. Everything except Status is immutable once created;
// quantity movements are tracked on the ledger, never on the batch itself.
type Batch struct {
	shared.BaseEntity
	BatchNumber     string          `gorm:"type:varchar(100);not null;index"`
	Kind            BatchKind       `gorm:"type:varchar(30);not null;index"`
	ItemID          uuid.UUID       `gorm:"type:uuid;not null;index"` // product or packaging material, per Kind
	ManufactureDate *time.Time      `gorm:"type:date"`
	ExpiryDate      *time.Time      `gorm:"type:date;index"`
	InitialQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Status          BatchStatus     `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
}

// TableName returns the table name for GORM
func (Batch) TableName() string {
	return "batches"
}

// NewBatch creates a new batch of the given kind
func NewBatch(
	kind BatchKind,
	itemID uuid.UUID,
	batchNumber string,
	manufactureDate, expiryDate *time.Time,
	initialQuantity decimal.Decimal,
) (*Batch, error) {
	if !kind.IsValid() {
		return nil, shared.NewDomainError("INVALID_KIND", "Unknown batch kind")
	}
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}
	if batchNumber == "" {
		return nil, shared.NewDomainError("INVALID_BATCH_NUMBER", "Batch number is required")
	}
	if initialQuantity.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidQuantity
	}
	if manufactureDate != nil && expiryDate != nil && expiryDate.Before(*manufactureDate) {
		return nil, shared.NewDomainError("INVALID_DATES", "Expiry date cannot precede manufacture date")
	}

	return &Batch{
		BaseEntity:      shared.NewBaseEntity(),
		BatchNumber:     batchNumber,
		Kind:            kind,
		ItemID:          itemID,
		ManufactureDate: manufactureDate,
		ExpiryDate:      expiryDate,
		InitialQuantity: initialQuantity,
		Status:          BatchStatusActive,
	}, nil
}

// NewProductBatch creates a batch holding a product SKU
func NewProductBatch(productID uuid.UUID, batchNumber string, manufactureDate, expiryDate *time.Time, qty decimal.Decimal) (*Batch, error) {
	return NewBatch(BatchKindProduct, productID, batchNumber, manufactureDate, expiryDate, qty)
}

// NewPackagingMaterialBatch creates a batch holding packaging material
func NewPackagingMaterialBatch(materialID uuid.UUID, batchNumber string, manufactureDate, expiryDate *time.Time, qty decimal.Decimal) (*Batch, error) {
	return NewBatch(BatchKindPackagingMaterial, materialID, batchNumber, manufactureDate, expiryDate, qty)
}

// IsExpired returns true if the batch has expired
func (b *Batch) IsExpired() bool {
	return b.IsExpiredAt(time.Now())
}

// IsExpiredAt returns true if the batch is expired relative to the reference time
func (b *Batch) IsExpiredAt(ref time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	return b.ExpiryDate.Before(ref)
}

// IsAllocatable returns true if the batch may participate in allocation:
// active status and not expired
func (b *Batch) IsAllocatable() bool {
	return b.Status == BatchStatusActive && !b.IsExpired()
}

// Deactivate takes the batch out of allocation (quality hold, recall)
func (b *Batch) Deactivate() error {
	if b.Status == BatchStatusDepleted {
		return shared.ErrInvalidState
	}
	b.Status = BatchStatusInactive
	b.UpdatedAt = time.Now()
	return nil
}

// Activate returns an inactive batch to allocation
func (b *Batch) Activate() error {
	if b.Status == BatchStatusDepleted {
		return shared.ErrInvalidState
	}
	b.Status = BatchStatusActive
	b.UpdatedAt = time.Now()
	return nil
}

// MarkDepleted marks a batch whose ledger quantities have all been consumed
func (b *Batch) MarkDepleted() {
	b.Status = BatchStatusDepleted
	b.UpdatedAt = time.Now()
}

// DaysUntilExpiry returns the number of days until expiry, -1 if no expiry date
func (b *Batch) DaysUntilExpiry() int {
	if b.ExpiryDate == nil {
		return -1
	}
	return int(time.Until(*b.ExpiryDate).Hours() / 24)
}
