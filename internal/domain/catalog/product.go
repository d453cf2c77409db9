package catalog

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/shared"
)

// ProductStatus represents the lifecycle status of a product
type ProductStatus string

const (
	ProductStatusActive       ProductStatus = "ACTIVE"
	ProductStatusDiscontinued ProductStatus = "DISCONTINUED"
)

// Product is a sellable SKU tracked in batches
type Product struct {
	shared.BaseAggregateRoot
	SKU       string          `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name      string          `gorm:"type:varchar(200);not null"`
	Unit      string          `gorm:"type:varchar(20);not null;default:'EA'"`
	UnitPrice decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ShelfLife int             `gorm:"not null;default:0"` // days, 0 means no expiry tracking
	Status    ProductStatus   `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
}

// TableName returns the table name for GORM
func (Product) TableName() string {
	return "products"
}

// NewProduct creates a new product
func NewProduct(sku, name, unit string, unitPrice decimal.Decimal) (*Product, error) {
	if sku == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "SKU is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name is required")
	}
	if unit == "" {
		unit = "EA"
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	return &Product{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		SKU:               sku,
		Name:              name,
		Unit:              unit,
		UnitPrice:         unitPrice,
		Status:            ProductStatusActive,
	}, nil
}

// IsActive returns true if the product can appear on new orders
func (p *Product) IsActive() bool {
	return p.Status == ProductStatusActive
}

// Discontinue stops the product from appearing on new orders. Existing
// stock stays allocatable until consumed.
func (p *Product) Discontinue() {
	p.Status = ProductStatusDiscontinued
	p.UpdatedAt = time.Now()
	p.IncrementVersion()
}

// TracksExpiry returns true when batches of this product carry expiry dates
func (p *Product) TracksExpiry() bool {
	return p.ShelfLife > 0
}

// PackagingMaterial is a consumable used for packing orders. It shares the
// batch and ledger machinery with products.
type PackagingMaterial struct {
	shared.BaseEntity
	Code string `gorm:"type:varchar(100);not null;uniqueIndex"`
	Name string `gorm:"type:varchar(200);not null"`
	Unit string `gorm:"type:varchar(20);not null;default:'EA'"`
}

// TableName returns the table name for GORM
func (PackagingMaterial) TableName() string {
	return "packaging_materials"
}

// NewPackagingMaterial creates a new packaging material
func NewPackagingMaterial(code, name, unit string) (*PackagingMaterial, error) {
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Material code is required")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Material name is required")
	}
	if unit == "" {
		unit = "EA"
	}

	return &PackagingMaterial{
		BaseEntity: shared.NewBaseEntity(),
		Code:       code,
		Name:       name,
		Unit:       unit,
	}, nil
}
