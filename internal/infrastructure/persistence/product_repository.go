package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/wms/backend/internal/domain/catalog"
	"github.com/wms/backend/internal/domain/shared"
)

// GormProductRepository implements ProductRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindBySKU finds a product by its SKU
func (r *GormProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	var product catalog.Product
	if err := r.db.WithContext(ctx).
		Where("sku = ?", sku).
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

// FindAll finds products with pagination. The search term matches SKU and
// name.
func (r *GormProductRepository) FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[catalog.Product], error) {
	base := r.db.WithContext(ctx).Model(&catalog.Product{})
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		base = base.Where("sku ILIKE ? OR name ILIKE ?", pattern, pattern)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}

	var products []catalog.Product
	if err := applyFilter(base, filter).Find(&products).Error; err != nil {
		return nil, err
	}

	page := shared.NewPaginated(products, total, filter.Page, filter.PageSize)
	return &page, nil
}

// Create inserts a product
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates a product
func (r *GormProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	return r.db.WithContext(ctx).Save(product).Error
}

// GormPackagingMaterialRepository implements PackagingMaterialRepository using GORM
type GormPackagingMaterialRepository struct {
	db *gorm.DB
}

// NewGormPackagingMaterialRepository creates a new GormPackagingMaterialRepository
func NewGormPackagingMaterialRepository(db *gorm.DB) *GormPackagingMaterialRepository {
	return &GormPackagingMaterialRepository{db: db}
}

// FindByID finds a packaging material by its ID
func (r *GormPackagingMaterialRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.PackagingMaterial, error) {
	var material catalog.PackagingMaterial
	if err := r.db.WithContext(ctx).First(&material, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}

// FindByCode finds a packaging material by its code
func (r *GormPackagingMaterialRepository) FindByCode(ctx context.Context, code string) (*catalog.PackagingMaterial, error) {
	var material catalog.PackagingMaterial
	if err := r.db.WithContext(ctx).
		Where("code = ?", code).
		First(&material).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &material, nil
}

// Create inserts a packaging material
func (r *GormPackagingMaterialRepository) Create(ctx context.Context, material *catalog.PackagingMaterial) error {
	if err := r.db.WithContext(ctx).Create(material).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return shared.ErrAlreadyExists
		}
		return err
	}
	return nil
}

// Save updates a packaging material
func (r *GormPackagingMaterialRepository) Save(ctx context.Context, material *catalog.PackagingMaterial) error {
	return r.db.WithContext(ctx).Save(material).Error
}

// Ensure the repositories implement their interfaces
var (
	_ catalog.ProductRepository           = (*GormProductRepository)(nil)
	_ catalog.PackagingMaterialRepository = (*GormPackagingMaterialRepository)(nil)
)
