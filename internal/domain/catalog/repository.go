package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// ProductRepository defines persistence operations for products
type ProductRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Product, error)
	FindBySKU(ctx context.Context, sku string) (*Product, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[Product], error)
	Create(ctx context.Context, product *Product) error
	Save(ctx context.Context, product *Product) error
}

// PackagingMaterialRepository defines persistence operations for packaging
// materials
type PackagingMaterialRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*PackagingMaterial, error)
	FindByCode(ctx context.Context, code string) (*PackagingMaterial, error)
	Create(ctx context.Context, material *PackagingMaterial) error
	Save(ctx context.Context, material *PackagingMaterial) error
}
