package partner

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// WarehouseRepository defines persistence operations for warehouses
type WarehouseRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Warehouse, error)
	FindByCode(ctx context.Context, code string) (*Warehouse, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[Warehouse], error)
	FindActive(ctx context.Context) ([]Warehouse, error)
	Create(ctx context.Context, warehouse *Warehouse) error
	Save(ctx context.Context, warehouse *Warehouse) error
}

// LocationRepository defines persistence operations for storage locations
type LocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Location, error)
	FindByWarehouse(ctx context.Context, warehouseID uuid.UUID) ([]Location, error)
	Create(ctx context.Context, location *Location) error
	Save(ctx context.Context, location *Location) error
}
