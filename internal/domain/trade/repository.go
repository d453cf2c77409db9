package trade

import (
	"context"

	"github.com/google/uuid"
	"github.com/wms/backend/internal/domain/shared"
)

// OrderRepository defines persistence operations for orders
type OrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Order, error)
	// FindForUpdate locks the order row for the rest of the transaction
	FindForUpdate(ctx context.Context, id uuid.UUID) (*Order, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*Order, error)
	FindAll(ctx context.Context, filter shared.Filter) (*shared.Paginated[Order], error)
	FindByStatus(ctx context.Context, status OrderSummaryStatus) ([]Order, error)
	Create(ctx context.Context, order *Order) error
	Save(ctx context.Context, order *Order) error
}

// OrderItemRepository defines persistence operations for order items
type OrderItemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*OrderItem, error)
	FindByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error)
	FindByStatus(ctx context.Context, status ItemAllocationStatus) ([]OrderItem, error)
	Save(ctx context.Context, item *OrderItem) error
}
