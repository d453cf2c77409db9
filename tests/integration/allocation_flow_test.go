package integration

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms/backend/internal/application/allocation"
	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/trade"
	"github.com/wms/backend/internal/infrastructure/cache"
	"github.com/wms/backend/internal/infrastructure/persistence"
)

type allocationFlow struct {
	tdb     *TestDB
	service *allocation.Service

	ledgerRepo     *persistence.GormLedgerRepository
	batchRepo      *persistence.GormBatchRepository
	allocationRepo *persistence.GormAllocationRepository
	orderRepo      *persistence.GormOrderRepository
	orderItemRepo  *persistence.GormOrderItemRepository
}

func newAllocationFlow(t *testing.T) *allocationFlow {
	t.Helper()

	tdb := NewTestDB(t)

	store := cache.NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })

	service := allocation.NewService(
		persistence.NewGormTransactionScope(tdb.DB),
		inventory.NewFEFOMatcher(),
		nil,
		store,
		shared.DefaultIdempotencyConfig(),
		allocation.RetryPolicy{MaxAttempts: 3, BaseBackoff: time.Millisecond, MaxBackoff: 10 * time.Millisecond},
		nil,
	)

	return &allocationFlow{
		tdb:            tdb,
		service:        service,
		ledgerRepo:     persistence.NewGormLedgerRepository(tdb.DB),
		batchRepo:      persistence.NewGormBatchRepository(tdb.DB),
		allocationRepo: persistence.NewGormAllocationRepository(tdb.DB),
		orderRepo:      persistence.NewGormOrderRepository(tdb.DB),
		orderItemRepo:  persistence.NewGormOrderItemRepository(tdb.DB),
	}
}

// seedBatch stocks a batch in the given scope and returns the batch
func (f *allocationFlow) seedBatch(t *testing.T, itemID uuid.UUID, number string, expiry *time.Time, qty int64, scope inventory.Scope) *inventory.Batch {
	t.Helper()
	ctx := context.Background()

	batch, err := inventory.NewProductBatch(itemID, number, nil, expiry, decimal.NewFromInt(qty))
	require.NoError(t, err)
	require.NoError(t, f.batchRepo.Create(ctx, batch))

	entry, err := inventory.NewLedgerEntry(batch.ID, scope, decimal.NewFromInt(qty))
	require.NoError(t, err)
	require.NoError(t, f.ledgerRepo.Create(ctx, entry))

	return batch
}

// seedOrderItem persists an order with one item requesting the quantity
func (f *allocationFlow) seedOrderItem(t *testing.T, orderNumber string, itemID uuid.UUID, requested int64) *trade.OrderItem {
	t.Helper()
	ctx := context.Background()

	order, err := trade.NewOrder(orderNumber, uuid.New())
	require.NoError(t, err)
	item, err := order.AddItem(itemID, decimal.NewFromInt(requested))
	require.NoError(t, err)
	require.NoError(t, f.orderRepo.Create(ctx, order))

	return item
}

// seedOrder persists an order with one item per requested quantity
func (f *allocationFlow) seedOrder(t *testing.T, orderNumber string, itemIDs []uuid.UUID, requested []int64) []*trade.OrderItem {
	t.Helper()
	ctx := context.Background()

	order, err := trade.NewOrder(orderNumber, uuid.New())
	require.NoError(t, err)

	items := make([]*trade.OrderItem, 0, len(itemIDs))
	for i, itemID := range itemIDs {
		item, err := order.AddItem(itemID, decimal.NewFromInt(requested[i]))
		require.NoError(t, err)
		items = append(items, item)
	}
	require.NoError(t, f.orderRepo.Create(ctx, order))

	return items
}

func daysFromNow(d int) *time.Time {
	t := time.Now().AddDate(0, 0, d)
	return &t
}

func TestAllocationFlow_FEFOAcrossBatches(t *testing.T) {
	f := newAllocationFlow(t)
	ctx := context.Background()

	itemID := uuid.New()
	scope := inventory.NewWarehouseScope(uuid.New())
	early := f.seedBatch(t, itemID, "BATCH-EARLY", daysFromNow(30), 10, scope)
	late := f.seedBatch(t, itemID, "BATCH-LATE", daysFromNow(90), 10, scope)
	orderItem := f.seedOrderItem(t, "SO-20260831-001", itemID, 15)

	result, err := f.service.AllocateItem(ctx, allocation.AllocateItemRequest{
		OrderItemID: orderItem.ID,
	})
	require.NoError(t, err)

	assert.True(t, result.Allocated.Equal(decimal.NewFromInt(15)))
	assert.True(t, result.Shortfall.IsZero())
	assert.Equal(t, trade.ItemStatusFullyAllocated, result.ItemStatus)
	assert.Equal(t, trade.OrderStatusFullyAllocated, result.OrderStatus)

	// the batch expiring first is drained before the later one is touched
	require.Len(t, result.Tuples, 2)
	assert.Equal(t, early.ID, result.Tuples[0].BatchID)
	assert.True(t, result.Tuples[0].Quantity.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, late.ID, result.Tuples[1].BatchID)
	assert.True(t, result.Tuples[1].Quantity.Equal(decimal.NewFromInt(5)))

	rows, err := f.allocationRepo.FindByOrderItem(ctx, orderItem.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	entry, err := f.ledgerRepo.FindByBatchAndScope(ctx, early.ID, scope)
	require.NoError(t, err)
	assert.True(t, entry.ReservedQuantity.Equal(decimal.NewFromInt(10)))
}

func TestAllocationFlow_ShortfallIsPartial(t *testing.T) {
	f := newAllocationFlow(t)
	ctx := context.Background()

	itemID := uuid.New()
	scope := inventory.NewWarehouseScope(uuid.New())
	f.seedBatch(t, itemID, "BATCH-ONLY", daysFromNow(60), 20, scope)
	orderItem := f.seedOrderItem(t, "SO-20260831-002", itemID, 25)

	result, err := f.service.AllocateItem(ctx, allocation.AllocateItemRequest{
		OrderItemID: orderItem.ID,
	})
	require.NoError(t, err)

	assert.True(t, result.Allocated.Equal(decimal.NewFromInt(20)))
	assert.True(t, result.Shortfall.Equal(decimal.NewFromInt(5)))
	assert.Equal(t, trade.ItemStatusPartiallyAllocated, result.ItemStatus)
	assert.Equal(t, trade.OrderStatusPartiallyAllocated, result.OrderStatus)
}

func TestAllocationFlow_ExpiredBatchesAreSkipped(t *testing.T) {
	f := newAllocationFlow(t)
	ctx := context.Background()

	itemID := uuid.New()
	scope := inventory.NewWarehouseScope(uuid.New())
	f.seedBatch(t, itemID, "BATCH-EXPIRED", daysFromNow(-1), 50, scope)
	fresh := f.seedBatch(t, itemID, "BATCH-FRESH", daysFromNow(45), 10, scope)
	orderItem := f.seedOrderItem(t, "SO-20260831-003", itemID, 10)

	result, err := f.service.AllocateItem(ctx, allocation.AllocateItemRequest{
		OrderItemID: orderItem.ID,
	})
	require.NoError(t, err)

	require.Len(t, result.Tuples, 1)
	assert.Equal(t, fresh.ID, result.Tuples[0].BatchID)
	assert.Equal(t, trade.ItemStatusFullyAllocated, result.ItemStatus)
}

func TestAllocationFlow_ReleaseRestoresLedger(t *testing.T) {
	f := newAllocationFlow(t)
	ctx := context.Background()

	itemID := uuid.New()
	scope := inventory.NewWarehouseScope(uuid.New())
	batch := f.seedBatch(t, itemID, "BATCH-REL", daysFromNow(30), 10, scope)
	orderItem := f.seedOrderItem(t, "SO-20260831-004", itemID, 10)

	_, err := f.service.AllocateItem(ctx, allocation.AllocateItemRequest{OrderItemID: orderItem.ID})
	require.NoError(t, err)

	released, err := f.service.ReleaseItem(ctx, allocation.ReleaseItemRequest{
		OrderItemID: orderItem.ID,
		Reason:      "order cancelled",
	})
	require.NoError(t, err)

	assert.True(t, released.Released.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, trade.ItemStatusPending, released.ItemStatus)

	entry, err := f.ledgerRepo.FindByBatchAndScope(ctx, batch.ID, scope)
	require.NoError(t, err)
	assert.True(t, entry.ReservedQuantity.IsZero())

	rows, err := f.allocationRepo.FindByOrderItem(ctx, orderItem.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestAllocationFlow_ConcurrentItemsDeriveFinalOrderStatus(t *testing.T) {
	f := newAllocationFlow(t)
	ctx := context.Background()

	itemA := uuid.New()
	itemB := uuid.New()
	scope := inventory.NewWarehouseScope(uuid.New())
	f.seedBatch(t, itemA, "BATCH-CC-A", daysFromNow(30), 10, scope)
	f.seedBatch(t, itemB, "BATCH-CC-B", daysFromNow(30), 10, scope)
	items := f.seedOrder(t, "SO-20260831-006", []uuid.UUID{itemA, itemB}, []int64{10, 10})

	// Both items allocate in parallel; the order status each transaction
	// derives must account for the other's committed item update, so the
	// order ends fully allocated no matter which commits last.
	var wg sync.WaitGroup
	errs := make([]error, len(items))
	for i, item := range items {
		wg.Add(1)
		go func(i int, orderItemID uuid.UUID) {
			defer wg.Done()
			_, errs[i] = f.service.AllocateItem(ctx, allocation.AllocateItemRequest{
				OrderItemID: orderItemID,
			})
		}(i, item.ID)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	order, err := f.orderRepo.FindByID(ctx, items[0].OrderID)
	require.NoError(t, err)
	assert.Equal(t, trade.OrderStatusFullyAllocated, order.Status)
	for _, item := range order.Items {
		assert.Equal(t, trade.ItemStatusFullyAllocated, item.Status)
	}
}

func TestAllocationFlow_DuplicateAttemptKeyRejected(t *testing.T) {
	f := newAllocationFlow(t)
	ctx := context.Background()

	itemID := uuid.New()
	scope := inventory.NewWarehouseScope(uuid.New())
	batch := f.seedBatch(t, itemID, "BATCH-DUP", daysFromNow(30), 10, scope)
	orderItem := f.seedOrderItem(t, "SO-20260831-005", itemID, 5)

	_, err := f.service.AllocateItem(ctx, allocation.AllocateItemRequest{
		OrderItemID: orderItem.ID,
		AttemptKey:  "client-key-1",
	})
	require.NoError(t, err)

	_, err = f.service.AllocateItem(ctx, allocation.AllocateItemRequest{
		OrderItemID: orderItem.ID,
		AttemptKey:  "client-key-1",
	})
	assert.ErrorIs(t, err, allocation.ErrDuplicateAttempt)

	entry, err := f.ledgerRepo.FindByBatchAndScope(ctx, batch.ID, scope)
	require.NoError(t, err)
	assert.True(t, entry.ReservedQuantity.Equal(decimal.NewFromInt(5)))
}
