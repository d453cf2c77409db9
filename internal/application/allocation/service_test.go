package allocation

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/trade"
)

// ledgerKey identifies one ledger row in the in-memory state
type ledgerKey struct {
	batchID uuid.UUID
	scope   inventory.Scope
}

// memState is the in-memory database backing the fakes. The fake
// transaction scope snapshots it before each attempt and restores it on
// error, mirroring a rollback.
type memState struct {
	batches     map[uuid.UUID]inventory.Batch
	ledgers     map[ledgerKey]inventory.LedgerEntry
	allocations map[uuid.UUID]inventory.Allocation
	items       map[uuid.UUID]trade.OrderItem
	orders      map[uuid.UUID]trade.Order

	// onFindForUpdate mutates the entry before it is returned, simulating
	// a concurrent writer between candidate selection and the row lock
	onFindForUpdate func(entry *inventory.LedgerEntry)
}

func newMemState() *memState {
	return &memState{
		batches:     make(map[uuid.UUID]inventory.Batch),
		ledgers:     make(map[ledgerKey]inventory.LedgerEntry),
		allocations: make(map[uuid.UUID]inventory.Allocation),
		items:       make(map[uuid.UUID]trade.OrderItem),
		orders:      make(map[uuid.UUID]trade.Order),
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.batches {
		c.batches[k] = v
	}
	for k, v := range s.ledgers {
		c.ledgers[k] = v
	}
	for k, v := range s.allocations {
		c.allocations[k] = v
	}
	for k, v := range s.items {
		c.items[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	c.onFindForUpdate = s.onFindForUpdate
	return c
}

func (s *memState) restore(from *memState) {
	s.batches = from.batches
	s.ledgers = from.ledgers
	s.allocations = from.allocations
	s.items = from.items
	s.orders = from.orders
}

// memTxScope runs the function against the shared state, restoring the
// pre-attempt snapshot when the function fails
type memTxScope struct {
	state *memState
}

func (t *memTxScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	snapshot := t.state.clone()
	if err := fn(&memRepos{state: t.state}); err != nil {
		t.state.restore(snapshot)
		return err
	}
	return nil
}

type memRepos struct {
	state *memState
}

func (r *memRepos) LedgerRepo() inventory.LedgerRepository   { return &memLedgerRepo{r.state} }
func (r *memRepos) AllocationRepo() inventory.AllocationRepository {
	return &memAllocationRepo{r.state}
}
func (r *memRepos) OrderItemRepo() trade.OrderItemRepository { return &memOrderItemRepo{r.state} }
func (r *memRepos) OrderRepo() trade.OrderRepository         { return &memOrderRepo{r.state} }

type memLedgerRepo struct{ state *memState }

func (r *memLedgerRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.LedgerEntry, error) {
	for _, e := range r.state.ledgers {
		if e.ID == id {
			entry := e
			return &entry, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memLedgerRepo) FindByBatchAndScope(_ context.Context, batchID uuid.UUID, scope inventory.Scope) (*inventory.LedgerEntry, error) {
	if e, ok := r.state.ledgers[ledgerKey{batchID, scope}]; ok {
		entry := e
		return &entry, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memLedgerRepo) FindForUpdate(ctx context.Context, batchID uuid.UUID, scope inventory.Scope) (*inventory.LedgerEntry, error) {
	entry, err := r.FindByBatchAndScope(ctx, batchID, scope)
	if err != nil {
		return nil, err
	}
	if r.state.onFindForUpdate != nil {
		r.state.onFindForUpdate(entry)
		r.state.ledgers[ledgerKey{batchID, scope}] = *entry
	}
	return entry, nil
}

func (r *memLedgerRepo) FindByBatch(_ context.Context, batchID uuid.UUID) ([]inventory.LedgerEntry, error) {
	var out []inventory.LedgerEntry
	for k, e := range r.state.ledgers {
		if k.batchID == batchID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *memLedgerRepo) FindByScope(_ context.Context, _ inventory.Scope, _ shared.Filter) ([]inventory.LedgerEntry, error) {
	return nil, nil
}

func (r *memLedgerRepo) FindCandidates(_ context.Context, itemID uuid.UUID, scopes []inventory.Scope) ([]inventory.BatchCandidate, error) {
	inScope := func(s inventory.Scope) bool {
		if len(scopes) == 0 {
			return true
		}
		for _, want := range scopes {
			if want == s {
				return true
			}
		}
		return false
	}

	var out []inventory.BatchCandidate
	for k, e := range r.state.ledgers {
		batch, ok := r.state.batches[k.batchID]
		if !ok || batch.ItemID != itemID || !inScope(k.scope) {
			continue
		}
		if !batch.IsAllocatable() || e.Available().LessThanOrEqual(decimal.Zero) {
			continue
		}
		out = append(out, inventory.BatchCandidate{
			Batch:     batch,
			Scope:     k.scope,
			Available: e.Available(),
		})
	}
	return out, nil
}

func (r *memLedgerRepo) Save(_ context.Context, entry *inventory.LedgerEntry) error {
	if err := entry.CheckInvariant(); err != nil {
		return err
	}
	r.state.ledgers[ledgerKey{entry.BatchID, entry.Scope}] = *entry
	return nil
}

func (r *memLedgerRepo) Create(ctx context.Context, entry *inventory.LedgerEntry) error {
	return r.Save(ctx, entry)
}

func (r *memLedgerRepo) SumAvailableByItem(_ context.Context, itemID uuid.UUID) (decimal.Decimal, error) {
	sum := decimal.Zero
	for k, e := range r.state.ledgers {
		if b, ok := r.state.batches[k.batchID]; ok && b.ItemID == itemID {
			sum = sum.Add(e.Available())
		}
	}
	return sum, nil
}

func (r *memLedgerRepo) Delete(_ context.Context, id uuid.UUID) error {
	for k, e := range r.state.ledgers {
		if e.ID == id {
			delete(r.state.ledgers, k)
			return nil
		}
	}
	return shared.ErrNotFound
}

type memAllocationRepo struct{ state *memState }

func (r *memAllocationRepo) FindByID(_ context.Context, id uuid.UUID) (*inventory.Allocation, error) {
	if a, ok := r.state.allocations[id]; ok {
		alloc := a
		return &alloc, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memAllocationRepo) FindByOrderItem(_ context.Context, orderItemID uuid.UUID) ([]inventory.Allocation, error) {
	var out []inventory.Allocation
	for _, a := range r.state.allocations {
		if a.OrderItemID == orderItemID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocationRepo) FindByOrderItems(ctx context.Context, ids []uuid.UUID) ([]inventory.Allocation, error) {
	var out []inventory.Allocation
	for _, id := range ids {
		found, _ := r.FindByOrderItem(ctx, id)
		out = append(out, found...)
	}
	return out, nil
}

func (r *memAllocationRepo) FindByBatch(_ context.Context, batchID uuid.UUID, _ shared.Filter) ([]inventory.Allocation, error) {
	var out []inventory.Allocation
	for _, a := range r.state.allocations {
		if a.BatchID == batchID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (r *memAllocationRepo) Create(_ context.Context, allocation *inventory.Allocation) error {
	r.state.allocations[allocation.ID] = *allocation
	return nil
}

func (r *memAllocationRepo) CreateBatch(ctx context.Context, allocations []*inventory.Allocation) error {
	for _, a := range allocations {
		if err := r.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (r *memAllocationRepo) DeleteByOrderItem(_ context.Context, orderItemID uuid.UUID) ([]inventory.Allocation, error) {
	var deleted []inventory.Allocation
	for id, a := range r.state.allocations {
		if a.OrderItemID == orderItemID {
			deleted = append(deleted, a)
			delete(r.state.allocations, id)
		}
	}
	return deleted, nil
}

func (r *memAllocationRepo) SumByOrderItem(ctx context.Context, orderItemID uuid.UUID) (decimal.Decimal, error) {
	found, _ := r.FindByOrderItem(ctx, orderItemID)
	return inventory.SumAllocated(found), nil
}

type memOrderItemRepo struct{ state *memState }

func (r *memOrderItemRepo) FindByID(_ context.Context, id uuid.UUID) (*trade.OrderItem, error) {
	if i, ok := r.state.items[id]; ok {
		item := i
		return &item, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderItemRepo) FindByOrder(_ context.Context, orderID uuid.UUID) ([]trade.OrderItem, error) {
	var out []trade.OrderItem
	for _, i := range r.state.items {
		if i.OrderID == orderID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *memOrderItemRepo) FindByStatus(_ context.Context, status trade.ItemAllocationStatus) ([]trade.OrderItem, error) {
	var out []trade.OrderItem
	for _, i := range r.state.items {
		if i.Status == status {
			out = append(out, i)
		}
	}
	return out, nil
}

func (r *memOrderItemRepo) Save(_ context.Context, item *trade.OrderItem) error {
	r.state.items[item.ID] = *item
	return nil
}

type memOrderRepo struct{ state *memState }

func (r *memOrderRepo) FindByID(_ context.Context, id uuid.UUID) (*trade.Order, error) {
	if o, ok := r.state.orders[id]; ok {
		order := o
		return &order, nil
	}
	return nil, shared.ErrNotFound
}

func (r *memOrderRepo) FindForUpdate(ctx context.Context, id uuid.UUID) (*trade.Order, error) {
	return r.FindByID(ctx, id)
}

func (r *memOrderRepo) FindByOrderNumber(_ context.Context, _ string) (*trade.Order, error) {
	return nil, shared.ErrNotFound
}

func (r *memOrderRepo) FindAll(_ context.Context, _ shared.Filter) (*shared.Paginated[trade.Order], error) {
	return nil, nil
}

func (r *memOrderRepo) FindByStatus(_ context.Context, _ trade.OrderSummaryStatus) ([]trade.Order, error) {
	return nil, nil
}

func (r *memOrderRepo) Create(_ context.Context, order *trade.Order) error {
	r.state.orders[order.ID] = *order
	return nil
}

func (r *memOrderRepo) Save(_ context.Context, order *trade.Order) error {
	r.state.orders[order.ID] = *order
	return nil
}

// memIdempotencyStore is a map-backed idempotency store
type memIdempotencyStore struct {
	seen map[string]bool
}

func (s *memIdempotencyStore) MarkProcessed(_ context.Context, key string, _ time.Duration) (bool, error) {
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *memIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	return s.seen[key], nil
}

func (s *memIdempotencyStore) Forget(_ context.Context, key string) error {
	delete(s.seen, key)
	return nil
}

func (s *memIdempotencyStore) Close() error { return nil }

// capturingBus records published events
type capturingBus struct {
	events []shared.DomainEvent
}

func (b *capturingBus) Publish(_ context.Context, events ...shared.DomainEvent) error {
	b.events = append(b.events, events...)
	return nil
}

func (b *capturingBus) typesSeen() map[string]int {
	out := make(map[string]int)
	for _, e := range b.events {
		out[e.EventType()]++
	}
	return out
}

// fixture wires a service against fresh in-memory state
type fixture struct {
	state   *memState
	bus     *capturingBus
	idem    *memIdempotencyStore
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	state := newMemState()
	bus := &capturingBus{}
	idem := &memIdempotencyStore{seen: make(map[string]bool)}

	policy := DefaultRetryPolicy()
	policy.BaseBackoff = time.Millisecond

	svc := NewService(
		&memTxScope{state: state},
		inventory.NewFEFOMatcher(),
		bus,
		idem,
		shared.DefaultIdempotencyConfig(),
		policy,
		zap.NewNop(),
	)
	return &fixture{state: state, bus: bus, idem: idem, service: svc}
}

// seedOrderItem creates an order with one item requesting the quantity
func (f *fixture) seedOrderItem(t *testing.T, itemID uuid.UUID, requested string) *trade.OrderItem {
	t.Helper()
	order, err := trade.NewOrder("SO-"+uuid.NewString()[:8], uuid.New())
	require.NoError(t, err)
	item, err := order.AddItem(itemID, decimal.RequireFromString(requested))
	require.NoError(t, err)

	f.state.orders[order.ID] = *order
	f.state.items[item.ID] = *item
	return item
}

// seedBatch creates a batch with a ledger entry holding the quantity in a
// fresh warehouse scope
func (f *fixture) seedBatch(t *testing.T, itemID uuid.UUID, available string, expiry *time.Time) (*inventory.Batch, inventory.Scope) {
	t.Helper()
	batch, err := inventory.NewProductBatch(itemID, "LOT-"+uuid.NewString()[:8], nil, expiry, decimal.RequireFromString(available))
	require.NoError(t, err)

	scope := inventory.NewWarehouseScope(uuid.New())
	entry, err := inventory.NewLedgerEntry(batch.ID, scope, decimal.RequireFromString(available))
	require.NoError(t, err)

	f.state.batches[batch.ID] = *batch
	f.state.ledgers[ledgerKey{batch.ID, scope}] = *entry
	return batch, scope
}

func (f *fixture) ledger(batchID uuid.UUID, scope inventory.Scope) *inventory.LedgerEntry {
	entry := f.state.ledgers[ledgerKey{batchID, scope}]
	return &entry
}

func TestServiceAllocateItem(t *testing.T) {
	ctx := context.Background()

	t.Run("full allocation from single batch", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "20")
		batch, scope := f.seedBatch(t, productID, "50", nil)

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		assert.True(t, result.Allocated.Equal(decimal.NewFromInt(20)))
		assert.True(t, result.Shortfall.IsZero())
		assert.Equal(t, trade.ItemStatusFullyAllocated, result.ItemStatus)
		assert.Equal(t, trade.OrderStatusFullyAllocated, result.OrderStatus)
		assert.Equal(t, 1, result.Attempts)

		entry := f.ledger(batch.ID, scope)
		assert.True(t, entry.ReservedQuantity.Equal(decimal.NewFromInt(20)))

		assert.Len(t, f.state.allocations, 1)
		for _, a := range f.state.allocations {
			assert.Equal(t, result.AttemptID, a.AttemptID)
		}
	})

	t.Run("demand spans batches in expiry order", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "15")

		early := time.Now().AddDate(0, 1, 0)
		late := time.Now().AddDate(0, 6, 0)
		earlyBatch, earlyScope := f.seedBatch(t, productID, "10", &early)
		lateBatch, lateScope := f.seedBatch(t, productID, "10", &late)

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		require.Len(t, result.Tuples, 2)
		assert.Equal(t, earlyBatch.ID, result.Tuples[0].BatchID)
		assert.True(t, result.Tuples[0].Quantity.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, lateBatch.ID, result.Tuples[1].BatchID)
		assert.True(t, result.Tuples[1].Quantity.Equal(decimal.NewFromInt(5)))
		assert.True(t, f.ledger(earlyBatch.ID, earlyScope).Available().IsZero())
		assert.True(t, f.ledger(lateBatch.ID, lateScope).Available().Equal(decimal.NewFromInt(5)))
	})

	t.Run("rows lock in canonical order regardless of expiry order", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "15")

		early := time.Now().AddDate(0, 1, 0)
		late := time.Now().AddDate(0, 6, 0)
		earlyBatch, _ := f.seedBatch(t, productID, "10", &early)
		lateBatch, _ := f.seedBatch(t, productID, "10", &late)

		var lockSeq []string
		f.state.onFindForUpdate = func(entry *inventory.LedgerEntry) {
			lockSeq = append(lockSeq, lockRank(entry.BatchID, entry.Scope))
		}

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		// the lock sequence is sorted, while the result keeps expiry order
		require.Len(t, lockSeq, 2)
		assert.True(t, sort.StringsAreSorted(lockSeq))
		require.Len(t, result.Tuples, 2)
		assert.Equal(t, earlyBatch.ID, result.Tuples[0].BatchID)
		assert.Equal(t, lateBatch.ID, result.Tuples[1].BatchID)
	})

	t.Run("shortfall leaves item partially allocated", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "25")
		f.seedBatch(t, productID, "10", nil)
		f.seedBatch(t, productID, "10", nil)

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		assert.True(t, result.Allocated.Equal(decimal.NewFromInt(20)))
		assert.True(t, result.Shortfall.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, trade.ItemStatusPartiallyAllocated, result.ItemStatus)

		types := f.bus.typesSeen()
		assert.Equal(t, 1, types[inventory.EventTypeAllocationShortfall])
	})

	t.Run("no stock leaves item pending with full shortfall", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedOrderItem(t, uuid.New(), "5")

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		assert.True(t, result.Allocated.IsZero())
		assert.True(t, result.Shortfall.Equal(decimal.NewFromInt(5)))
		assert.Equal(t, trade.ItemStatusPending, result.ItemStatus)
		assert.Empty(t, f.state.allocations)
	})

	t.Run("already covered item is a no-op", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "10")
		f.seedBatch(t, productID, "10", nil)

		_, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		assert.True(t, result.Allocated.IsZero())
		assert.Equal(t, trade.ItemStatusFullyAllocated, result.ItemStatus)
		assert.Len(t, f.state.allocations, 1)
	})

	t.Run("unknown order item", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: uuid.New()})
		assert.Error(t, err)
	})

	t.Run("empty order item id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.service.AllocateItem(ctx, AllocateItemRequest{})
		assert.Error(t, err)
	})
}

func TestServiceAllocateItemRetries(t *testing.T) {
	ctx := context.Background()

	t.Run("transient reserve race retries and succeeds", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "10")
		batch, scope := f.seedBatch(t, productID, "10", nil)

		// First attempt: someone else drains the row between candidate
		// selection and the row lock. The rollback undoes their reserve
		// too, so the retry sees the full quantity again.
		calls := 0
		f.state.onFindForUpdate = func(entry *inventory.LedgerEntry) {
			calls++
			if calls == 1 {
				require.NoError(t, entry.Reserve(decimal.NewFromInt(10)))
				entry.ClearDomainEvents()
			}
		}

		result, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Attempts)
		assert.True(t, result.Allocated.Equal(decimal.NewFromInt(10)))
		assert.True(t, f.ledger(batch.ID, scope).ReservedQuantity.Equal(decimal.NewFromInt(10)))
	})

	t.Run("persistent conflict marks item allocation failed", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "10")
		f.seedBatch(t, productID, "10", nil)

		// Every attempt loses the race: the locked row never holds what the
		// candidate promised.
		f.state.onFindForUpdate = func(entry *inventory.LedgerEntry) {
			if entry.Available().GreaterThan(decimal.Zero) {
				require.NoError(t, entry.Reserve(entry.Available()))
				entry.ClearDomainEvents()
			}
		}

		_, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.Error(t, err)

		saved := f.state.items[item.ID]
		assert.Equal(t, trade.ItemStatusAllocationFailed, saved.Status)

		types := f.bus.typesSeen()
		assert.Equal(t, 1, types[inventory.EventTypeAllocationFailed])
	})

	t.Run("failed attempt leaves no partial state", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "15")

		early := time.Now().AddDate(0, 1, 0)
		late := time.Now().AddDate(0, 6, 0)
		firstBatch, firstScope := f.seedBatch(t, productID, "10", &early)
		secondBatch, _ := f.seedBatch(t, productID, "10", &late)

		// The second tuple always loses its stock under lock, so every
		// attempt fails after the first tuple already reserved.
		f.state.onFindForUpdate = func(entry *inventory.LedgerEntry) {
			if entry.BatchID == secondBatch.ID && entry.Available().GreaterThan(decimal.Zero) {
				require.NoError(t, entry.Reserve(entry.Available()))
				entry.ClearDomainEvents()
			}
		}

		_, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.Error(t, err)

		// rollback must have undone the first tuple's reserve
		assert.True(t, f.ledger(firstBatch.ID, firstScope).ReservedQuantity.IsZero())
		assert.Empty(t, f.state.allocations)

		saved := f.state.items[item.ID]
		assert.True(t, saved.AllocatedQuantity.IsZero())
	})
}

func TestServiceAllocateItemIdempotency(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	productID := uuid.New()
	item := f.seedOrderItem(t, productID, "10")
	f.seedBatch(t, productID, "50", nil)

	req := AllocateItemRequest{OrderItemID: item.ID, AttemptKey: "order-42-item-1"}

	_, err := f.service.AllocateItem(ctx, req)
	require.NoError(t, err)

	_, err = f.service.AllocateItem(ctx, req)
	assert.ErrorIs(t, err, ErrDuplicateAttempt)
	assert.Len(t, f.state.allocations, 1)
}

func TestServiceAllocateItemFailedAttemptReleasesKey(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	productID := uuid.New()
	item := f.seedOrderItem(t, productID, "10")
	f.seedBatch(t, productID, "10", nil)

	// Every attempt loses the race, so the first request fails terminally
	f.state.onFindForUpdate = func(entry *inventory.LedgerEntry) {
		if entry.Available().GreaterThan(decimal.Zero) {
			require.NoError(t, entry.Reserve(entry.Available()))
			entry.ClearDomainEvents()
		}
	}

	req := AllocateItemRequest{OrderItemID: item.ID, AttemptKey: "order-42-item-1"}
	_, err := f.service.AllocateItem(ctx, req)
	require.Error(t, err)

	// The failed attempt recorded nothing, so its key must not block a
	// redelivery of the same request
	marked, err := f.idem.IsProcessed(ctx, "allocation:attempt:order-42-item-1")
	require.NoError(t, err)
	assert.False(t, marked)

	f.state.onFindForUpdate = nil
	result, err := f.service.AllocateItem(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Allocated.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, trade.ItemStatusFullyAllocated, result.ItemStatus)
}

func TestServiceReleaseItem(t *testing.T) {
	ctx := context.Background()

	t.Run("release returns stock and deletes allocations", func(t *testing.T) {
		f := newFixture(t)
		productID := uuid.New()
		item := f.seedOrderItem(t, productID, "20")
		batch, scope := f.seedBatch(t, productID, "50", nil)

		_, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)

		result, err := f.service.ReleaseItem(ctx, ReleaseItemRequest{OrderItemID: item.ID, Reason: "order cancelled"})
		require.NoError(t, err)

		assert.True(t, result.Released.Equal(decimal.NewFromInt(20)))
		assert.Equal(t, trade.ItemStatusPending, result.ItemStatus)
		assert.Empty(t, f.state.allocations)

		entry := f.ledger(batch.ID, scope)
		assert.True(t, entry.ReservedQuantity.IsZero())
		assert.True(t, entry.Available().Equal(decimal.NewFromInt(50)))

		types := f.bus.typesSeen()
		assert.Equal(t, 1, types[inventory.EventTypeAllocationReversed])
	})

	t.Run("release with nothing allocated is a no-op", func(t *testing.T) {
		f := newFixture(t)
		item := f.seedOrderItem(t, uuid.New(), "20")

		result, err := f.service.ReleaseItem(ctx, ReleaseItemRequest{OrderItemID: item.ID})
		require.NoError(t, err)
		assert.True(t, result.Released.IsZero())
	})
}

func TestServiceGetItemAllocations(t *testing.T) {
	ctx := context.Background()

	f := newFixture(t)
	productID := uuid.New()
	item := f.seedOrderItem(t, productID, "15")
	f.seedBatch(t, productID, "10", nil)
	f.seedBatch(t, productID, "10", nil)

	_, err := f.service.AllocateItem(ctx, AllocateItemRequest{OrderItemID: item.ID})
	require.NoError(t, err)

	result, err := f.service.GetItemAllocations(ctx, item.ID)
	require.NoError(t, err)

	assert.Len(t, result.Allocations, 2)
	assert.True(t, result.Total.Equal(decimal.NewFromInt(15)))
}
