package integration

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wms/backend/internal/application/allocation"
	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/infrastructure/persistence"
)

// seedLedgerEntry creates a batch plus a ledger entry holding the given
// total quantity in a fresh warehouse scope
func seedLedgerEntry(t *testing.T, tdb *TestDB, total int64) (*inventory.LedgerEntry, inventory.Scope) {
	t.Helper()

	ctx := context.Background()
	batchRepo := persistence.NewGormBatchRepository(tdb.DB)
	ledgerRepo := persistence.NewGormLedgerRepository(tdb.DB)

	batch, err := inventory.NewProductBatch(
		uuid.New(), "BATCH-CONC-001", nil, nil, decimal.NewFromInt(total),
	)
	require.NoError(t, err)
	require.NoError(t, batchRepo.Create(ctx, batch))

	scope := inventory.NewWarehouseScope(uuid.New())
	entry, err := inventory.NewLedgerEntry(batch.ID, scope, decimal.NewFromInt(total))
	require.NoError(t, err)
	require.NoError(t, ledgerRepo.Create(ctx, entry))

	return entry, scope
}

func TestLedgerEntry_ConcurrentReserves(t *testing.T) {
	tdb := NewTestDB(t)
	entry, scope := seedLedgerEntry(t, tdb, 100)

	// 20 workers each try to reserve 10 out of 100. Row locking must
	// serialize them so exactly 10 succeed and the rest see the stock as
	// depleted.
	const workers = 20
	reserve := decimal.NewFromInt(10)

	txScope := persistence.NewGormTransactionScope(tdb.DB)

	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx := context.Background()
			results <- txScope.Execute(ctx, func(repos allocation.TransactionalRepositories) error {
				locked, err := repos.LedgerRepo().FindForUpdate(ctx, entry.BatchID, scope)
				if err != nil {
					return err
				}
				if err := locked.Reserve(reserve); err != nil {
					return err
				}
				return repos.LedgerRepo().Save(ctx, locked)
			})
		}()
	}
	wg.Wait()
	close(results)

	succeeded, depleted := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, inventory.ErrInsufficientStock):
			depleted++
		default:
			t.Fatalf("unexpected reserve error: %v", err)
		}
	}
	assert.Equal(t, 10, succeeded)
	assert.Equal(t, 10, depleted)

	ledgerRepo := persistence.NewGormLedgerRepository(tdb.DB)
	final, err := ledgerRepo.FindByBatchAndScope(context.Background(), entry.BatchID, scope)
	require.NoError(t, err)

	assert.True(t, final.ReservedQuantity.Equal(decimal.NewFromInt(100)),
		"reserved %s", final.ReservedQuantity)
	assert.NoError(t, final.CheckInvariant())
}

func TestLedgerEntry_ConcurrentReserveRelease(t *testing.T) {
	tdb := NewTestDB(t)
	entry, scope := seedLedgerEntry(t, tdb, 50)

	ctx := context.Background()
	txScope := persistence.NewGormTransactionScope(tdb.DB)

	// fill the ledger first so the releases have something to undo
	require.NoError(t, txScope.Execute(ctx, func(repos allocation.TransactionalRepositories) error {
		locked, err := repos.LedgerRepo().FindForUpdate(ctx, entry.BatchID, scope)
		if err != nil {
			return err
		}
		if err := locked.Reserve(decimal.NewFromInt(50)); err != nil {
			return err
		}
		return repos.LedgerRepo().Save(ctx, locked)
	}))

	const workers = 10
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(release bool) {
			defer wg.Done()
			results <- txScope.Execute(ctx, func(repos allocation.TransactionalRepositories) error {
				locked, err := repos.LedgerRepo().FindForUpdate(ctx, entry.BatchID, scope)
				if err != nil {
					return err
				}
				if release {
					if err := locked.Release(decimal.NewFromInt(5)); err != nil {
						return err
					}
				} else {
					if err := locked.Reserve(decimal.NewFromInt(5)); err != nil {
						return err
					}
				}
				return repos.LedgerRepo().Save(ctx, locked)
			})
		}(i%2 == 0)
	}
	wg.Wait()
	close(results)

	// 5 releases then up to 5 reserves interleave in arbitrary order; a
	// reserve can fail only when it observes the ledger still full
	for err := range results {
		if err != nil {
			require.ErrorIs(t, err, inventory.ErrInsufficientStock)
		}
	}

	ledgerRepo := persistence.NewGormLedgerRepository(tdb.DB)
	final, err := ledgerRepo.FindByBatchAndScope(ctx, entry.BatchID, scope)
	require.NoError(t, err)
	assert.NoError(t, final.CheckInvariant())
}
