package allocation

import (
	"context"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/trade"
)

// TransactionScope provides transactional access to the repositories the
// allocation flow touches. When a function is executed within a transaction
// scope, all repository operations are part of the same database
// transaction and are committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to the repositories within a
// transaction. All repositories returned share the same underlying
// database transaction.
//
// Aggregate boundary notes:
//   - LedgerRepo: the LedgerEntry aggregate owns the reserve and release
//     state change; the allocation flow locks rows through it with
//     FindForUpdate.
//   - AllocationRepo: insert-only journal rows explaining reserved
//     quantity; written in the same transaction as the reserves they
//     explain.
//   - OrderItemRepo / OrderRepo: item status is updated together with the
//     allocation rows so status never disagrees with recorded stock.
type TransactionalRepositories interface {
	// LedgerRepo returns the ledger repository scoped to the current transaction
	LedgerRepo() inventory.LedgerRepository
	// AllocationRepo returns the allocation repository scoped to the current transaction
	AllocationRepo() inventory.AllocationRepository
	// OrderItemRepo returns the order item repository scoped to the current transaction
	OrderItemRepo() trade.OrderItemRepository
	// OrderRepo returns the order repository scoped to the current transaction
	OrderRepo() trade.OrderRepository
}

// NoOpTransactionScope is a transaction scope that doesn't actually use
// transactions. Useful for testing or when transaction support is not
// required.
type NoOpTransactionScope struct {
	ledgerRepo     inventory.LedgerRepository
	allocationRepo inventory.AllocationRepository
	orderItemRepo  trade.OrderItemRepository
	orderRepo      trade.OrderRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(
	ledgerRepo inventory.LedgerRepository,
	allocationRepo inventory.AllocationRepository,
	orderItemRepo trade.OrderItemRepository,
	orderRepo trade.OrderRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		ledgerRepo:     ledgerRepo,
		allocationRepo: allocationRepo,
		orderItemRepo:  orderItemRepo,
		orderRepo:      orderRepo,
	}
}

// Execute runs the function without a real transaction (for testing/compatibility).
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// LedgerRepo returns the ledger repository.
func (s *NoOpTransactionScope) LedgerRepo() inventory.LedgerRepository {
	return s.ledgerRepo
}

// AllocationRepo returns the allocation repository.
func (s *NoOpTransactionScope) AllocationRepo() inventory.AllocationRepository {
	return s.allocationRepo
}

// OrderItemRepo returns the order item repository.
func (s *NoOpTransactionScope) OrderItemRepo() trade.OrderItemRepository {
	return s.orderItemRepo
}

// OrderRepo returns the order repository.
func (s *NoOpTransactionScope) OrderRepo() trade.OrderRepository {
	return s.orderRepo
}
