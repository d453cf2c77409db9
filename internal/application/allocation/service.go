package allocation

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
	"github.com/wms/backend/internal/domain/trade"
	"github.com/wms/backend/internal/infrastructure/telemetry"
)

// ErrDuplicateAttempt rejects a request whose attempt key was already
// processed within the idempotency window
var ErrDuplicateAttempt = shared.NewDomainError("DUPLICATE_ATTEMPT", "Allocation attempt was already processed")

// Service coordinates the allocation flow: candidate selection, FEFO
// matching, ledger reserves and allocation recording in one transaction,
// order item status updates, and bounded retries on transient conflicts.
type Service struct {
	txScope     TransactionScope
	matcher     inventory.Matcher
	eventBus    shared.EventPublisher
	idempotency shared.IdempotencyStore
	idemConfig  shared.IdempotencyConfig
	retryPolicy RetryPolicy
	logger      *zap.Logger
}

// NewService creates an allocation service
func NewService(
	txScope TransactionScope,
	matcher inventory.Matcher,
	eventBus shared.EventPublisher,
	idempotency shared.IdempotencyStore,
	idemConfig shared.IdempotencyConfig,
	retryPolicy RetryPolicy,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		txScope:     txScope,
		matcher:     matcher,
		eventBus:    eventBus,
		idempotency: idempotency,
		idemConfig:  idemConfig,
		retryPolicy: retryPolicy,
		logger:      logger,
	}
}

// AllocateItem allocates stock against one order item. Within one attempt
// everything happens in a single transaction: either every reserve, every
// allocation row, and the item status update commit together, or nothing
// does. Transient conflicts are retried with backoff; after the retry
// budget is spent the item is marked allocation failed.
func (s *Service) AllocateItem(ctx context.Context, req AllocateItemRequest) (*AllocateItemResult, error) {
	if req.OrderItemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER_ITEM", "Order item ID cannot be empty")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "allocate_item",
		attribute.String(telemetry.SpanAttrOrderItemID, req.OrderItemID.String()))
	defer span.End()

	idemKey := ""
	if req.AttemptKey != "" && s.idempotency != nil && s.idemConfig.Enabled {
		idemKey = fmt.Sprintf("allocation:attempt:%s", req.AttemptKey)
		fresh, err := s.idempotency.MarkProcessed(ctx, idemKey, s.idemConfig.TTL)
		if err != nil {
			return nil, fmt.Errorf("idempotency check: %w", err)
		}
		if !fresh {
			s.logger.Info("duplicate allocation attempt rejected",
				zap.String("order_item_id", req.OrderItemID.String()),
				zap.String("attempt_key", req.AttemptKey))
			return nil, ErrDuplicateAttempt
		}
	}

	var (
		result  *AllocateItemResult
		pending []shared.DomainEvent
	)

	attempts, err := runWithRetry(ctx, s.retryPolicy, func(attempt int) error {
		res, events, attemptErr := s.allocateOnce(ctx, req)
		if attemptErr != nil {
			if IsRetryable(attemptErr) {
				s.logger.Warn("allocation attempt hit transient conflict",
					zap.String("order_item_id", req.OrderItemID.String()),
					zap.Int("attempt", attempt),
					zap.Error(attemptErr))
			}
			return attemptErr
		}
		result = res
		pending = events
		return nil
	})

	if err != nil {
		telemetry.RecordError(span, err)
		// Nothing was recorded, so the attempt key must not block a later
		// redelivery of the same request for the whole TTL.
		s.forgetAttempt(ctx, idemKey)
		if IsRetryable(err) {
			return nil, s.markAllocationFailed(ctx, req.OrderItemID, attempts, err)
		}
		return nil, err
	}

	result.Attempts = attempts
	telemetry.SetAttributes(span,
		attribute.String(telemetry.SpanAttrAttemptID, result.AttemptID.String()),
		attribute.String(telemetry.SpanAttrQuantity, result.Allocated.String()),
		attribute.Int(telemetry.SpanAttrAttempts, attempts),
	)
	s.publish(ctx, pending)

	s.logger.Info("allocation recorded",
		zap.String("order_item_id", req.OrderItemID.String()),
		zap.String("attempt_id", result.AttemptID.String()),
		zap.String("allocated", result.Allocated.String()),
		zap.String("shortfall", result.Shortfall.String()),
		zap.Int("attempts", attempts))
	return result, nil
}

// allocateOnce runs a single all-or-nothing allocation attempt
func (s *Service) allocateOnce(ctx context.Context, req AllocateItemRequest) (*AllocateItemResult, []shared.DomainEvent, error) {
	var (
		result *AllocateItemResult
		events []shared.DomainEvent
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.OrderItemRepo().FindByID(ctx, req.OrderItemID)
		if err != nil {
			return fmt.Errorf("load order item: %w", err)
		}

		outstanding := item.Outstanding()
		if outstanding.IsZero() {
			order, err := repos.OrderRepo().FindByID(ctx, item.OrderID)
			if err != nil {
				return fmt.Errorf("load order: %w", err)
			}
			result = &AllocateItemResult{
				OrderItemID: item.ID,
				Requested:   decimal.Zero,
				Allocated:   decimal.Zero,
				Shortfall:   decimal.Zero,
				ItemStatus:  item.Status,
				OrderStatus: order.Status,
			}
			return nil
		}

		candidates, err := repos.LedgerRepo().FindCandidates(ctx, item.ItemID, req.Scopes)
		if err != nil {
			return fmt.Errorf("load candidates: %w", err)
		}

		match, err := s.matcher.Match(outstanding, candidates)
		if err != nil {
			return err
		}

		attemptID := uuid.New()
		if match.Allocated.GreaterThan(decimal.Zero) {
			if err := s.applyMatch(ctx, repos, item, match, attemptID, &events); err != nil {
				return err
			}
		}

		orderStatus, err := s.refreshOrderStatus(ctx, repos, item.OrderID)
		if err != nil {
			return err
		}

		events = append(events, inventory.NewAllocationRecordedEvent(
			item.ID, attemptID, match.Tuples, match.Allocated, match.Shortfall))
		if !match.FullyMatched() {
			events = append(events, inventory.NewAllocationShortfallEvent(item.ID, match.Shortfall))
		}

		result = &AllocateItemResult{
			OrderItemID: item.ID,
			AttemptID:   attemptID,
			Requested:   match.Requested,
			Allocated:   match.Allocated,
			Shortfall:   match.Shortfall,
			Tuples:      match.Tuples,
			ItemStatus:  item.Status,
			OrderStatus: orderStatus,
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return result, events, nil
}

// applyMatch reserves ledger quantities and writes allocation rows for
// every tuple the matcher selected. Runs inside the attempt transaction;
// any failure rolls back every reserve made so far.
func (s *Service) applyMatch(
	ctx context.Context,
	repos TransactionalRepositories,
	item *trade.OrderItem,
	match *inventory.MatchResult,
	attemptID uuid.UUID,
	events *[]shared.DomainEvent,
) error {
	allocations := make([]*inventory.Allocation, 0, len(match.Tuples))

	// Lock rows in the canonical order shared with ReleaseItem so an
	// allocate/release pair over the same rows cannot deadlock. The match
	// result keeps its FEFO order; only the locking sequence changes.
	locked := make([]inventory.AllocationTuple, len(match.Tuples))
	copy(locked, match.Tuples)
	sort.Slice(locked, func(i, j int) bool {
		return lockRank(locked[i].BatchID, locked[i].Scope) < lockRank(locked[j].BatchID, locked[j].Scope)
	})

	for _, tuple := range locked {
		entry, err := repos.LedgerRepo().FindForUpdate(ctx, tuple.BatchID, tuple.Scope)
		if err != nil {
			return fmt.Errorf("lock ledger entry: %w", err)
		}

		// The row may have changed between candidate selection and the
		// lock; Reserve fails with ErrInsufficientStock and the retry
		// loop re-reads candidates.
		if err := entry.Reserve(tuple.Quantity); err != nil {
			return err
		}
		if err := repos.LedgerRepo().Save(ctx, entry); err != nil {
			return fmt.Errorf("save ledger entry: %w", err)
		}
		*events = append(*events, entry.GetDomainEvents()...)
		entry.ClearDomainEvents()

		alloc, err := inventory.NewAllocation(item.ID, tuple.BatchID, tuple.Scope, tuple.Quantity, attemptID)
		if err != nil {
			return err
		}
		allocations = append(allocations, alloc)
	}

	if err := repos.AllocationRepo().CreateBatch(ctx, allocations); err != nil {
		return fmt.Errorf("record allocations: %w", err)
	}

	if err := item.RecordAllocation(match.Allocated); err != nil {
		return err
	}
	if err := repos.OrderItemRepo().Save(ctx, item); err != nil {
		return fmt.Errorf("save order item: %w", err)
	}
	return nil
}

// ReleaseItem releases every allocation recorded for an order item:
// allocation rows are deleted and the reserved quantities returned to the
// ledger in one transaction.
func (s *Service) ReleaseItem(ctx context.Context, req ReleaseItemRequest) (*ReleaseItemResult, error) {
	if req.OrderItemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER_ITEM", "Order item ID cannot be empty")
	}

	ctx, span := telemetry.StartServiceSpan(ctx, "allocation", "release_item",
		attribute.String(telemetry.SpanAttrOrderItemID, req.OrderItemID.String()))
	defer span.End()

	var (
		result *ReleaseItemResult
		events []shared.DomainEvent
	)

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.OrderItemRepo().FindByID(ctx, req.OrderItemID)
		if err != nil {
			return fmt.Errorf("load order item: %w", err)
		}

		deleted, err := repos.AllocationRepo().DeleteByOrderItem(ctx, item.ID)
		if err != nil {
			return fmt.Errorf("delete allocations: %w", err)
		}

		// Same lock order as applyMatch
		sort.Slice(deleted, func(i, j int) bool {
			return lockRank(deleted[i].BatchID, deleted[i].Scope) < lockRank(deleted[j].BatchID, deleted[j].Scope)
		})

		released := decimal.Zero
		for _, alloc := range deleted {
			entry, err := repos.LedgerRepo().FindForUpdate(ctx, alloc.BatchID, alloc.Scope)
			if err != nil {
				return fmt.Errorf("lock ledger entry: %w", err)
			}
			if err := entry.Release(alloc.AllocatedQuantity); err != nil {
				return err
			}
			if err := repos.LedgerRepo().Save(ctx, entry); err != nil {
				return fmt.Errorf("save ledger entry: %w", err)
			}
			events = append(events, entry.GetDomainEvents()...)
			entry.ClearDomainEvents()
			released = released.Add(alloc.AllocatedQuantity)
		}

		if released.GreaterThan(decimal.Zero) {
			if err := item.ReverseAllocation(released); err != nil {
				return err
			}
			if err := repos.OrderItemRepo().Save(ctx, item); err != nil {
				return fmt.Errorf("save order item: %w", err)
			}
		}

		orderStatus, err := s.refreshOrderStatus(ctx, repos, item.OrderID)
		if err != nil {
			return err
		}

		events = append(events, inventory.NewAllocationReversedEvent(item.ID, released, req.Reason))

		result = &ReleaseItemResult{
			OrderItemID: item.ID,
			Released:    released,
			ItemStatus:  item.Status,
			OrderStatus: orderStatus,
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	telemetry.SetAttributes(span,
		attribute.String(telemetry.SpanAttrQuantity, result.Released.String()))
	s.publish(ctx, events)
	s.logger.Info("allocation released",
		zap.String("order_item_id", req.OrderItemID.String()),
		zap.String("released", result.Released.String()),
		zap.String("reason", req.Reason))
	return result, nil
}

// GetItemAllocations lists the allocation rows recorded for an order item
func (s *Service) GetItemAllocations(ctx context.Context, orderItemID uuid.UUID) (*ItemAllocationsResult, error) {
	if orderItemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ORDER_ITEM", "Order item ID cannot be empty")
	}

	var result *ItemAllocationsResult
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		allocations, err := repos.AllocationRepo().FindByOrderItem(ctx, orderItemID)
		if err != nil {
			return err
		}
		result = &ItemAllocationsResult{
			OrderItemID: orderItemID,
			Allocations: allocations,
			Total:       inventory.SumAllocated(allocations),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// markAllocationFailed records the terminal failure after the retry budget
// is spent. Items that already hold stock from an earlier attempt keep
// their partial status.
func (s *Service) markAllocationFailed(ctx context.Context, orderItemID uuid.UUID, attempts int, cause error) error {
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		item, err := repos.OrderItemRepo().FindByID(ctx, orderItemID)
		if err != nil {
			return fmt.Errorf("load order item: %w", err)
		}
		if err := item.MarkAllocationFailed(); err != nil {
			// partial stock survives; the item is not failed
			return nil
		}
		if err := repos.OrderItemRepo().Save(ctx, item); err != nil {
			return fmt.Errorf("save order item: %w", err)
		}
		if _, err := s.refreshOrderStatus(ctx, repos, item.OrderID); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		s.logger.Error("failed to mark allocation failed",
			zap.String("order_item_id", orderItemID.String()),
			zap.Error(err))
	}

	s.publish(ctx, []shared.DomainEvent{
		inventory.NewAllocationFailedEvent(orderItemID, uuid.New(), attempts, cause.Error()),
	})

	s.logger.Error("allocation failed after retries",
		zap.String("order_item_id", orderItemID.String()),
		zap.Int("attempts", attempts),
		zap.Error(cause))
	return fmt.Errorf("allocation failed after %d attempts: %w", attempts, cause)
}

// refreshOrderStatus rederives and persists the order status from its
// items. The order row is locked first so concurrent transactions touching
// different items of the same order serialize here and the last derivation
// sees every committed item update.
func (s *Service) refreshOrderStatus(ctx context.Context, repos TransactionalRepositories, orderID uuid.UUID) (trade.OrderSummaryStatus, error) {
	order, err := repos.OrderRepo().FindForUpdate(ctx, orderID)
	if err != nil {
		return trade.OrderStatusUnknown, fmt.Errorf("load order: %w", err)
	}

	items, err := repos.OrderItemRepo().FindByOrder(ctx, orderID)
	if err != nil {
		return trade.OrderStatusUnknown, fmt.Errorf("load order items: %w", err)
	}
	order.Items = items

	before := order.Status
	order.RefreshStatus()
	if err := repos.OrderRepo().Save(ctx, order); err != nil {
		return trade.OrderStatusUnknown, fmt.Errorf("save order: %w", err)
	}

	if order.Status != before {
		s.logger.Debug("order status changed",
			zap.String("order_id", orderID.String()),
			zap.String("old", before.String()),
			zap.String("new", order.Status.String()))
	}
	return order.Status, nil
}

// lockRank gives ledger rows a total order for locking, keyed the same way
// as the unique index on (batch_id, scope_type, scope_id)
func lockRank(batchID uuid.UUID, scope inventory.Scope) string {
	return batchID.String() + "/" + string(scope.Type) + "/" + scope.ID.String()
}

// forgetAttempt releases an attempt key after a failed allocation
func (s *Service) forgetAttempt(ctx context.Context, idemKey string) {
	if idemKey == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Forget(ctx, idemKey); err != nil {
		s.logger.Warn("failed to release attempt key", zap.String("key", idemKey), zap.Error(err))
	}
}

// publish sends events after the transaction has committed. Publication is
// best effort; a failed publish never rolls back recorded allocations.
func (s *Service) publish(ctx context.Context, events []shared.DomainEvent) {
	if s.eventBus == nil || len(events) == 0 {
		return
	}
	if err := s.eventBus.Publish(ctx, events...); err != nil {
		s.logger.Warn("event publication failed", zap.Error(err))
	}
}
