package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wms/backend/internal/domain/inventory"
	"github.com/wms/backend/internal/domain/shared"
)

// Service handles stock movements outside the allocation flow: receiving
// batches, writing off stock, and read-side stock queries.
type Service struct {
	ledgerRepo inventory.LedgerRepository
	batchRepo  inventory.BatchRepository
	eventBus   shared.EventPublisher
	logger     *zap.Logger
}

// NewService creates an inventory service
func NewService(
	ledgerRepo inventory.LedgerRepository,
	batchRepo inventory.BatchRepository,
	eventBus shared.EventPublisher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledgerRepo: ledgerRepo,
		batchRepo:  batchRepo,
		eventBus:   eventBus,
		logger:     logger,
	}
}

// ReceiveBatch books stock into a scope. Receiving the same batch number
// again for the same item adds to the existing ledger entry instead of
// creating a second batch.
func (s *Service) ReceiveBatch(ctx context.Context, req ReceiveBatchRequest) (*ReceiveBatchResult, error) {
	batch, err := s.batchRepo.FindByBatchNumber(ctx, req.ItemID, req.BatchNumber)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("lookup batch: %w", err)
		}
		batch, err = inventory.NewBatch(req.Kind, req.ItemID, req.BatchNumber,
			req.ManufactureDate, req.ExpiryDate, req.Quantity)
		if err != nil {
			return nil, err
		}
		if err := s.batchRepo.Create(ctx, batch); err != nil {
			return nil, fmt.Errorf("create batch: %w", err)
		}
	}

	entry, err := s.ledgerRepo.FindByBatchAndScope(ctx, batch.ID, req.Scope)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, fmt.Errorf("lookup ledger entry: %w", err)
		}
		entry, err = inventory.NewLedgerEntry(batch.ID, req.Scope, req.Quantity)
		if err != nil {
			return nil, err
		}
		if err := s.ledgerRepo.Create(ctx, entry); err != nil {
			return nil, fmt.Errorf("create ledger entry: %w", err)
		}
	} else {
		if err := entry.AddStock(req.Quantity); err != nil {
			return nil, err
		}
		if err := s.ledgerRepo.Save(ctx, entry); err != nil {
			return nil, fmt.Errorf("save ledger entry: %w", err)
		}
	}

	s.logger.Info("batch received",
		zap.String("batch_number", batch.BatchNumber),
		zap.String("item_id", req.ItemID.String()),
		zap.String("scope", req.Scope.String()),
		zap.String("quantity", req.Quantity.String()))

	return &ReceiveBatchResult{
		BatchID:       batch.ID,
		LedgerEntryID: entry.ID,
		Total:         entry.TotalQuantity,
		Available:     entry.Available(),
	}, nil
}

// WriteOff removes unreserved stock from a ledger entry
func (s *Service) WriteOff(ctx context.Context, req WriteOffRequest) error {
	entry, err := s.ledgerRepo.FindByBatchAndScope(ctx, req.BatchID, req.Scope)
	if err != nil {
		return fmt.Errorf("lookup ledger entry: %w", err)
	}
	if err := entry.RemoveStock(req.Quantity); err != nil {
		return err
	}
	if err := s.ledgerRepo.Save(ctx, entry); err != nil {
		return fmt.Errorf("save ledger entry: %w", err)
	}

	if entry.IsDepleted() {
		if batch, err := s.batchRepo.FindByID(ctx, req.BatchID); err == nil {
			batch.MarkDepleted()
			if err := s.batchRepo.Save(ctx, batch); err != nil {
				s.logger.Warn("failed to mark batch depleted",
					zap.String("batch_id", req.BatchID.String()), zap.Error(err))
			}
		}
	}

	s.logger.Info("stock written off",
		zap.String("batch_id", req.BatchID.String()),
		zap.String("scope", req.Scope.String()),
		zap.String("quantity", req.Quantity.String()),
		zap.String("reason", req.Reason))
	return nil
}

// GetItemStock returns per-batch, per-scope stock levels for an item
func (s *Service) GetItemStock(ctx context.Context, itemID uuid.UUID) (*ItemStockResult, error) {
	if itemID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ITEM", "Item ID cannot be empty")
	}

	batches, err := s.batchRepo.FindByItem(ctx, itemID, shared.DefaultFilter())
	if err != nil {
		return nil, fmt.Errorf("load batches: %w", err)
	}

	result := &ItemStockResult{ItemID: itemID, Levels: make([]StockLevel, 0)}
	for i := range batches {
		batch := &batches[i]
		entries, err := s.ledgerRepo.FindByBatch(ctx, batch.ID)
		if err != nil {
			return nil, fmt.Errorf("load ledger entries: %w", err)
		}
		for _, e := range entries {
			result.Levels = append(result.Levels, StockLevel{
				BatchID:     batch.ID,
				BatchNumber: batch.BatchNumber,
				Scope:       e.Scope,
				ExpiryDate:  batch.ExpiryDate,
				Total:       e.TotalQuantity,
				Reserved:    e.ReservedQuantity,
				Available:   e.Available(),
			})
			result.TotalAvailable = result.TotalAvailable.Add(e.Available())
		}
	}
	return result, nil
}

// FindExpiringBatches lists active batches expiring within the given days
func (s *Service) FindExpiringBatches(ctx context.Context, withinDays int) ([]inventory.Batch, error) {
	if withinDays < 0 {
		return nil, shared.ErrInvalidInput
	}
	return s.batchRepo.FindExpiringSoon(ctx, withinDays, shared.DefaultFilter())
}
