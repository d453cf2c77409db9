package inventory

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/wms/backend/internal/domain/inventory"
)

// ReceiveBatchRequest books a new batch of stock into a scope
type ReceiveBatchRequest struct {
	Kind            inventory.BatchKind `json:"kind"`
	ItemID          uuid.UUID           `json:"item_id"`
	BatchNumber     string              `json:"batch_number"`
	ManufactureDate *time.Time          `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time          `json:"expiry_date,omitempty"`
	Quantity        decimal.Decimal     `json:"quantity"`
	Scope           inventory.Scope     `json:"scope"`
}

// ReceiveBatchResult reports the batch and ledger entry created or updated
type ReceiveBatchResult struct {
	BatchID       uuid.UUID       `json:"batch_id"`
	LedgerEntryID uuid.UUID       `json:"ledger_entry_id"`
	Total         decimal.Decimal `json:"total"`
	Available     decimal.Decimal `json:"available"`
}

// StockLevel is one ledger row in a stock overview
type StockLevel struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Scope       inventory.Scope `json:"scope"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Total       decimal.Decimal `json:"total"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
}

// ItemStockResult summarizes stock for one item across batches and scopes
type ItemStockResult struct {
	ItemID         uuid.UUID       `json:"item_id"`
	Levels         []StockLevel    `json:"levels"`
	TotalAvailable decimal.Decimal `json:"total_available"`
}

// WriteOffRequest removes unreserved stock from a ledger entry (damage,
// expiry disposal)
type WriteOffRequest struct {
	BatchID  uuid.UUID       `json:"batch_id"`
	Scope    inventory.Scope `json:"scope"`
	Quantity decimal.Decimal `json:"quantity"`
	Reason   string          `json:"reason,omitempty"`
}
