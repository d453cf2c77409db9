package inventory

import "github.com/wms/backend/internal/domain/shared"

// Allocation error taxonomy.
//
// ErrInsufficientStock is a ledger-level reserve failure: the row no longer
// holds the quantity the caller saw when it selected candidates. It is NOT
// the same thing as a demand shortfall, which the matcher reports as a
// result value (MatchResult.Shortfall), never as an error.
var (
	// ErrInvalidQuantity rejects zero or negative quantities before any
	// database interaction takes place.
	ErrInvalidQuantity = shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")

	// ErrInsufficientStock means a reserve exceeded the available quantity
	// on a ledger entry.
	ErrInsufficientStock = shared.NewDomainError("INSUFFICIENT_STOCK", "Insufficient available stock on ledger entry")

	// ErrOverRelease means a release exceeded the reserved quantity.
	// This indicates corrupted data or a programming error and is never retried.
	ErrOverRelease = shared.NewDomainError("OVER_RELEASE", "Release exceeds reserved quantity")

	// ErrConcurrentModification is a transient conflict; the caller may
	// safely re-read candidates and retry the whole item allocation.
	ErrConcurrentModification = shared.NewDomainError("CONCURRENT_MODIFICATION", "Ledger entry was modified by another transaction")
)
