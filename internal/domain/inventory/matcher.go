package inventory

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BatchCandidate is one (batch, scope) pair eligible for allocation,
// carrying the available quantity the caller read from the ledger.
type BatchCandidate struct {
	Batch     Batch
	Scope     Scope
	Available decimal.Decimal
}

// AllocationTuple is one matcher decision: take Quantity of BatchID in Scope
type AllocationTuple struct {
	BatchID  uuid.UUID       `json:"batch_id"`
	Scope    Scope           `json:"scope"`
	Quantity decimal.Decimal `json:"quantity"`
}

// MatchResult is the outcome of matching an outstanding demand against
// candidates. A shortfall is a valid partial-fulfillment outcome, not an
// error; the tuples never sum to more than the requested quantity.
type MatchResult struct {
	Requested decimal.Decimal   `json:"requested"`
	Allocated decimal.Decimal   `json:"allocated"`
	Shortfall decimal.Decimal   `json:"shortfall"`
	Tuples    []AllocationTuple `json:"tuples"`
}

// FullyMatched returns true when the demand was satisfied in full
func (r *MatchResult) FullyMatched() bool {
	return r.Shortfall.IsZero()
}

// Matcher selects batches to satisfy an outstanding demand
type Matcher interface {
	// Match consumes candidates greedily until the requested quantity is
	// satisfied or candidates are exhausted
	Match(requested decimal.Decimal, candidates []BatchCandidate) (*MatchResult, error)
}

// FEFOMatcher implements first-expire-first-out selection: earliest expiry
// first, batches without expiry last, ties broken by batch creation time
// (oldest first) for determinism.
type FEFOMatcher struct {
	now func() time.Time
}

// NewFEFOMatcher creates a FEFO matcher
func NewFEFOMatcher() *FEFOMatcher {
	return &FEFOMatcher{now: time.Now}
}

// NewFEFOMatcherAt creates a FEFO matcher with a fixed reference time for
// expiry checks. Used in tests.
func NewFEFOMatcherAt(now func() time.Time) *FEFOMatcher {
	return &FEFOMatcher{now: now}
}

// Match selects batches in FEFO order
func (m *FEFOMatcher) Match(requested decimal.Decimal, candidates []BatchCandidate) (*MatchResult, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidQuantity
	}

	eligible := m.filterEligible(candidates)
	sortFEFO(eligible)

	result := &MatchResult{
		Requested: requested,
		Allocated: decimal.Zero,
		Tuples:    make([]AllocationTuple, 0, len(eligible)),
	}

	remaining := requested
	for _, c := range eligible {
		if remaining.IsZero() {
			break
		}
		take := decimal.Min(remaining, c.Available)
		result.Tuples = append(result.Tuples, AllocationTuple{
			BatchID:  c.Batch.ID,
			Scope:    c.Scope,
			Quantity: take,
		})
		result.Allocated = result.Allocated.Add(take)
		remaining = remaining.Sub(take)
	}

	result.Shortfall = remaining
	return result, nil
}

// filterEligible drops expired and non-active batches and empty candidates
func (m *FEFOMatcher) filterEligible(candidates []BatchCandidate) []BatchCandidate {
	ref := m.now()
	eligible := make([]BatchCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Batch.Status != BatchStatusActive || c.Batch.IsExpiredAt(ref) {
			continue
		}
		if c.Available.LessThanOrEqual(decimal.Zero) {
			continue
		}
		eligible = append(eligible, c)
	}
	return eligible
}

// sortFEFO orders candidates by expiry ascending, nil expiry last, then by
// batch creation time for stable tie breaking
func sortFEFO(candidates []BatchCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		ei, ej := candidates[i].Batch.ExpiryDate, candidates[j].Batch.ExpiryDate
		if ei != nil && ej != nil {
			if !ei.Equal(*ej) {
				return ei.Before(*ej)
			}
		} else if ei != nil {
			return true
		} else if ej != nil {
			return false
		}
		return candidates[i].Batch.CreatedAt.Before(candidates[j].Batch.CreatedAt)
	})
}

// Ensure FEFOMatcher implements Matcher
var _ Matcher = (*FEFOMatcher)(nil)
