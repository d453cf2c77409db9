package trade

// OrderSummaryStatus is the derived allocation status of a whole order
type OrderSummaryStatus string

const (
	// OrderStatusUnknown means the order has no items to summarize
	OrderStatusUnknown OrderSummaryStatus = "UNKNOWN"
	// OrderStatusPendingAllocation means no item has any stock allocated
	// and none has failed
	OrderStatusPendingAllocation OrderSummaryStatus = "PENDING_ALLOCATION"
	// OrderStatusPartiallyAllocated means at least one item has stock but
	// the order is not fully covered
	OrderStatusPartiallyAllocated OrderSummaryStatus = "PARTIALLY_ALLOCATED"
	// OrderStatusFullyAllocated means every item is fully covered
	OrderStatusFullyAllocated OrderSummaryStatus = "FULLY_ALLOCATED"
	// OrderStatusAllocationFailed means at least one item failed and no
	// item has any stock allocated
	OrderStatusAllocationFailed OrderSummaryStatus = "ALLOCATION_FAILED"
)

// String returns the string representation
func (s OrderSummaryStatus) String() string {
	return string(s)
}

// SummarizeAllocation derives an order level status from its item
// statuses. It is total: every input, including an empty slice and
// unrecognized item statuses, maps to a defined summary.
//
// Unrecognized item statuses are treated as PENDING so that a bad row
// never blocks summarization.
func SummarizeAllocation(items []ItemAllocationStatus) OrderSummaryStatus {
	if len(items) == 0 {
		return OrderStatusUnknown
	}

	var full, partial, failed, pending int
	for _, st := range items {
		switch st {
		case ItemStatusFullyAllocated:
			full++
		case ItemStatusPartiallyAllocated:
			partial++
		case ItemStatusAllocationFailed:
			failed++
		default:
			pending++
		}
	}

	switch {
	case full == len(items):
		return OrderStatusFullyAllocated
	case full > 0 || partial > 0:
		return OrderStatusPartiallyAllocated
	case failed > 0:
		return OrderStatusAllocationFailed
	default:
		return OrderStatusPendingAllocation
	}
}
