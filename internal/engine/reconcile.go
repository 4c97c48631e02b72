package engine

import (
	"github.com/tgparkk/autoswingtrade/internal/domain"
)

// FillState is the classification of one order derived from the broker's two
// views. Known is false when the order appears in neither view; in that case
// nothing can be concluded and no other field is meaningful.
type FillState struct {
	Known        bool
	Cancelled    bool
	FilledQty    int64
	RemainingQty int64
	OrderQty     int64
}

// ClassifyFill merges the broker's amendable-order list and recent execution
// history into a fill state for one order. It is a pure function; the caller
// owns all I/O and all state mutation.
//
// Precedence: presence on the open-order list means the order is still live
// and that view wins outright, even if history rows also exist. Otherwise
// the execution history decides: matching rows are summed, and any cancel
// confirmation among them classifies the order as cancelled while the summed
// fills are kept, so a partially filled then cancelled order reaches a
// terminal state with its fills intact. A settlement record whose summed
// quantity is zero is treated as a full fill, since presence of the record
// is stronger evidence than a zero quantity field (a known broker data
// quirk). Absence from both views classifies as unknown; never infer
// completion from absence.
func ClassifyFill(orderID string, requestedQty int64, open []domain.OpenOrder, execs []domain.Execution) FillState {
	// Still-live branch: the open list is authoritative.
	for _, row := range open {
		if row.OrderID != orderID {
			continue
		}
		qty := row.Qty
		if qty <= 0 {
			qty = requestedQty
		}
		remaining := row.RemainingQty
		if remaining < 0 {
			remaining = 0
		}
		if remaining > qty {
			remaining = qty
		}
		return FillState{
			Known:        true,
			FilledQty:    qty - remaining,
			RemainingQty: remaining,
			OrderQty:     qty,
		}
	}

	var (
		found       bool
		cancelled   bool
		totalFilled int64
		orderQty    int64
	)
	for _, row := range execs {
		if row.OrderID != orderID {
			continue
		}
		found = true
		if row.Cancelled {
			cancelled = true
		}
		if row.ExecutedQty > 0 {
			totalFilled += row.ExecutedQty
		}
		if row.OrderQty > orderQty {
			orderQty = row.OrderQty
		}
	}
	if !found {
		return FillState{}
	}
	if orderQty <= 0 {
		orderQty = requestedQty
	}

	if cancelled {
		remaining := orderQty - totalFilled
		if remaining < 0 {
			remaining = 0
		}
		return FillState{
			Known:        true,
			Cancelled:    true,
			FilledQty:    totalFilled,
			RemainingQty: remaining,
			OrderQty:     orderQty,
		}
	}

	// Zero-quantity settlement records: treat as fully filled.
	if totalFilled == 0 {
		return FillState{
			Known:     true,
			FilledQty: orderQty,
			OrderQty:  orderQty,
		}
	}

	remaining := orderQty - totalFilled
	if remaining < 0 {
		remaining = 0
	}
	return FillState{
		Known:        true,
		FilledQty:    totalFilled,
		RemainingQty: remaining,
		OrderQty:     orderQty,
	}
}
