package ladder

import (
	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
)

// TrackResult classifies one order update after timestamp gating.
type TrackResult struct {
	// Accepted is false for duplicates and out-of-order retransmits;
	// rejected updates must not mutate any downstream state.
	Accepted bool
	// FirstSeen marks the first observation of a client order id.
	FirstSeen bool
	// FillDelta is the newly executed quantity since the last applied
	// update, clamped at zero.
	FillDelta decimal.Decimal
}

// StateTracker deduplicates and orders incoming order updates per client
// order id using monotonic update timestamps. It is the sole gate
// against duplicate and out-of-order delivery.
type StateTracker struct {
	last map[OrderID]core.OrderUpdate
}

// NewStateTracker creates an empty tracker.
func NewStateTracker() *StateTracker {
	return &StateTracker{last: make(map[OrderID]core.OrderUpdate)}
}

// Apply gates one update. An absent id is a first observation; a present
// id is accepted only when the update timestamp strictly exceeds the
// last applied one. Accepted updates become the stored snapshot.
func (t *StateTracker) Apply(u core.OrderUpdate) TrackResult {
	id := OrderID(u.ClientOrderID)

	prev, seen := t.last[id]
	if !seen {
		t.last[id] = u
		return TrackResult{
			Accepted:  true,
			FirstSeen: true,
			FillDelta: clampPositive(u.ExecutedQty),
		}
	}

	if u.UpdateTime <= prev.UpdateTime {
		return TrackResult{}
	}

	delta := clampPositive(u.ExecutedQty.Sub(prev.ExecutedQty))
	t.last[id] = u
	return TrackResult{Accepted: true, FillDelta: delta}
}

// Seed installs a snapshot without first-observation semantics, used at
// recovery so live updates diff against the recovered executed quantity.
func (t *StateTracker) Seed(u core.OrderUpdate) {
	t.last[OrderID(u.ClientOrderID)] = u
}

// Last returns the last applied snapshot for an id.
func (t *StateTracker) Last(id OrderID) (core.OrderUpdate, bool) {
	u, ok := t.last[id]
	return u, ok
}

// Forget drops the stored snapshot for an id.
func (t *StateTracker) Forget(id OrderID) {
	delete(t.last, id)
}

// Len returns the number of tracked ids.
func (t *StateTracker) Len() int {
	return len(t.last)
}

// Each visits every tracked snapshot.
func (t *StateTracker) Each(fn func(u core.OrderUpdate)) {
	for _, u := range t.last {
		fn(u)
	}
}

func clampPositive(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
