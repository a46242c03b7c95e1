package ladder

import (
	"fmt"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
)

// FilledEntry is one still-open filled entry on the LIFO stack.
// Remaining shrinks as take-profits close it; RefPriceBefore is the
// reference price in effect immediately before this fill, restored when
// the entry is fully unwound so the ladder re-centers correctly.
type FilledEntry struct {
	Side           core.Side
	Price          decimal.Decimal
	Remaining      decimal.Decimal
	OrderID        OrderID
	FilledAt       int64
	RefPriceBefore decimal.Decimal
}

// ClosedSlice describes the portion of one stack entry closed by a
// take-profit fill.
type ClosedSlice struct {
	Entry  FilledEntry
	Amount decimal.Decimal
	Popped bool
}

// CloseResult is the outcome of walking the stack for one fill delta.
type CloseResult struct {
	Slices []ClosedSlice
	// RestoredRef is the pre-fill reference price of the deepest popped
	// entry; valid only when PoppedAny is true.
	RestoredRef decimal.Decimal
	PoppedAny   bool
	// Leftover is any unclosable remainder of the delta once the stack
	// is exhausted (a fill anomaly surfaced to the caller).
	Leftover decimal.Decimal
}

// Ledger is the single source of truth for net committed size, paired
// with the LIFO stack of still-open filled entries. tradedSize reflects
// only this instance's own order flow; it is never synchronized from
// venue-reported positions during live operation.
type Ledger struct {
	minSize decimal.Decimal
	maxSize decimal.Decimal
	traded  decimal.Decimal
	stack   []FilledEntry // top is the last element
}

// NewLedger creates a ledger with the given size bounds.
func NewLedger(minSize, maxSize decimal.Decimal) (*Ledger, error) {
	if minSize.GreaterThan(maxSize) {
		return nil, fmt.Errorf("invalid size bounds: min %s > max %s", minSize, maxSize)
	}
	return &Ledger{minSize: minSize, maxSize: maxSize}, nil
}

// TradedSize returns the signed net committed size.
func (l *Ledger) TradedSize() decimal.Decimal {
	return l.traded
}

// Within reports whether tradedSize+delta stays inside [minSize, maxSize].
func (l *Ledger) Within(delta decimal.Decimal) bool {
	next := l.traded.Add(delta)
	return next.GreaterThanOrEqual(l.minSize) && next.LessThanOrEqual(l.maxSize)
}

// ApplyEntryFill commits a positive fill delta for an entry order:
// tradedSize moves by +qty (buy) or -qty (sell) and the stack top is
// extended in place when the same order continues to fill, pushed
// otherwise. Bound violations reject the whole mutation.
func (l *Ledger) ApplyEntryFill(side core.Side, qty, price decimal.Decimal, id OrderID, filledAt int64, refBefore decimal.Decimal) error {
	if !qty.IsPositive() {
		return fmt.Errorf("entry fill delta must be positive, got %s", qty)
	}
	delta := qty.Mul(side.Sign())
	if !l.Within(delta) {
		return fmt.Errorf("entry fill of %s would move tradedSize %s outside [%s, %s]",
			delta, l.traded, l.minSize, l.maxSize)
	}

	l.traded = l.traded.Add(delta)

	if n := len(l.stack); n > 0 && l.stack[n-1].OrderID == id && l.stack[n-1].Side == side {
		top := &l.stack[n-1]
		top.Remaining = top.Remaining.Add(qty)
		top.Price = price
		top.FilledAt = filledAt
		return nil
	}

	l.stack = append(l.stack, FilledEntry{
		Side:           side,
		Price:          price,
		Remaining:      qty,
		OrderID:        id,
		FilledAt:       filledAt,
		RefPriceBefore: refBefore,
	})
	return nil
}

// SeedEntry installs a synthetic entry at recovery so that a nonzero
// inherited size always has a closable entry.
func (l *Ledger) SeedEntry(side core.Side, qty, price decimal.Decimal, id OrderID, filledAt int64) error {
	if len(l.stack) != 0 {
		return fmt.Errorf("cannot seed entry over a non-empty stack")
	}
	return l.ApplyEntryFill(side, qty, price, id, filledAt, price)
}

// CloseFromTop walks the stack from the top, closing entries until the
// delta is exhausted. tradedSize decreases by the closed amount on the
// opposite sign of each closed entry's side. The mutation is atomic:
// the stack and tradedSize change only after the whole walk succeeds.
func (l *Ledger) CloseFromTop(qty decimal.Decimal) (CloseResult, error) {
	if !qty.IsPositive() {
		return CloseResult{}, fmt.Errorf("close delta must be positive, got %s", qty)
	}

	res := CloseResult{}
	remaining := qty
	newTraded := l.traded
	cut := len(l.stack)

	for i := len(l.stack) - 1; i >= 0 && remaining.IsPositive(); i-- {
		entry := l.stack[i]
		amount := decimal.Min(remaining, entry.Remaining)

		newTraded = newTraded.Sub(amount.Mul(entry.Side.Sign()))
		remaining = remaining.Sub(amount)

		popped := amount.Equal(entry.Remaining)
		res.Slices = append(res.Slices, ClosedSlice{Entry: entry, Amount: amount, Popped: popped})
		if popped {
			res.PoppedAny = true
			res.RestoredRef = entry.RefPriceBefore
			cut = i
		}
	}
	res.Leftover = remaining

	if newTraded.LessThan(l.minSize) || newTraded.GreaterThan(l.maxSize) {
		return CloseResult{}, fmt.Errorf("close of %s would move tradedSize %s outside [%s, %s]",
			qty, l.traded, l.minSize, l.maxSize)
	}

	// Commit
	l.traded = newTraded
	if len(res.Slices) > 0 {
		partial := res.Slices[len(res.Slices)-1]
		l.stack = l.stack[:cut]
		if !partial.Popped {
			top := &l.stack[len(l.stack)-1]
			top.Remaining = top.Remaining.Sub(partial.Amount)
		}
	}
	return res, nil
}

// Top returns the most recently filled still-open entry.
func (l *Ledger) Top() (FilledEntry, bool) {
	if len(l.stack) == 0 {
		return FilledEntry{}, false
	}
	return l.stack[len(l.stack)-1], true
}

// Depth returns the number of open entries.
func (l *Ledger) Depth() int {
	return len(l.stack)
}

// Entries returns a copy of the stack, bottom first.
func (l *Ledger) Entries() []FilledEntry {
	out := make([]FilledEntry, len(l.stack))
	copy(out, l.stack)
	return out
}

// StackSum returns the sum of Remaining across all entries; for every
// reachable state it must equal |tradedSize|.
func (l *Ledger) StackSum() decimal.Decimal {
	sum := decimal.Zero
	for _, e := range l.stack {
		sum = sum.Add(e.Remaining)
	}
	return sum
}

// restore replaces internal state from a persisted snapshot.
func (l *Ledger) restore(traded decimal.Decimal, entries []FilledEntry) {
	l.traded = traded
	l.stack = append([]FilledEntry(nil), entries...)
}
