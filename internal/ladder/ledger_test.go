package ladder

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/core"
)

func newTestLedger(t *testing.T, min, max string) *Ledger {
	t.Helper()
	l, err := NewLedger(d(min), d(max))
	require.NoError(t, err)
	return l
}

func TestNewLedgerRejectsInvertedBounds(t *testing.T) {
	_, err := NewLedger(d("10"), d("5"))
	require.Error(t, err)
}

func TestApplyEntryFillMovesTradedSize(t *testing.T) {
	l := newTestLedger(t, "-1000", "1000")

	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("300"), d("98"), "e1", 1000, d("100")))
	requireEq(t, "300", l.TradedSize())

	require.NoError(t, l.ApplyEntryFill(core.SideSell, d("100"), d("102"), "e2", 2000, d("98")))
	requireEq(t, "200", l.TradedSize())
	assert.Equal(t, 2, l.Depth())
}

func TestApplyEntryFillRejectsBoundViolation(t *testing.T) {
	l := newTestLedger(t, "0", "500")

	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("400"), d("98"), "e1", 1000, d("100")))
	err := l.ApplyEntryFill(core.SideBuy, d("200"), d("97"), "e2", 2000, d("98"))
	require.Error(t, err)

	// Rejected mutation leaves nothing behind.
	requireEq(t, "400", l.TradedSize())
	assert.Equal(t, 1, l.Depth())
}

func TestApplyEntryFillRejectsNonPositiveDelta(t *testing.T) {
	l := newTestLedger(t, "0", "500")
	require.Error(t, l.ApplyEntryFill(core.SideBuy, decimal.Zero, d("98"), "e1", 1000, d("100")))
	require.Error(t, l.ApplyEntryFill(core.SideBuy, d("-5"), d("98"), "e1", 1000, d("100")))
}

func TestApplyEntryFillExtendsSameOrderInPlace(t *testing.T) {
	l := newTestLedger(t, "0", "1000")

	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("200"), d("98"), "e1", 1000, d("100")))
	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("150"), d("98.1"), "e1", 2000, d("98")))

	assert.Equal(t, 1, l.Depth())
	top, ok := l.Top()
	require.True(t, ok)
	requireEq(t, "350", top.Remaining)
	requireEq(t, "98.1", top.Price)
	// Pre-fill reference of the first slice is kept.
	requireEq(t, "100", top.RefPriceBefore)
}

func TestCloseFromTopPartialReducesTop(t *testing.T) {
	l := newTestLedger(t, "0", "1000")
	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("500"), d("98"), "e1", 1000, d("100")))

	res, err := l.CloseFromTop(d("200"))
	require.NoError(t, err)

	assert.False(t, res.PoppedAny)
	requireEq(t, "0", res.Leftover)
	require.Len(t, res.Slices, 1)
	requireEq(t, "200", res.Slices[0].Amount)

	requireEq(t, "300", l.TradedSize())
	top, _ := l.Top()
	requireEq(t, "300", top.Remaining)
}

func TestCloseFromTopSpansEntriesLifo(t *testing.T) {
	l := newTestLedger(t, "0", "2000")
	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("500"), d("98"), "e1", 1000, d("100")))
	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("500"), d("96"), "e2", 2000, d("98")))

	// Closes all of e2 and 100 of e1.
	res, err := l.CloseFromTop(d("600"))
	require.NoError(t, err)

	require.Len(t, res.Slices, 2)
	assert.Equal(t, OrderID("e2"), res.Slices[0].Entry.OrderID)
	assert.True(t, res.Slices[0].Popped)
	assert.Equal(t, OrderID("e1"), res.Slices[1].Entry.OrderID)
	assert.False(t, res.Slices[1].Popped)

	assert.True(t, res.PoppedAny)
	// Deepest popped entry is e2; its pre-fill reference was 98.
	requireEq(t, "98", res.RestoredRef)

	requireEq(t, "400", l.TradedSize())
	assert.Equal(t, 1, l.Depth())
	top, _ := l.Top()
	requireEq(t, "400", top.Remaining)
	assert.True(t, l.StackSum().Equal(l.TradedSize().Abs()))
}

func TestCloseFromTopExhaustsStackWithLeftover(t *testing.T) {
	l := newTestLedger(t, "0", "1000")
	require.NoError(t, l.ApplyEntryFill(core.SideBuy, d("500"), d("98"), "e1", 1000, d("100")))

	res, err := l.CloseFromTop(d("650"))
	require.NoError(t, err)

	requireEq(t, "150", res.Leftover)
	assert.True(t, res.PoppedAny)
	requireEq(t, "100", res.RestoredRef)
	assert.Equal(t, 0, l.Depth())
	requireEq(t, "0", l.TradedSize())
}

func TestCloseFromTopShortSide(t *testing.T) {
	l := newTestLedger(t, "-1000", "0")
	require.NoError(t, l.ApplyEntryFill(core.SideSell, d("400"), d("102"), "s1", 1000, d("100")))
	requireEq(t, "-400", l.TradedSize())

	// A buy-side close moves tradedSize back toward zero.
	res, err := l.CloseFromTop(d("400"))
	require.NoError(t, err)
	assert.True(t, res.PoppedAny)
	requireEq(t, "0", l.TradedSize())
}

func TestSeedEntryOnlyOnEmptyStack(t *testing.T) {
	l := newTestLedger(t, "0", "1000")
	require.NoError(t, l.SeedEntry(core.SideBuy, d("600"), d("97"), "seed", 1000))

	top, ok := l.Top()
	require.True(t, ok)
	requireEq(t, "600", top.Remaining)
	requireEq(t, "97", top.RefPriceBefore)

	require.Error(t, l.SeedEntry(core.SideBuy, d("100"), d("97"), "seed2", 2000))
}

func TestSeedEntryRejectsOutOfBounds(t *testing.T) {
	l := newTestLedger(t, "0", "500")
	require.Error(t, l.SeedEntry(core.SideBuy, d("600"), d("97"), "seed", 1000))
}
