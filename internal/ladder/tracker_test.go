package ladder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/core"
)

func TestTrackerFirstObservation(t *testing.T) {
	tr := NewStateTracker()

	res := tr.Apply(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "120", "98", "98", 1000))
	assert.True(t, res.Accepted)
	assert.True(t, res.FirstSeen)
	requireEq(t, "120", res.FillDelta)
	assert.Equal(t, 1, tr.Len())
}

func TestTrackerRejectsEqualAndOlderTimestamps(t *testing.T) {
	tr := NewStateTracker()
	tr.Apply(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "200", "98", "98", 2000))

	dup := tr.Apply(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "200", "98", "98", 2000))
	assert.False(t, dup.Accepted)

	older := tr.Apply(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "300", "98", "98", 1500))
	assert.False(t, older.Accepted)

	last, ok := tr.Last("o1")
	require.True(t, ok)
	requireEq(t, "200", last.ExecutedQty)
}

func TestTrackerFillDeltaIsDifference(t *testing.T) {
	tr := NewStateTracker()
	tr.Apply(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "200", "98", "98", 1000))

	res := tr.Apply(update("o1", core.SideBuy, core.OrderStatusFilled, "500", "500", "98", "98", 2000))
	assert.True(t, res.Accepted)
	assert.False(t, res.FirstSeen)
	requireEq(t, "300", res.FillDelta)
}

func TestTrackerClampsShrinkingExecuted(t *testing.T) {
	tr := NewStateTracker()
	tr.Apply(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "300", "98", "98", 1000))

	// Newer timestamp but a smaller executed quantity: the update is
	// applied (status may still progress) with no fill delta.
	res := tr.Apply(update("o1", core.SideBuy, core.OrderStatusCanceled, "500", "250", "98", "98", 2000))
	assert.True(t, res.Accepted)
	requireEq(t, "0", res.FillDelta)
}

func TestTrackerSeedSuppressesRecoveredFills(t *testing.T) {
	tr := NewStateTracker()
	tr.Seed(update("o1", core.SideBuy, core.OrderStatusPartiallyFilled, "500", "200", "98", "98", 1000))

	res := tr.Apply(update("o1", core.SideBuy, core.OrderStatusFilled, "500", "500", "98", "98", 2000))
	assert.True(t, res.Accepted)
	assert.False(t, res.FirstSeen)
	requireEq(t, "300", res.FillDelta)
}

func TestTrackerForget(t *testing.T) {
	tr := NewStateTracker()
	tr.Apply(update("o1", core.SideBuy, core.OrderStatusNew, "500", "0", "98", "0", 1000))
	tr.Forget("o1")

	// A later retransmit is a fresh first observation.
	res := tr.Apply(update("o1", core.SideBuy, core.OrderStatusNew, "500", "0", "98", "0", 500))
	assert.True(t, res.Accepted)
	assert.True(t, res.FirstSeen)
	assert.Equal(t, 1, tr.Len())
}
