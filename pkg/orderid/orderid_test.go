package orderid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(ms int64) func() time.Time {
	return func() time.Time { return time.UnixMilli(ms) }
}

func TestNextEncodesStrategyKindAndSide(t *testing.T) {
	g := &Generator{Now: fixedClock(1700000000000)}

	id := g.Next("lad1", KindEntry, true)
	assert.Equal(t, "lad1-EB-1700000000000001", id)

	id = g.Next("lad1", KindTakeProfit, false)
	assert.Equal(t, "lad1-TS-1700000000000002", id)
}

func TestNextDisambiguatesSameMillisecond(t *testing.T) {
	g := &Generator{Now: fixedClock(1700000000000)}

	a := g.Next("lad1", KindEntry, true)
	b := g.Next("lad1", KindEntry, true)
	assert.NotEqual(t, a, b)
}

func TestOwns(t *testing.T) {
	assert.True(t, Owns("lad1", "lad1-EB-1700000000000000"))
	assert.False(t, Owns("lad1", "lad2-EB-1700000000000000"))
	assert.False(t, Owns("lad1", "lad10-EB-1700000000000000"))
	assert.False(t, Owns("lad1", "manual"))
	assert.False(t, Owns("lad1", ""))
}

func TestParseRoundTrip(t *testing.T) {
	g := &Generator{Now: fixedClock(1700000000000)}
	id := g.Next("lad1", KindTakeProfit, false)

	strategyID, kind, sideBuy, ok := Parse(id)
	require.True(t, ok)
	assert.Equal(t, "lad1", strategyID)
	assert.Equal(t, KindTakeProfit, kind)
	assert.False(t, sideBuy)
}

func TestParseRejectsMalformed(t *testing.T) {
	cases := []string{
		"",
		"manual",
		"lad1-EB",
		"lad1-EB-1-2",
		"lad1-XB-1700000000000000",
		"lad1-EX-1700000000000000",
		"lad1--1700000000000000",
	}
	for _, id := range cases {
		_, _, _, ok := Parse(id)
		assert.False(t, ok, "expected %q to be rejected", id)
	}
}
