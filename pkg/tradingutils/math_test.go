package tradingutils

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestRoundPrice(t *testing.T) {
	assert.True(t, d("98.98").Equal(RoundPrice(d("98.9798"), 2)))
	assert.True(t, d("97").Equal(RoundPrice(d("97.0004"), 2)))
	assert.True(t, d("100").Equal(RoundPrice(d("99.995"), 2)))
}

func TestRoundQuantity(t *testing.T) {
	assert.True(t, d("0.0051").Equal(RoundQuantity(d("0.00505"), 4)))
	assert.True(t, d("500").Equal(RoundQuantity(d("500.00004"), 4)))
}

func TestPercentToRatio(t *testing.T) {
	assert.True(t, d("0.02").Equal(PercentToRatio(d("2"))))
	assert.True(t, d("0.005").Equal(PercentToRatio(d("0.5"))))
	assert.True(t, decimal.Zero.Equal(PercentToRatio(decimal.Zero)))
}

func TestLadderEntryPrice(t *testing.T) {
	// Buy rungs walk down from the reference, sell rungs walk up.
	assert.True(t, d("98").Equal(LadderEntryPrice(d("100"), d("2"), true)))
	assert.True(t, d("102").Equal(LadderEntryPrice(d("100"), d("2"), false)))
	assert.True(t, d("96.04").Equal(LadderEntryPrice(d("98"), d("2"), true)))
}

func TestProfitTargetPrice(t *testing.T) {
	assert.True(t, d("98.98").Equal(ProfitTargetPrice(d("98"), d("1"), true)))
	assert.True(t, d("100.98").Equal(ProfitTargetPrice(d("102"), d("1"), false)))
}
