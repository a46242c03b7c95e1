package tradingutils

import (
	"github.com/shopspring/decimal"
)

var one = decimal.NewFromInt(1)
var hundred = decimal.NewFromInt(100)

// RoundPrice rounds a price to the specified decimals
func RoundPrice(price decimal.Decimal, priceDecimals int) decimal.Decimal {
	return price.Round(int32(priceDecimals))
}

// RoundQuantity rounds a quantity to the specified decimals
func RoundQuantity(qty decimal.Decimal, qtyDecimals int) decimal.Decimal {
	return qty.Round(int32(qtyDecimals))
}

// PercentToRatio converts a human percentage (2 => 2%) into a ratio (0.02).
func PercentToRatio(percent decimal.Decimal) decimal.Decimal {
	return percent.Div(hundred)
}

// LadderEntryPrice computes the next entry level below (buy) or above
// (sell) a reference price: ref * (1 -/+ stepPercent/100).
func LadderEntryPrice(refPrice, stepPercent decimal.Decimal, buy bool) decimal.Decimal {
	step := PercentToRatio(stepPercent)
	if buy {
		return refPrice.Mul(one.Sub(step))
	}
	return refPrice.Mul(one.Add(step))
}

// ProfitTargetPrice computes the take-profit level for an entry fill:
// above the fill for a bought entry, below it for a sold one.
func ProfitTargetPrice(entryPrice, takeProfitPercent decimal.Decimal, entryIsBuy bool) decimal.Decimal {
	ratio := PercentToRatio(takeProfitPercent)
	if entryIsBuy {
		return entryPrice.Mul(one.Add(ratio))
	}
	return entryPrice.Mul(one.Sub(ratio))
}
