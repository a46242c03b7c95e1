package ladder

import (
	"time"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
	"ladder_maker/pkg/tradingutils"
)

// SlotState is the lifecycle state of one side's outstanding order.
type SlotState int

const (
	SlotNoOrder SlotState = iota
	SlotEntryPending
	SlotEntryOpen
	SlotTakeProfitPending
	SlotTakeProfitOpen
)

func (s SlotState) String() string {
	switch s {
	case SlotEntryPending:
		return "entry_pending"
	case SlotEntryOpen:
		return "entry_open"
	case SlotTakeProfitPending:
		return "take_profit_pending"
	case SlotTakeProfitOpen:
		return "take_profit_open"
	default:
		return "no_order"
	}
}

// sideSlot tracks the single outstanding order a side may hold. A second
// concurrent order on the same side would double-commit size.
type sideSlot struct {
	State       SlotState
	OrderID     OrderID
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	LastRefresh time.Time
	CancelSent  bool
}

func (s *sideSlot) clear() {
	s.State = SlotNoOrder
	s.OrderID = ""
	s.Price = decimal.Zero
	s.Quantity = decimal.Zero
	s.CancelSent = false
}

func (s *sideSlot) isEntry() bool {
	return s.State == SlotEntryPending || s.State == SlotEntryOpen
}

func (s *sideSlot) isTakeProfit() bool {
	return s.State == SlotTakeProfitPending || s.State == SlotTakeProfitOpen
}

// PlacementPolicy computes candidate ladder prices and decides whether a
// new entry is admissible given the size bounds and outstanding orders.
type PlacementPolicy struct {
	stepPercent       decimal.Decimal
	takeProfitPercent decimal.Decimal
	orderAmount       decimal.Decimal
	priceDecimals     int
	qtyDecimals       int
}

// NewPlacementPolicy creates a policy from validated configuration.
func NewPlacementPolicy(cfg *Config) *PlacementPolicy {
	return &PlacementPolicy{
		stepPercent:       cfg.StepPercent,
		takeProfitPercent: cfg.TakeProfitPercent,
		orderAmount:       cfg.OrderAmount,
		priceDecimals:     cfg.PriceDecimals,
		qtyDecimals:       cfg.QtyDecimals,
	}
}

// EntryPrice computes the next ladder level for a side from the moving
// reference price: one step below for buys, one step above for sells.
func (p *PlacementPolicy) EntryPrice(refPrice decimal.Decimal, side core.Side) decimal.Decimal {
	raw := tradingutils.LadderEntryPrice(refPrice, p.stepPercent, side == core.SideBuy)
	return tradingutils.RoundPrice(raw, p.priceDecimals)
}

// TakeProfitPrice computes the close level for an entry fill.
func (p *PlacementPolicy) TakeProfitPrice(entryPrice decimal.Decimal, entrySide core.Side) decimal.Decimal {
	raw := tradingutils.ProfitTargetPrice(entryPrice, p.takeProfitPercent, entrySide == core.SideBuy)
	return tradingutils.RoundPrice(raw, p.priceDecimals)
}

// TakeProfitSide returns the side of the order that closes an entry.
func (p *PlacementPolicy) TakeProfitSide(entrySide core.Side) core.Side {
	return entrySide.Opposite()
}

// OrderQuantity returns the per-order size, rounded.
func (p *PlacementPolicy) OrderQuantity() decimal.Decimal {
	return tradingutils.RoundQuantity(p.orderAmount, p.qtyDecimals)
}

// EntryAdmissible reports whether a new entry may be placed on a side:
// the side must hold no outstanding order and the committed size after a
// full fill must stay inside the configured bounds.
func (p *PlacementPolicy) EntryAdmissible(ledger *Ledger, side core.Side, slot *sideSlot) bool {
	if slot.State != SlotNoOrder {
		return false
	}
	return ledger.Within(p.orderAmount.Mul(side.Sign()))
}
