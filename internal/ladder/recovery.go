package ladder

import (
	"fmt"

	"ladder_maker/internal/core"
	"ladder_maker/pkg/orderid"
)

// Recover reconstructs engine state from venue snapshots after a cold
// start. It must run exactly once before ProcessUpdates. Open orders
// not carrying this strategy's id prefix are left untouched; owned
// take-profits are cancelled and re-derived from the rebuilt stack, and
// each side keeps at most its most recently updated entry.
func (e *Engine) Recover(openOrders []*core.Order, position *core.PositionSnapshot) (*Result, error) {
	if e.recovered {
		return nil, fmt.Errorf("recovery already completed")
	}

	res := &Result{}
	keep := map[core.Side]*core.Order{}

	for _, o := range openOrders {
		if !orderid.Owns(e.cfg.StrategyID, o.ClientOrderID) {
			continue
		}
		_, kind, sideBuy, ok := orderid.Parse(o.ClientOrderID)
		if !ok {
			res.diag(core.DiagDebug, core.DiagCodeUnknownOrder,
				"owned order with unparseable id ignored", OrderID(o.ClientOrderID))
			continue
		}

		if kind == orderid.KindTakeProfit {
			// Recovered take-profits may target a stack we can no
			// longer reconstruct precisely; cancel and re-derive.
			res.addCancel(OrderID(o.ClientOrderID))
			continue
		}

		side := core.SideSell
		if sideBuy {
			side = core.SideBuy
		}
		cur := keep[side]
		switch {
		case cur == nil:
			keep[side] = o
		case o.UpdateTime > cur.UpdateTime:
			res.diag(core.DiagWarn, core.DiagCodeDuplicateRecovery,
				"multiple open entries recovered on one side; cancelling the older", OrderID(cur.ClientOrderID))
			res.addCancel(OrderID(cur.ClientOrderID))
			keep[side] = o
		default:
			res.diag(core.DiagWarn, core.DiagCodeDuplicateRecovery,
				"multiple open entries recovered on one side; cancelling the older", OrderID(o.ClientOrderID))
			res.addCancel(OrderID(o.ClientOrderID))
		}
	}

	now := e.now()
	for side, o := range keep {
		id := OrderID(o.ClientOrderID)
		e.registry.Put(id, EntryMeta{Side: side, CreatedAt: now})
		e.tracker.Seed(o.AsUpdate())

		slot := e.slotFor(side)
		slot.State = SlotEntryOpen
		slot.OrderID = id
		slot.Price = o.Price
		slot.Quantity = o.Quantity
	}

	if position != nil && !position.Size.IsZero() && e.ledger.Depth() == 0 {
		side := core.SideSell
		if position.Size.IsPositive() {
			side = core.SideBuy
		}
		price := position.EntryPrice
		if price.IsZero() {
			price = e.refPrice
		}
		id := e.newOrderID(orderid.KindEntry, side)
		if err := e.ledger.SeedEntry(side, position.Size.Abs(), price, id, now.UnixMilli()); err != nil {
			return nil, fmt.Errorf("recovered position violates size bounds: %w", err)
		}
		e.registry.Put(id, EntryMeta{Side: side, CreatedAt: now})
		e.logger.Info(fmt.Sprintf("seeded synthetic entry %s for recovered position %s @ %s", id, position.Size, price))
	}

	e.recovered = true
	e.evaluate(res)
	e.finishPass(res)
	return res, nil
}
