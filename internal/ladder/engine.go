// Package ladder implements the order-lifecycle reconciliation and
// signal-generation core shared by the ladder/grid strategies: an
// event-sourced state machine reconciling local belief against an
// eventually-consistent execution venue.
package ladder

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
	"ladder_maker/pkg/orderid"
	"ladder_maker/pkg/telemetry"
	"ladder_maker/pkg/tradingutils"
)

// ErrNotRecovered is returned when live updates arrive before Recover
// has reconstructed state from venue snapshots.
var ErrNotRecovered = fmt.Errorf("engine has not completed recovery")

// Result carries everything one processing pass produced: outbound
// signals for the execution layer (ending in an explicit Hold when
// nothing else was emitted) and diagnostics callers can assert on.
type Result struct {
	Signals     []core.Signal
	Diagnostics []core.Diagnostic
}

func (r *Result) addPlace(req *core.PlaceOrderRequest) {
	r.Signals = append(r.Signals, core.Signal{Type: core.SignalTypePlace, Place: req})
}

func (r *Result) addCancel(clientOrderID OrderID) {
	r.Signals = append(r.Signals, core.Signal{Type: core.SignalTypeCancel, CancelOrderID: string(clientOrderID)})
}

func (r *Result) diag(level core.DiagLevel, code, msg string, id OrderID) {
	r.Diagnostics = append(r.Diagnostics, core.Diagnostic{
		Level:         level,
		Code:          code,
		Message:       msg,
		ClientOrderID: string(id),
	})
}

// Engine is one strategy instance's decision core. It is a
// single-threaded, single-owner state machine: callers must not invoke
// overlapping processing calls on the same instance. There is no
// blocking I/O inside; each call is pure state transformation producing
// signals.
type Engine struct {
	cfg      Config
	logger   core.ILogger
	policy   *PlacementPolicy
	ledger   *Ledger
	tracker  *StateTracker
	registry *MetadataRegistry

	refPrice  decimal.Decimal
	buySlot   sideSlot
	sellSlot  sideSlot
	recovered bool

	now     func() time.Time
	ids     *orderid.Generator
	metrics *telemetry.MetricsHolder
}

// NewEngine validates the configuration and constructs an engine.
// Invalid bounds or take-profit/step ratios fail here, never later.
func NewEngine(cfg Config, logger core.ILogger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	ledger, err := NewLedger(cfg.MinSize, cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	return &Engine{
		cfg:      cfg,
		logger:   logger.WithField("component", "ladder_engine").WithField("strategy", cfg.StrategyID),
		policy:   NewPlacementPolicy(&cfg),
		ledger:   ledger,
		tracker:  NewStateTracker(),
		registry: NewMetadataRegistry(),
		refPrice: cfg.BasePrice,
		now:      time.Now,
		ids:      &orderid.Generator{},
	}, nil
}

// SetClock overrides the engine clock, for tests.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.ids.Now = now
}

// SetMetrics attaches the telemetry holder updated after every pass.
func (e *Engine) SetMetrics(m *telemetry.MetricsHolder) {
	e.metrics = m
}

// StrategyID returns the owning strategy instance id.
func (e *Engine) StrategyID() string { return e.cfg.StrategyID }

// TradedSize returns the signed net committed size.
func (e *Engine) TradedSize() decimal.Decimal { return e.ledger.TradedSize() }

// ReferencePrice returns the current ladder reference price.
func (e *Engine) ReferencePrice() decimal.Decimal { return e.refPrice }

// StackDepth returns the number of open LIFO entries.
func (e *Engine) StackDepth() int { return e.ledger.Depth() }

// ProcessUpdates consumes one batch of order updates, mutates state
// through accepted deltas only, and emits the resulting signals. The
// effects of each accepted event apply fully or not at all.
func (e *Engine) ProcessUpdates(batch []core.OrderUpdate) (*Result, error) {
	if !e.recovered {
		return nil, ErrNotRecovered
	}

	res := &Result{}
	for i := range batch {
		if err := e.processOne(batch[i], res); err != nil {
			return res, err
		}
	}

	e.evaluate(res)
	e.finishPass(res)
	return res, nil
}

func (e *Engine) processOne(u core.OrderUpdate, res *Result) error {
	id := OrderID(u.ClientOrderID)

	meta, known := e.registry.Get(id)
	if !known {
		res.diag(core.DiagDebug, core.DiagCodeUnknownOrder, "update for order with no metadata ignored", id)
		return nil
	}

	tr := e.tracker.Apply(u)
	if !tr.Accepted {
		res.diag(core.DiagDebug, core.DiagCodeStaleUpdate, "stale or duplicate update dropped", id)
		return nil
	}

	switch m := meta.(type) {
	case EntryMeta:
		return e.applyEntryUpdate(u, m, id, tr, res)
	case TakeProfitMeta:
		return e.applyTakeProfitUpdate(u, m, id, tr, res)
	}
	return fmt.Errorf("unhandled signal metadata kind %T", meta)
}

func (e *Engine) applyEntryUpdate(u core.OrderUpdate, m EntryMeta, id OrderID, tr TrackResult, res *Result) error {
	slot := e.slotFor(m.Side)

	if tr.FillDelta.IsPositive() {
		price := u.FillPrice()
		if err := e.ledger.ApplyEntryFill(m.Side, tr.FillDelta, price, id, u.UpdateTime, e.refPrice); err != nil {
			return err
		}
		e.refPrice = price
	}

	switch u.Status {
	case core.OrderStatusNew, core.OrderStatusPartiallyFilled:
		if slot.OrderID == id && slot.State == SlotEntryPending {
			slot.State = SlotEntryOpen
		}
	case core.OrderStatusFilled:
		// Side is free to consider a replacement entry; the metadata
		// stays until the take-profit unwinds the stack entry.
		if slot.OrderID == id {
			slot.clear()
		}
	case core.OrderStatusCanceled, core.OrderStatusRejected, core.OrderStatusExpired:
		e.finishEntryTermination(u, m, id, slot, res)
	}
	return nil
}

// finishEntryTermination handles an entry that reached a terminal
// status without being fully filled.
func (e *Engine) finishEntryTermination(u core.OrderUpdate, m EntryMeta, id OrderID, slot *sideSlot, res *Result) {
	if slot.OrderID == id {
		slot.clear()
	}

	if _, _, ok := e.registry.TakeProfitForParent(id); ok {
		// Filled then late-cancelled race: the take-profit lifecycle
		// governs closing, no size adjustment here.
		return
	}

	if u.ExecutedQty.IsPositive() {
		unfilled := u.Quantity.Sub(u.ExecutedQty)
		res.diag(core.DiagInfo, core.DiagCodeSizeReleased,
			fmt.Sprintf("entry terminated after partial fill; released unfilled %s, closing %s via take-profit", unfilled, u.ExecutedQty), id)
		e.emitTakeProfit(res)
		return
	}

	e.registry.Delete(id)
	e.tracker.Forget(id)
	res.diag(core.DiagInfo, core.DiagCodeSizeReleased,
		fmt.Sprintf("entry terminated unfilled; released %s", u.Quantity), id)
}

func (e *Engine) applyTakeProfitUpdate(u core.OrderUpdate, m TakeProfitMeta, id OrderID, tr TrackResult, res *Result) error {
	slot := e.slotFor(m.Side)

	if tr.FillDelta.IsPositive() {
		cr, err := e.ledger.CloseFromTop(tr.FillDelta)
		if err != nil {
			return err
		}
		for _, s := range cr.Slices {
			if s.Popped {
				e.registry.Delete(s.Entry.OrderID)
				e.tracker.Forget(s.Entry.OrderID)
			}
		}
		if cr.PoppedAny {
			e.refPrice = cr.RestoredRef
		}
		if cr.Leftover.IsPositive() {
			res.diag(core.DiagWarn, core.DiagCodeFillOverflow,
				fmt.Sprintf("take-profit fill exceeded open entries by %s", cr.Leftover), id)
		}
	}

	switch u.Status {
	case core.OrderStatusNew, core.OrderStatusPartiallyFilled:
		if slot.OrderID == id && slot.State == SlotTakeProfitPending {
			slot.State = SlotTakeProfitOpen
		}
	case core.OrderStatusFilled:
		e.registry.Delete(id)
		e.tracker.Forget(id)
		if slot.OrderID == id {
			slot.clear()
		}
	case core.OrderStatusCanceled, core.OrderStatusRejected, core.OrderStatusExpired:
		switch {
		case u.ExecutedQty.IsZero() && slot.OrderID == id && slot.CancelSent:
			// Engine-requested refresh cancel confirmed; the next
			// evaluation re-proposes the close against the current top.
			res.diag(core.DiagDebug, core.DiagCodeSizeReleased,
				"take-profit refresh cancel confirmed", id)
		case u.ExecutedQty.IsZero():
			// The position this take-profit was meant to close remains
			// open. Surfaced, not auto-remediated within this pass; the
			// next pass re-proposes a close through the normal policy.
			res.diag(core.DiagWarn, core.DiagCodeUnmanagedExposure,
				"take-profit cancelled with zero fill; position remains open", id)
		default:
			res.diag(core.DiagInfo, core.DiagCodeSizeReleased,
				fmt.Sprintf("take-profit cancelled after closing %s of %s", u.ExecutedQty, u.Quantity), id)
		}
		e.registry.Delete(id)
		e.tracker.Forget(id)
		if slot.OrderID == id {
			slot.clear()
		}
	}
	return nil
}

// evaluate runs the placement policy after all mutations of a pass. On
// the side that reduces exposure a take-profit always wins over a new
// entry; each side maintains at most one outstanding order.
func (e *Engine) evaluate(res *Result) {
	now := e.now()
	for _, side := range []core.Side{core.SideBuy, core.SideSell} {
		slot := e.slotFor(side)
		top, hasTop := e.ledger.Top()

		if hasTop && e.policy.TakeProfitSide(top.Side) == side {
			switch {
			case slot.State == SlotNoOrder:
				e.emitTakeProfit(res)
			case slot.isTakeProfit():
				e.maybeRefreshTakeProfit(slot, top, now, res)
			case slot.isEntry():
				// A stale entry occupies the side that must now close
				// exposure; supersede it.
				e.requestCancel(slot, res)
			}
			continue
		}

		if e.policy.EntryAdmissible(e.ledger, side, slot) {
			e.emitEntry(side, now, res)
		}
	}
}

// maybeRefreshTakeProfit cancels a take-profit that no longer covers the
// top entry (its parent filled further, or a newer entry filled above
// it). The replacement is emitted on the pass that observes CANCELED,
// throttled by the configured refresh interval.
func (e *Engine) maybeRefreshTakeProfit(slot *sideSlot, top FilledEntry, now time.Time, res *Result) {
	meta, ok := e.registry.Get(slot.OrderID)
	if !ok {
		return
	}
	tp, ok := meta.(TakeProfitMeta)
	if !ok {
		return
	}

	stale := tp.Parent != top.OrderID || top.Remaining.GreaterThan(slot.Quantity)
	if !stale {
		return
	}
	if now.Sub(slot.LastRefresh) < e.cfg.MinRefreshInterval {
		return
	}
	slot.LastRefresh = now
	e.requestCancel(slot, res)
}

func (e *Engine) requestCancel(slot *sideSlot, res *Result) {
	if slot.CancelSent {
		return
	}
	slot.CancelSent = true
	res.addCancel(slot.OrderID)
}

func (e *Engine) emitEntry(side core.Side, now time.Time, res *Result) {
	id := e.newOrderID(orderid.KindEntry, side)
	price := e.policy.EntryPrice(e.refPrice, side)
	qty := e.policy.OrderQuantity()

	e.registry.Put(id, EntryMeta{Side: side, CreatedAt: now})

	slot := e.slotFor(side)
	slot.State = SlotEntryPending
	slot.OrderID = id
	slot.Price = price
	slot.Quantity = qty
	slot.CancelSent = false

	res.addPlace(&core.PlaceOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Price:         price,
		Quantity:      qty,
		ClientOrderID: string(id),
		Leverage:      e.cfg.Leverage,
		MarginMode:    e.cfg.MarginMode,
	})
}

// emitTakeProfit places the close order for the top of the LIFO stack.
func (e *Engine) emitTakeProfit(res *Result) {
	top, ok := e.ledger.Top()
	if !ok {
		return
	}
	side := e.policy.TakeProfitSide(top.Side)
	slot := e.slotFor(side)
	if slot.State != SlotNoOrder {
		return
	}

	now := e.now()
	id := e.newOrderID(orderid.KindTakeProfit, side)
	price := e.policy.TakeProfitPrice(top.Price, top.Side)
	qty := tradingutils.RoundQuantity(top.Remaining, e.cfg.QtyDecimals)

	e.registry.Put(id, TakeProfitMeta{
		Side:       side,
		CreatedAt:  now,
		Parent:     top.OrderID,
		EntryPrice: top.Price,
		TPPrice:    price,
		Ratio:      e.cfg.TakeProfitPercent,
	})

	slot.State = SlotTakeProfitPending
	slot.OrderID = id
	slot.Price = price
	slot.Quantity = qty
	slot.LastRefresh = now
	slot.CancelSent = false

	res.addPlace(&core.PlaceOrderRequest{
		Symbol:        e.cfg.Symbol,
		Side:          side,
		Price:         price,
		Quantity:      qty,
		ClientOrderID: string(id),
		Leverage:      e.cfg.Leverage,
		MarginMode:    e.cfg.MarginMode,
		ReduceOnly:    true,
	})
}

// finishPass appends the explicit Hold when nothing was emitted and
// refreshes gauges.
func (e *Engine) finishPass(res *Result) {
	if len(res.Signals) == 0 {
		res.Signals = append(res.Signals, core.Signal{Type: core.SignalTypeHold})
	}
	if e.metrics != nil {
		size, _ := e.ledger.TradedSize().Float64()
		e.metrics.SetTradedSize(e.cfg.StrategyID, size)
		e.metrics.SetStackDepth(e.cfg.StrategyID, int64(e.ledger.Depth()))
	}
}

func (e *Engine) slotFor(side core.Side) *sideSlot {
	if side == core.SideBuy {
		return &e.buySlot
	}
	return &e.sellSlot
}

func (e *Engine) newOrderID(kind orderid.Kind, side core.Side) OrderID {
	return OrderID(e.ids.Next(e.cfg.StrategyID, kind, side == core.SideBuy))
}
