package ladder

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
)

// ExportSnapshot captures the full engine state for persistence. The
// caller owns scheduling; the engine only serializes.
func (e *Engine) ExportSnapshot() *core.StateSnapshot {
	s := &core.StateSnapshot{
		StrategyID:     e.cfg.StrategyID,
		Symbol:         e.cfg.Symbol,
		TradedSize:     e.ledger.TradedSize().String(),
		ReferencePrice: e.refPrice.String(),
		Slots: map[string]core.SlotSnapshot{
			"buy":  exportSlot(&e.buySlot),
			"sell": exportSlot(&e.sellSlot),
		},
		SavedAt: e.now().UnixMilli(),
	}

	for _, fe := range e.ledger.Entries() {
		s.Entries = append(s.Entries, core.EntrySnapshot{
			Side:           fe.Side,
			Price:          fe.Price.String(),
			Remaining:      fe.Remaining.String(),
			OrderID:        string(fe.OrderID),
			FilledAt:       fe.FilledAt,
			RefPriceBefore: fe.RefPriceBefore.String(),
		})
	}

	e.registry.Each(func(id OrderID, meta SignalMeta) {
		ms := core.MetaSnapshot{OrderID: string(id), Kind: meta.Kind().String(), Side: meta.OrderSide()}
		switch m := meta.(type) {
		case EntryMeta:
			ms.CreatedAt = m.CreatedAt.UnixMilli()
		case TakeProfitMeta:
			ms.CreatedAt = m.CreatedAt.UnixMilli()
			ms.Parent = string(m.Parent)
			ms.EntryPrice = m.EntryPrice.String()
			ms.TPPrice = m.TPPrice.String()
			ms.Ratio = m.Ratio.String()
		}
		s.Metadata = append(s.Metadata, ms)
	})

	e.tracker.Each(func(u core.OrderUpdate) {
		s.Tracker = append(s.Tracker, u)
	})

	return s
}

// RestoreSnapshot rebuilds engine state from a persisted snapshot and
// marks the engine recovered. Malformed decimal fields fail the restore
// as a whole.
func (e *Engine) RestoreSnapshot(s *core.StateSnapshot) error {
	if e.recovered {
		return fmt.Errorf("restore after recovery completed")
	}
	if s.StrategyID != e.cfg.StrategyID {
		return fmt.Errorf("snapshot belongs to strategy %q, engine is %q", s.StrategyID, e.cfg.StrategyID)
	}

	traded, err := decimal.NewFromString(s.TradedSize)
	if err != nil {
		return fmt.Errorf("snapshot traded size: %w", err)
	}
	ref, err := decimal.NewFromString(s.ReferencePrice)
	if err != nil {
		return fmt.Errorf("snapshot reference price: %w", err)
	}

	entries := make([]FilledEntry, 0, len(s.Entries))
	for i, es := range s.Entries {
		price, err := decimal.NewFromString(es.Price)
		if err != nil {
			return fmt.Errorf("snapshot entry %d price: %w", i, err)
		}
		remaining, err := decimal.NewFromString(es.Remaining)
		if err != nil {
			return fmt.Errorf("snapshot entry %d remaining: %w", i, err)
		}
		refBefore, err := decimal.NewFromString(es.RefPriceBefore)
		if err != nil {
			return fmt.Errorf("snapshot entry %d reference price: %w", i, err)
		}
		entries = append(entries, FilledEntry{
			Side:           es.Side,
			Price:          price,
			Remaining:      remaining,
			OrderID:        OrderID(es.OrderID),
			FilledAt:       es.FilledAt,
			RefPriceBefore: refBefore,
		})
	}

	registry := NewMetadataRegistry()
	for _, ms := range s.Metadata {
		created := time.UnixMilli(ms.CreatedAt)
		switch ms.Kind {
		case KindEntry.String():
			registry.Put(OrderID(ms.OrderID), EntryMeta{Side: ms.Side, CreatedAt: created})
		case KindTakeProfit.String():
			entryPrice, err := decimal.NewFromString(ms.EntryPrice)
			if err != nil {
				return fmt.Errorf("snapshot metadata %s entry price: %w", ms.OrderID, err)
			}
			tpPrice, err := decimal.NewFromString(ms.TPPrice)
			if err != nil {
				return fmt.Errorf("snapshot metadata %s target price: %w", ms.OrderID, err)
			}
			ratio, err := decimal.NewFromString(ms.Ratio)
			if err != nil {
				return fmt.Errorf("snapshot metadata %s ratio: %w", ms.OrderID, err)
			}
			registry.Put(OrderID(ms.OrderID), TakeProfitMeta{
				Side:       ms.Side,
				CreatedAt:  created,
				Parent:     OrderID(ms.Parent),
				EntryPrice: entryPrice,
				TPPrice:    tpPrice,
				Ratio:      ratio,
			})
		default:
			return fmt.Errorf("snapshot metadata %s: unknown kind %q", ms.OrderID, ms.Kind)
		}
	}

	buySlot, err := restoreSlot(s.Slots["buy"])
	if err != nil {
		return fmt.Errorf("snapshot buy slot: %w", err)
	}
	sellSlot, err := restoreSlot(s.Slots["sell"])
	if err != nil {
		return fmt.Errorf("snapshot sell slot: %w", err)
	}

	tracker := NewStateTracker()
	for _, u := range s.Tracker {
		tracker.Seed(u)
	}

	e.ledger.restore(traded, entries)
	e.refPrice = ref
	e.registry = registry
	e.tracker = tracker
	e.buySlot = buySlot
	e.sellSlot = sellSlot
	e.recovered = true
	return nil
}

func exportSlot(s *sideSlot) core.SlotSnapshot {
	return core.SlotSnapshot{
		State:       s.State.String(),
		OrderID:     string(s.OrderID),
		Price:       s.Price.String(),
		Quantity:    s.Quantity.String(),
		LastRefresh: s.LastRefresh.UnixMilli(),
	}
}

func restoreSlot(ss core.SlotSnapshot) (sideSlot, error) {
	state, ok := slotStateFromString(ss.State)
	if !ok {
		return sideSlot{}, fmt.Errorf("unknown slot state %q", ss.State)
	}
	if state == SlotNoOrder {
		return sideSlot{State: SlotNoOrder, Price: decimal.Zero, Quantity: decimal.Zero}, nil
	}
	price, err := decimal.NewFromString(ss.Price)
	if err != nil {
		return sideSlot{}, err
	}
	qty, err := decimal.NewFromString(ss.Quantity)
	if err != nil {
		return sideSlot{}, err
	}
	return sideSlot{
		State:       state,
		OrderID:     OrderID(ss.OrderID),
		Price:       price,
		Quantity:    qty,
		LastRefresh: time.UnixMilli(ss.LastRefresh),
	}, nil
}

func slotStateFromString(s string) (SlotState, bool) {
	switch s {
	case "no_order", "":
		return SlotNoOrder, true
	case "entry_pending":
		return SlotEntryPending, true
	case "entry_open":
		return SlotEntryOpen, true
	case "take_profit_pending":
		return SlotTakeProfitPending, true
	case "take_profit_open":
		return SlotTakeProfitOpen, true
	default:
		return SlotNoOrder, false
	}
}
