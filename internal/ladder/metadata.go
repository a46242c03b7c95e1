package ladder

import (
	"time"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
)

// OrderID is a client-assigned order identifier, unique per strategy
// instance.
type OrderID string

// SignalKind discriminates the intent of an order.
type SignalKind int

const (
	KindEntry SignalKind = iota
	KindTakeProfit
)

func (k SignalKind) String() string {
	if k == KindTakeProfit {
		return "take_profit"
	}
	return "entry"
}

// SignalMeta is the semantic intent recorded for a client order id the
// instant its signal is generated, before the venue acknowledges the
// order. It is a closed union: EntryMeta and TakeProfitMeta are the only
// implementations.
type SignalMeta interface {
	Kind() SignalKind
	OrderSide() core.Side
	sealedSignalMeta()
}

// EntryMeta marks an order that opens or increases net exposure.
type EntryMeta struct {
	Side      core.Side
	CreatedAt time.Time
}

func (EntryMeta) Kind() SignalKind       { return KindEntry }
func (m EntryMeta) OrderSide() core.Side { return m.Side }
func (EntryMeta) sealedSignalMeta()      {}

// TakeProfitMeta marks an order that closes part of a specific prior
// entry. Parent back-references the entry order; EntryPrice is the
// parent's fill price the target was computed from.
type TakeProfitMeta struct {
	Side       core.Side
	CreatedAt  time.Time
	Parent     OrderID
	EntryPrice decimal.Decimal
	TPPrice    decimal.Decimal
	Ratio      decimal.Decimal
}

func (TakeProfitMeta) Kind() SignalKind       { return KindTakeProfit }
func (m TakeProfitMeta) OrderSide() core.Side { return m.Side }
func (TakeProfitMeta) sealedSignalMeta()      {}

// MetadataRegistry maps client order ids to their semantic intent.
// Pure lookup table, single-owner like everything else in this package.
type MetadataRegistry struct {
	entries map[OrderID]SignalMeta
}

// NewMetadataRegistry creates an empty registry.
func NewMetadataRegistry() *MetadataRegistry {
	return &MetadataRegistry{entries: make(map[OrderID]SignalMeta)}
}

// Put records the intent for an order id, replacing any previous entry.
func (r *MetadataRegistry) Put(id OrderID, meta SignalMeta) {
	r.entries[id] = meta
}

// Get returns the recorded intent for an order id.
func (r *MetadataRegistry) Get(id OrderID) (SignalMeta, bool) {
	m, ok := r.entries[id]
	return m, ok
}

// Delete removes an order id from the registry.
func (r *MetadataRegistry) Delete(id OrderID) {
	delete(r.entries, id)
}

// Len returns the number of tracked ids.
func (r *MetadataRegistry) Len() int {
	return len(r.entries)
}

// TakeProfitForParent looks up a live take-profit referencing the given
// entry order.
func (r *MetadataRegistry) TakeProfitForParent(parent OrderID) (OrderID, TakeProfitMeta, bool) {
	for id, m := range r.entries {
		if tp, ok := m.(TakeProfitMeta); ok && tp.Parent == parent {
			return id, tp, true
		}
	}
	return "", TakeProfitMeta{}, false
}

// Each visits every registry entry.
func (r *MetadataRegistry) Each(fn func(id OrderID, meta SignalMeta)) {
	for id, m := range r.entries {
		fn(id, m)
	}
}
