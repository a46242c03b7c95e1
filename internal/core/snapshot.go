package core

// StateSnapshot is the persisted form of one strategy instance's engine
// state. Decimal values are serialized as strings to survive JSON
// round-trips without precision loss.
type StateSnapshot struct {
	StrategyID     string                  `json:"strategy_id"`
	Symbol         string                  `json:"symbol"`
	TradedSize     string                  `json:"traded_size"`
	ReferencePrice string                  `json:"reference_price"`
	Entries        []EntrySnapshot         `json:"entries"`
	Slots          map[string]SlotSnapshot `json:"slots"`
	Metadata       []MetaSnapshot          `json:"metadata"`
	Tracker        []OrderUpdate           `json:"tracker"`
	SavedAt        int64                   `json:"saved_at"`
}

// EntrySnapshot is one LIFO stack element in persisted form. Order is
// fill order, last element is the top of the stack.
type EntrySnapshot struct {
	Side           Side   `json:"side"`
	Price          string `json:"price"`
	Remaining      string `json:"remaining"`
	OrderID        string `json:"order_id"`
	FilledAt       int64  `json:"filled_at"`
	RefPriceBefore string `json:"ref_price_before"`
}

// SlotSnapshot is one side's outstanding-order slot in persisted form.
type SlotSnapshot struct {
	State       string `json:"state"`
	OrderID     string `json:"order_id"`
	Price       string `json:"price"`
	Quantity    string `json:"quantity"`
	LastRefresh int64  `json:"last_refresh"`
}

// MetaSnapshot is one registry entry in persisted form. Kind is "entry"
// or "take_profit"; the take-profit fields are empty for entries.
type MetaSnapshot struct {
	OrderID    string `json:"order_id"`
	Kind       string `json:"kind"`
	Side       Side   `json:"side"`
	CreatedAt  int64  `json:"created_at"`
	Parent     string `json:"parent,omitempty"`
	EntryPrice string `json:"entry_price,omitempty"`
	TPPrice    string `json:"tp_price,omitempty"`
	Ratio      string `json:"ratio,omitempty"`
}
