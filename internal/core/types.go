package core

import (
	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Sign returns +1 for BUY and -1 for SELL as a decimal multiplier.
func (s Side) Sign() decimal.Decimal {
	if s == SideBuy {
		return decimal.NewFromInt(1)
	}
	return decimal.NewFromInt(-1)
}

// OrderStatus is the venue-reported lifecycle status of an order.
type OrderStatus string

const (
	OrderStatusNew             OrderStatus = "NEW"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCanceled        OrderStatus = "CANCELED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

// IsTerminal reports whether no further updates are expected for the order.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCanceled, OrderStatusRejected, OrderStatusExpired:
		return true
	}
	return false
}

// OrderUpdate is a single venue-delivered order event. Updates for one
// client order id are only meaningful when UpdateTime strictly exceeds
// the last applied one; duplicates and retransmits carry equal or older
// timestamps.
type OrderUpdate struct {
	ClientOrderID string
	Side          Side
	Status        OrderStatus
	Quantity      decimal.Decimal
	ExecutedQty   decimal.Decimal
	Price         decimal.Decimal
	AvgPrice      decimal.Decimal
	UpdateTime    int64 // unix milliseconds
}

// FillPrice returns the average fill price when known, the limit price
// otherwise.
func (u *OrderUpdate) FillPrice() decimal.Decimal {
	if !u.AvgPrice.IsZero() {
		return u.AvgPrice
	}
	return u.Price
}

// Order is an open-order snapshot as reported by the venue (recovery only).
// VenueOrderID is the venue-assigned identifier; reconciliation keys on
// ClientOrderID alone.
type Order struct {
	ClientOrderID string
	VenueOrderID  string
	Side          Side
	Status        OrderStatus
	Quantity      decimal.Decimal
	ExecutedQty   decimal.Decimal
	Price         decimal.Decimal
	AvgPrice      decimal.Decimal
	UpdateTime    int64
}

// AsUpdate converts a snapshot into the equivalent update event.
func (o *Order) AsUpdate() OrderUpdate {
	return OrderUpdate{
		ClientOrderID: o.ClientOrderID,
		Side:          o.Side,
		Status:        o.Status,
		Quantity:      o.Quantity,
		ExecutedQty:   o.ExecutedQty,
		Price:         o.Price,
		AvgPrice:      o.AvgPrice,
		UpdateTime:    o.UpdateTime,
	}
}

// PositionSnapshot is a venue-reported net position (recovery only).
type PositionSnapshot struct {
	Symbol     string
	Size       decimal.Decimal
	EntryPrice decimal.Decimal
}

// SignalType discriminates outbound signals.
type SignalType int

const (
	SignalTypeHold SignalType = iota
	SignalTypePlace
	SignalTypeCancel
)

func (t SignalType) String() string {
	switch t {
	case SignalTypePlace:
		return "PLACE"
	case SignalTypeCancel:
		return "CANCEL"
	default:
		return "HOLD"
	}
}

// PlaceOrderRequest carries everything the execution layer needs to
// create an order. ClientOrderID is always pre-assigned by the engine.
type PlaceOrderRequest struct {
	Symbol        string
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	ClientOrderID string
	Leverage      int
	MarginMode    string
	ReduceOnly    bool
}

// Signal is one outbound decision. A Hold is an explicit no-op,
// distinguishable from an error.
type Signal struct {
	Type          SignalType
	Place         *PlaceOrderRequest // set when Type == SignalTypePlace
	CancelOrderID string             // set when Type == SignalTypeCancel
}

// DiagLevel is the severity of a diagnostic event.
type DiagLevel string

const (
	DiagDebug DiagLevel = "DEBUG"
	DiagInfo  DiagLevel = "INFO"
	DiagWarn  DiagLevel = "WARN"
)

// Diagnostic codes emitted by the engine.
const (
	DiagCodeUnmanagedExposure = "unmanaged_exposure"
	DiagCodeUnknownOrder      = "unknown_order"
	DiagCodeStaleUpdate       = "stale_update"
	DiagCodeSizeReleased      = "size_released"
	DiagCodeFillOverflow      = "fill_exceeds_stack"
	DiagCodeDuplicateRecovery = "duplicate_recovered_order"
)

// Diagnostic is a structured outcome event returned alongside signals so
// callers and tests can observe non-fatal conditions deterministically.
type Diagnostic struct {
	Level         DiagLevel
	Code          string
	Message       string
	ClientOrderID string
}
