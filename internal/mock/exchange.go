// Package mock provides an in-process paper venue implementing the
// execution surface, for tests and paper-trading runs.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
	apperrors "ladder_maker/pkg/errors"
)

// PaperVenue simulates the eventually-consistent venue the runtime
// reconciles against: orders rest until the mark price crosses them or
// a test fills them explicitly, and every lifecycle transition is
// reported asynchronously as an order-update batch.
type PaperVenue struct {
	mu         sync.RWMutex
	orders     map[string]*core.Order // by client order id
	position   decimal.Decimal
	entryPrice decimal.Decimal
	markPrice  decimal.Decimal
	updates    chan []core.OrderUpdate
	now        func() time.Time
}

func NewPaperVenue() *PaperVenue {
	return &PaperVenue{
		orders:  make(map[string]*core.Order),
		updates: make(chan []core.OrderUpdate, 256),
		now:     time.Now,
	}
}

// SetClock overrides the venue clock, for tests.
func (v *PaperVenue) SetClock(now func() time.Time) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.now = now
}

// Updates returns the order-update stream.
func (v *PaperVenue) Updates() <-chan []core.OrderUpdate {
	return v.updates
}

// PlaceOrder accepts a limit order. Placing the same client order id
// again returns the existing order unchanged.
func (v *PaperVenue) PlaceOrder(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if req.ClientOrderID == "" {
		return nil, apperrors.ErrInvalidOrderParameter
	}
	if existing, ok := v.orders[req.ClientOrderID]; ok {
		return existing, nil
	}

	order := &core.Order{
		ClientOrderID: req.ClientOrderID,
		VenueOrderID:  uuid.NewString(),
		Side:          req.Side,
		Status:        core.OrderStatusNew,
		Quantity:      req.Quantity,
		ExecutedQty:   decimal.Zero,
		Price:         req.Price,
		UpdateTime:    v.now().UnixMilli(),
	}
	v.orders[req.ClientOrderID] = order
	v.emit(order)
	return order, nil
}

// CancelOrder cancels a resting order. Cancelling an unknown or already
// terminal order returns ErrOrderNotFound.
func (v *PaperVenue) CancelOrder(ctx context.Context, clientOrderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	order, ok := v.orders[clientOrderID]
	if !ok || order.Status.IsTerminal() {
		return apperrors.ErrOrderNotFound
	}
	order.Status = core.OrderStatusCanceled
	order.UpdateTime = v.now().UnixMilli()
	v.emit(order)
	return nil
}

// GetOpenOrders returns all non-terminal orders.
func (v *PaperVenue) GetOpenOrders(ctx context.Context) ([]*core.Order, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	var open []*core.Order
	for _, o := range v.orders {
		if !o.Status.IsTerminal() {
			cp := *o
			open = append(open, &cp)
		}
	}
	return open, nil
}

// GetPosition returns the venue-side net position.
func (v *PaperVenue) GetPosition(ctx context.Context) (*core.PositionSnapshot, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return &core.PositionSnapshot{
		Size:       v.position,
		EntryPrice: v.entryPrice,
	}, nil
}

// SetMarkPrice moves the simulated market price, filling any resting
// order the price crosses.
func (v *PaperVenue) SetMarkPrice(price decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.markPrice = price
	for _, o := range v.orders {
		if o.Status.IsTerminal() {
			continue
		}
		crossed := (o.Side == core.SideBuy && price.LessThanOrEqual(o.Price)) ||
			(o.Side == core.SideSell && price.GreaterThanOrEqual(o.Price))
		if crossed {
			v.fillLocked(o, o.Quantity.Sub(o.ExecutedQty))
		}
	}
}

// FillOrder fills a specific resting order by the given quantity,
// capped at its remainder. Used by tests to drive partial fills.
func (v *PaperVenue) FillOrder(clientOrderID string, qty decimal.Decimal) bool {
	v.mu.Lock()
	defer v.mu.Unlock()

	order, ok := v.orders[clientOrderID]
	if !ok || order.Status.IsTerminal() {
		return false
	}
	v.fillLocked(order, decimal.Min(qty, order.Quantity.Sub(order.ExecutedQty)))
	return true
}

// SeedPosition installs a pre-existing net position, for recovery tests.
func (v *PaperVenue) SeedPosition(size, entryPrice decimal.Decimal) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.position = size
	v.entryPrice = entryPrice
}

func (v *PaperVenue) fillLocked(order *core.Order, qty decimal.Decimal) {
	if !qty.IsPositive() {
		return
	}

	order.ExecutedQty = order.ExecutedQty.Add(qty)
	order.AvgPrice = order.Price
	if order.ExecutedQty.GreaterThanOrEqual(order.Quantity) {
		order.Status = core.OrderStatusFilled
	} else {
		order.Status = core.OrderStatusPartiallyFilled
	}
	order.UpdateTime = v.now().UnixMilli()

	v.position = v.position.Add(qty.Mul(order.Side.Sign()))
	v.entryPrice = order.Price

	v.emit(order)
}

func (v *PaperVenue) emit(order *core.Order) {
	u := order.AsUpdate()
	select {
	case v.updates <- []core.OrderUpdate{u}:
	default:
		// Slow consumer; the engine re-derives state from snapshots at
		// startup, so a dropped batch is survivable in the simulator.
	}
}
