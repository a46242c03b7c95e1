// Package core defines the shared types and interfaces of the ladder runtime.
package core

import (
	"context"
)

// ILogger defines the interface for logging
type ILogger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	WithField(key string, value interface{}) ILogger
	WithFields(fields map[string]interface{}) ILogger
}

// IVenue is the execution-layer surface the runtime depends on. The
// decision core itself never calls it; only recovery loading and the
// signal dispatcher do.
type IVenue interface {
	PlaceOrder(ctx context.Context, req *PlaceOrderRequest) (*Order, error)
	CancelOrder(ctx context.Context, clientOrderID string) error
	GetOpenOrders(ctx context.Context) ([]*Order, error)
	GetPosition(ctx context.Context) (*PositionSnapshot, error)
}

// ISignalDispatcher forwards engine signals to the execution layer.
type ISignalDispatcher interface {
	Dispatch(ctx context.Context, signals []Signal) error
}

// UpdateSource delivers order-update batches to a strategy instance.
// Delivery order is not guaranteed; the engine's tracker is the sole
// gate against duplicates and reordering.
type UpdateSource interface {
	Updates() <-chan []OrderUpdate
}

// IStateStore defines the interface for state persistence
type IStateStore interface {
	SaveState(ctx context.Context, state *StateSnapshot) error
	LoadState(ctx context.Context) (*StateSnapshot, error)
}
