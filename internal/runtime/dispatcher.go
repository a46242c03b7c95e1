// Package runtime wires strategy engines to venues: it dispatches
// signals with resilience policies and drives the per-instance
// reconciliation loops.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"golang.org/x/time/rate"

	"ladder_maker/internal/core"
	apperrors "ladder_maker/pkg/errors"
	"ladder_maker/pkg/telemetry"
)

// DispatcherConfig tunes the resilience policies around venue calls.
type DispatcherConfig struct {
	// RateLimit is the outbound order-operation budget per second.
	RateLimit        int
	RetryAttempts    int
	RetryDelay       time.Duration
	BreakerOpenDelay time.Duration
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.RateLimit <= 0 {
		c.RateLimit = 10
	}
	if c.RetryAttempts < 1 {
		c.RetryAttempts = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.BreakerOpenDelay <= 0 {
		c.BreakerOpenDelay = 30 * time.Second
	}
	return c
}

// VenueDispatcher forwards engine signals to a venue. Transient venue
// errors are retried with backoff behind a circuit breaker; a cancel
// for an order the venue no longer knows counts as success.
type VenueDispatcher struct {
	venue   core.IVenue
	limiter *rate.Limiter
	place   failsafe.Executor[*core.Order]
	cancel  failsafe.Executor[any]
	logger  core.ILogger
	metrics *telemetry.MetricsHolder
}

func NewVenueDispatcher(venue core.IVenue, cfg DispatcherConfig, logger core.ILogger) *VenueDispatcher {
	cfg = cfg.withDefaults()
	return &VenueDispatcher{
		venue:   venue,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimit),
		place:   buildPipeline[*core.Order](cfg),
		cancel:  buildPipeline[any](cfg),
		logger:  logger.WithField("component", "dispatcher"),
		metrics: telemetry.GetGlobalMetrics(),
	}
}

func buildPipeline[R any](cfg DispatcherConfig) failsafe.Executor[R] {
	retryPolicy := retrypolicy.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			return err != nil && apperrors.IsTransient(err)
		}).
		WithBackoff(cfg.RetryDelay, cfg.RetryDelay*8).
		WithMaxRetries(cfg.RetryAttempts - 1).
		Build()

	breaker := circuitbreaker.NewBuilder[R]().
		HandleIf(func(_ R, err error) bool {
			return err != nil && apperrors.IsTransient(err)
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(cfg.BreakerOpenDelay).
		Build()

	return failsafe.With[R](retryPolicy, breaker)
}

// Dispatch executes one pass's signals in order. Failures do not stop
// the remaining signals; all errors come back joined.
func (d *VenueDispatcher) Dispatch(ctx context.Context, signals []core.Signal) error {
	var errs []error
	for _, sig := range signals {
		switch sig.Type {
		case core.SignalTypeHold:
			// Explicit no-op.
		case core.SignalTypePlace:
			if err := d.placeOrder(ctx, sig.Place); err != nil {
				errs = append(errs, err)
			}
		case core.SignalTypeCancel:
			if err := d.cancelOrder(ctx, sig.CancelOrderID); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (d *VenueDispatcher) placeOrder(ctx context.Context, req *core.PlaceOrderRequest) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := d.place.WithContext(ctx).Get(func() (*core.Order, error) {
		return d.venue.PlaceOrder(ctx, req)
	})
	if err != nil {
		d.countFailure(ctx)
		d.logger.Error("failed to place order",
			"client_order_id", req.ClientOrderID, "side", string(req.Side), "error", err)
		return fmt.Errorf("place %s: %w", req.ClientOrderID, err)
	}

	if d.metrics.SignalsPlacedTotal != nil {
		d.metrics.SignalsPlacedTotal.Add(ctx, 1)
	}
	d.logger.Debug("order placed",
		"client_order_id", req.ClientOrderID, "side", string(req.Side),
		"price", req.Price.String(), "quantity", req.Quantity.String())
	return nil
}

func (d *VenueDispatcher) cancelOrder(ctx context.Context, clientOrderID string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := d.cancel.WithContext(ctx).Get(func() (any, error) {
		err := d.venue.CancelOrder(ctx, clientOrderID)
		if errors.Is(err, apperrors.ErrOrderNotFound) {
			// The update stream will report whatever terminal state the
			// order actually reached.
			return nil, nil
		}
		return nil, err
	})
	if err != nil {
		d.countFailure(ctx)
		d.logger.Error("failed to cancel order", "client_order_id", clientOrderID, "error", err)
		return fmt.Errorf("cancel %s: %w", clientOrderID, err)
	}

	if d.metrics.SignalsCancelledTotal != nil {
		d.metrics.SignalsCancelledTotal.Add(ctx, 1)
	}
	return nil
}

func (d *VenueDispatcher) countFailure(ctx context.Context) {
	if d.metrics.DispatchFailuresTotal != nil {
		d.metrics.DispatchFailuresTotal.Add(ctx, 1)
	}
}
