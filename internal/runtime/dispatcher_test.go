package runtime

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/core"
	apperrors "ladder_maker/pkg/errors"
)

type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...interface{})          {}
func (nopLogger) Info(msg string, fields ...interface{})           {}
func (nopLogger) Warn(msg string, fields ...interface{})           {}
func (nopLogger) Error(msg string, fields ...interface{})          {}
func (nopLogger) Fatal(msg string, fields ...interface{})          {}
func (l nopLogger) WithField(string, interface{}) core.ILogger     { return l }
func (l nopLogger) WithFields(map[string]interface{}) core.ILogger { return l }

// flakyVenue fails a configurable number of times before succeeding.
type flakyVenue struct {
	mu           sync.Mutex
	placeFails   int
	cancelFails  int
	failWith     error
	placed       []*core.PlaceOrderRequest
	cancelled    []string
	placeCalls   int
	cancelCalls  int
	unknownIDs   map[string]bool
}

func (v *flakyVenue) PlaceOrder(ctx context.Context, req *core.PlaceOrderRequest) (*core.Order, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.placeCalls++
	if v.placeFails > 0 {
		v.placeFails--
		return nil, v.failWith
	}
	v.placed = append(v.placed, req)
	return &core.Order{ClientOrderID: req.ClientOrderID}, nil
}

func (v *flakyVenue) CancelOrder(ctx context.Context, clientOrderID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelCalls++
	if v.unknownIDs[clientOrderID] {
		return apperrors.ErrOrderNotFound
	}
	if v.cancelFails > 0 {
		v.cancelFails--
		return v.failWith
	}
	v.cancelled = append(v.cancelled, clientOrderID)
	return nil
}

func (v *flakyVenue) GetOpenOrders(ctx context.Context) ([]*core.Order, error) {
	return nil, nil
}

func (v *flakyVenue) GetPosition(ctx context.Context) (*core.PositionSnapshot, error) {
	return &core.PositionSnapshot{}, nil
}

func fastConfig() DispatcherConfig {
	return DispatcherConfig{
		RateLimit:        1000,
		RetryAttempts:    3,
		RetryDelay:       time.Millisecond,
		BreakerOpenDelay: 50 * time.Millisecond,
	}
}

func placeSignal(id string) core.Signal {
	return core.Signal{
		Type: core.SignalTypePlace,
		Place: &core.PlaceOrderRequest{
			Symbol:        "BTCUSDT",
			Side:          core.SideBuy,
			Price:         decimal.NewFromInt(98),
			Quantity:      decimal.NewFromInt(500),
			ClientOrderID: id,
		},
	}
}

func TestDispatchPlaceAndCancel(t *testing.T) {
	venue := &flakyVenue{}
	d := NewVenueDispatcher(venue, fastConfig(), nopLogger{})

	err := d.Dispatch(context.Background(), []core.Signal{
		placeSignal("o1"),
		{Type: core.SignalTypeCancel, CancelOrderID: "o0"},
		{Type: core.SignalTypeHold},
	})
	require.NoError(t, err)

	require.Len(t, venue.placed, 1)
	assert.Equal(t, "o1", venue.placed[0].ClientOrderID)
	assert.Equal(t, []string{"o0"}, venue.cancelled)
}

func TestDispatchRetriesTransientFailures(t *testing.T) {
	venue := &flakyVenue{placeFails: 2, failWith: apperrors.ErrNetwork}
	d := NewVenueDispatcher(venue, fastConfig(), nopLogger{})

	err := d.Dispatch(context.Background(), []core.Signal{placeSignal("o1")})
	require.NoError(t, err)
	assert.Equal(t, 3, venue.placeCalls)
	require.Len(t, venue.placed, 1)
}

func TestDispatchGivesUpAfterMaxRetries(t *testing.T) {
	venue := &flakyVenue{placeFails: 10, failWith: apperrors.ErrNetwork}
	d := NewVenueDispatcher(venue, fastConfig(), nopLogger{})

	err := d.Dispatch(context.Background(), []core.Signal{placeSignal("o1")})
	require.Error(t, err)
	assert.Equal(t, 3, venue.placeCalls)
}

func TestDispatchDoesNotRetryPermanentErrors(t *testing.T) {
	venue := &flakyVenue{placeFails: 1, failWith: apperrors.ErrOrderRejected}
	d := NewVenueDispatcher(venue, fastConfig(), nopLogger{})

	err := d.Dispatch(context.Background(), []core.Signal{placeSignal("o1")})
	require.Error(t, err)
	assert.Equal(t, 1, venue.placeCalls)
}

func TestDispatchCancelOfUnknownOrderSucceeds(t *testing.T) {
	venue := &flakyVenue{unknownIDs: map[string]bool{"gone": true}}
	d := NewVenueDispatcher(venue, fastConfig(), nopLogger{})

	err := d.Dispatch(context.Background(), []core.Signal{
		{Type: core.SignalTypeCancel, CancelOrderID: "gone"},
	})
	require.NoError(t, err)
}

func TestDispatchContinuesAfterFailure(t *testing.T) {
	venue := &flakyVenue{placeFails: 10, failWith: apperrors.ErrOrderRejected}
	d := NewVenueDispatcher(venue, fastConfig(), nopLogger{})

	err := d.Dispatch(context.Background(), []core.Signal{
		placeSignal("o1"),
		{Type: core.SignalTypeCancel, CancelOrderID: "o0"},
	})
	require.Error(t, err)
	// The cancel after the failed place still went out.
	assert.Equal(t, []string{"o0"}, venue.cancelled)
}
