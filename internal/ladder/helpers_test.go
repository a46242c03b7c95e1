package ladder

import (
	"time"

	"github.com/shopspring/decimal"

	"ladder_maker/internal/core"
)

// nopLogger satisfies core.ILogger for tests.
type nopLogger struct{}

func (nopLogger) Debug(msg string, fields ...interface{})          {}
func (nopLogger) Info(msg string, fields ...interface{})           {}
func (nopLogger) Warn(msg string, fields ...interface{})           {}
func (nopLogger) Error(msg string, fields ...interface{})          {}
func (nopLogger) Fatal(msg string, fields ...interface{})          {}
func (l nopLogger) WithField(string, interface{}) core.ILogger     { return l }
func (l nopLogger) WithFields(map[string]interface{}) core.ILogger { return l }

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func testConfig() Config {
	return Config{
		StrategyID:         "lad1",
		Symbol:             "BTCUSDT",
		BasePrice:          d("100"),
		StepPercent:        d("2"),
		TakeProfitPercent:  d("1"),
		OrderAmount:        d("500"),
		MinSize:            d("0"),
		MaxSize:            d("1000"),
		Leverage:           1,
		MarginMode:         "cross",
		MinRefreshInterval: 0,
		PriceDecimals:      2,
		QtyDecimals:        4,
	}
}

// manualClock is an adjustable clock for refresh-throttle tests.
type manualClock struct {
	t time.Time
}

func newManualClock() *manualClock {
	return &manualClock{t: time.UnixMilli(1_700_000_000_000)}
}

func (c *manualClock) Now() time.Time            { return c.t }
func (c *manualClock) Advance(dur time.Duration) { c.t = c.t.Add(dur) }

func newTestEngine(cfg Config) *Engine {
	e, err := NewEngine(cfg, nopLogger{})
	if err != nil {
		panic(err)
	}
	return e
}

// recoveredEngine builds an engine that completed an empty recovery.
func recoveredEngine(cfg Config) (*Engine, *manualClock) {
	e := newTestEngine(cfg)
	clock := newManualClock()
	e.SetClock(clock.Now)
	if _, err := e.Recover(nil, nil); err != nil {
		panic(err)
	}
	return e, clock
}

func update(id string, side core.Side, status core.OrderStatus, qty, executed, price, avg string, ts int64) core.OrderUpdate {
	return core.OrderUpdate{
		ClientOrderID: id,
		Side:          side,
		Status:        status,
		Quantity:      d(qty),
		ExecutedQty:   d(executed),
		Price:         d(price),
		AvgPrice:      d(avg),
		UpdateTime:    ts,
	}
}

func placeSignals(res *Result) []*core.PlaceOrderRequest {
	var out []*core.PlaceOrderRequest
	for _, s := range res.Signals {
		if s.Type == core.SignalTypePlace {
			out = append(out, s.Place)
		}
	}
	return out
}

func cancelSignals(res *Result) []string {
	var out []string
	for _, s := range res.Signals {
		if s.Type == core.SignalTypeCancel {
			out = append(out, s.CancelOrderID)
		}
	}
	return out
}

func holdOnly(res *Result) bool {
	return len(res.Signals) == 1 && res.Signals[0].Type == core.SignalTypeHold
}

func findPlace(res *Result, side core.Side, reduceOnly bool) *core.PlaceOrderRequest {
	for _, p := range placeSignals(res) {
		if p.Side == side && p.ReduceOnly == reduceOnly {
			return p
		}
	}
	return nil
}

func diagWithCode(res *Result, code string) *core.Diagnostic {
	for i := range res.Diagnostics {
		if res.Diagnostics[i].Code == code {
			return &res.Diagnostics[i]
		}
	}
	return nil
}
