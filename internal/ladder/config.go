package ladder

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Config is the construction-time surface of one strategy instance.
// Percent values are human percentages (2 means 2%).
type Config struct {
	StrategyID        string
	Symbol            string
	BasePrice         decimal.Decimal
	StepPercent       decimal.Decimal
	TakeProfitPercent decimal.Decimal
	OrderAmount       decimal.Decimal
	MinSize           decimal.Decimal
	MaxSize           decimal.Decimal
	Leverage          int
	MarginMode        string
	// MinRefreshInterval throttles how often a take-profit is replaced
	// in response to rapid partial fills of its parent. Zero disables
	// the throttle.
	MinRefreshInterval time.Duration
	PriceDecimals      int
	QtyDecimals        int
}

// ConfigError is a construction-time validation failure. Invalid
// configuration is never clamped.
type ConfigError struct {
	Field   string
	Message string
}

func (e ConfigError) Error() string {
	return fmt.Sprintf("ladder config: field '%s': %s", e.Field, e.Message)
}

// Validate checks the configuration. The take-profit percent must be at
// least half the step percent, otherwise adjacent ladder levels would
// close each other at a loss.
func (c *Config) Validate() error {
	if c.StrategyID == "" {
		return ConfigError{Field: "strategy_id", Message: "must not be empty"}
	}
	if strings.Contains(c.StrategyID, "-") {
		return ConfigError{Field: "strategy_id", Message: "must not contain '-' (reserved by the order id scheme)"}
	}
	if c.Symbol == "" {
		return ConfigError{Field: "symbol", Message: "must not be empty"}
	}
	if !c.BasePrice.IsPositive() {
		return ConfigError{Field: "base_price", Message: "must be positive"}
	}
	if !c.StepPercent.IsPositive() {
		return ConfigError{Field: "step_percent", Message: "must be positive"}
	}
	if c.TakeProfitPercent.Mul(decimal.NewFromInt(2)).LessThan(c.StepPercent) {
		return ConfigError{
			Field:   "take_profit_percent",
			Message: fmt.Sprintf("must be at least half the step percent (%s)", c.StepPercent),
		}
	}
	if !c.OrderAmount.IsPositive() {
		return ConfigError{Field: "order_amount", Message: "must be positive"}
	}
	if c.MinSize.GreaterThan(c.MaxSize) {
		return ConfigError{
			Field:   "min_size",
			Message: fmt.Sprintf("min size %s exceeds max size %s", c.MinSize, c.MaxSize),
		}
	}
	if c.Leverage < 0 {
		return ConfigError{Field: "leverage", Message: "must not be negative"}
	}
	if c.MinRefreshInterval < 0 {
		return ConfigError{Field: "min_refresh_interval", Message: "must not be negative"}
	}
	if c.PriceDecimals < 0 || c.QtyDecimals < 0 {
		return ConfigError{Field: "decimals", Message: "must not be negative"}
	}
	return nil
}
