// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"ladder_maker/internal/ladder"
)

// Config represents the complete configuration structure
type Config struct {
	App        AppConfig        `yaml:"app"`
	Strategies []StrategyConfig `yaml:"strategies"`
	System     SystemConfig     `yaml:"system"`
	Execution  ExecutionConfig  `yaml:"execution"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name string `yaml:"name"`
}

// StrategyConfig is one ladder instance. Prices and sizes are plain
// numbers in YAML and converted to decimals at wiring time.
type StrategyConfig struct {
	ID                string  `yaml:"id"`
	Symbol            string  `yaml:"symbol"`
	BasePrice         float64 `yaml:"base_price"`
	StepPercent       float64 `yaml:"step_percent"`
	TakeProfitPercent float64 `yaml:"take_profit_percent"`
	OrderAmount       float64 `yaml:"order_amount"`
	MinSize           float64 `yaml:"min_size"`
	MaxSize           float64 `yaml:"max_size"`
	Leverage          int     `yaml:"leverage"`
	MarginMode        string  `yaml:"margin_mode"`
	// MinRefreshIntervalMs throttles take-profit replacement under
	// rapid partial fills.
	MinRefreshIntervalMs int `yaml:"min_refresh_interval_ms"`
	PriceDecimals        int `yaml:"price_decimals"`
	QtyDecimals          int `yaml:"qty_decimals"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
	// StatePath is the SQLite file state snapshots persist to. Empty
	// keeps state in memory only.
	StatePath        string `yaml:"state_path"`
	SaveIntervalSecs int    `yaml:"save_interval_secs"`
	CancelOnExit     bool   `yaml:"cancel_on_exit"`
}

// ExecutionConfig contains the settings of the signal dispatch path
type ExecutionConfig struct {
	Venue     string `yaml:"venue"`
	APIKey    Secret `yaml:"api_key"`
	SecretKey Secret `yaml:"secret_key"`
	// RateLimit is the outbound order-operation budget per second.
	RateLimit      int `yaml:"rate_limit"`
	RetryAttempts  int `yaml:"retry_attempts"`
	RetryDelayMs   int `yaml:"retry_delay_ms"`
	BreakerOpenSec int `yaml:"breaker_open_secs"`
	PoolSize       int `yaml:"pool_size"`
	PoolBuffer     int `yaml:"pool_buffer"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "ladder_maker"
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.System.SaveIntervalSecs == 0 {
		c.System.SaveIntervalSecs = 30
	}
	if c.Execution.Venue == "" {
		c.Execution.Venue = "paper"
	}
	if c.Execution.RateLimit == 0 {
		c.Execution.RateLimit = 10
	}
	if c.Execution.RetryAttempts == 0 {
		c.Execution.RetryAttempts = 3
	}
	if c.Execution.RetryDelayMs == 0 {
		c.Execution.RetryDelayMs = 500
	}
	if c.Execution.BreakerOpenSec == 0 {
		c.Execution.BreakerOpenSec = 30
	}
	if c.Execution.PoolSize == 0 {
		c.Execution.PoolSize = len(c.Strategies)
	}
	if c.Execution.PoolBuffer == 0 {
		c.Execution.PoolBuffer = 64
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
	for i := range c.Strategies {
		if c.Strategies[i].MarginMode == "" {
			c.Strategies[i].MarginMode = "cross"
		}
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	if err := c.validateStrategies(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateSystemConfig(); err != nil {
		errors = append(errors, err.Error())
	}
	if err := c.validateExecutionConfig(); err != nil {
		errors = append(errors, err.Error())
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateStrategies() error {
	if len(c.Strategies) == 0 {
		return ValidationError{
			Field:   "strategies",
			Message: "at least one strategy must be configured",
		}
	}

	seen := map[string]bool{}
	for i, s := range c.Strategies {
		if s.ID == "" {
			return ValidationError{
				Field:   fmt.Sprintf("strategies[%d].id", i),
				Message: "strategy id is required",
			}
		}
		if seen[s.ID] {
			return ValidationError{
				Field:   fmt.Sprintf("strategies[%d].id", i),
				Value:   s.ID,
				Message: "strategy id must be unique",
			}
		}
		seen[s.ID] = true

		// The instance-level config carries the full rule set; run it
		// up front so a bad file fails before any wiring happens.
		lc := c.LadderConfig(i)
		if err := lc.Validate(); err != nil {
			return ValidationError{
				Field:   fmt.Sprintf("strategies[%d]", i),
				Value:   s.ID,
				Message: err.Error(),
			}
		}
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	if c.System.SaveIntervalSecs < 0 {
		return ValidationError{
			Field:   "system.save_interval_secs",
			Value:   c.System.SaveIntervalSecs,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validateExecutionConfig() error {
	validVenues := []string{"paper"}
	if !contains(validVenues, c.Execution.Venue) {
		return ValidationError{
			Field:   "execution.venue",
			Value:   c.Execution.Venue,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validVenues, ", ")),
		}
	}
	if c.Execution.RateLimit <= 0 {
		return ValidationError{
			Field:   "execution.rate_limit",
			Value:   c.Execution.RateLimit,
			Message: "must be positive",
		}
	}
	if c.Execution.RetryAttempts < 1 {
		return ValidationError{
			Field:   "execution.retry_attempts",
			Value:   c.Execution.RetryAttempts,
			Message: "must be at least 1",
		}
	}
	return nil
}

// LadderConfig converts one strategy section into the engine's
// construction config.
func (c *Config) LadderConfig(i int) ladder.Config {
	s := c.Strategies[i]
	return ladder.Config{
		StrategyID:         s.ID,
		Symbol:             s.Symbol,
		BasePrice:          decimal.NewFromFloat(s.BasePrice),
		StepPercent:        decimal.NewFromFloat(s.StepPercent),
		TakeProfitPercent:  decimal.NewFromFloat(s.TakeProfitPercent),
		OrderAmount:        decimal.NewFromFloat(s.OrderAmount),
		MinSize:            decimal.NewFromFloat(s.MinSize),
		MaxSize:            decimal.NewFromFloat(s.MaxSize),
		Leverage:           s.Leverage,
		MarginMode:         s.MarginMode,
		MinRefreshInterval: time.Duration(s.MinRefreshIntervalMs) * time.Millisecond,
		PriceDecimals:      s.PriceDecimals,
		QtyDecimals:        s.QtyDecimals,
	}
}

// String returns a string representation of the configuration. Secret
// fields redact themselves through their own marshaler.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns a default configuration for testing
func DefaultConfig() *Config {
	c := &Config{
		App: AppConfig{Name: "ladder_maker"},
		Strategies: []StrategyConfig{
			{
				ID:                "lad1",
				Symbol:            "BTCUSDT",
				BasePrice:         100,
				StepPercent:       2,
				TakeProfitPercent: 1,
				OrderAmount:       500,
				MinSize:           0,
				MaxSize:           1000,
				Leverage:          1,
				PriceDecimals:     2,
				QtyDecimals:       4,
			},
		},
		System: SystemConfig{
			LogLevel:     "INFO",
			CancelOnExit: true,
		},
		Execution: ExecutionConfig{
			Venue: "paper",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
	c.applyDefaults()
	return c
}
