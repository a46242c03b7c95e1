package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricSignalsPlacedTotal     = "ladder_signals_placed_total"
	MetricSignalsCancelledTotal  = "ladder_signals_cancelled_total"
	MetricDispatchFailuresTotal  = "ladder_dispatch_failures_total"
	MetricUnmanagedExposureTotal = "ladder_unmanaged_exposure_total"
	MetricTradedSize             = "ladder_traded_size"
	MetricStackDepth             = "ladder_stack_depth"
)

// MetricsHolder holds initialized instruments
type MetricsHolder struct {
	SignalsPlacedTotal     metric.Int64Counter
	SignalsCancelledTotal  metric.Int64Counter
	DispatchFailuresTotal  metric.Int64Counter
	UnmanagedExposureTotal metric.Int64Counter
	TradedSize             metric.Float64ObservableGauge
	StackDepth             metric.Int64ObservableGauge

	// State for observable gauges
	mu            sync.RWMutex
	tradedSizeMap map[string]float64
	stackDepthMap map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			tradedSizeMap: make(map[string]float64),
			stackDepthMap: make(map[string]int64),
		}
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.SignalsPlacedTotal, err = meter.Int64Counter(MetricSignalsPlacedTotal, metric.WithDescription("Total place signals dispatched"))
	if err != nil {
		return err
	}

	m.SignalsCancelledTotal, err = meter.Int64Counter(MetricSignalsCancelledTotal, metric.WithDescription("Total cancel signals dispatched"))
	if err != nil {
		return err
	}

	m.DispatchFailuresTotal, err = meter.Int64Counter(MetricDispatchFailuresTotal, metric.WithDescription("Total signals that failed dispatch after retries"))
	if err != nil {
		return err
	}

	m.UnmanagedExposureTotal, err = meter.Int64Counter(MetricUnmanagedExposureTotal, metric.WithDescription("Take-profits cancelled with zero fill, leaving an open position"))
	if err != nil {
		return err
	}

	m.TradedSize, err = meter.Float64ObservableGauge(MetricTradedSize, metric.WithDescription("Net committed size per strategy instance"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for id, val := range m.tradedSizeMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("strategy", id)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.StackDepth, err = meter.Int64ObservableGauge(MetricStackDepth, metric.WithDescription("Open LIFO entries per strategy instance"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for id, val := range m.stackDepthMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("strategy", id)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// SetTradedSize records the current net size for a strategy instance.
func (m *MetricsHolder) SetTradedSize(strategyID string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tradedSizeMap[strategyID] = size
}

// SetStackDepth records the current LIFO depth for a strategy instance.
func (m *MetricsHolder) SetStackDepth(strategyID string, depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stackDepthMap[strategyID] = depth
}
