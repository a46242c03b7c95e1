package runtime

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ladder_maker/internal/core"
	"ladder_maker/internal/ladder"
	"ladder_maker/pkg/concurrency"
	"ladder_maker/pkg/telemetry"
)

// Instance bundles one strategy engine with its collaborators. The
// runner is the engine's single owner: all engine calls happen on the
// instance's own loop goroutine.
type Instance struct {
	Engine     *ladder.Engine
	Venue      core.IVenue
	Source     core.UpdateSource
	Dispatcher core.ISignalDispatcher
	// Store is optional; nil disables persistence for the instance.
	Store core.IStateStore
}

// Runner drives a set of strategy instances until the context ends.
// Signal dispatch runs on a shared worker pool so a slow venue never
// stalls update processing.
type Runner struct {
	pool         *concurrency.WorkerPool
	logger       core.ILogger
	saveInterval time.Duration
}

func NewRunner(pool *concurrency.WorkerPool, logger core.ILogger, saveInterval time.Duration) *Runner {
	return &Runner{
		pool:         pool,
		logger:       logger.WithField("component", "runner"),
		saveInterval: saveInterval,
	}
}

// Run blocks until the context is cancelled or any instance fails.
func (r *Runner) Run(ctx context.Context, instances []*Instance) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, inst := range instances {
		inst := inst
		g.Go(func() error {
			return r.runInstance(ctx, inst)
		})
	}
	return g.Wait()
}

func (r *Runner) runInstance(ctx context.Context, inst *Instance) error {
	logger := r.logger.WithField("strategy", inst.Engine.StrategyID())
	inst.Engine.SetMetrics(telemetry.GetGlobalMetrics())

	res, err := r.bootstrap(ctx, inst, logger)
	if err != nil {
		return err
	}
	r.handleResult(ctx, inst, logger, res)

	var saveC <-chan time.Time
	if inst.Store != nil && r.saveInterval > 0 {
		ticker := time.NewTicker(r.saveInterval)
		defer ticker.Stop()
		saveC = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			r.saveState(context.Background(), inst, logger)
			return ctx.Err()

		case batch, ok := <-inst.Source.Updates():
			if !ok {
				logger.Warn("update stream closed, stopping instance")
				r.saveState(context.Background(), inst, logger)
				return fmt.Errorf("update stream closed for %s", inst.Engine.StrategyID())
			}
			res, err := inst.Engine.ProcessUpdates(batch)
			if err != nil {
				return fmt.Errorf("processing updates for %s: %w", inst.Engine.StrategyID(), err)
			}
			r.handleResult(ctx, inst, logger, res)

		case <-saveC:
			r.saveState(ctx, inst, logger)
		}
	}
}

// bootstrap restores persisted state when available, and otherwise
// rebuilds it from venue snapshots.
func (r *Runner) bootstrap(ctx context.Context, inst *Instance, logger core.ILogger) (*ladder.Result, error) {
	if inst.Store != nil {
		snap, err := inst.Store.LoadState(ctx)
		if err != nil {
			logger.Warn("failed to load persisted state, falling back to venue recovery", "error", err)
		} else if snap != nil {
			if err := inst.Engine.RestoreSnapshot(snap); err != nil {
				logger.Warn("persisted state rejected, falling back to venue recovery", "error", err)
			} else {
				logger.Info("state restored from snapshot", "saved_at", snap.SavedAt)
				return inst.Engine.ProcessUpdates(nil)
			}
		}
	}

	open, err := inst.Venue.GetOpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery: open orders: %w", err)
	}
	position, err := inst.Venue.GetPosition(ctx)
	if err != nil {
		return nil, fmt.Errorf("recovery: position: %w", err)
	}

	res, err := inst.Engine.Recover(open, position)
	if err != nil {
		return nil, fmt.Errorf("recovery: %w", err)
	}
	logger.Info("recovery complete",
		"open_orders", len(open),
		"traded_size", inst.Engine.TradedSize().String(),
		"stack_depth", inst.Engine.StackDepth())
	return res, nil
}

func (r *Runner) handleResult(ctx context.Context, inst *Instance, logger core.ILogger, res *ladder.Result) {
	r.logDiagnostics(ctx, logger, res.Diagnostics)

	signals := res.Signals
	if len(signals) == 0 {
		return
	}
	if err := r.pool.Submit(func() {
		if err := inst.Dispatcher.Dispatch(ctx, signals); err != nil {
			logger.Error("signal dispatch failed", "error", err)
		}
	}); err != nil {
		logger.Error("failed to submit dispatch task", "error", err)
	}
}

func (r *Runner) logDiagnostics(ctx context.Context, logger core.ILogger, diags []core.Diagnostic) {
	metrics := telemetry.GetGlobalMetrics()
	for _, diag := range diags {
		fields := []interface{}{"code", diag.Code, "client_order_id", diag.ClientOrderID}
		switch diag.Level {
		case core.DiagWarn:
			logger.Warn(diag.Message, fields...)
		case core.DiagInfo:
			logger.Info(diag.Message, fields...)
		default:
			logger.Debug(diag.Message, fields...)
		}
		if diag.Code == core.DiagCodeUnmanagedExposure && metrics.UnmanagedExposureTotal != nil {
			metrics.UnmanagedExposureTotal.Add(ctx, 1)
		}
	}
}

func (r *Runner) saveState(ctx context.Context, inst *Instance, logger core.ILogger) {
	if inst.Store == nil {
		return
	}
	if err := inst.Store.SaveState(ctx, inst.Engine.ExportSnapshot()); err != nil {
		logger.Error("failed to persist state", "error", err)
	}
}
