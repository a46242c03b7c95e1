package runtime

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ladder_maker/internal/core"
	"ladder_maker/internal/ladder"
	"ladder_maker/internal/mock"
	"ladder_maker/internal/store"
	"ladder_maker/pkg/concurrency"
)

func ladderTestConfig() ladder.Config {
	return ladder.Config{
		StrategyID:        "run1",
		Symbol:            "BTCUSDT",
		BasePrice:         decimal.NewFromInt(100),
		StepPercent:       decimal.NewFromInt(2),
		TakeProfitPercent: decimal.NewFromInt(1),
		OrderAmount:       decimal.NewFromInt(500),
		MinSize:           decimal.Zero,
		MaxSize:           decimal.NewFromInt(1000),
		Leverage:          1,
		MarginMode:        "cross",
		PriceDecimals:     2,
		QtyDecimals:       4,
	}
}

func newInstance(t *testing.T, venue *mock.PaperVenue, st core.IStateStore) *Instance {
	t.Helper()
	engine, err := ladder.NewEngine(ladderTestConfig(), nopLogger{})
	require.NoError(t, err)
	return &Instance{
		Engine:     engine,
		Venue:      venue,
		Source:     venue,
		Dispatcher: NewVenueDispatcher(venue, fastConfig(), nopLogger{}),
		Store:      st,
	}
}

func openOrderIDs(t *testing.T, venue *mock.PaperVenue) []string {
	t.Helper()
	open, err := venue.GetOpenOrders(context.Background())
	require.NoError(t, err)
	ids := make([]string, 0, len(open))
	for _, o := range open {
		ids = append(ids, o.ClientOrderID)
	}
	return ids
}

func hasOrderOfKind(ids []string, kind string) bool {
	for _, id := range ids {
		parts := strings.Split(id, "-")
		if len(parts) == 3 && strings.HasPrefix(parts[1], kind) {
			return true
		}
	}
	return false
}

func TestRunnerPlacesEntryAndTakeProfit(t *testing.T) {
	venue := mock.NewPaperVenue()
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test", MaxWorkers: 2}, nopLogger{})
	defer pool.StopAndWait()

	runner := NewRunner(pool, nopLogger{}, 0)
	inst := newInstance(t, venue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, []*Instance{inst}) }()

	// Recovery on an empty venue places the first rung.
	require.Eventually(t, func() bool {
		return hasOrderOfKind(openOrderIDs(t, venue), "E")
	}, 2*time.Second, 10*time.Millisecond, "expected an entry order at the venue")

	// Price crosses the rung: the fill round-trips through the update
	// stream and produces a take-profit close.
	venue.SetMarkPrice(decimal.NewFromInt(97))
	require.Eventually(t, func() bool {
		return hasOrderOfKind(openOrderIDs(t, venue), "T")
	}, 2*time.Second, 10*time.Millisecond, "expected a take-profit order at the venue")

	cancel()
	err := <-done
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunnerPersistsAndRestoresState(t *testing.T) {
	venue := mock.NewPaperVenue()
	mem := store.NewMemoryStore()
	scoped := mem.ForStrategy("run1")
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test", MaxWorkers: 2}, nopLogger{})
	defer pool.StopAndWait()

	runner := NewRunner(pool, nopLogger{}, 10*time.Millisecond)
	inst := newInstance(t, venue, scoped)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, []*Instance{inst}) }()

	venue.SetMarkPrice(decimal.NewFromInt(97))
	require.Eventually(t, func() bool {
		snap, err := scoped.LoadState(context.Background())
		return err == nil && snap != nil && snap.TradedSize == "500"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	// The shutdown snapshot restores into a fresh engine.
	snap, err := scoped.LoadState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "run1", snap.StrategyID)

	restored, err := ladder.NewEngine(ladderTestConfig(), nopLogger{})
	require.NoError(t, err)
	require.NoError(t, restored.RestoreSnapshot(snap))
	assert.True(t, restored.TradedSize().Equal(decimal.NewFromInt(500)))
	assert.Equal(t, 1, restored.StackDepth())
}

func TestRunnerRecoversSeededPosition(t *testing.T) {
	venue := mock.NewPaperVenue()
	venue.SeedPosition(decimal.NewFromInt(600), decimal.NewFromInt(97))
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test", MaxWorkers: 2}, nopLogger{})
	defer pool.StopAndWait()

	runner := NewRunner(pool, nopLogger{}, 0)
	inst := newInstance(t, venue, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx, []*Instance{inst}) }()

	// The inherited exposure gets a close order before anything else.
	require.Eventually(t, func() bool {
		return hasOrderOfKind(openOrderIDs(t, venue), "T")
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.True(t, inst.Engine.TradedSize().Equal(decimal.NewFromInt(600)))
}
