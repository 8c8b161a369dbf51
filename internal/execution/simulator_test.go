package execution

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// eventCollector is a thread-safe sink that records every order event.
type eventCollector struct {
	mu     sync.Mutex
	events []domain.OrderEvent
}

func (c *eventCollector) sink(_ context.Context, ev domain.OrderEvent) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *eventCollector) byOrder(id string) []domain.OrderEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []domain.OrderEvent
	for _, ev := range c.events {
		if ev.ClientOrderID == id {
			out = append(out, ev)
		}
	}
	return out
}

func newTestSimulator(cfg Config, refPrice ReferencePriceFunc) (*Simulator, *eventCollector) {
	if cfg.Venues == nil {
		cfg.Venues = []string{"binance", "hyperliquid"}
	}
	if cfg.ProcessingDelay == 0 {
		cfg.ProcessingDelay = time.Millisecond
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	collector := &eventCollector{}
	sim := New(cfg, refPrice, collector.sink, testLogger())
	return sim, collector
}

func TestSimulatorFillsAtLimitWithoutSlippage(t *testing.T) {
	sim, events := newTestSimulator(Config{RejectProbability: 0, SlippagePPM: 0}, nil)

	order, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol:     "BTC",
		Venue:      "binance",
		Side:       domain.OrderSideBuy,
		SizeUnits:  1_000000,
		LimitTicks: 65000_000000,
	})
	require.NoError(t, err)
	sim.Close()

	evs := events.byOrder(order.ClientOrderID)
	require.Len(t, evs, 2, "accepted then exactly one terminal event")
	assert.Equal(t, domain.OrderStatusAccepted, evs[0].Status)
	assert.Equal(t, domain.OrderStatusFilled, evs[1].Status)
	assert.Equal(t, int64(65000_000000), evs[1].FillTicks, "zero slippage fills at the limit")
}

func TestSimulatorSlippageStaysBounded(t *testing.T) {
	const limit = int64(100_000000)
	const slippagePPM = int64(500)

	sim, events := newTestSimulator(Config{RejectProbability: 0, SlippagePPM: slippagePPM}, nil)

	var ids []string
	for i := 0; i < 50; i++ {
		order, err := sim.Submit(context.Background(), domain.OrderRequest{
			Symbol:     "BTC",
			Venue:      "binance",
			Side:       domain.OrderSideBuy,
			SizeUnits:  1_000000,
			LimitTicks: limit,
		})
		require.NoError(t, err)
		ids = append(ids, order.ClientOrderID)
	}
	sim.Close()

	lo := limit - limit*slippagePPM/1_000_000
	hi := limit + limit*slippagePPM/1_000_000
	for _, id := range ids {
		evs := events.byOrder(id)
		require.Len(t, evs, 2)
		fill := evs[1].FillTicks
		assert.GreaterOrEqual(t, fill, lo)
		assert.LessOrEqual(t, fill, hi)
	}
}

func TestSimulatorAlwaysRejects(t *testing.T) {
	sim, events := newTestSimulator(Config{RejectProbability: 1, SlippagePPM: 0}, nil)

	order, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol:     "BTC",
		Venue:      "binance",
		Side:       domain.OrderSideSell,
		SizeUnits:  1_000000,
		LimitTicks: 65000_000000,
	})
	require.NoError(t, err)
	sim.Close()

	evs := events.byOrder(order.ClientOrderID)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.OrderStatusRejected, evs[1].Status)
	assert.Equal(t, "Insufficient margin (simulated rejection)", evs[1].Reason)
	assert.Zero(t, evs[1].FillTicks)
}

func TestSimulatorMarketOrderUsesReferencePrice(t *testing.T) {
	refPrice := func(venue, symbol string) (int64, bool) {
		return 64000_000000, true
	}
	sim, events := newTestSimulator(Config{RejectProbability: 0, SlippagePPM: 0}, refPrice)

	order, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol:    "BTC",
		Venue:     "binance",
		Side:      domain.OrderSideBuy,
		SizeUnits: 1_000000,
		// No limit: market order.
	})
	require.NoError(t, err)
	sim.Close()

	evs := events.byOrder(order.ClientOrderID)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.OrderStatusFilled, evs[1].Status)
	assert.Equal(t, int64(64000_000000), evs[1].FillTicks)
}

func TestSimulatorMarketOrderWithoutReferenceRejects(t *testing.T) {
	sim, events := newTestSimulator(Config{RejectProbability: 0, SlippagePPM: 0}, nil)

	order, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol:    "BTC",
		Venue:     "binance",
		Side:      domain.OrderSideBuy,
		SizeUnits: 1_000000,
	})
	require.NoError(t, err)
	sim.Close()

	evs := events.byOrder(order.ClientOrderID)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.OrderStatusRejected, evs[1].Status)
	assert.Equal(t, "no reference price available", evs[1].Reason)
}

func TestSimulatorUnknownVenue(t *testing.T) {
	sim, _ := newTestSimulator(Config{}, nil)
	defer sim.Close()

	_, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol: "BTC",
		Venue:  "kraken",
	})
	assert.ErrorIs(t, err, domain.ErrVenueUnknown)
}

func TestSimulatorClosedRejectsSubmit(t *testing.T) {
	sim, _ := newTestSimulator(Config{}, nil)
	sim.Close()

	_, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol:     "BTC",
		Venue:      "binance",
		LimitTicks: 1_000000,
	})
	assert.ErrorIs(t, err, domain.ErrSimulatorClosed)
}

func TestSimulatorPendingDrainsAfterTerminal(t *testing.T) {
	sim, _ := newTestSimulator(Config{RejectProbability: 0, SlippagePPM: 0}, nil)

	_, err := sim.Submit(context.Background(), domain.OrderRequest{
		Symbol:     "BTC",
		Venue:      "binance",
		SizeUnits:  1_000000,
		LimitTicks: 65000_000000,
	})
	require.NoError(t, err)
	assert.Len(t, sim.Pending(), 1, "order is pending until its terminal event")

	sim.Close()
	assert.Empty(t, sim.Pending())
}

func TestSimulatorCancelledContextRejects(t *testing.T) {
	sim, events := newTestSimulator(Config{RejectProbability: 0, SlippagePPM: 0, ProcessingDelay: time.Hour}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	order, err := sim.Submit(ctx, domain.OrderRequest{
		Symbol:     "BTC",
		Venue:      "binance",
		SizeUnits:  1_000000,
		LimitTicks: 65000_000000,
	})
	require.NoError(t, err)

	cancel()
	sim.Close()

	evs := events.byOrder(order.ClientOrderID)
	require.Len(t, evs, 2)
	assert.Equal(t, domain.OrderStatusRejected, evs[1].Status)
	assert.Equal(t, "cancelled before processing", evs[1].Reason)
}
