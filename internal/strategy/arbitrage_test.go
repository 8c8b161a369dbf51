package strategy

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbflow/internal/domain"
	"github.com/alanyoungcy/arbflow/internal/executor"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeExec records submissions and can be told to fail.
type fakeExec struct {
	requests []domain.OrderRequest
	err      error
}

func (f *fakeExec) Submit(_ context.Context, req domain.OrderRequest) (domain.PendingOrder, error) {
	if f.err != nil {
		return domain.PendingOrder{}, f.err
	}
	f.requests = append(f.requests, req)
	return domain.PendingOrder{
		ClientOrderID: uuid.NewString(),
		Symbol:        req.Symbol,
		Venue:         req.Venue,
		Side:          req.Side,
		SizeUnits:     req.SizeUnits,
		LimitTicks:    req.LimitTicks,
		OpportunityID: req.OpportunityID,
	}, nil
}

func testOpp(symbol string, buyTicks, sellTicks int64) domain.ArbOpportunity {
	return domain.ArbOpportunity{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		BuyVenue:       "hyperliquid",
		BuyPriceTicks:  buyTicks,
		SellVenue:      "binance",
		SellPriceTicks: sellTicks,
		ProfitFraction: float64(sellTicks-buyTicks) / float64(buyTicks),
		Source:         domain.SourceDetector,
		DetectedAt:     time.Now().UTC(),
	}
}

func newTestStrategy(cfg Config, exec OrderSubmitter) (*Arbitrage, *executor.Gate) {
	gate := executor.NewGate(executor.GateConfig{MinProfitPPM: 2000, MaxAge: 5 * time.Second}, testLogger())
	return NewArbitrage(cfg, gate, exec, testLogger()), gate
}

func TestArbitrageSubmitsBothLegs(t *testing.T) {
	exec := &fakeExec{}
	arb, gate := newTestStrategy(Config{}, exec)

	opp := testOpp("BTC", 100_000000, 100_300000)
	require.NoError(t, arb.OnOpportunity(context.Background(), opp))

	require.Len(t, exec.requests, 2)
	buy, sell := exec.requests[0], exec.requests[1]

	assert.Equal(t, domain.OrderSideBuy, buy.Side)
	assert.Equal(t, "hyperliquid", buy.Venue)
	assert.Equal(t, opp.BuyPriceTicks, buy.LimitTicks)

	assert.Equal(t, domain.OrderSideSell, sell.Side)
	assert.Equal(t, "binance", sell.Venue)
	assert.Equal(t, opp.SellPriceTicks, sell.LimitTicks)

	assert.Equal(t, buy.SizeUnits, sell.SizeUnits, "both legs carry the same quantity")
	assert.Equal(t, opp.ID, buy.OpportunityID)
	assert.Equal(t, opp.ID, sell.OpportunityID)

	assert.True(t, gate.Engaged("BTC"), "engaged until both legs are terminal")
}

func TestArbitragePositionSizing(t *testing.T) {
	exec := &fakeExec{}
	// Max notional 1000, price 100: notional allows 10 units, under the cap.
	arb, _ := newTestStrategy(Config{MaxNotionalUnits: 1000_000000, MaxUnits: 100_000000}, exec)

	require.NoError(t, arb.OnOpportunity(context.Background(), testOpp("BTC", 100_000000, 100_300000)))
	require.Len(t, exec.requests, 2)
	assert.Equal(t, int64(10_000000), exec.requests[0].SizeUnits)
}

func TestArbitragePositionSizeCappedAtMaxUnits(t *testing.T) {
	exec := &fakeExec{}
	// Price 1: notional alone would allow 1000 units; the cap wins.
	arb, _ := newTestStrategy(Config{MaxNotionalUnits: 1000_000000, MaxUnits: 100_000000}, exec)

	require.NoError(t, arb.OnOpportunity(context.Background(), testOpp("ETH", 1_000000, 1_003000)))
	require.Len(t, exec.requests, 2)
	assert.Equal(t, int64(100_000000), exec.requests[0].SizeUnits)
}

func TestArbitrageReleasesGateWhenBothLegsTerminal(t *testing.T) {
	exec := &fakeExec{}
	arb, gate := newTestStrategy(Config{}, exec)

	opp := testOpp("BTC", 100_000000, 100_300000)
	require.NoError(t, arb.OnOpportunity(context.Background(), opp))
	require.True(t, gate.Engaged("BTC"))

	fill := domain.OrderEvent{
		Symbol:        "BTC",
		Venue:         "hyperliquid",
		Status:        domain.OrderStatusFilled,
		OpportunityID: opp.ID,
	}
	arb.OnOrderEvent(context.Background(), fill)
	assert.True(t, gate.Engaged("BTC"), "one leg down, one to go")

	reject := domain.OrderEvent{
		Symbol:        "BTC",
		Venue:         "binance",
		Status:        domain.OrderStatusRejected,
		Reason:        "Insufficient margin (simulated rejection)",
		OpportunityID: opp.ID,
	}
	arb.OnOrderEvent(context.Background(), reject)
	assert.False(t, gate.Engaged("BTC"), "terminal on both legs releases the symbol")
}

func TestArbitrageIgnoresNonTerminalAndForeignEvents(t *testing.T) {
	exec := &fakeExec{}
	arb, gate := newTestStrategy(Config{}, exec)

	opp := testOpp("BTC", 100_000000, 100_300000)
	require.NoError(t, arb.OnOpportunity(context.Background(), opp))

	arb.OnOrderEvent(context.Background(), domain.OrderEvent{
		Symbol:        "BTC",
		Status:        domain.OrderStatusAccepted,
		OpportunityID: opp.ID,
	})
	arb.OnOrderEvent(context.Background(), domain.OrderEvent{
		Symbol: "BTC",
		Status: domain.OrderStatusFilled, // no opportunity ID
	})
	assert.True(t, gate.Engaged("BTC"))
}

func TestArbitrageGateRejectionPropagates(t *testing.T) {
	exec := &fakeExec{}
	arb, gate := newTestStrategy(Config{}, exec)

	opp := testOpp("BTC", 100_000000, 100_300000)
	require.NoError(t, arb.OnOpportunity(context.Background(), opp))

	err := arb.OnOpportunity(context.Background(), testOpp("BTC", 100_000000, 100_300000))
	assert.ErrorIs(t, err, domain.ErrSymbolEngaged)
	assert.Len(t, exec.requests, 2, "second opportunity submitted nothing")
	assert.True(t, gate.Engaged("BTC"), "the original engagement is untouched")
}

func TestArbitrageSubmitFailureReleasesGate(t *testing.T) {
	exec := &fakeExec{err: errors.New("venue down")}
	arb, gate := newTestStrategy(Config{}, exec)

	opp := testOpp("BTC", 100_000000, 100_300000)
	require.NoError(t, arb.OnOpportunity(context.Background(), opp))

	assert.False(t, gate.Engaged("BTC"), "both legs failed to submit, nothing is in flight")
}

func TestArbitrageCloseResetsGate(t *testing.T) {
	exec := &fakeExec{}
	arb, gate := newTestStrategy(Config{}, exec)

	require.NoError(t, arb.OnOpportunity(context.Background(), testOpp("BTC", 100_000000, 100_300000)))
	require.True(t, gate.Engaged("BTC"))

	arb.Close()
	assert.False(t, gate.Engaged("BTC"))
}
