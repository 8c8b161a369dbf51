package executor

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func opp(id, symbol string, profit float64, detectedAt time.Time) domain.ArbOpportunity {
	return domain.ArbOpportunity{
		ID:             id,
		Symbol:         symbol,
		BuyVenue:       "hyperliquid",
		BuyPriceTicks:  100_000000,
		SellVenue:      "binance",
		SellPriceTicks: 100_300000,
		ProfitFraction: profit,
		Source:         domain.SourceDetector,
		DetectedAt:     detectedAt,
	}
}

func TestGateAdmitsFreshProfitable(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 2000, MaxAge: 5 * time.Second}, testLogger())

	require.NoError(t, g.Admit(opp("o1", "BTC", 0.003, now), now))
	assert.True(t, g.Engaged("BTC"))
}

func TestGateRejectsStale(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 2000, MaxAge: 5 * time.Second}, testLogger())

	err := g.Admit(opp("o1", "BTC", 0.003, now.Add(-5*time.Second-time.Millisecond)), now)
	assert.ErrorIs(t, err, domain.ErrStaleOpp)
	assert.False(t, g.Engaged("BTC"), "rejected opportunities must not engage the symbol")
}

func TestGateMaxAgeIsInclusive(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 2000, MaxAge: 5 * time.Second}, testLogger())

	// Aged exactly MaxAge still passes.
	require.NoError(t, g.Admit(opp("o1", "BTC", 0.003, now.Add(-5*time.Second)), now))
}

func TestGateRejectsBelowFloor(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 5000, MaxAge: 5 * time.Second}, testLogger())

	err := g.Admit(opp("o1", "BTC", 0.003, now), now)
	assert.ErrorIs(t, err, domain.ErrBelowThreshold)
}

func TestGateProfitFloorIsInclusive(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 3000, MaxAge: 5 * time.Second}, testLogger())

	require.NoError(t, g.Admit(opp("o1", "BTC", 0.003, now), now))
}

func TestGateFloorExactInTicks(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 249, MaxAge: 5 * time.Second}, testLogger())

	// 1000.000000 -> 1000.249000 is exactly 249ppm in ticks; the float
	// fraction of the same pair truncates to 248ppm. The tick comparison is
	// authoritative, so this must be admitted.
	o := domain.ArbOpportunity{
		ID:             "o1",
		Symbol:         "BTC",
		BuyVenue:       "hyperliquid",
		BuyPriceTicks:  1000_000000,
		SellVenue:      "binance",
		SellPriceTicks: 1000_249000,
		ProfitFraction: 0.000249,
		Source:         domain.SourceDetector,
		DetectedAt:     now,
	}
	require.NoError(t, g.Admit(o, now))

	// One tick under the floor is still rejected.
	under := o
	under.ID = "o2"
	under.Symbol = "ETH"
	under.SellPriceTicks = 1000_248999
	assert.ErrorIs(t, g.Admit(under, now), domain.ErrBelowThreshold)
}

func TestGateFloorFractionFallbackRounds(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 249, MaxAge: 5 * time.Second}, testLogger())

	// No prices on the record: the rounded fraction decides, so a fraction
	// representing exactly 249ppm clears a 249ppm floor.
	o := domain.ArbOpportunity{
		ID:             "o1",
		Symbol:         "BTC",
		ProfitFraction: 0.000249,
		Source:         domain.SourceExport,
		DetectedAt:     now,
	}
	require.NoError(t, g.Admit(o, now))
}

func TestGateOneEngagementPerSymbol(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 2000, MaxAge: 5 * time.Second}, testLogger())

	require.NoError(t, g.Admit(opp("o1", "BTC", 0.003, now), now))

	err := g.Admit(opp("o2", "BTC", 0.004, now), now)
	assert.ErrorIs(t, err, domain.ErrSymbolEngaged)

	// A different symbol is unaffected.
	require.NoError(t, g.Admit(opp("o3", "ETH", 0.003, now), now))

	// Release frees the slot for the next opportunity.
	g.Release("BTC")
	assert.False(t, g.Engaged("BTC"))
	require.NoError(t, g.Admit(opp("o4", "BTC", 0.003, now), now))
}

func TestGateReleaseUnengagedIsNoop(t *testing.T) {
	g := NewGate(GateConfig{}, testLogger())
	g.Release("BTC")
	assert.False(t, g.Engaged("BTC"))
}

func TestGateReset(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{MinProfitPPM: 0, MaxAge: 5 * time.Second}, testLogger())

	require.NoError(t, g.Admit(opp("o1", "BTC", 0.003, now), now))
	require.NoError(t, g.Admit(opp("o2", "ETH", 0.003, now), now))

	g.Reset()
	assert.False(t, g.Engaged("BTC"))
	assert.False(t, g.Engaged("ETH"))
}

func TestGateZeroMaxAgeUsesDefault(t *testing.T) {
	now := time.Now().UTC()
	g := NewGate(GateConfig{}, testLogger())

	// Default window is 5s: 4s old passes, 6s old does not.
	require.NoError(t, g.Admit(opp("o1", "BTC", 0.003, now.Add(-4*time.Second)), now))
	err := g.Admit(opp("o2", "ETH", 0.003, now.Add(-6*time.Second)), now)
	assert.ErrorIs(t, err, domain.ErrStaleOpp)
}
