package arbitrage

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

func midQuote(venue string, mid int64, eventTime time.Time) domain.Quote {
	return domain.MidQuote("BTC", venue, mid, eventTime, eventTime)
}

func bookQuote(venue string, bid, ask int64, eventTime time.Time) domain.Quote {
	return domain.Quote{
		Symbol:     "BTC",
		Venue:      venue,
		BidTicks:   bid,
		AskTicks:   ask,
		EventTime:  eventTime,
		IngestTime: eventTime,
	}
}

func TestDetectFindsSpreadAboveThreshold(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 2000, MaxQuoteAge: 10 * time.Second, AllowMidOnly: true}, testLogger())

	// 100.00 vs 100.30 is a 0.3% gap, above the 0.2% threshold.
	quotes := []domain.Quote{
		midQuote("hyperliquid", 100_000000, now),
		midQuote("binance", 100_300000, now),
	}

	opps := d.Detect("BTC", quotes, now)
	require.Len(t, opps, 1)

	opp := opps[0]
	assert.Equal(t, "hyperliquid", opp.BuyVenue, "buy the cheap venue")
	assert.Equal(t, "binance", opp.SellVenue)
	assert.Equal(t, int64(100_000000), opp.BuyPriceTicks)
	assert.Equal(t, int64(100_300000), opp.SellPriceTicks)
	assert.InDelta(t, 0.003, opp.ProfitFraction, 1e-9)
	assert.True(t, opp.MidOnly)
	assert.Equal(t, domain.SourceDetector, opp.Source)
	assert.NotEmpty(t, opp.ID)
}

func TestDetectBelowThreshold(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 5000, AllowMidOnly: true}, testLogger())

	quotes := []domain.Quote{
		midQuote("hyperliquid", 100_000000, now),
		midQuote("binance", 100_300000, now), // 0.3% < 0.5%
	}
	assert.Empty(t, d.Detect("BTC", quotes, now))
}

func TestDetectThresholdIsInclusive(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 3000, AllowMidOnly: true}, testLogger())

	// Exactly 0.3%: qualifies.
	quotes := []domain.Quote{
		midQuote("a", 100_000000, now),
		midQuote("b", 100_300000, now),
	}
	assert.Len(t, d.Detect("BTC", quotes, now), 1)
}

func TestDetectUsesAskAndBidForTwoSidedQuotes(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 2000}, testLogger())

	// Mids are 100.00 and 100.50 but the executable spread is ask 100.10 to
	// bid 100.40, i.e. ~0.3%.
	quotes := []domain.Quote{
		bookQuote("cheap", 99_900000, 100_100000, now),
		bookQuote("dear", 100_400000, 100_600000, now),
	}

	opps := d.Detect("BTC", quotes, now)
	require.Len(t, opps, 1)
	assert.Equal(t, int64(100_100000), opps[0].BuyPriceTicks, "buy at the ask")
	assert.Equal(t, int64(100_400000), opps[0].SellPriceTicks, "sell at the bid")
	assert.False(t, opps[0].MidOnly)
}

func TestDetectMidOnlyPolicy(t *testing.T) {
	now := time.Now().UTC()
	quotes := []domain.Quote{
		midQuote("oracle", 100_000000, now),
		bookQuote("binance", 100_400000, 100_600000, now),
	}

	strict := New(Config{ThresholdPPM: 2000, AllowMidOnly: false}, testLogger())
	assert.Empty(t, strict.Detect("BTC", quotes, now), "mid-only quote excluded leaves one venue")

	lenient := New(Config{ThresholdPPM: 2000, AllowMidOnly: true}, testLogger())
	opps := lenient.Detect("BTC", quotes, now)
	require.Len(t, opps, 1)
	assert.True(t, opps[0].MidOnly, "one mid-only leg marks the opportunity")
}

func TestDetectDropsStaleQuotes(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 2000, MaxQuoteAge: 10 * time.Second, AllowMidOnly: true}, testLogger())

	quotes := []domain.Quote{
		midQuote("fresh", 100_000000, now),
		midQuote("stale", 100_300000, now.Add(-11*time.Second)),
	}
	assert.Empty(t, d.Detect("BTC", quotes, now), "stale quote leaves fewer than two venues")
}

func TestDetectPairwiseAcrossThreeVenues(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 2000, AllowMidOnly: true}, testLogger())

	quotes := []domain.Quote{
		midQuote("a", 100_000000, now),
		midQuote("b", 100_300000, now),
		midQuote("c", 100_600000, now),
	}

	opps := d.Detect("BTC", quotes, now)
	// All three pairs clear 0.2%: a->b 0.300%, a->c 0.600%, b->c 0.299%.
	require.Len(t, opps, 3)
	assert.Equal(t, "a", opps[0].BuyVenue)
	assert.Equal(t, "b", opps[0].SellVenue)
	assert.Equal(t, "a", opps[1].BuyVenue)
	assert.Equal(t, "c", opps[1].SellVenue)
	assert.Equal(t, "b", opps[2].BuyVenue)
	assert.Equal(t, "c", opps[2].SellVenue)
}

func TestDetectDeterministicModuloIDs(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 2000, AllowMidOnly: true}, testLogger())

	quotes := []domain.Quote{
		midQuote("a", 100_000000, now),
		midQuote("b", 100_300000, now),
	}

	first := d.Detect("BTC", quotes, now)
	second := d.Detect("BTC", quotes, now)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	first[0].ID, second[0].ID = "", ""
	assert.Equal(t, first, second)
}

func TestDetectSingleVenue(t *testing.T) {
	now := time.Now().UTC()
	d := New(Config{ThresholdPPM: 2000, AllowMidOnly: true}, testLogger())
	assert.Empty(t, d.Detect("BTC", []domain.Quote{midQuote("a", 100_000000, now)}, now))
}
