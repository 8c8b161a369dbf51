package pipeline

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeExport(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func newTestPoller(path string) (*ExportPoller, *[]domain.ArbOpportunity) {
	var got []domain.ArbOpportunity
	sink := func(_ context.Context, opp domain.ArbOpportunity) { got = append(got, opp) }
	p := NewExportPoller(ExportPollerConfig{Path: path}, sink, testLogger())
	return p, &got
}

func TestExportPollerMapsDirections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeExport(t, path, `[
		{"symbol":"BTC","hyperliquidPrice":"64800","binancePrice":"65000","percentageDifference":0.3086,"direction":"BUY_HL_SELL_BN","source":"live","timestamp":1700000000001},
		{"symbol":"ETH","hyperliquidPrice":3105.5,"binancePrice":3100,"percentageDifference":0.1774,"direction":"BUY_BN_SELL_HL","source":"live","timestamp":1700000000002}
	]`)

	p, got := newTestPoller(path)
	require.NoError(t, p.Poll(context.Background()))
	require.Len(t, *got, 2)

	btc := (*got)[0]
	assert.Equal(t, "hyperliquid", btc.BuyVenue)
	assert.Equal(t, int64(64800_000000), btc.BuyPriceTicks)
	assert.Equal(t, "binance", btc.SellVenue)
	assert.Equal(t, int64(65000_000000), btc.SellPriceTicks)
	assert.InDelta(t, 0.003086, btc.ProfitFraction, 1e-9, "percent converted to fraction")
	assert.Equal(t, domain.SourceExport, btc.Source)
	assert.Equal(t, int64(1700000000001), btc.DetectedAt.UnixMilli())

	eth := (*got)[1]
	assert.Equal(t, "binance", eth.BuyVenue)
	assert.Equal(t, int64(3100_000000), eth.BuyPriceTicks)
	assert.Equal(t, "hyperliquid", eth.SellVenue)
	assert.Equal(t, int64(3105_500000), eth.SellPriceTicks)
}

func TestExportPollerRereadIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeExport(t, path, `[
		{"symbol":"BTC","hyperliquidPrice":"64800","binancePrice":"65000","percentageDifference":0.3,"direction":"BUY_HL_SELL_BN","timestamp":1700000000001}
	]`)

	p, got := newTestPoller(path)
	require.NoError(t, p.Poll(context.Background()))
	require.NoError(t, p.Poll(context.Background()))
	assert.Len(t, *got, 1, "a record is replayed at most once")
}

func TestExportPollerPicksUpNewRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeExport(t, path, `[
		{"symbol":"BTC","hyperliquidPrice":"64800","binancePrice":"65000","percentageDifference":0.3,"direction":"BUY_HL_SELL_BN","timestamp":1700000000001}
	]`)

	p, got := newTestPoller(path)
	require.NoError(t, p.Poll(context.Background()))

	writeExport(t, path, `[
		{"symbol":"BTC","hyperliquidPrice":"64800","binancePrice":"65000","percentageDifference":0.3,"direction":"BUY_HL_SELL_BN","timestamp":1700000000001},
		{"symbol":"BTC","hyperliquidPrice":"64700","binancePrice":"65000","percentageDifference":0.46,"direction":"BUY_HL_SELL_BN","timestamp":1700000000500}
	]`)
	require.NoError(t, p.Poll(context.Background()))

	require.Len(t, *got, 2)
	assert.Equal(t, int64(1700000000500), (*got)[1].DetectedAt.UnixMilli())
}

func TestExportPollerMissingFile(t *testing.T) {
	p, got := newTestPoller(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, p.Poll(context.Background()), "a missing file means no opportunities yet")
	assert.Empty(t, *got)
}

func TestExportPollerMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeExport(t, path, `{"not":"an array"}`)

	p, got := newTestPoller(path)
	assert.Error(t, p.Poll(context.Background()))
	assert.Empty(t, *got)
}

func TestExportPollerSkipsBadRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	writeExport(t, path, `[
		{"symbol":"BTC","hyperliquidPrice":"65000","binancePrice":"64800","percentageDifference":0.3,"direction":"BUY_HL_SELL_BN","timestamp":1700000000001},
		{"symbol":"BTC","hyperliquidPrice":"64800","binancePrice":"65000","percentageDifference":0.3,"direction":"SIDEWAYS","timestamp":1700000000002},
		{"symbol":"ETH","hyperliquidPrice":"3100","binancePrice":"3110","percentageDifference":0.32,"direction":"BUY_HL_SELL_BN","timestamp":1700000000003}
	]`)

	p, got := newTestPoller(path)
	require.NoError(t, p.Poll(context.Background()))

	// Record 1 has a negative spread for its direction, record 2 an unknown
	// direction; only the third survives.
	require.Len(t, *got, 1)
	assert.Equal(t, "ETH", (*got)[0].Symbol)
}
