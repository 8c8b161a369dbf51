package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedstoneURL(t *testing.T) {
	p := NewRedstoneParser("https://gw.example/v2/data-packages/latest", []string{"BTC", "ETH"})
	assert.Equal(t,
		"https://gw.example/v2/data-packages/latest?limit=1&provider=redstone&symbols=BTC%2CETH",
		p.URL(),
	)
}

func TestRedstoneParsePerSourceQuotes(t *testing.T) {
	p := NewRedstoneParser("https://gw.example", []string{"BTC"})

	body := []byte(`{
		"BTC": [{
			"timestampMilliseconds": 1700000000000,
			"dataPoints": [{
				"metadata": {
					"sourceMetadata": {
						"binance-usdt": {"value": "65000"},
						"Kraken":       {"tradeInfo": {"bidPrice": 64999, "askPrice": 65001}},
						"broken":       {}
					}
				}
			}]
		}],
		"XRP": [{"dataPoints": [{"metadata": {"sourceMetadata": {"binance": {"value": "0.5"}}}}]}]
	}`)

	quotes, err := p.Parse(body)
	require.NoError(t, err)
	require.Len(t, quotes, 2, "one quote per usable source; XRP outside the universe; broken skipped")

	byVenue := map[string]int64{}
	for _, q := range quotes {
		assert.Equal(t, "BTC", q.Symbol)
		assert.True(t, q.MidOnly)
		assert.Equal(t, int64(1700000000000), q.EventTime.UnixMilli())
		byVenue[q.Venue] = q.MidTicks()
	}
	assert.Equal(t, int64(65000_000000), byVenue["redstone:binance-usdt"])
	assert.Equal(t, int64(65000_000000), byVenue["redstone:kraken"], "trade info mid, venue lowercased")
}

func TestRedstoneParseSingleSidedTradeInfo(t *testing.T) {
	p := NewRedstoneParser("https://gw.example", []string{"ETH"})

	body := []byte(`{"ETH": [{"dataPoints": [{"metadata": {"sourceMetadata": {
		"bidonly": {"tradeInfo": {"bidPrice": "3100"}},
		"askonly": {"tradeInfo": {"askPrice": "3102"}}
	}}}]}]}`)

	quotes, err := p.Parse(body)
	require.NoError(t, err)
	require.Len(t, quotes, 2)

	byVenue := map[string]int64{}
	for _, q := range quotes {
		byVenue[q.Venue] = q.MidTicks()
	}
	assert.Equal(t, int64(3100_000000), byVenue["redstone:bidonly"])
	assert.Equal(t, int64(3102_000000), byVenue["redstone:askonly"])
}

func TestRedstoneParseMalformedBody(t *testing.T) {
	p := NewRedstoneParser("https://gw.example", []string{"BTC"})
	_, err := p.Parse([]byte(`<!doctype html>`))
	assert.Error(t, err)
}

func TestRedstoneParseEmptyPackages(t *testing.T) {
	p := NewRedstoneParser("https://gw.example", []string{"BTC"})
	quotes, err := p.Parse([]byte(`{"BTC": []}`))
	require.NoError(t, err)
	assert.Nil(t, quotes)
}
