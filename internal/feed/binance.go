package feed

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// BinanceAdapter speaks the Binance combined ticker streams. The subscription
// is encoded in the URL (one <symbol>usdt@ticker stream per symbol), so no
// subscribe frames are sent; keep-alive uses protocol ping/pong.
type BinanceAdapter struct {
	venue   string
	wsURL   string
	symbols map[string]struct{}
}

// NewBinanceAdapter creates an adapter for the given base URL (e.g.
// "wss://stream.binance.com:9443/ws") and symbol universe. Symbols are the
// base coins ("BTC"); the USDT suffix is added on the wire and stripped on
// the way back.
func NewBinanceAdapter(venue, wsURL string, symbols []string) *BinanceAdapter {
	set := make(map[string]struct{}, len(symbols))
	streams := make([]string, 0, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
		streams = append(streams, strings.ToLower(s)+"usdt@ticker")
	}
	return &BinanceAdapter{
		venue:   venue,
		wsURL:   strings.TrimRight(wsURL, "/") + "/" + strings.Join(streams, "/"),
		symbols: set,
	}
}

// Venue returns the configured venue identifier.
func (a *BinanceAdapter) Venue() string { return a.venue }

// URL returns the combined-stream WebSocket endpoint.
func (a *BinanceAdapter) URL() string { return a.wsURL }

// SubscribeFrames returns nil: the streams are part of the URL.
func (a *BinanceAdapter) SubscribeFrames() [][]byte { return nil }

// HeartbeatFrame returns false: Binance uses protocol-level ping/pong.
func (a *BinanceAdapter) HeartbeatFrame() ([]byte, bool) { return nil, false }

// binanceTicker is the 24h ticker payload. Only the best bid/ask fields are
// used here.
type binanceTicker struct {
	Symbol    string `json:"s"`
	BidPrice  string `json:"b"`
	AskPrice  string `json:"a"`
	BidQty    string `json:"B"`
	AskQty    string `json:"A"`
	EventTime int64  `json:"E"` // milliseconds
}

// binanceEnvelope covers the combined-stream wrapper; direct stream messages
// carry the ticker fields at the top level instead.
type binanceEnvelope struct {
	Data json.RawMessage `json:"data"`
	binanceTicker
}

// Parse extracts a two-sided quote from a ticker frame. Symbols outside the
// configured universe are not applicable.
func (a *BinanceAdapter) Parse(raw []byte) ([]domain.Quote, error) {
	var env binanceEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("binance: decode frame: %w", err)
	}

	tick := env.binanceTicker
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &tick); err != nil {
			return nil, fmt.Errorf("binance: decode ticker: %w", err)
		}
	}
	if tick.Symbol == "" {
		return nil, nil
	}

	symbol := strings.TrimSuffix(tick.Symbol, "USDT")
	if _, ok := a.symbols[symbol]; !ok {
		return nil, nil
	}

	bid, err := domain.ParseTicks(tick.BidPrice)
	if err != nil {
		return nil, fmt.Errorf("binance: bid price %q: %w", tick.BidPrice, err)
	}
	ask, err := domain.ParseTicks(tick.AskPrice)
	if err != nil {
		return nil, fmt.Errorf("binance: ask price %q: %w", tick.AskPrice, err)
	}
	if bid <= 0 && ask <= 0 {
		return nil, nil
	}

	bidQty, err := domain.ParseTicks(tick.BidQty)
	if err != nil {
		bidQty = 0
	}
	askQty, err := domain.ParseTicks(tick.AskQty)
	if err != nil {
		askQty = 0
	}

	now := time.Now().UTC()
	eventTime := now
	if tick.EventTime > 0 {
		eventTime = time.UnixMilli(tick.EventTime).UTC()
	}

	q := domain.Quote{
		Symbol:       symbol,
		Venue:        a.venue,
		BidTicks:     bid,
		AskTicks:     ask,
		BidSizeUnits: bidQty,
		AskSizeUnits: askQty,
		EventTime:    eventTime,
		IngestTime:   now,
	}
	if !q.Valid() {
		return nil, fmt.Errorf("binance: crossed quote for %s: bid %s > ask %s",
			symbol, tick.BidPrice, tick.AskPrice)
	}
	return []domain.Quote{q}, nil
}

var _ Adapter = (*BinanceAdapter)(nil)
