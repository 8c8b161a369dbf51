package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// HyperliquidAdapter speaks the Hyperliquid allMids WebSocket feed. The feed
// publishes a single mid price per coin, with no bid/ask and no sizes, so
// every quote it produces is mid-only.
type HyperliquidAdapter struct {
	venue   string
	wsURL   string
	symbols map[string]struct{}
}

// NewHyperliquidAdapter creates an adapter subscribed to allMids, filtered to
// the given symbol universe.
func NewHyperliquidAdapter(venue, wsURL string, symbols []string) *HyperliquidAdapter {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &HyperliquidAdapter{venue: venue, wsURL: wsURL, symbols: set}
}

// Venue returns the configured venue identifier.
func (a *HyperliquidAdapter) Venue() string { return a.venue }

// URL returns the WebSocket endpoint.
func (a *HyperliquidAdapter) URL() string { return a.wsURL }

// SubscribeFrames returns the allMids subscription command.
func (a *HyperliquidAdapter) SubscribeFrames() [][]byte {
	return [][]byte{[]byte(`{"method":"subscribe","subscription":{"type":"allMids"}}`)}
}

// HeartbeatFrame returns Hyperliquid's application-level ping.
func (a *HyperliquidAdapter) HeartbeatFrame() ([]byte, bool) {
	return []byte(`{"method":"ping"}`), true
}

// allMidsMessage is the envelope for the allMids channel.
type allMidsMessage struct {
	Channel string `json:"channel"`
	Data    struct {
		Mids map[string]string `json:"mids"`
		Time int64             `json:"time"` // milliseconds, optional
	} `json:"data"`
}

// Parse extracts mid-only quotes for symbols in the configured universe.
// Frames on other channels (subscription acks, pongs) are not applicable.
func (a *HyperliquidAdapter) Parse(raw []byte) ([]domain.Quote, error) {
	var msg allMidsMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("hyperliquid: decode frame: %w", err)
	}
	if msg.Channel != "allMids" || len(msg.Data.Mids) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	eventTime := now
	if msg.Data.Time > 0 {
		eventTime = time.UnixMilli(msg.Data.Time).UTC()
	}

	var quotes []domain.Quote
	for symbol, mid := range msg.Data.Mids {
		if _, ok := a.symbols[symbol]; !ok {
			continue
		}
		ticks, err := domain.ParseTicks(mid)
		if err != nil || ticks <= 0 {
			// One bad coin should not poison the rest of the map.
			continue
		}
		quotes = append(quotes, domain.MidQuote(symbol, a.venue, ticks, eventTime, now))
	}
	return quotes, nil
}

var _ Adapter = (*HyperliquidAdapter)(nil)
