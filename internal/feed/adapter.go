package feed

import (
	"context"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// QuoteSink receives every normalized quote a feed produces. The ingestion
// layer points this at the QuoteBook.
type QuoteSink func(ctx context.Context, q domain.Quote)

// Adapter captures everything venue-specific about a streaming feed: where to
// connect, how to subscribe, how to keep the connection alive, and how to
// turn a raw frame into canonical quotes.
//
// Parse is a pure function: replaying the same raw message yields structurally
// identical quotes. Messages outside the expected symbol universe or schema
// return (nil, nil), meaning "not applicable", rather than an error or a
// partial quote; an error means the frame claimed to be relevant but could
// not be decoded.
type Adapter interface {
	// Venue returns the identifier quotes from this feed carry.
	Venue() string

	// URL returns the WebSocket endpoint to dial.
	URL() string

	// SubscribeFrames returns the frames to send right after connecting. May
	// be empty for venues that encode the subscription in the URL.
	SubscribeFrames() [][]byte

	// HeartbeatFrame returns the venue's application-level keep-alive payload.
	// ok is false for venues that rely on protocol-level ping/pong instead.
	HeartbeatFrame() (frame []byte, ok bool)

	// Parse normalizes a raw inbound frame into zero or more quotes.
	Parse(raw []byte) ([]domain.Quote, error)
}
