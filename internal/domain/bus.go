package domain

import (
	"context"
	"time"
)

// EventBus moves quotes, opportunities, and order outcomes between this core
// and the hosting runtime. Topic naming and delivery guarantees belong to the
// implementation; the core only needs publish and subscribe.
type EventBus interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string) (<-chan []byte, error)
	// StreamAppend records a payload on a durable ordered stream for external
	// collaborators that poll rather than subscribe.
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// StreamMessage is a single entry read from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// PriceCache exposes the latest price per (venue, symbol) to collaborators
// outside the process. The in-memory QuoteBook remains the authoritative
// read surface for the detector.
type PriceCache interface {
	SetPrice(ctx context.Context, venue, symbol string, priceTicks int64, ts time.Time) error
	GetPrice(ctx context.Context, venue, symbol string) (int64, time.Time, error)
}

// OpportunityStore persists detected opportunities for audit and for the
// export integration surface. Optional: the core runs without one.
type OpportunityStore interface {
	Insert(ctx context.Context, opp ArbOpportunity) error
	MarkExecuted(ctx context.Context, id string) error
	ListRecent(ctx context.Context, limit int) ([]ArbOpportunity, error)
}
