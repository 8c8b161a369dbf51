package domain

import "time"

// Quote is the canonical best bid/ask for a symbol on a venue at a point in
// time. Prices and sizes are fixed-point ticks (1e6 scale) so that profit
// comparisons never go through float64. A Quote is immutable: each new quote
// for a (symbol, venue) pair fully replaces the previous one in the QuoteBook.
type Quote struct {
	Symbol       string
	Venue        string
	BidTicks     int64 // fixed-point: price * 1e6
	AskTicks     int64
	BidSizeUnits int64 // fixed-point: size * 1e6
	AskSizeUnits int64
	// MidOnly marks quotes from feeds that publish a single mid price with no
	// separate bid/ask. Both sides carry the mid and sizes are zero.
	MidOnly    bool
	EventTime  time.Time
	IngestTime time.Time
}

// BidPrice returns the display bid price from fixed-point ticks.
func (q Quote) BidPrice() float64 {
	return float64(q.BidTicks) / 1e6
}

// AskPrice returns the display ask price from fixed-point ticks.
func (q Quote) AskPrice() float64 {
	return float64(q.AskTicks) / 1e6
}

// MidTicks returns the midpoint in ticks. For a mid-only quote both sides
// already carry the mid, so this is exact.
func (q Quote) MidTicks() int64 {
	return (q.BidTicks + q.AskTicks) / 2
}

// Valid reports whether the quote carries at least one positive price and a
// non-crossed book (bid <= ask when both sides are known).
func (q Quote) Valid() bool {
	if q.BidTicks <= 0 && q.AskTicks <= 0 {
		return false
	}
	if q.BidTicks > 0 && q.AskTicks > 0 && q.BidTicks > q.AskTicks {
		return false
	}
	return true
}

// MidQuote builds a mid-only Quote: a feed that reports a single price per
// symbol populates both sides identically with zero size.
func MidQuote(symbol, venue string, midTicks int64, eventTime, ingestTime time.Time) Quote {
	return Quote{
		Symbol:     symbol,
		Venue:      venue,
		BidTicks:   midTicks,
		AskTicks:   midTicks,
		MidOnly:    true,
		EventTime:  eventTime,
		IngestTime: ingestTime,
	}
}
