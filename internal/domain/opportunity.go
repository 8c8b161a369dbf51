package domain

import "time"

// ArbOpportunity sources.
const (
	SourceDetector = "detector"
	SourceExport   = "export"
)

// ArbOpportunity is a detected cross-venue price gap: the same symbol is
// cheaper on BuyVenue than it is on SellVenue by at least the detector's
// profit threshold. It is derived, immutable, and short-lived; the gate
// consumes it exactly once.
type ArbOpportunity struct {
	ID             string
	Symbol         string
	BuyVenue       string
	BuyPriceTicks  int64
	SellVenue      string
	SellPriceTicks int64
	// ProfitFraction is (sell - buy) / buy, e.g. 0.003 for a 0.3% gap.
	ProfitFraction float64
	// MidOnly is true when either leg came from a mid-only quote; such
	// prices are indicative rather than tradable top-of-book.
	MidOnly    bool
	Source     string // "detector" or "export"
	DetectedAt time.Time
}

// Age returns how old the opportunity is relative to now.
func (o ArbOpportunity) Age(now time.Time) time.Duration {
	return now.Sub(o.DetectedAt)
}
