package arbitrage

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// ppmScale expresses profit thresholds in parts per million, so the
// qualify decision stays in integer arithmetic end to end.
const ppmScale = 1_000_000

// Config tunes the detector.
type Config struct {
	// ThresholdPPM is the minimum profit fraction, in parts per million, for
	// a pair to qualify. The comparison is inclusive: a spread exactly at the
	// threshold qualifies. 2000 corresponds to 0.2%.
	ThresholdPPM int64

	// MaxQuoteAge drops quotes whose event time lags now by more than this.
	// Zero disables the staleness filter.
	MaxQuoteAge time.Duration

	// AllowMidOnly lets quotes without a real bid/ask (oracle and index
	// feeds) participate, priced at their mid on both sides.
	AllowMidOnly bool
}

// Detector scans the venues quoting a symbol pairwise and emits an
// opportunity for every pair whose buy/sell spread clears the threshold.
// Deterministic with respect to its inputs: the same quotes and the same now
// always produce the same opportunities in the same order, modulo fresh IDs.
type Detector struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a detector.
func New(cfg Config, logger *slog.Logger) *Detector {
	return &Detector{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "detector")),
	}
}

// Detect compares every venue pair for one symbol. quotes is expected in
// venue-sorted order, as the quote book returns it; output order follows
// input order.
func (d *Detector) Detect(symbol string, quotes []domain.Quote, now time.Time) []domain.ArbOpportunity {
	live := make([]domain.Quote, 0, len(quotes))
	for _, q := range quotes {
		if q.MidOnly && !d.cfg.AllowMidOnly {
			continue
		}
		if d.cfg.MaxQuoteAge > 0 && now.Sub(q.EventTime) > d.cfg.MaxQuoteAge {
			continue
		}
		live = append(live, q)
	}
	if len(live) < 2 {
		return nil
	}

	var opps []domain.ArbOpportunity
	for i := 0; i < len(live); i++ {
		for j := i + 1; j < len(live); j++ {
			opp, ok := d.compare(symbol, live[i], live[j], now)
			if !ok {
				continue
			}
			opps = append(opps, opp)
			d.logger.Info("arbitrage opportunity",
				slog.String("symbol", symbol),
				slog.String("buy_venue", opp.BuyVenue),
				slog.String("sell_venue", opp.SellVenue),
				slog.String("buy_price", domain.FormatTicks(opp.BuyPriceTicks)),
				slog.String("sell_price", domain.FormatTicks(opp.SellPriceTicks)),
				slog.Float64("profit", opp.ProfitFraction),
			)
		}
	}
	return opps
}

// compare checks one venue pair. The venue with the lower effective buy
// price is the buy side; profit is (sell-buy)/buy on effective prices.
func (d *Detector) compare(symbol string, a, b domain.Quote, now time.Time) (domain.ArbOpportunity, bool) {
	if buyPriceTicks(b) < buyPriceTicks(a) {
		a, b = b, a
	}

	buy := buyPriceTicks(a)
	sell := sellPriceTicks(b)
	if buy <= 0 || sell <= buy {
		return domain.ArbOpportunity{}, false
	}

	// (sell-buy)/buy >= threshold, kept in integers.
	if (sell-buy)*ppmScale < d.cfg.ThresholdPPM*buy {
		return domain.ArbOpportunity{}, false
	}

	return domain.ArbOpportunity{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		BuyVenue:       a.Venue,
		BuyPriceTicks:  buy,
		SellVenue:      b.Venue,
		SellPriceTicks: sell,
		ProfitFraction: float64(sell-buy) / float64(buy),
		MidOnly:        a.MidOnly || b.MidOnly,
		Source:         domain.SourceDetector,
		DetectedAt:     now,
	}, true
}

// buyPriceTicks is the price paid to buy on a venue: its ask, or the mid for
// mid-only quotes.
func buyPriceTicks(q domain.Quote) int64 {
	if q.MidOnly {
		return q.MidTicks()
	}
	return q.AskTicks
}

// sellPriceTicks is the price received selling on a venue: its bid, or the
// mid for mid-only quotes.
func sellPriceTicks(q domain.Quote) int64 {
	if q.MidOnly {
		return q.MidTicks()
	}
	return q.BidTicks
}
