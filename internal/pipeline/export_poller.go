package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// Directions used by the export file's producer.
const (
	directionBuyHLSellBN = "BUY_HL_SELL_BN"
	directionBuyBNSellHL = "BUY_BN_SELL_HL"
)

// OpportunitySink receives replayed opportunities, typically the strategy.
type OpportunitySink func(ctx context.Context, opp domain.ArbOpportunity)

// exportRecord is one row of the export file. Timestamps are Unix
// milliseconds; prices are decimal strings or numbers depending on the
// producer, so json.Number covers both.
type exportRecord struct {
	Symbol               string      `json:"symbol"`
	HyperliquidPrice     json.Number `json:"hyperliquidPrice"`
	BinancePrice         json.Number `json:"binancePrice"`
	PercentageDifference float64     `json:"percentageDifference"`
	Direction            string      `json:"direction"`
	Source               string      `json:"source"`
	Timestamp            int64       `json:"timestamp"`
}

// ExportPollerConfig tunes the export file poller.
type ExportPollerConfig struct {
	// Path is the export file to watch, e.g. "arbitrage_export_latest.json".
	Path string

	// Interval between reads. Zero means 1s.
	Interval time.Duration

	// BuyVenueHL / SellVenueBN name the venues the file's directions refer
	// to, matching the identifiers the rest of the process uses.
	VenueHyperliquid string
	VenueBinance     string
}

// ExportPoller replays opportunities that an external detector wrote to a
// JSON export file. Each record is processed at most once: records at or
// before the last processed timestamp are skipped, so rereading the same
// file is idempotent. A missing file means no opportunities yet, not an
// error.
type ExportPoller struct {
	cfg    ExportPollerConfig
	sink   OpportunitySink
	logger *slog.Logger

	lastTimestamp int64
}

// NewExportPoller creates a poller; nothing is read until Run.
func NewExportPoller(cfg ExportPollerConfig, sink OpportunitySink, logger *slog.Logger) *ExportPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.VenueHyperliquid == "" {
		cfg.VenueHyperliquid = "hyperliquid"
	}
	if cfg.VenueBinance == "" {
		cfg.VenueBinance = "binance"
	}
	return &ExportPoller{
		cfg:    cfg,
		sink:   sink,
		logger: logger.With(slog.String("component", "export_poller"), slog.String("path", cfg.Path)),
	}
}

// Run polls the export file until ctx is cancelled.
func (p *ExportPoller) Run(ctx context.Context) error {
	p.logger.Info("export poller started", slog.Duration("interval", p.cfg.Interval))
	defer p.logger.Info("export poller stopped")

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := p.Poll(ctx); err != nil {
			p.logger.Warn("export poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Poll reads the file once and feeds any new records to the sink.
func (p *ExportPoller) Poll(ctx context.Context) error {
	data, err := os.ReadFile(p.cfg.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("export poller: read %s: %w", p.cfg.Path, err)
	}

	var records []exportRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return fmt.Errorf("export poller: decode %s: %w", p.cfg.Path, err)
	}

	for _, rec := range records {
		if rec.Timestamp <= p.lastTimestamp {
			continue
		}
		opp, err := p.toOpportunity(rec)
		if err != nil {
			p.logger.Warn("export record skipped",
				slog.String("symbol", rec.Symbol),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.sink(ctx, opp)
		if rec.Timestamp > p.lastTimestamp {
			p.lastTimestamp = rec.Timestamp
		}
	}
	return nil
}

// toOpportunity maps a record's direction and prices onto buy/sell legs.
func (p *ExportPoller) toOpportunity(rec exportRecord) (domain.ArbOpportunity, error) {
	hl, err := domain.ParseTicks(rec.HyperliquidPrice.String())
	if err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("hyperliquid price %q: %w", rec.HyperliquidPrice, err)
	}
	bn, err := domain.ParseTicks(rec.BinancePrice.String())
	if err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("binance price %q: %w", rec.BinancePrice, err)
	}

	opp := domain.ArbOpportunity{
		ID:         uuid.NewString(),
		Symbol:     rec.Symbol,
		Source:     domain.SourceExport,
		DetectedAt: time.UnixMilli(rec.Timestamp).UTC(),
		// The file reports the difference in percent; internally profit is a
		// fraction.
		ProfitFraction: rec.PercentageDifference / 100,
	}
	switch rec.Direction {
	case directionBuyHLSellBN:
		opp.BuyVenue, opp.BuyPriceTicks = p.cfg.VenueHyperliquid, hl
		opp.SellVenue, opp.SellPriceTicks = p.cfg.VenueBinance, bn
	case directionBuyBNSellHL:
		opp.BuyVenue, opp.BuyPriceTicks = p.cfg.VenueBinance, bn
		opp.SellVenue, opp.SellPriceTicks = p.cfg.VenueHyperliquid, hl
	default:
		return domain.ArbOpportunity{}, fmt.Errorf("unknown direction %q", rec.Direction)
	}
	if opp.BuyPriceTicks <= 0 || opp.SellPriceTicks <= opp.BuyPriceTicks {
		return domain.ArbOpportunity{}, fmt.Errorf("non-positive spread: buy %d sell %d",
			opp.BuyPriceTicks, opp.SellPriceTicks)
	}
	return opp, nil
}
