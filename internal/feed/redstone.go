package feed

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// RedstoneParser normalizes the RedStone oracle gateway's data-packages
// response. The gateway aggregates many upstream sources per symbol; each
// source becomes its own venue so the detector can compare them pairwise.
//
// Every source reduces to a single price (`value` when present, otherwise
// the mid of tradeInfo bid/ask, otherwise the single quoted side), so all
// quotes from this feed are mid-only.
type RedstoneParser struct {
	apiURL  string
	symbols []string
	set     map[string]struct{}
}

// NewRedstoneParser creates a parser for the given gateway base URL (the
// data-packages/latest endpoint) and symbol universe.
func NewRedstoneParser(apiURL string, symbols []string) *RedstoneParser {
	set := make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		set[s] = struct{}{}
	}
	return &RedstoneParser{apiURL: apiURL, symbols: symbols, set: set}
}

// Name identifies this source in logs.
func (p *RedstoneParser) Name() string { return "redstone" }

// URL returns the gateway endpoint with the symbol filter applied.
func (p *RedstoneParser) URL() string {
	q := url.Values{}
	q.Set("symbols", strings.Join(p.symbols, ","))
	q.Set("provider", "redstone")
	q.Set("limit", "1")
	return p.apiURL + "?" + q.Encode()
}

// redstonePackage is one data package in the gateway response; only the
// first data point of the first package per symbol is used.
type redstonePackage struct {
	TimestampMilliseconds int64 `json:"timestampMilliseconds"`
	DataPoints            []struct {
		Metadata struct {
			SourceMetadata map[string]redstoneSource `json:"sourceMetadata"`
		} `json:"metadata"`
	} `json:"dataPoints"`
}

// redstoneSource is the per-upstream slice of a data point. Numeric fields
// arrive as either JSON numbers or strings depending on the source.
type redstoneSource struct {
	Value     json.Number `json:"value"`
	TradeInfo *struct {
		BidPrice json.Number `json:"bidPrice"`
		AskPrice json.Number `json:"askPrice"`
	} `json:"tradeInfo"`
}

// Parse extracts one mid-only quote per (symbol, source). Sources whose
// payload yields no usable price are skipped; a malformed body is an error.
func (p *RedstoneParser) Parse(body []byte) ([]domain.Quote, error) {
	var payload map[string][]redstonePackage
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("redstone: decode response: %w", err)
	}

	now := time.Now().UTC()
	var quotes []domain.Quote
	for symbol, packages := range payload {
		if _, ok := p.set[symbol]; !ok {
			continue
		}
		if len(packages) == 0 || len(packages[0].DataPoints) == 0 {
			continue
		}
		pkg := packages[0]

		eventTime := now
		if pkg.TimestampMilliseconds > 0 {
			eventTime = time.UnixMilli(pkg.TimestampMilliseconds).UTC()
		}

		for source, meta := range pkg.DataPoints[0].Metadata.SourceMetadata {
			ticks, ok := sourcePriceTicks(meta)
			if !ok || ticks <= 0 {
				continue
			}
			quotes = append(quotes, domain.MidQuote(symbol, venueForSource(source), ticks, eventTime, now))
		}
	}
	return quotes, nil
}

// sourcePriceTicks reduces one source's metadata to a single price.
func sourcePriceTicks(meta redstoneSource) (int64, bool) {
	if s := meta.Value.String(); s != "" {
		ticks, err := domain.ParseTicks(s)
		if err == nil {
			return ticks, true
		}
	}
	if meta.TradeInfo == nil {
		return 0, false
	}
	bid, bidErr := domain.ParseTicks(meta.TradeInfo.BidPrice.String())
	if bidErr != nil || bid <= 0 {
		bid = 0
	}
	ask, askErr := domain.ParseTicks(meta.TradeInfo.AskPrice.String())
	if askErr != nil || ask <= 0 {
		ask = 0
	}
	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2, true
	case bid > 0:
		return bid, true
	case ask > 0:
		return ask, true
	}
	return 0, false
}

// venueForSource maps a gateway source name ("binance-usdt", "kraken") to a
// venue identifier.
func venueForSource(source string) string {
	return "redstone:" + strings.ToLower(source)
}

var _ ResponseParser = (*RedstoneParser)(nil)
