package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// ResponseParser normalizes one polled HTTP response body into quotes. Like
// Adapter.Parse it is pure and returns (nil, nil) for bodies with nothing
// relevant in them.
type ResponseParser interface {
	Name() string
	URL() string
	Parse(body []byte) ([]domain.Quote, error)
}

// Poller is the REST counterpart of Connection for venues that publish
// prices over plain HTTP. It fetches the parser's URL at a fixed interval
// and feeds normalized quotes into the sink. Fetch and parse failures are
// logged and the loop continues; the poller never gives up on its own.
type Poller struct {
	parser   ResponseParser
	sink     QuoteSink
	interval time.Duration
	client   *http.Client
	logger   *slog.Logger
}

// NewPoller creates a polling feed. A nil client gets a 30s-timeout default.
func NewPoller(parser ResponseParser, sink QuoteSink, interval time.Duration, client *http.Client, logger *slog.Logger) *Poller {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if interval <= 0 {
		interval = 11 * time.Second
	}
	return &Poller{
		parser:   parser,
		sink:     sink,
		interval: interval,
		client:   client,
		logger:   logger.With(slog.String("component", "poller"), slog.String("source", parser.Name())),
	}
}

// Run polls until ctx is cancelled. The first fetch happens immediately so a
// fresh process does not wait a full interval for its first quotes.
func (p *Poller) Run(ctx context.Context) error {
	p.logger.Info("poller started", slog.Duration("interval", p.interval))
	defer p.logger.Info("poller stopped")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			p.logger.Warn("poll failed", slog.String("error", err.Error()))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// poll performs one fetch-and-normalize cycle.
func (p *Poller) poll(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.parser.URL(), nil)
	if err != nil {
		return fmt.Errorf("poller %s: build request: %w", p.parser.Name(), err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("poller %s: fetch: %w", p.parser.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("poller %s: unexpected status %d", p.parser.Name(), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("poller %s: read body: %w", p.parser.Name(), err)
	}

	quotes, err := p.parser.Parse(body)
	if err != nil {
		return fmt.Errorf("poller %s: parse: %w", p.parser.Name(), err)
	}
	for _, q := range quotes {
		p.sink(ctx, q)
	}
	return nil
}
