package app

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbflow/internal/arbitrage"
	"github.com/alanyoungcy/arbflow/internal/book"
	"github.com/alanyoungcy/arbflow/internal/domain"
	"github.com/alanyoungcy/arbflow/internal/execution"
	"github.com/alanyoungcy/arbflow/internal/executor"
	"github.com/alanyoungcy/arbflow/internal/feed"
	"github.com/alanyoungcy/arbflow/internal/pipeline"
	"github.com/alanyoungcy/arbflow/internal/server"
	"github.com/alanyoungcy/arbflow/internal/server/handler"
	"github.com/alanyoungcy/arbflow/internal/strategy"
)

// DetectMode ingests quotes and detects opportunities without executing them.
// Opportunities are logged, persisted, published, and alerted on.
func (a *App) DetectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting detect mode")

	g, ctx := errgroup.WithContext(ctx)

	qb := a.buildBook(deps, a.opportunityFanOut(deps, nil))
	a.startFeeds(ctx, g, deps, qb)
	a.startServer(ctx, g, deps, qb)

	return g.Wait()
}

// ReplayMode replays opportunities from the export file into the execution
// path. No live feeds run.
func (a *App) ReplayMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting replay mode")

	g, ctx := errgroup.WithContext(ctx)

	qb := book.New(a.logger) // reference prices for market orders, if any
	gate, sim, arb := a.buildExecution(deps, qb)
	defer sim.Close()
	defer gate.Reset()

	poller := pipeline.NewExportPoller(pipeline.ExportPollerConfig{
		Path:             a.cfg.Export.Path,
		Interval:         a.cfg.Export.Interval.Duration,
		VenueHyperliquid: a.cfg.Feeds.Hyperliquid.Venue,
		VenueBinance:     a.cfg.Feeds.Binance.Venue,
	}, func(ctx context.Context, opp domain.ArbOpportunity) {
		a.recordOpportunity(ctx, deps, opp)
		_ = arb.OnOpportunity(ctx, opp)
	}, a.logger)

	g.Go(func() error { return poller.Run(ctx) })
	a.startServer(ctx, g, deps, qb)

	return g.Wait()
}

// MonitorMode ingests quotes and mirrors them to the shared price cache and
// event bus. Nothing is detected or executed.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	qb := a.buildBook(deps, nil)
	a.startFeeds(ctx, g, deps, qb)
	a.startServer(ctx, g, deps, qb)

	return g.Wait()
}

// FullMode runs the complete pipeline: feeds, detection, gating, simulated
// execution, and (when enabled) export-file replay alongside.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	var qb *book.Book
	var arb *strategy.Arbitrage

	qb = a.buildBook(deps, a.opportunityFanOut(deps, func(ctx context.Context, opp domain.ArbOpportunity) {
		_ = arb.OnOpportunity(ctx, opp)
	}))

	gate, sim, arbStrategy := a.buildExecution(deps, qb)
	arb = arbStrategy
	defer sim.Close()
	defer gate.Reset()

	a.startFeeds(ctx, g, deps, qb)
	a.startServer(ctx, g, deps, qb)

	if a.cfg.Export.Enabled {
		poller := pipeline.NewExportPoller(pipeline.ExportPollerConfig{
			Path:             a.cfg.Export.Path,
			Interval:         a.cfg.Export.Interval.Duration,
			VenueHyperliquid: a.cfg.Feeds.Hyperliquid.Venue,
			VenueBinance:     a.cfg.Feeds.Binance.Venue,
		}, func(ctx context.Context, opp domain.ArbOpportunity) {
			a.recordOpportunity(ctx, deps, opp)
			_ = arb.OnOpportunity(ctx, opp)
		}, a.logger)
		g.Go(func() error { return poller.Run(ctx) })
	}

	return g.Wait()
}

// buildBook creates the quote book with the optional external mirrors and,
// when a detection sink is given, a synchronous detector hook: every accepted
// quote triggers one detection pass over its symbol.
func (a *App) buildBook(deps *Dependencies, onOpp pipeline.OpportunitySink) *book.Book {
	opts := []book.Option{}
	if deps.PriceCache != nil {
		opts = append(opts, book.WithPriceCache(deps.PriceCache))
	}
	if deps.Bus != nil {
		opts = append(opts, book.WithEventBus(deps.Bus))
	}

	var qb *book.Book
	if onOpp != nil {
		detector := arbitrage.New(arbitrage.Config{
			ThresholdPPM: a.cfg.Detector.ThresholdPPM(),
			MaxQuoteAge:  a.cfg.Detector.MaxQuoteAge.Duration,
			AllowMidOnly: a.cfg.Detector.AllowMidOnly,
		}, a.logger)

		opts = append(opts, book.WithUpdateHook(func(ctx context.Context, q domain.Quote) {
			quotes := qb.Get(q.Symbol)
			for _, opp := range detector.Detect(q.Symbol, quotes, time.Now().UTC()) {
				onOpp(ctx, opp)
			}
		}))
	}

	qb = book.New(a.logger, opts...)
	return qb
}

// opportunityFanOut records every detected opportunity (store, bus, notifier)
// and then hands it to execute when execution is wired.
func (a *App) opportunityFanOut(deps *Dependencies, execute pipeline.OpportunitySink) pipeline.OpportunitySink {
	return func(ctx context.Context, opp domain.ArbOpportunity) {
		a.recordOpportunity(ctx, deps, opp)
		if execute != nil {
			execute(ctx, opp)
		}
	}
}

// recordOpportunity is the shared audit path: persist, publish, alert.
// Failures are logged and never block the pipeline.
func (a *App) recordOpportunity(ctx context.Context, deps *Dependencies, opp domain.ArbOpportunity) {
	if deps.OppStore != nil {
		if err := deps.OppStore.Insert(ctx, opp); err != nil {
			a.logger.WarnContext(ctx, "opportunity insert failed",
				slog.String("id", opp.ID),
				slog.String("error", err.Error()),
			)
		}
	}
	if deps.Bus != nil {
		if payload, err := json.Marshal(opp); err == nil {
			if err := deps.Bus.Publish(ctx, "opportunities."+opp.Symbol, payload); err != nil {
				a.logger.WarnContext(ctx, "opportunity publish failed",
					slog.String("id", opp.ID),
					slog.String("error", err.Error()),
				)
			}
			_ = deps.Bus.StreamAppend(ctx, "opportunities", payload)
		}
	}
	_ = deps.Notifier.ArbDetected(ctx, opp)
}

// buildExecution assembles the gate, simulator, and strategy. The simulator's
// event sink fans out to the strategy (to release engagements), the audit
// store, the bus, and the notifier.
func (a *App) buildExecution(deps *Dependencies, qb *book.Book) (*executor.Gate, *execution.Simulator, *strategy.Arbitrage) {
	gate := executor.NewGate(executor.GateConfig{
		MinProfitPPM: a.cfg.Gate.MinProfitPPM(),
		MaxAge:       a.cfg.Gate.MaxAge.Duration,
	}, a.logger)

	var arb *strategy.Arbitrage
	sink := func(ctx context.Context, ev domain.OrderEvent) {
		if arb != nil {
			arb.OnOrderEvent(ctx, ev)
		}
		if deps.OrderEventStore != nil {
			if err := deps.OrderEventStore.Insert(ctx, ev); err != nil {
				a.logger.WarnContext(ctx, "order event insert failed",
					slog.String("order_id", ev.ClientOrderID),
					slog.String("error", err.Error()),
				)
			}
		}
		if deps.OppStore != nil && ev.Status == domain.OrderStatusFilled && ev.OpportunityID != "" {
			_ = deps.OppStore.MarkExecuted(ctx, ev.OpportunityID)
		}
		if deps.Bus != nil {
			if payload, err := json.Marshal(ev); err == nil {
				_ = deps.Bus.Publish(ctx, "orders."+ev.Symbol, payload)
			}
		}
		_ = deps.Notifier.OrderOutcome(ctx, ev)
	}

	sim := execution.New(execution.Config{
		Venues:            a.executionVenues(),
		RejectProbability: a.cfg.Simulator.RejectProbability,
		SlippagePPM:       a.cfg.Simulator.SlippagePPM(),
		ProcessingDelay:   a.cfg.Simulator.ProcessingDelay.Duration,
		Seed:              a.cfg.Simulator.Seed,
	}, func(venue, symbol string) (int64, bool) {
		q, err := qb.GetVenue(symbol, venue)
		if err != nil {
			return 0, false
		}
		return q.MidTicks(), true
	}, sink, a.logger)

	arb = strategy.NewArbitrage(strategy.Config{
		MaxNotionalUnits: int64(a.cfg.Strategy.MaxNotional * 1e6),
		MaxUnits:         int64(a.cfg.Strategy.MaxUnits * 1e6),
	}, gate, sim, a.logger)

	return gate, sim, arb
}

// executionVenues lists every venue the simulator should accept orders for.
func (a *App) executionVenues() []string {
	var venues []string
	if a.cfg.Feeds.Hyperliquid.Venue != "" {
		venues = append(venues, a.cfg.Feeds.Hyperliquid.Venue)
	}
	if a.cfg.Feeds.Binance.Venue != "" {
		venues = append(venues, a.cfg.Feeds.Binance.Venue)
	}
	return venues
}

// startFeeds launches every enabled feed: WebSocket connections for the
// streaming venues and a REST poller for the gateway. Each connection is
// dialed once up front; subsequent drops are handled by its own reconnect
// supervisor.
func (a *App) startFeeds(ctx context.Context, g *errgroup.Group, deps *Dependencies, qb *book.Book) {
	sink := func(ctx context.Context, q domain.Quote) { qb.Put(ctx, q) }

	// Each connection alerts on its own venue when an established transport
	// drops into reconnection.
	connCfg := func(venue string) feed.ConnectionConfig {
		return feed.ConnectionConfig{
			HeartbeatInterval: a.cfg.Feeds.HeartbeatInterval.Duration,
			HandshakeTimeout:  a.cfg.Feeds.HandshakeTimeout.Duration,
			Backoff: feed.Backoff{
				Base: a.cfg.Feeds.BackoffBase.Duration,
				Cap:  a.cfg.Feeds.BackoffCap.Duration,
			},
			OnDisconnect: func(reason string) {
				_ = deps.Notifier.FeedDisconnected(ctx, venue, reason)
			},
		}
	}

	if a.cfg.Feeds.Hyperliquid.Enabled {
		adapter := feed.NewHyperliquidAdapter(
			a.cfg.Feeds.Hyperliquid.Venue,
			a.cfg.Feeds.Hyperliquid.WsURL,
			a.cfg.Symbols,
		)
		cfg := connCfg(adapter.Venue())
		conn := feed.NewConnection(adapter, sink, cfg, a.logger)
		g.Go(func() error { return a.runConnection(ctx, deps, conn, adapter.Venue(), cfg.Backoff) })
	}

	if a.cfg.Feeds.Binance.Enabled {
		adapter := feed.NewBinanceAdapter(
			a.cfg.Feeds.Binance.Venue,
			a.cfg.Feeds.Binance.WsURL,
			a.cfg.Symbols,
		)
		cfg := connCfg(adapter.Venue())
		conn := feed.NewConnection(adapter, sink, cfg, a.logger)
		g.Go(func() error { return a.runConnection(ctx, deps, conn, adapter.Venue(), cfg.Backoff) })
	}

	if a.cfg.Feeds.Redstone.Enabled {
		parser := feed.NewRedstoneParser(a.cfg.Feeds.Redstone.ApiURL, a.cfg.Symbols)
		poller := feed.NewPoller(
			parser,
			sink,
			a.cfg.Feeds.Redstone.PollInterval.Duration,
			&http.Client{Timeout: 30 * time.Second},
			a.logger,
		)
		g.Go(func() error { return poller.Run(ctx) })
	}
}

// startServer launches the optional read-only status API over the quote book
// and the audit store. It shuts the listener down when the group context is
// cancelled.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, qb *book.Book) {
	if !a.cfg.Server.Enabled {
		return
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		APIKey:      a.cfg.Server.APIKey,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Status:        handler.NewStatusHandler(a.cfg.Mode, a.cfg.Symbols),
		Quotes:        handler.NewQuoteHandler(qb),
		Opportunities: handler.NewOpportunityHandler(deps.OppStore, a.logger),
	}, a.logger.With(slog.String("component", "server")))

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return ctx.Err()
	})
}

// runConnection opens a feed connection and holds it until shutdown. A failed
// dial is retried with the feed backoff, so one venue being down at boot
// never takes the others with it; once connected, drops are the connection's
// own reconnect business.
func (a *App) runConnection(ctx context.Context, deps *Dependencies, conn *feed.Connection, venue string, bo feed.Backoff) error {
	for attempt := 0; ; attempt++ {
		err := conn.Connect(ctx)
		if err == nil {
			break
		}
		if attempt == 0 {
			_ = deps.Notifier.FeedDisconnected(ctx, venue, err.Error())
		}
		delay := bo.Next(attempt)
		a.logger.WarnContext(ctx, "feed connect failed",
			slog.String("venue", venue),
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_in", delay),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	<-ctx.Done()
	_ = conn.Disconnect()
	return ctx.Err()
}
