package strategy

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
	"github.com/alanyoungcy/arbflow/internal/executor"
)

const unitScale = 1_000_000

// OrderSubmitter is the execution surface the strategy trades against.
// Satisfied by execution.Simulator.
type OrderSubmitter interface {
	Submit(ctx context.Context, req domain.OrderRequest) (domain.PendingOrder, error)
}

// Config holds arbitrage strategy configuration.
type Config struct {
	// MaxNotionalUnits caps the quote-currency value of one arbitrage, in
	// fixed-point units (1e6). Position size is MaxNotionalUnits divided by
	// the buy price.
	MaxNotionalUnits int64

	// MaxUnits caps the per-leg quantity in fixed-point units. Zero means
	// the default 100 units.
	MaxUnits int64
}

// Arbitrage turns admitted opportunities into paired orders: buy the cheap
// venue, sell the expensive one, same quantity both legs. The gate's symbol
// engagement is held until both legs reach a terminal event, so one symbol
// never has two arbitrages in flight.
type Arbitrage struct {
	cfg    Config
	gate   *executor.Gate
	exec   OrderSubmitter
	logger *slog.Logger

	mu   sync.Mutex
	open map[string]*engagement // opportunity ID -> legs outstanding
}

// engagement tracks one admitted opportunity's in-flight legs.
type engagement struct {
	symbol    string
	remaining int
}

// NewArbitrage creates the strategy.
func NewArbitrage(cfg Config, gate *executor.Gate, exec OrderSubmitter, logger *slog.Logger) *Arbitrage {
	if cfg.MaxNotionalUnits <= 0 {
		cfg.MaxNotionalUnits = 1000 * unitScale
	}
	if cfg.MaxUnits <= 0 {
		cfg.MaxUnits = 100 * unitScale
	}
	return &Arbitrage{
		cfg:    cfg,
		gate:   gate,
		exec:   exec,
		logger: logger.With(slog.String("strategy", "arbitrage")),
		open:   make(map[string]*engagement),
	}
}

// OnOpportunity runs one opportunity through the gate and, when admitted,
// submits both legs. Gate rejections are expected traffic and logged at
// debug; submit failures release the engagement so the symbol is not
// stranded.
func (a *Arbitrage) OnOpportunity(ctx context.Context, opp domain.ArbOpportunity) error {
	if err := a.gate.Admit(opp, time.Now().UTC()); err != nil {
		a.logger.Debug("opportunity not admitted",
			slog.String("symbol", opp.Symbol),
			slog.String("reason", err.Error()),
		)
		return err
	}

	size := a.positionSize(opp.BuyPriceTicks)
	if size <= 0 {
		a.gate.Release(opp.Symbol)
		return nil
	}

	legs := []domain.OrderRequest{
		{
			Symbol:        opp.Symbol,
			Venue:         opp.BuyVenue,
			Side:          domain.OrderSideBuy,
			SizeUnits:     size,
			LimitTicks:    opp.BuyPriceTicks,
			OpportunityID: opp.ID,
		},
		{
			Symbol:        opp.Symbol,
			Venue:         opp.SellVenue,
			Side:          domain.OrderSideSell,
			SizeUnits:     size,
			LimitTicks:    opp.SellPriceTicks,
			OpportunityID: opp.ID,
		},
	}

	a.mu.Lock()
	a.open[opp.ID] = &engagement{symbol: opp.Symbol, remaining: len(legs)}
	a.mu.Unlock()

	for _, leg := range legs {
		if _, err := a.exec.Submit(ctx, leg); err != nil {
			a.logger.Error("leg submit failed",
				slog.String("symbol", leg.Symbol),
				slog.String("venue", leg.Venue),
				slog.String("side", string(leg.Side)),
				slog.String("error", err.Error()),
			)
			a.legDone(opp.ID)
		}
	}

	a.logger.Info("arbitrage submitted",
		slog.String("symbol", opp.Symbol),
		slog.String("buy_venue", opp.BuyVenue),
		slog.String("sell_venue", opp.SellVenue),
		slog.Float64("size", float64(size)/unitScale),
		slog.Float64("profit", opp.ProfitFraction),
	)
	return nil
}

// OnOrderEvent feeds execution outcomes back into the strategy. When the last
// leg of an arbitrage reaches a terminal status the symbol's gate engagement
// is released.
func (a *Arbitrage) OnOrderEvent(_ context.Context, ev domain.OrderEvent) {
	if !ev.Terminal() || ev.OpportunityID == "" {
		return
	}
	if ev.Status == domain.OrderStatusRejected {
		a.logger.Warn("leg rejected",
			slog.String("symbol", ev.Symbol),
			slog.String("venue", ev.Venue),
			slog.String("reason", ev.Reason),
		)
	}
	a.legDone(ev.OpportunityID)
}

// legDone marks one leg finished and releases the gate after the last one.
func (a *Arbitrage) legDone(oppID string) {
	a.mu.Lock()
	eng, ok := a.open[oppID]
	if ok {
		eng.remaining--
		if eng.remaining <= 0 {
			delete(a.open, oppID)
		}
	}
	a.mu.Unlock()

	if ok && eng.remaining <= 0 {
		a.gate.Release(eng.symbol)
	}
}

// positionSize is max notional divided by the buy price, capped at MaxUnits.
func (a *Arbitrage) positionSize(buyTicks int64) int64 {
	if buyTicks <= 0 {
		return 0
	}
	size := a.cfg.MaxNotionalUnits * unitScale / buyTicks
	if size > a.cfg.MaxUnits {
		size = a.cfg.MaxUnits
	}
	return size
}

// Close abandons all in-flight engagements and clears the gate.
func (a *Arbitrage) Close() {
	a.mu.Lock()
	a.open = make(map[string]*engagement)
	a.mu.Unlock()
	a.gate.Reset()
}
