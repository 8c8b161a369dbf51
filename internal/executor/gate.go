package executor

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// ppmScale matches the detector's fixed-point profit representation.
const ppmScale = 1_000_000

// defaultMaxAge is how long an opportunity stays actionable.
const defaultMaxAge = 5 * time.Second

// GateConfig tunes the opportunity gate.
type GateConfig struct {
	// MinProfitPPM is the execution-side profit floor in parts per million,
	// inclusive. It may be stricter than the detector's threshold.
	MinProfitPPM int64

	// MaxAge is the oldest an opportunity may be and still be admitted,
	// inclusive: an opportunity aged exactly MaxAge passes. Zero means
	// defaultMaxAge.
	MaxAge time.Duration
}

// Gate is the single admission point between detection and execution. It
// enforces freshness, the execution profit floor, and one in-flight
// engagement per symbol. All three checks and the engagement mark happen
// under one lock, so two concurrent opportunities for the same symbol can
// never both pass.
type Gate struct {
	cfg    GateConfig
	logger *slog.Logger

	mu      sync.Mutex
	engaged map[string]string // symbol -> opportunity ID holding the slot
}

// NewGate creates a gate with no symbols engaged.
func NewGate(cfg GateConfig, logger *slog.Logger) *Gate {
	if cfg.MaxAge == 0 {
		cfg.MaxAge = defaultMaxAge
	}
	return &Gate{
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "gate")),
		engaged: make(map[string]string),
	}
}

// Admit decides whether opp may proceed to execution. On success the
// opportunity's symbol is engaged until Release. Rejections wrap one of
// domain.ErrStaleOpp, domain.ErrBelowThreshold, or domain.ErrSymbolEngaged.
func (g *Gate) Admit(opp domain.ArbOpportunity, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if age := opp.Age(now); age > g.cfg.MaxAge {
		return fmt.Errorf("gate: %s aged %s: %w", opp.Symbol, age, domain.ErrStaleOpp)
	}

	if !clearsFloor(opp, g.cfg.MinProfitPPM) {
		return fmt.Errorf("gate: %s profit %dppm below floor %dppm: %w",
			opp.Symbol, profitPPM(opp), g.cfg.MinProfitPPM, domain.ErrBelowThreshold)
	}

	if holder, ok := g.engaged[opp.Symbol]; ok {
		return fmt.Errorf("gate: %s held by %s: %w", opp.Symbol, holder, domain.ErrSymbolEngaged)
	}

	g.engaged[opp.Symbol] = opp.ID
	g.logger.Debug("opportunity admitted",
		slog.String("symbol", opp.Symbol),
		slog.String("id", opp.ID),
	)
	return nil
}

// clearsFloor checks the profit floor in integer ticks when the opportunity
// carries prices. Cross-multiplying keeps the comparison exact; going through
// the float fraction can land a profit sitting exactly on the floor one ppm
// short. Records without prices fall back to the rounded fraction.
func clearsFloor(opp domain.ArbOpportunity, minPPM int64) bool {
	if opp.BuyPriceTicks > 0 && opp.SellPriceTicks > 0 {
		return (opp.SellPriceTicks-opp.BuyPriceTicks)*ppmScale >= minPPM*opp.BuyPriceTicks
	}
	return profitPPM(opp) >= minPPM
}

// profitPPM is for rejection messages only; admission never divides.
func profitPPM(opp domain.ArbOpportunity) int64 {
	if opp.BuyPriceTicks > 0 && opp.SellPriceTicks > 0 {
		return (opp.SellPriceTicks - opp.BuyPriceTicks) * ppmScale / opp.BuyPriceTicks
	}
	return int64(math.Round(opp.ProfitFraction * ppmScale))
}

// Release frees the symbol's engagement slot once its execution reaches a
// terminal outcome. Releasing an unengaged symbol is a no-op.
func (g *Gate) Release(symbol string) {
	g.mu.Lock()
	delete(g.engaged, symbol)
	g.mu.Unlock()
}

// Engaged reports whether symbol currently holds an execution slot.
func (g *Gate) Engaged(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.engaged[symbol]
	return ok
}

// Reset frees every engagement, for shutdown and tests.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.engaged = make(map[string]string)
	g.mu.Unlock()
}
