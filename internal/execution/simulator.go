package execution

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

const (
	ppmScale = 1_000_000

	defaultRejectProbability = 0.05
	defaultSlippagePPM       = 500 // ±0.05%
	defaultProcessingDelay   = 100 * time.Millisecond

	rejectReasonMargin    = "Insufficient margin (simulated rejection)"
	rejectReasonCancelled = "cancelled before processing"
	rejectReasonNoPrice   = "no reference price available"
)

// EventSink receives every order event the simulator emits, in per-order
// submission order: accepted first, then exactly one terminal event.
type EventSink func(ctx context.Context, ev domain.OrderEvent)

// ReferencePriceFunc supplies the current price for a (venue, symbol) when an
// order carries no limit. Wired to the quote book.
type ReferencePriceFunc func(venue, symbol string) (int64, bool)

// Config tunes the simulator.
type Config struct {
	// Venues lists the venue identifiers the simulator accepts orders for.
	Venues []string

	// RejectProbability is the chance an order is rejected after the
	// processing delay. Negative means the 5% default; zero stays zero.
	RejectProbability float64

	// SlippagePPM bounds the uniform fill slippage, in parts per million of
	// the fill price. Negative means the default ±500ppm; zero stays zero.
	SlippagePPM int64

	// ProcessingDelay is the simulated venue latency between acceptance and
	// the terminal event. Zero means the default.
	ProcessingDelay time.Duration

	// Seed makes the reject and slippage rolls reproducible. Zero seeds from
	// the clock.
	Seed int64
}

// Simulator is a mock execution venue: it accepts orders synchronously,
// holds them pending for a simulated processing delay, then either rejects
// them or fills them at the limit price (or the reference price for market
// orders) with a small random slippage. All prices stay in ticks.
type Simulator struct {
	cfg      Config
	venues   map[string]struct{}
	refPrice ReferencePriceFunc
	sink     EventSink
	logger   *slog.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	pending map[string]domain.PendingOrder
	closed  bool

	wg sync.WaitGroup
}

// New creates a simulator. sink must not be nil; refPrice may be nil when
// every order carries a limit price.
func New(cfg Config, refPrice ReferencePriceFunc, sink EventSink, logger *slog.Logger) *Simulator {
	if cfg.RejectProbability < 0 {
		cfg.RejectProbability = defaultRejectProbability
	}
	if cfg.SlippagePPM < 0 {
		cfg.SlippagePPM = defaultSlippagePPM
	}
	if cfg.ProcessingDelay <= 0 {
		cfg.ProcessingDelay = defaultProcessingDelay
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	venues := make(map[string]struct{}, len(cfg.Venues))
	for _, v := range cfg.Venues {
		venues[v] = struct{}{}
	}
	return &Simulator{
		cfg:      cfg,
		venues:   venues,
		refPrice: refPrice,
		sink:     sink,
		logger:   logger.With(slog.String("component", "simulator")),
		rng:      rand.New(rand.NewSource(seed)),
		pending:  make(map[string]domain.PendingOrder),
	}
}

// Submit accepts an order for simulated execution. Acceptance is synchronous:
// on return the order is pending, the accepted event has been delivered, and
// a terminal event will follow after the processing delay. Orders for venues
// the simulator was not configured with fail with domain.ErrVenueUnknown.
func (s *Simulator) Submit(ctx context.Context, req domain.OrderRequest) (domain.PendingOrder, error) {
	if _, ok := s.venues[req.Venue]; !ok {
		return domain.PendingOrder{}, fmt.Errorf("simulator: venue %q: %w", req.Venue, domain.ErrVenueUnknown)
	}

	order := domain.PendingOrder{
		ClientOrderID: uuid.NewString(),
		Symbol:        req.Symbol,
		Venue:         req.Venue,
		Side:          req.Side,
		SizeUnits:     req.SizeUnits,
		LimitTicks:    req.LimitTicks,
		OpportunityID: req.OpportunityID,
		SubmittedAt:   time.Now().UTC(),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return domain.PendingOrder{}, fmt.Errorf("simulator: submit %s: %w", req.Symbol, domain.ErrSimulatorClosed)
	}
	s.pending[order.ClientOrderID] = order
	s.wg.Add(1)
	s.mu.Unlock()

	s.sink(ctx, s.event(order, domain.OrderStatusAccepted, 0, ""))
	s.logger.Info("order accepted",
		slog.String("order_id", order.ClientOrderID),
		slog.String("symbol", order.Symbol),
		slog.String("venue", order.Venue),
		slog.String("side", string(order.Side)),
	)

	go s.process(ctx, order)
	return order, nil
}

// process waits out the venue latency and emits the terminal event.
func (s *Simulator) process(ctx context.Context, order domain.PendingOrder) {
	defer s.wg.Done()

	timer := time.NewTimer(s.cfg.ProcessingDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		s.finish(ctx, order, domain.OrderStatusRejected, 0, rejectReasonCancelled)
		return
	case <-timer.C:
	}

	s.mu.Lock()
	rejected := s.rng.Float64() < s.cfg.RejectProbability
	var slip int64
	if !rejected && s.cfg.SlippagePPM > 0 {
		slip = s.rng.Int63n(2*s.cfg.SlippagePPM+1) - s.cfg.SlippagePPM
	}
	s.mu.Unlock()

	if rejected {
		s.finish(ctx, order, domain.OrderStatusRejected, 0, rejectReasonMargin)
		return
	}

	price := order.LimitTicks
	if price <= 0 && s.refPrice != nil {
		if ref, ok := s.refPrice(order.Venue, order.Symbol); ok {
			price = ref
		}
	}
	if price <= 0 {
		s.finish(ctx, order, domain.OrderStatusRejected, 0, rejectReasonNoPrice)
		return
	}

	fill := price + price*slip/ppmScale
	s.finish(ctx, order, domain.OrderStatusFilled, fill, "")
}

// finish removes the pending order and emits its terminal event. The removal
// and emission are idempotent per order: a second terminal outcome (for
// example cancel racing the fill) is dropped.
func (s *Simulator) finish(ctx context.Context, order domain.PendingOrder, status domain.OrderStatus, fillTicks int64, reason string) {
	s.mu.Lock()
	_, live := s.pending[order.ClientOrderID]
	delete(s.pending, order.ClientOrderID)
	s.mu.Unlock()
	if !live {
		return
	}

	s.sink(ctx, s.event(order, status, fillTicks, reason))

	switch status {
	case domain.OrderStatusFilled:
		s.logger.Info("order filled",
			slog.String("order_id", order.ClientOrderID),
			slog.String("symbol", order.Symbol),
			slog.String("venue", order.Venue),
			slog.String("fill_price", domain.FormatTicks(fillTicks)),
		)
	case domain.OrderStatusRejected:
		s.logger.Warn("order rejected",
			slog.String("order_id", order.ClientOrderID),
			slog.String("symbol", order.Symbol),
			slog.String("venue", order.Venue),
			slog.String("reason", reason),
		)
	}
}

// event builds an OrderEvent for order with the given outcome.
func (s *Simulator) event(order domain.PendingOrder, status domain.OrderStatus, fillTicks int64, reason string) domain.OrderEvent {
	return domain.OrderEvent{
		ClientOrderID: order.ClientOrderID,
		Symbol:        order.Symbol,
		Venue:         order.Venue,
		Side:          order.Side,
		Status:        status,
		SizeUnits:     order.SizeUnits,
		FillTicks:     fillTicks,
		Reason:        reason,
		OpportunityID: order.OpportunityID,
		Timestamp:     time.Now().UTC(),
	}
}

// Pending returns a snapshot of orders awaiting their terminal event.
func (s *Simulator) Pending() []domain.PendingOrder {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.PendingOrder, 0, len(s.pending))
	for _, o := range s.pending {
		out = append(out, o)
	}
	return out
}

// Close stops accepting orders and waits for in-flight ones to reach their
// terminal event.
func (s *Simulator) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
