package book

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"sync"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// UpdateHook is invoked synchronously after each accepted quote, before Put
// returns. The detector hangs off this hook so a detection pass always sees
// the quote that triggered it.
type UpdateHook func(ctx context.Context, q domain.Quote)

// Book is the last-value quote cache: the newest quote per (symbol, venue),
// nothing older. All reads return copies; the internal map is never exposed.
//
// Optionally mirrors accepted quotes into a shared PriceCache and publishes
// them on the event bus so out-of-process collaborators see the same view.
// Both mirrors are best-effort: a cache or bus failure is logged and never
// blocks ingestion.
type Book struct {
	mu     sync.RWMutex
	quotes map[string]map[string]domain.Quote // symbol -> venue -> latest

	hook   UpdateHook
	cache  domain.PriceCache
	bus    domain.EventBus
	logger *slog.Logger
}

// Option configures a Book.
type Option func(*Book)

// WithUpdateHook sets the synchronous per-quote callback.
func WithUpdateHook(hook UpdateHook) Option {
	return func(b *Book) { b.hook = hook }
}

// WithPriceCache mirrors accepted quotes into an external price cache.
func WithPriceCache(cache domain.PriceCache) Option {
	return func(b *Book) { b.cache = cache }
}

// WithEventBus publishes accepted quotes on quotes.{venue}.{symbol}.
func WithEventBus(bus domain.EventBus) Option {
	return func(b *Book) { b.bus = bus }
}

// New creates an empty quote book.
func New(logger *slog.Logger, opts ...Option) *Book {
	b := &Book{
		quotes: make(map[string]map[string]domain.Quote),
		logger: logger.With(slog.String("component", "quotebook")),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Put stores q as the latest quote for its (symbol, venue), replacing any
// previous entry atomically. Invalid quotes are dropped. The update hook runs
// after the store, so it observes a book that already contains q.
func (b *Book) Put(ctx context.Context, q domain.Quote) {
	if !q.Valid() {
		b.logger.Warn("invalid quote dropped",
			slog.String("symbol", q.Symbol),
			slog.String("venue", q.Venue),
		)
		return
	}

	b.mu.Lock()
	venues, ok := b.quotes[q.Symbol]
	if !ok {
		venues = make(map[string]domain.Quote)
		b.quotes[q.Symbol] = venues
	}
	venues[q.Venue] = q
	b.mu.Unlock()

	b.mirror(ctx, q)

	if b.hook != nil {
		b.hook(ctx, q)
	}
}

// Get returns a copy of every venue's latest quote for symbol, ordered by
// venue so repeated calls over the same book contents are deterministic.
func (b *Book) Get(symbol string) []domain.Quote {
	b.mu.RLock()
	defer b.mu.RUnlock()

	venues := b.quotes[symbol]
	if len(venues) == 0 {
		return nil
	}
	out := make([]domain.Quote, 0, len(venues))
	for _, q := range venues {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Venue < out[j].Venue })
	return out
}

// GetVenue returns the latest quote for one (symbol, venue), or
// domain.ErrNotFound when nothing has been stored yet.
func (b *Book) GetVenue(symbol, venue string) (domain.Quote, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.quotes[symbol][venue]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	return q, nil
}

// Symbols returns the sorted list of symbols with at least one quote.
func (b *Book) Symbols() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make([]string, 0, len(b.quotes))
	for s := range b.quotes {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// VenueCount returns how many venues currently quote symbol.
func (b *Book) VenueCount(symbol string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.quotes[symbol])
}

// mirror pushes q to the external price cache and event bus when configured.
func (b *Book) mirror(ctx context.Context, q domain.Quote) {
	if b.cache != nil {
		if err := b.cache.SetPrice(ctx, q.Venue, q.Symbol, q.MidTicks(), q.EventTime); err != nil {
			b.logger.Warn("price cache write failed",
				slog.String("symbol", q.Symbol),
				slog.String("venue", q.Venue),
				slog.String("error", err.Error()),
			)
		}
	}
	if b.bus != nil {
		payload, err := json.Marshal(q)
		if err == nil {
			err = b.bus.Publish(ctx, "quotes."+q.Venue+"."+q.Symbol, payload)
		}
		if err != nil {
			b.logger.Warn("quote publish failed",
				slog.String("symbol", q.Symbol),
				slog.String("venue", q.Venue),
				slog.String("error", err.Error()),
			)
		}
	}
}
