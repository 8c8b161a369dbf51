package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/arbflow/internal/book"
	"github.com/alanyoungcy/arbflow/internal/domain"
)

// QuoteHandler serves read-only snapshots of the in-memory quote book.
type QuoteHandler struct {
	book *book.Book
}

// NewQuoteHandler creates a QuoteHandler over the given quote book.
func NewQuoteHandler(b *book.Book) *QuoteHandler {
	return &QuoteHandler{book: b}
}

// quoteView is the JSON shape of a single venue quote. Prices are converted
// from fixed-point ticks to display floats at the API boundary only.
type quoteView struct {
	Venue     string    `json:"venue"`
	Bid       float64   `json:"bid"`
	Ask       float64   `json:"ask"`
	Mid       float64   `json:"mid"`
	MidOnly   bool      `json:"mid_only"`
	EventTime time.Time `json:"event_time"`
}

func toQuoteView(q domain.Quote) quoteView {
	return quoteView{
		Venue:     q.Venue,
		Bid:       q.BidPrice(),
		Ask:       q.AskPrice(),
		Mid:       float64(q.MidTicks()) / 1e6,
		MidOnly:   q.MidOnly,
		EventTime: q.EventTime,
	}
}

// ListQuotes responds with the full book snapshot: every tracked symbol and
// its per-venue quotes.
// GET /api/quotes
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	out := make(map[string][]quoteView)
	for _, symbol := range h.book.Symbols() {
		quotes := h.book.Get(symbol)
		views := make([]quoteView, 0, len(quotes))
		for _, q := range quotes {
			views = append(views, toQuoteView(q))
		}
		out[symbol] = views
	}
	writeJSON(w, http.StatusOK, out)
}

// GetSymbol responds with the per-venue quotes for one symbol.
// GET /api/quotes/{symbol}
func (h *QuoteHandler) GetSymbol(w http.ResponseWriter, r *http.Request) {
	symbol := r.PathValue("symbol")
	quotes := h.book.Get(symbol)
	if len(quotes) == 0 {
		writeError(w, http.StatusNotFound, "no quotes for symbol")
		return
	}
	views := make([]quoteView, 0, len(quotes))
	for _, q := range quotes {
		views = append(views, toQuoteView(q))
	}
	writeJSON(w, http.StatusOK, views)
}
