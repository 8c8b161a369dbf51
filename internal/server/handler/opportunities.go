package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// OpportunityHandler serves recently detected opportunities from the audit
// store. The store is nil when Postgres is disabled; requests then return 503.
type OpportunityHandler struct {
	store  domain.OpportunityStore
	logger *slog.Logger
}

// NewOpportunityHandler creates an OpportunityHandler over the given store.
func NewOpportunityHandler(store domain.OpportunityStore, logger *slog.Logger) *OpportunityHandler {
	return &OpportunityHandler{store: store, logger: logger}
}

// opportunityView is the JSON shape of a detected opportunity.
type opportunityView struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	BuyVenue       string    `json:"buy_venue"`
	BuyPrice       float64   `json:"buy_price"`
	SellVenue      string    `json:"sell_venue"`
	SellPrice      float64   `json:"sell_price"`
	ProfitFraction float64   `json:"profit_fraction"`
	MidOnly        bool      `json:"mid_only"`
	Source         string    `json:"source"`
	DetectedAt     time.Time `json:"detected_at"`
}

// ListRecent responds with the most recently detected opportunities, newest
// first.
// GET /api/opportunities?limit=50
func (h *OpportunityHandler) ListRecent(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "opportunity store is not configured")
		return
	}

	opps, err := h.store.ListRecent(r.Context(), parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list opportunities failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	views := make([]opportunityView, 0, len(opps))
	for _, opp := range opps {
		views = append(views, opportunityView{
			ID:             opp.ID,
			Symbol:         opp.Symbol,
			BuyVenue:       opp.BuyVenue,
			BuyPrice:       float64(opp.BuyPriceTicks) / 1e6,
			SellVenue:      opp.SellVenue,
			SellPrice:      float64(opp.SellPriceTicks) / 1e6,
			ProfitFraction: opp.ProfitFraction,
			MidOnly:        opp.MidOnly,
			Source:         opp.Source,
			DetectedAt:     opp.DetectedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}
