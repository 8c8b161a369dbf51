package notify

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// Event types the pipeline emits. Configure notify.events with a subset of
// these to filter operator alerts.
const (
	EventArbDetected      = "arb_detected"
	EventOrderFilled      = "order_filled"
	EventOrderRejected    = "order_rejected"
	EventFeedDisconnected = "feed_disconnected"
)

// ArbDetected alerts on a freshly detected opportunity.
func (n *Notifier) ArbDetected(ctx context.Context, opp domain.ArbOpportunity) error {
	title := fmt.Sprintf("Arbitrage: %s", opp.Symbol)
	message := fmt.Sprintf(
		"Buy %s @ %s on %s, sell @ %s on %s (%.2f%%)",
		opp.Symbol,
		domain.FormatTicks(opp.BuyPriceTicks), opp.BuyVenue,
		domain.FormatTicks(opp.SellPriceTicks), opp.SellVenue,
		opp.ProfitFraction*100,
	)
	return n.Notify(ctx, EventArbDetected, title, message)
}

// OrderOutcome alerts on a terminal order event; accepted events are not
// operator-visible.
func (n *Notifier) OrderOutcome(ctx context.Context, ev domain.OrderEvent) error {
	switch ev.Status {
	case domain.OrderStatusFilled:
		title := fmt.Sprintf("Filled: %s %s", ev.Side, ev.Symbol)
		message := fmt.Sprintf(
			"%s %s on %s filled @ %s",
			ev.Side, ev.Symbol, ev.Venue, domain.FormatTicks(ev.FillTicks),
		)
		return n.Notify(ctx, EventOrderFilled, title, message)
	case domain.OrderStatusRejected:
		title := fmt.Sprintf("Rejected: %s %s", ev.Side, ev.Symbol)
		message := fmt.Sprintf(
			"%s %s on %s rejected: %s",
			ev.Side, ev.Symbol, ev.Venue, ev.Reason,
		)
		return n.Notify(ctx, EventOrderRejected, title, message)
	}
	return nil
}

// FeedDisconnected alerts when a venue feed drops and enters reconnection.
func (n *Notifier) FeedDisconnected(ctx context.Context, venue, reason string) error {
	title := fmt.Sprintf("Feed down: %s", venue)
	message := fmt.Sprintf("%s feed disconnected: %s (reconnecting)", venue, reason)
	return n.Notify(ctx, EventFeedDisconnected, title, message)
}
