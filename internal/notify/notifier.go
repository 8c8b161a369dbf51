// Package notify delivers operator alerts for the pipeline's notable events:
// detected opportunities, terminal order outcomes, and feed drops. Alerts fan
// out to every configured channel and can be filtered down to the event types
// an operator cares about.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Sender is one delivery channel (Telegram chat, Discord webhook).
type Sender interface {
	Send(ctx context.Context, title, message string) error
	// Name identifies the channel in logs and combined errors.
	Name() string
}

// knownEvents is the pipeline's alert vocabulary. Configured filters outside
// this set are almost certainly typos.
var knownEvents = map[string]struct{}{
	EventArbDetected:      {},
	EventOrderFilled:      {},
	EventOrderRejected:    {},
	EventFeedDisconnected: {},
}

// Notifier fans alerts out to its senders. With a non-empty filter only the
// listed event types are delivered; an empty filter delivers everything.
type Notifier struct {
	senders []Sender
	allow   map[string]struct{}
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to senders, filtered to the given
// event types. Unknown event names are kept (the filter is an allow list, not
// a schema) but logged so a misspelled filter is visible at startup.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	logger = logger.With(slog.String("component", "notifier"))

	allow := make(map[string]struct{}, len(events))
	for _, e := range events {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if _, ok := knownEvents[e]; !ok {
			logger.Warn("unknown event in notify filter", slog.String("event", e))
		}
		allow[e] = struct{}{}
	}

	return &Notifier{
		senders: senders,
		allow:   allow,
		logger:  logger,
	}
}

// Notify delivers one alert to every sender, unless the event type is
// filtered out. A failing sender never blocks the others; their errors come
// back joined.
func (n *Notifier) Notify(ctx context.Context, event, title, message string) error {
	if len(n.allow) > 0 {
		if _, ok := n.allow[event]; !ok {
			n.logger.DebugContext(ctx, "event filtered out", slog.String("event", event))
			return nil
		}
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
			continue
		}
		n.logger.DebugContext(ctx, "notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", event),
			slog.String("title", title),
		)
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify %s: %w", event, errors.Join(errs...))
	}
	return nil
}
