package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbflow/internal/domain"
)

// OrderEventStore persists the simulated order lifecycle for audit. One row
// per (order, status), so an order leaves at most two rows: accepted and its
// terminal event.
type OrderEventStore struct {
	pool *pgxpool.Pool
}

// NewOrderEventStore creates a store backed by the given connection pool.
func NewOrderEventStore(pool *pgxpool.Pool) *OrderEventStore {
	return &OrderEventStore{pool: pool}
}

// Insert records one order event. Replayed duplicates are ignored.
func (s *OrderEventStore) Insert(ctx context.Context, ev domain.OrderEvent) error {
	const query = `
		INSERT INTO order_events (
			client_order_id, opportunity_id, symbol, venue, side,
			status, size_units, fill_ticks, reason, created_at
		) VALUES (
			$1, NULLIF($2, '')::uuid, $3, $4, $5,
			$6, $7, $8, $9, $10
		)
		ON CONFLICT (client_order_id, status) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		ev.ClientOrderID, ev.OpportunityID, ev.Symbol, ev.Venue, string(ev.Side),
		string(ev.Status), ev.SizeUnits, ev.FillTicks, ev.Reason, ev.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert order event %s/%s: %w", ev.ClientOrderID, ev.Status, err)
	}
	return nil
}

// ListByOpportunity returns all events for the orders an opportunity spawned,
// oldest first.
func (s *OrderEventStore) ListByOpportunity(ctx context.Context, oppID string) ([]domain.OrderEvent, error) {
	const query = `
		SELECT client_order_id, COALESCE(opportunity_id::text, ''), symbol, venue, side,
		       status, size_units, fill_ticks, reason, created_at
		FROM order_events
		WHERE opportunity_id = $1
		ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, oppID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list order events %s: %w", oppID, err)
	}
	defer rows.Close()

	var events []domain.OrderEvent
	for rows.Next() {
		var ev domain.OrderEvent
		var side, status string
		if err := rows.Scan(
			&ev.ClientOrderID, &ev.OpportunityID, &ev.Symbol, &ev.Venue, &side,
			&status, &ev.SizeUnits, &ev.FillTicks, &ev.Reason, &ev.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan order event: %w", err)
		}
		ev.Side = domain.OrderSide(side)
		ev.Status = domain.OrderStatus(status)
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list order events rows: %w", err)
	}
	return events, nil
}
