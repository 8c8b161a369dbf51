package domain

import "time"

// OrderSide indicates whether this is a buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderStatus tracks the simulated order lifecycle.
type OrderStatus string

const (
	OrderStatusAccepted OrderStatus = "accepted"
	OrderStatusFilled   OrderStatus = "filled"
	OrderStatusRejected OrderStatus = "rejected"
)

// OrderRequest is a submission into the execution simulator.
type OrderRequest struct {
	Symbol     string
	Venue      string
	Side       OrderSide
	SizeUnits  int64 // fixed-point quantity, 1e6 units
	LimitTicks int64 // optional limit price; 0 means market
	// OpportunityID links the order back to the opportunity that spawned it,
	// if any.
	OpportunityID string
}

// Size returns the display quantity from fixed-point units.
func (r OrderRequest) Size() float64 {
	return float64(r.SizeUnits) / 1e6
}

// PendingOrder is an accepted order awaiting its terminal outcome. Owned by
// the ExecutionSimulator, keyed by ClientOrderID (unique per process).
type PendingOrder struct {
	ClientOrderID string
	Symbol        string
	Venue         string
	Side          OrderSide
	SizeUnits     int64
	LimitTicks    int64
	OpportunityID string
	SubmittedAt   time.Time
}

// OrderEvent is published for each order lifecycle transition: accepted on
// submission, then exactly one of filled or rejected.
type OrderEvent struct {
	ClientOrderID string
	Symbol        string
	Venue         string
	Side          OrderSide
	Status        OrderStatus
	SizeUnits     int64
	FillTicks     int64  // set on fill
	Reason        string // set on rejection
	OpportunityID string
	Timestamp     time.Time
}

// Terminal reports whether the event ends the order's lifecycle.
func (e OrderEvent) Terminal() bool {
	return e.Status == OrderStatusFilled || e.Status == OrderStatusRejected
}
