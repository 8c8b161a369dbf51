package feed

import "time"

// Backoff computes reconnect delays: base * 2^attempt, capped. The zero value
// is unusable; use NewBackoff for the 1s..60s defaults.
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// NewBackoff returns the standard reconnect backoff: 1s base doubling to a
// 60s cap.
func NewBackoff() Backoff {
	return Backoff{Base: time.Second, Cap: 60 * time.Second}
}

// Next returns the delay before reconnect attempt n (0-based). The sequence
// for the defaults is 1, 2, 4, 8, 16, 32, 60, 60, ...
func (b Backoff) Next(attempt int) time.Duration {
	if attempt < 0 {
		return b.Base
	}
	// 2^31 seconds is far beyond any sane cap; avoid shift overflow.
	if attempt > 30 {
		return b.Cap
	}
	d := b.Base * time.Duration(1<<attempt)
	if d > b.Cap {
		return b.Cap
	}
	return d
}
