package feed

import (
	"testing"
	"time"
)

func TestBackoffSequence(t *testing.T) {
	b := NewBackoff()

	want := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		16 * time.Second,
		32 * time.Second,
		60 * time.Second,
		60 * time.Second,
	}
	for attempt, expected := range want {
		if got := b.Next(attempt); got != expected {
			t.Errorf("attempt %d: got %s, want %s", attempt, got, expected)
		}
	}
}

func TestBackoffNegativeAttempt(t *testing.T) {
	b := NewBackoff()
	if got := b.Next(-1); got != time.Second {
		t.Errorf("negative attempt: got %s, want %s", got, time.Second)
	}
}

func TestBackoffLargeAttemptStaysCapped(t *testing.T) {
	b := NewBackoff()
	for _, attempt := range []int{31, 63, 1000} {
		if got := b.Next(attempt); got != 60*time.Second {
			t.Errorf("attempt %d: got %s, want cap %s", attempt, got, 60*time.Second)
		}
	}
}
