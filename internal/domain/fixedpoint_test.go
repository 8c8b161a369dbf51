package domain

import "testing"

func TestParseTicks(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"", 0, false},
		{"0", 0, false},
		{"1", 1_000000, false},
		{"123.45", 123_450000, false},
		{"65000.5", 65000_500000, false},
		{"0.000001", 1, false},
		{"0.0000019", 1, false}, // truncated, not rounded
		{".5", 500000, false},
		{"-2.5", -2_500000, false},
		{"1.2.3", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseTicks(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseTicks(%q): expected error, got %d", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTicks(%q): unexpected error %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseTicks(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestFormatTicks(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{0, "0"},
		{1_000000, "1"},
		{100_300000, "100.3"},
		{123_450000, "123.45"},
		{1, "0.000001"},
		{-2_500000, "-2.5"},
	}
	for _, tc := range cases {
		if got := FormatTicks(tc.in); got != tc.want {
			t.Errorf("FormatTicks(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseFormatRoundTrip(t *testing.T) {
	for _, s := range []string{"65000.5", "0.25", "100", "3100.123456"} {
		ticks, err := ParseTicks(s)
		if err != nil {
			t.Fatalf("ParseTicks(%q): %v", s, err)
		}
		if got := FormatTicks(ticks); got != s {
			t.Errorf("round trip %q -> %d -> %q", s, ticks, got)
		}
	}
}

func TestTicksFromFloat(t *testing.T) {
	if got := TicksFromFloat(0.0005); got != 500 {
		t.Errorf("TicksFromFloat(0.0005) = %d, want 500", got)
	}
	if got := TicksFromFloat(-0.0005); got != -500 {
		t.Errorf("TicksFromFloat(-0.0005) = %d, want -500", got)
	}
}

func TestQuoteValid(t *testing.T) {
	if (Quote{}).Valid() {
		t.Error("zero quote must be invalid")
	}
	if (Quote{BidTicks: 2, AskTicks: 1}).Valid() {
		t.Error("crossed quote must be invalid")
	}
	if !(Quote{BidTicks: 1, AskTicks: 2}).Valid() {
		t.Error("two-sided quote must be valid")
	}
	if !(Quote{AskTicks: 2}).Valid() {
		t.Error("ask-only quote must be valid")
	}
}
