package util

import (
	"testing"
	"time"
)

func TestStartOfDay(t *testing.T) {
	in := time.Date(2025, 3, 1, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	got := StartOfDay(in)
	if !got.Equal(time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected day %v", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2025, 1, 1, 23, 0, 0, 0, time.UTC)
	b := time.Date(2025, 1, 31, 1, 0, 0, 0, time.UTC)
	if got := DaysBetween(a, b); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	if got := DaysBetween(b, a); got != -30 {
		t.Fatalf("expected -30, got %d", got)
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := ParseIDList(" 3, 7,,12 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 3 || ids[0] != 3 || ids[2] != 12 {
		t.Fatalf("unexpected ids %v", ids)
	}
	if _, err := ParseIDList("1,x"); err == nil {
		t.Fatalf("expected error")
	}
	if _, err := ParseIDList("-4"); err == nil {
		t.Fatalf("expected error for negative id")
	}
}
