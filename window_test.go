package main

import (
	"strings"
	"testing"
	"time"
)

func TestDigestWindowBounds(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*3600)
	// Scheduler fires shortly after the 09:00 local anchor.
	now := time.Date(2024, 3, 5, 9, 0, 30, 0, sgt)

	w := DigestWindow(now, sgt, 9)

	wantUntil := time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC)
	if !w.Until.Equal(wantUntil) {
		t.Fatalf("until = %s, want %s", w.Until, wantUntil)
	}
	if !w.Since.Equal(wantUntil.AddDate(0, 0, -1)) {
		t.Fatalf("since = %s, want 24h before until", w.Since)
	}
	if got := w.Until.Sub(w.Since); got != 24*time.Hour {
		t.Fatalf("window length = %s, want 24h", got)
	}
}

func TestDigestWindowUTC(t *testing.T) {
	now := time.Date(2024, 3, 5, 12, 34, 0, 0, time.UTC)
	w := DigestWindow(now, time.UTC, 0)
	if w.SinceISO() != "2024-03-04T00:00:00Z" || w.UntilISO() != "2024-03-05T00:00:00Z" {
		t.Fatalf("unexpected window: %s .. %s", w.SinceISO(), w.UntilISO())
	}
	if w.SinceDate() != "2024-03-04" || w.UntilDate() != "2024-03-05" {
		t.Fatalf("unexpected window dates: %s .. %s", w.SinceDate(), w.UntilDate())
	}
}

func TestCardTitleFormat(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*3600)
	w := DigestWindow(time.Date(2024, 3, 5, 9, 0, 0, 0, sgt), sgt, 9)

	title := CardTitle(w, sgt)
	want := "2024-03-04T09:00 am SGT to 2024-03-05T09:00 am SGT"
	if title != want {
		t.Fatalf("title = %q, want %q", title, want)
	}
	if strings.Contains(title, "AM") || strings.Contains(title, "PM") {
		t.Fatalf("meridiem must be lowercased: %q", title)
	}
}

func TestCardTitleAfternoonAnchor(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*3600)
	w := DigestWindow(time.Date(2024, 3, 5, 18, 0, 0, 0, sgt), sgt, 18)
	title := CardTitle(w, sgt)
	if !strings.Contains(title, "06:00 pm SGT") {
		t.Fatalf("expected 12-hour pm rendering, got %q", title)
	}
}

func TestCardDue(t *testing.T) {
	sgt := time.FixedZone("SGT", 8*3600)
	w := DigestWindow(time.Date(2024, 3, 5, 9, 0, 0, 0, sgt), sgt, 9)

	due := CardDue(w, sgt, 13)
	// 13:00 SGT on the window's end day is 05:00 UTC.
	if due != "2024-03-05T05:00:00Z" {
		t.Fatalf("due = %q, want 2024-03-05T05:00:00Z", due)
	}
}
