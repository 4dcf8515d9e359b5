package main

import (
	"strings"
	"time"
)

// Window is the UTC interval covering one digest period. Boundary
// handling is up to each consumer; note filtering treats both ends as
// inclusive.
type Window struct {
	Since time.Time
	Until time.Time
}

// DigestWindow computes the reporting window ending at anchorHour
// local time on the current day. The scheduler is expected to fire at
// the anchor, so the anchor is taken on now's calendar day even when
// the run starts a little late.
func DigestWindow(now time.Time, loc *time.Location, anchorHour int) Window {
	local := now.In(loc)
	until := time.Date(local.Year(), local.Month(), local.Day(), anchorHour, 0, 0, 0, loc)
	return Window{
		Since: until.AddDate(0, 0, -1).UTC(),
		Until: until.UTC(),
	}
}

// SinceISO returns the window start as a Zulu ISO timestamp for
// upstream query parameters.
func (w Window) SinceISO() string {
	return w.Since.UTC().Format(time.RFC3339)
}

func (w Window) UntilISO() string {
	return w.Until.UTC().Format(time.RFC3339)
}

// SinceDate and UntilDate are the calendar dates of the window
// boundaries, used for title date-tag membership.
func (w Window) SinceDate() string {
	return w.Since.UTC().Format("2006-01-02")
}

func (w Window) UntilDate() string {
	return w.Until.UTC().Format("2006-01-02")
}

// CardTitle renders the digest card title, e.g.
// "2026-02-08T09:00 am +08 to 2026-02-09T09:00 am +08".
func CardTitle(w Window, loc *time.Location) string {
	return formatTitleTime(w.Since, loc) + " to " + formatTitleTime(w.Until, loc)
}

func formatTitleTime(t time.Time, loc *time.Location) string {
	s := t.In(loc).Format("2006-01-02T03:04 PM MST")
	s = strings.ReplaceAll(s, "PM", "pm")
	s = strings.ReplaceAll(s, "AM", "am")
	return s
}

// CardDue returns the digest card due timestamp: dueHour local time on
// the window's end day, as a Zulu ISO string.
func CardDue(w Window, loc *time.Location, dueHour int) string {
	end := w.Until.In(loc)
	due := time.Date(end.Year(), end.Month(), end.Day(), dueHour, 0, 0, 0, loc)
	return due.UTC().Format(time.RFC3339)
}
