package ics

import (
	"strings"
	"testing"
	"time"

	"github.com/Joseda-hg/lazycal/internal/model"
)

func calendarBody(events ...string) []byte {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//test//test//EN",
	}
	lines = append(lines, events...)
	lines = append(lines, "END:VCALENDAR", "")
	return []byte(strings.Join(lines, "\r\n"))
}

func TestParseAllDayUsesExclusiveEnd(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:allday-1",
		"DTSTART;VALUE=DATE:20240301",
		"DTEND;VALUE=DATE:20240304",
		"SUMMARY:Conference",
		"END:VEVENT",
	)

	events, err := Parse(body, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if !ev.AllDay() {
		t.Fatalf("expected all-day event")
	}
	if ev.Start != "2024-03-01" || ev.End != "2024-03-03" {
		t.Fatalf("expected 2024-03-01..2024-03-03, got %s..%s", ev.Start, ev.End)
	}
}

func TestParseTimedDefaultsMissingEndToOneHour(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:timed-1",
		"DTSTART:20240301T090000Z",
		"SUMMARY:Call",
		"END:VEVENT",
	)

	events, err := Parse(body, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.AllDay() {
		t.Fatalf("expected timed event")
	}
	if got := ev.EndUTC.Sub(*ev.StartUTC); got != time.Hour {
		t.Fatalf("expected 1h default duration, got %v", got)
	}
	if ev.Time != "09:00" || ev.EndTime != "10:00" {
		t.Fatalf("expected 09:00..10:00, got %s..%s", ev.Time, ev.EndTime)
	}
}

func TestParseSkipsEventWithoutStart(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:broken-1",
		"SUMMARY:No start",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:ok-1",
		"DTSTART;VALUE=DATE:20240301",
		"SUMMARY:Kept",
		"END:VEVENT",
	)

	events, err := Parse(body, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event after skipping, got %d", len(events))
	}
	if events[0].ID != "ok-1" {
		t.Fatalf("expected surviving event ok-1, got %q", events[0].ID)
	}
}

func TestParseStripsGeneratedDescriptionTail(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:desc-1",
		"DTSTART;VALUE=DATE:20240301",
		"SUMMARY:Meet",
		"DESCRIPTION:Bring slides\\n\\n-::~:~::~:~:~:~:~:~:~:~:~:~:~:~:~:~:~:-\\nJoin with Google Meet",
		"END:VEVENT",
	)

	events, err := Parse(body, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if events[0].Description != "Bring slides" {
		t.Fatalf("expected generated tail removed, got %q", events[0].Description)
	}
}

func TestParseDropsInvalidRRule(t *testing.T) {
	body := calendarBody(
		"BEGIN:VEVENT",
		"UID:rrule-1",
		"DTSTART;VALUE=DATE:20240301",
		"SUMMARY:Repeats",
		"RRULE:FREQ=NOTAFREQ",
		"END:VEVENT",
	)

	events, err := Parse(body, time.UTC)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if events[0].RRule != "" {
		t.Fatalf("expected invalid rrule dropped, got %q", events[0].RRule)
	}
}

func TestExportRoundTrip(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	events := []model.Event{
		{
			ID:    "allday-1",
			Name:  "Offsite",
			Start: "2024-03-01",
			End:   "2024-03-02",
			Color: "#ff0000",
		},
		{
			ID:            "timed-1",
			Name:          "Review",
			Start:         "2024-03-01",
			End:           "2024-03-01",
			Time:          "09:00",
			EndTime:       "10:30",
			StartUTC:      &start,
			EndUTC:        &end,
			StartTimezone: "UTC",
			EndTimezone:   "UTC",
		},
	}

	payload, err := Export(events)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(payload, "X-APPLE-CALENDAR-COLOR:#ff0000") {
		t.Fatalf("expected color property in payload:\n%s", payload)
	}

	parsed, err := Parse([]byte(payload), time.UTC)
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if len(parsed) != 2 {
		t.Fatalf("expected 2 events, got %d", len(parsed))
	}

	byID := map[string]model.Event{}
	for _, ev := range parsed {
		byID[ev.ID] = ev
	}

	allDay := byID["allday-1"]
	if !allDay.AllDay() || allDay.Start != "2024-03-01" || allDay.End != "2024-03-02" {
		t.Fatalf("all-day round trip mismatch: %+v", allDay)
	}
	timed := byID["timed-1"]
	if timed.AllDay() {
		t.Fatalf("expected timed event after round trip")
	}
	if !timed.StartUTC.Equal(start) || !timed.EndUTC.Equal(end) {
		t.Fatalf("timed round trip mismatch: %v..%v", timed.StartUTC, timed.EndUTC)
	}
}
