// Package ics converts between stored events and iCalendar payloads.
package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"github.com/Joseda-hg/lazycal/internal/log"
	"github.com/Joseda-hg/lazycal/internal/model"
)

const civilDate = "2006-01-02"

// Google Calendar appends a machine-generated block to descriptions,
// separated by a long "-::~:" ruler. Everything from the separator on
// is dropped during import.
const googleDescriptionSeparator = "\n\n-::~:~::~:"

// Parse reads an ICS payload into events. VEVENTs without a DTSTART
// are skipped with a log entry; invalid RRULEs are dropped from the
// event but the event itself is kept.
func Parse(body []byte, zone *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}

	events := make([]model.Event, 0)
	for _, ve := range cal.Events() {
		ev, perr := parseVEvent(ve, zone)
		if perr != nil {
			log.Error("skipping calendar entry", perr, "uid", ve.Id())
			continue
		}
		events = append(events, ev)
	}

	log.Info("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, zone *time.Location) (model.Event, error) {
	var ev model.Event

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || dtStart.Value == "" {
		return ev, errors.New("missing DTSTART")
	}

	ev.ID = ve.Id()
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.Name = unescapeText(p.Value)
	}
	if ev.Name == "" {
		ev.Name = "Untitled event"
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.Description = stripGeneratedTail(unescapeText(p.Value))
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.Location = unescapeText(p.Value)
	}
	if p := ve.GetProperty("X-APPLE-CALENDAR-COLOR"); p != nil {
		ev.Color = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil && p.Value != "" {
		if _, rerr := rrule.StrToRRule(p.Value); rerr != nil {
			log.Error("dropping invalid RRULE", rerr, "uid", ev.ID, "rrule", p.Value)
		} else {
			ev.RRule = p.Value
		}
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return ev, fmt.Errorf("parse DTSTART: %w", err)
	}

	if isDateOnly(dtStart) {
		ev.Start = start.Format(civilDate)
		ev.End = ev.Start
		// DTEND on an all-day event is exclusive, so the stored
		// inclusive end is the day before.
		if end, eerr := ve.GetEndAt(); eerr == nil {
			last := end.AddDate(0, 0, -1).Format(civilDate)
			if last >= ev.Start {
				ev.End = last
			}
		}
		return ev, nil
	}

	end, err := ve.GetEndAt()
	if err != nil || !end.After(start) {
		end = start.Add(time.Hour)
	}

	tz := tzidOf(dtStart)
	loc := zone
	if tz != "" {
		if parsed, lerr := time.LoadLocation(tz); lerr == nil {
			loc = parsed
		}
	} else if start.Location() == time.UTC {
		tz = "UTC"
		loc = time.UTC
	}
	if tz == "" {
		tz = loc.String()
	}

	startLocal := start.In(loc)
	endLocal := end.In(loc)
	startUTC := start.UTC()
	endUTC := end.UTC()

	ev.Start = startLocal.Format(civilDate)
	ev.End = endLocal.Format(civilDate)
	ev.Time = startLocal.Format("15:04")
	ev.EndTime = endLocal.Format("15:04")
	ev.StartUTC = &startUTC
	ev.EndUTC = &endUTC
	ev.StartTimezone = tz
	ev.EndTimezone = tz
	return ev, nil
}

// Export serializes events to an ICS payload. All-day events use
// VALUE=DATE with an exclusive DTEND one day past the stored end.
func Export(events []model.Event) (string, error) {
	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//lazycal//calendar//EN")

	now := time.Now().UTC()
	for _, ev := range events {
		ve := cal.AddEvent(ev.ID)
		ve.SetDtStampTime(now)
		ve.SetSummary(ev.Name)
		if ev.Description != "" {
			ve.SetDescription(ev.Description)
		}
		if ev.Location != "" {
			ve.SetLocation(ev.Location)
		}
		if ev.Color != "" {
			ve.SetProperty("X-APPLE-CALENDAR-COLOR", ev.Color)
		}
		if ev.RRule != "" {
			ve.AddRrule(ev.RRule)
		}

		if ev.AllDay() {
			start, err := time.Parse(civilDate, ev.Start)
			if err != nil {
				return "", fmt.Errorf("event %s: %w", ev.ID, err)
			}
			end, err := time.Parse(civilDate, ev.End)
			if err != nil {
				return "", fmt.Errorf("event %s: %w", ev.ID, err)
			}
			if end.Before(start) {
				end = start
			}
			ve.SetAllDayStartAt(start)
			ve.SetAllDayEndAt(end.AddDate(0, 0, 1))
			continue
		}

		if ev.StartUTC == nil || ev.EndUTC == nil {
			return "", fmt.Errorf("event %s: timed event without instants", ev.ID)
		}
		ve.SetStartAt(ev.StartUTC.UTC())
		ve.SetEndAt(ev.EndUTC.UTC())
	}

	return cal.Serialize(), nil
}

func isDateOnly(prop *ical.IANAProperty) bool {
	if params := prop.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			return true
		}
	}
	return !strings.Contains(prop.Value, "T")
}

func tzidOf(prop *ical.IANAProperty) string {
	if params := prop.ICalParameters; params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			return tzs[0]
		}
	}
	return ""
}

func stripGeneratedTail(description string) string {
	if idx := strings.Index(description, googleDescriptionSeparator); idx >= 0 {
		return strings.TrimRight(description[:idx], "\n ")
	}
	return description
}

func unescapeText(value string) string {
	replacer := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return replacer.Replace(value)
}
