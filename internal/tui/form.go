package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/Joseda-hg/lazycal/internal/db"
	"github.com/Joseda-hg/lazycal/internal/model"
	"github.com/teambition/rrule-go"
)

type formField struct {
	Label string
	Value string
}

const (
	fieldName = iota
	fieldDescription
	fieldLocation
	fieldColor
	fieldAllDay
	fieldStartDate
	fieldStartTime
	fieldEndDate
	fieldEndTime
	fieldTimezone
	fieldRRule
)

func buildFormFields(ev *model.Event, day time.Time) []formField {
	fields := []formField{
		{Label: "Name"},
		{Label: "Description"},
		{Label: "Location"},
		{Label: "Color"},
		{Label: "All day (space)"},
		{Label: "Start (YYYY-MM-DD)"},
		{Label: "Start time (HH:MM)"},
		{Label: "End (YYYY-MM-DD)"},
		{Label: "End time (HH:MM)"},
		{Label: "Timezone"},
		{Label: "Repeat (RRULE)"},
	}

	if ev == nil {
		fields[fieldAllDay].Value = "yes"
		fields[fieldStartDate].Value = day.Format("2006-01-02")
		fields[fieldEndDate].Value = day.Format("2006-01-02")
		return fields
	}

	fields[fieldName].Value = ev.Name
	fields[fieldDescription].Value = ev.Description
	fields[fieldLocation].Value = ev.Location
	fields[fieldColor].Value = ev.Color
	fields[fieldStartDate].Value = ev.Start
	fields[fieldEndDate].Value = ev.End
	fields[fieldRRule].Value = ev.RRule
	if ev.AllDay() {
		fields[fieldAllDay].Value = "yes"
	} else {
		fields[fieldAllDay].Value = "no"
		fields[fieldStartTime].Value = ev.Time
		fields[fieldEndTime].Value = ev.EndTime
		fields[fieldTimezone].Value = ev.StartTimezone
	}
	return fields
}

func parseFormFields(fields []formField, zone *time.Location) (db.EventInput, error) {
	input := db.EventInput{
		Name:        strings.TrimSpace(fields[fieldName].Value),
		Description: strings.TrimSpace(fields[fieldDescription].Value),
		Location:    strings.TrimSpace(fields[fieldLocation].Value),
		Color:       strings.TrimSpace(fields[fieldColor].Value),
	}

	startDate, err := parseCivil(fields[fieldStartDate].Value)
	if err != nil {
		return db.EventInput{}, fmt.Errorf("invalid start date")
	}
	input.Start = startDate

	endDate := strings.TrimSpace(fields[fieldEndDate].Value)
	if endDate == "" {
		endDate = startDate
	} else if _, err := time.Parse("2006-01-02", endDate); err != nil {
		return db.EventInput{}, fmt.Errorf("invalid end date")
	}
	input.End = endDate

	if rule := strings.TrimSpace(fields[fieldRRule].Value); rule != "" {
		if _, err := rrule.StrToRRule(rule); err != nil {
			return db.EventInput{}, fmt.Errorf("invalid repeat rule: %v", err)
		}
		input.RRule = rule
	}

	if isYes(fields[fieldAllDay].Value) {
		if input.End < input.Start {
			input.End = input.Start
		}
		return input, nil
	}

	tz := strings.TrimSpace(fields[fieldTimezone].Value)
	loc := zone
	if tz != "" {
		parsed, err := time.LoadLocation(tz)
		if err != nil {
			return db.EventInput{}, fmt.Errorf("invalid timezone")
		}
		loc = parsed
	} else {
		tz = loc.String()
	}

	startClock, err := parseClockField(fields[fieldStartTime].Value, "00:00")
	if err != nil {
		return db.EventInput{}, fmt.Errorf("invalid start time")
	}
	start, err := civilInstant(input.Start, startClock, loc)
	if err != nil {
		return db.EventInput{}, err
	}

	endClock := strings.TrimSpace(fields[fieldEndTime].Value)
	var end time.Time
	if endClock == "" {
		// Missing end defaults to one hour.
		end = start.Add(time.Hour)
	} else {
		if _, err := time.Parse("15:04", endClock); err != nil {
			return db.EventInput{}, fmt.Errorf("invalid end time")
		}
		end, err = civilInstant(input.End, endClock, loc)
		if err != nil {
			return db.EventInput{}, err
		}
		if !end.After(start) {
			end = start.Add(time.Hour)
		}
	}

	startUTC := start.UTC()
	endUTC := end.UTC()
	input.Time = start.Format("15:04")
	input.EndTime = end.Format("15:04")
	input.End = end.Format("2006-01-02")
	input.StartUTC = &startUTC
	input.EndUTC = &endUTC
	input.StartTimezone = tz
	input.EndTimezone = tz
	return input, nil
}

func parseCivil(value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if _, err := time.Parse("2006-01-02", trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

func parseClockField(value, fallback string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback, nil
	}
	if _, err := time.Parse("15:04", trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

func civilInstant(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time")
	}
	return t, nil
}

func isAllDayField(label string) bool {
	return strings.HasPrefix(label, "All day")
}

func isYes(value string) bool {
	return strings.EqualFold(strings.TrimSpace(value), "yes")
}

func toggleYesNo(value string) string {
	if isYes(value) {
		return "no"
	}
	return "yes"
}
