package layout

import (
	"fmt"
	"time"

	"github.com/Joseda-hg/lazycal/internal/model"
)

// ErrInvalidDate marks events whose stored dates cannot be resolved.
// Callers skip the event and keep rendering.
var ErrInvalidDate = fmt.Errorf("invalid event date")

const minuteFraction = 1.0 / (24 * 60)

// Resolve normalizes an event for layout against the given display
// zone. All-day events span whole civil days; timed events keep their
// UTC instants and get day fractions computed in the display zone.
func Resolve(ev model.Event, zone *time.Location) (model.ResolvedEvent, error) {
	if zone == nil {
		zone = time.Local
	}

	resolved := model.ResolvedEvent{Event: ev, IsAllDay: ev.AllDay()}

	if resolved.IsAllDay {
		startDay, err := parseCivilDate(ev.Start, zone)
		if err != nil {
			return model.ResolvedEvent{}, fmt.Errorf("%w: start %q", ErrInvalidDate, ev.Start)
		}
		endDay, err := parseCivilDate(ev.End, zone)
		if err != nil {
			return model.ResolvedEvent{}, fmt.Errorf("%w: end %q", ErrInvalidDate, ev.End)
		}
		if endDay.Before(startDay) {
			endDay = startDay
		}

		resolved.StartInstant = startDay
		// Exclusive end: midnight after the last covered day.
		resolved.EndInstant = nextDay(endDay)
		resolved.StartFraction = 0
		resolved.EndFraction = 1
		return resolved, nil
	}

	if ev.StartUTC == nil || ev.EndUTC == nil {
		return model.ResolvedEvent{}, fmt.Errorf("%w: timed event missing instants", ErrInvalidDate)
	}

	start := ev.StartUTC.UTC()
	end := ev.EndUTC.UTC()
	if end.Before(start) {
		end = start
	}

	resolved.StartInstant = start
	resolved.EndInstant = end
	resolved.ZeroDuration = end.Equal(start)

	startLocal := start.In(zone)
	endLocal := end.In(zone)

	resolved.StartFraction = dayFraction(startLocal)
	resolved.EndFraction = dayFraction(endLocal)

	// An event ending at exactly midnight of a later day fills its last
	// real day to 1.0 instead of starting a zero-width day.
	if isMidnight(endLocal) && !sameDay(startLocal, endLocal) {
		resolved.EndFraction = 1.0
	} else if sameDay(startLocal, endLocal) && resolved.EndFraction <= resolved.StartFraction && !resolved.ZeroDuration {
		resolved.EndFraction = minFloat(1.0, resolved.StartFraction+5*minuteFraction)
	}

	return resolved, nil
}

// ResolveAll resolves a batch, dropping events that fail to resolve.
// The caller logs per-event failures through the returned slice of
// errors; a bad event never aborts the pass.
func ResolveAll(events []model.Event, zone *time.Location) ([]model.ResolvedEvent, []error) {
	resolved := make([]model.ResolvedEvent, 0, len(events))
	var errs []error
	for _, ev := range events {
		r, err := Resolve(ev, zone)
		if err != nil {
			errs = append(errs, fmt.Errorf("event %s: %w", ev.ID, err))
			continue
		}
		resolved = append(resolved, r)
	}
	return resolved, errs
}

// FirstDay returns midnight of the first display day the event covers.
func FirstDay(r model.ResolvedEvent, zone *time.Location) time.Time {
	if r.IsAllDay {
		return r.StartInstant
	}
	return dayOf(r.StartInstant.In(zone))
}

// VisualLastDay returns midnight of the last day the event should be
// drawn on. A timed event ending at exactly midnight renders through
// the previous day.
func VisualLastDay(r model.ResolvedEvent, zone *time.Location) time.Time {
	if r.IsAllDay {
		// EndInstant is exclusive.
		return prevDay(r.EndInstant)
	}
	endLocal := r.EndInstant.In(zone)
	last := dayOf(endLocal)
	if isMidnight(endLocal) && !sameDay(r.StartInstant.In(zone), endLocal) {
		last = prevDay(last)
	}
	first := FirstDay(r, zone)
	if last.Before(first) {
		last = first
	}
	return last
}

// DayInterval gives the fraction interval the event occupies on the
// given display day (midnight in the display zone).
func DayInterval(r model.ResolvedEvent, day time.Time, zone *time.Location) (float64, float64) {
	if r.IsAllDay {
		return 0, 1
	}

	first := FirstDay(r, zone)
	last := VisualLastDay(r, zone)

	start := 0.0
	end := 1.0
	if day.Equal(first) {
		start = r.StartFraction
	}
	if day.Equal(last) {
		end = r.EndFraction
	}
	if end < start {
		end = start
	}
	return start, end
}

func parseCivilDate(value string, zone *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", value, zone)
	if err != nil {
		return time.Time{}, err
	}
	return t, nil
}

func dayFraction(t time.Time) float64 {
	return float64(t.Hour()*60+t.Minute()) / (24 * 60)
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func dayOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func nextDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, day.Location())
}

func prevDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()-1, 0, 0, 0, 0, day.Location())
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
