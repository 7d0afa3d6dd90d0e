package model

import "time"

// Event is the stored form of a calendar entry. All-day events carry
// only civil dates; timed events additionally carry UTC instants plus
// the civil time and timezone they were entered in.
type Event struct {
	ID          string
	Name        string
	Description string
	Location    string
	Color       string

	Start string // yyyy-mm-dd
	End   string // yyyy-mm-dd

	Time    string // hh:mm, timed events only
	EndTime string // hh:mm, timed events only

	StartUTC *time.Time
	EndUTC   *time.Time

	StartTimezone string
	EndTimezone   string

	RRule string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// AllDay reports whether the event has no timed component.
func (e Event) AllDay() bool {
	return e.StartUTC == nil
}

// ResolvedEvent is an Event normalized for layout: concrete instants
// in the display zone plus day fractions for the start and end days.
type ResolvedEvent struct {
	Event

	StartInstant time.Time
	EndInstant   time.Time

	IsAllDay bool

	// Fraction of the civil day at which the event starts/ends on its
	// first/last display day. All-day events use 0 and 1.
	StartFraction float64
	EndFraction   float64

	// ZeroDuration marks a same-instant timed event; such events are
	// resolved but never rendered.
	ZeroDuration bool
}

// Segment is one drawable run of an event across consecutive days of a
// grid row.
type Segment struct {
	EventID  string
	StartDay time.Time // midnight in display zone
	Days     int
	Lane     int

	// TrueStart/TrueEnd report whether the event really begins/ends
	// inside this segment, as opposed to continuing past the grid or
	// the week row.
	TrueStart bool
	TrueEnd   bool
}

// Holiday is a named civil day from one of the holiday feeds.
type Holiday struct {
	Date string // yyyy-mm-dd
	Name string
	Kind string // "public" or "school"
}

// HistoryEntry is an audit record for an event mutation.
type HistoryEntry struct {
	ID        int64
	EventID   string
	EventType string
	Details   string
	CreatedAt time.Time
}
