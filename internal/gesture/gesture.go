package gesture

import (
	"errors"
	"time"

	"github.com/Joseda-hg/lazycal/internal/layout"
	"github.com/Joseda-hg/lazycal/internal/model"
)

// Mode identifies which part of a segment the gesture grabbed.
type Mode string

const (
	ModeMove         Mode = "move"
	ModeResizeStart  Mode = "resize-start"
	ModeResizeEnd    Mode = "resize-end"
	ModeResizeTop    Mode = "resize-top"
	ModeResizeBottom Mode = "resize-bottom"
)

// TargetKind describes what the pointer is currently over. It decides
// whether a move keeps, gains or loses the timed nature of the event.
type TargetKind int

const (
	// KindDay targets a month/year day cell: the event keeps its
	// all-day or timed nature.
	KindDay TargetKind = iota
	// KindHour targets an hour slot in the week view: the result is
	// timed.
	KindHour
	// KindAllDay targets the week view all-day strip: the result is
	// all-day.
	KindAllDay
)

// Target is one pointer position translated to calendar coordinates.
type Target struct {
	Kind TargetKind
	Day  time.Time // midnight in the display zone
	Hour int
	Min  int
}

// ErrActive reports a Begin while a gesture is already running. The
// caller ignores it; overlapping gestures are simply not started.
var ErrActive = errors.New("gesture already active")

// Throttle is the trailing-edge pointer update interval.
const Throttle = 100 * time.Millisecond

// Controller runs one drag or resize gesture from activation to
// commit. On activation it snapshots the dragged event, the other
// resolved events and their rendered lanes; previews are computed
// against the snapshot only, so mid-gesture store changes never shift
// the preview under the pointer.
type Controller struct {
	zone     *time.Location
	maxLanes int

	active bool
	mode   Mode

	original model.ResolvedEvent
	others   []model.ResolvedEvent
	lanes    map[string]int

	current   *Target
	pending   *Target
	lastApply time.Time

	now func() time.Time
}

func NewController(zone *time.Location, maxLanes int) *Controller {
	if zone == nil {
		zone = time.Local
	}
	if maxLanes <= 0 {
		maxLanes = layout.DefaultMaxLanes
	}
	return &Controller{zone: zone, maxLanes: maxLanes, now: time.Now}
}

func (c *Controller) Active() bool { return c.active }

func (c *Controller) Mode() Mode { return c.mode }

// EventID returns the id of the event under gesture.
func (c *Controller) EventID() string { return c.original.ID }

// Begin snapshots the gesture state. A second Begin while active is a
// conflict and is refused.
func (c *Controller) Begin(mode Mode, ev model.ResolvedEvent, others []model.ResolvedEvent, lanes map[string]int) error {
	if c.active {
		return ErrActive
	}

	c.active = true
	c.mode = mode
	c.original = ev

	c.others = make([]model.ResolvedEvent, 0, len(others))
	for _, other := range others {
		if other.ID == ev.ID {
			continue
		}
		c.others = append(c.others, other)
	}

	c.lanes = make(map[string]int, len(lanes))
	for id, lane := range lanes {
		c.lanes[id] = lane
	}

	c.current = nil
	c.pending = nil
	c.lastApply = time.Time{}
	return nil
}

// Update feeds a pointer target. Updates are throttled at Throttle
// with trailing-edge semantics: a target arriving inside the window is
// parked and the most recent one wins when the window reopens or at
// commit. Reports whether the target was applied now.
func (c *Controller) Update(t Target) bool {
	if !c.active {
		return false
	}

	copied := t
	c.pending = &copied

	now := c.now()
	if !c.lastApply.IsZero() && now.Sub(c.lastApply) < Throttle {
		return false
	}

	c.current = c.pending
	c.pending = nil
	c.lastApply = now
	return true
}

// Preview returns the event as it would be after committing at the
// last applied target, resolved for layout, plus a colliding flag.
// Colliding means no lane below the limit can host the preview against
// the snapshotted events; it never blocks a commit.
func (c *Controller) Preview() (model.ResolvedEvent, bool, bool) {
	if !c.active || c.current == nil {
		return model.ResolvedEvent{}, false, false
	}

	mutated := c.apply(c.original.Event, *c.current)
	resolved, err := layout.Resolve(mutated, c.zone)
	if err != nil {
		return model.ResolvedEvent{}, false, false
	}

	return resolved, c.collides(resolved), true
}

// Commit ends the gesture. The lookup resolves the live event by id;
// if it is gone the gesture aborts silently. Any parked target is
// applied first so the last pointer position wins.
func (c *Controller) Commit(lookup func(id string) (model.Event, bool)) (model.Event, bool) {
	if !c.active {
		return model.Event{}, false
	}

	if c.pending != nil {
		c.current = c.pending
		c.pending = nil
	}
	target := c.current
	id := c.original.ID
	mode := c.mode
	c.reset()

	if target == nil {
		return model.Event{}, false
	}

	live, ok := lookup(id)
	if !ok {
		return model.Event{}, false
	}

	// Mutate the live event, not the snapshot, so fields edited during
	// the gesture survive.
	mutated := c.applyWithMode(mode, live, *target)
	return mutated, true
}

// Cancel drops the gesture without touching anything.
func (c *Controller) Cancel() {
	c.reset()
}

func (c *Controller) reset() {
	c.active = false
	c.mode = ""
	c.original = model.ResolvedEvent{}
	c.others = nil
	c.lanes = nil
	c.current = nil
	c.pending = nil
	c.lastApply = time.Time{}
}

func (c *Controller) apply(ev model.Event, t Target) model.Event {
	return c.applyWithMode(c.mode, ev, t)
}

func (c *Controller) applyWithMode(mode Mode, ev model.Event, t Target) model.Event {
	switch mode {
	case ModeMove:
		return c.moveTo(ev, t)
	case ModeResizeStart:
		return c.resizeStart(ev, t)
	case ModeResizeEnd:
		return c.resizeEnd(ev, t)
	case ModeResizeTop:
		return c.resizeTop(ev, t)
	case ModeResizeBottom:
		return c.resizeBottom(ev, t)
	default:
		return ev
	}
}

// moveTo relocates the event. Duration is preserved exactly for timed
// events and as a day span for all-day events; the target kind decides
// conversions between the two natures.
func (c *Controller) moveTo(ev model.Event, t Target) model.Event {
	toAllDay := t.Kind == KindAllDay || (t.Kind == KindDay && ev.AllDay())

	if toAllDay {
		spanDays := 0
		if ev.AllDay() {
			spanDays = civilSpanDays(ev.Start, ev.End, c.zone)
		}
		ev.Start = formatDay(t.Day)
		ev.End = formatDay(t.Day.AddDate(0, 0, spanDays))
		ev.Time = ""
		ev.EndTime = ""
		ev.StartUTC = nil
		ev.EndUTC = nil
		ev.StartTimezone = ""
		ev.EndTimezone = ""
		return ev
	}

	hour, minute := t.Hour, t.Min
	if t.Kind == KindDay {
		if h, m, ok := parseClock(ev.Time); ok {
			hour, minute = h, m
		} else {
			hour, minute = 0, 0
		}
	}

	startLoc := locationOr(ev.StartTimezone, c.zone)
	endLoc := locationOr(ev.EndTimezone, startLoc)

	start := time.Date(t.Day.Year(), t.Day.Month(), t.Day.Day(), hour, minute, 0, 0, startLoc)
	duration := time.Hour
	if ev.StartUTC != nil && ev.EndUTC != nil && ev.EndUTC.After(*ev.StartUTC) {
		duration = ev.EndUTC.Sub(*ev.StartUTC)
	}
	end := start.Add(duration)

	return c.setTimedBounds(ev, start, end.In(endLoc), startLoc, endLoc)
}

func (c *Controller) resizeStart(ev model.Event, t Target) model.Event {
	if ev.AllDay() {
		ev.Start = formatDay(t.Day)
		if ev.End < ev.Start {
			ev.End = ev.Start
		}
		return ev
	}
	if ev.EndUTC == nil {
		return ev
	}

	startLoc := locationOr(ev.StartTimezone, c.zone)
	endLoc := locationOr(ev.EndTimezone, startLoc)
	oldStart := ev.StartUTC.In(startLoc)
	end := ev.EndUTC.In(endLoc)

	start := time.Date(t.Day.Year(), t.Day.Month(), t.Day.Day(), oldStart.Hour(), oldStart.Minute(), 0, 0, startLoc)
	if !start.Before(end) {
		end = time.Date(start.Year(), start.Month(), start.Day()+1, end.Hour(), end.Minute(), 0, 0, endLoc)
	}
	return c.setTimedBounds(ev, start, end, startLoc, endLoc)
}

func (c *Controller) resizeEnd(ev model.Event, t Target) model.Event {
	if ev.AllDay() {
		ev.End = formatDay(t.Day)
		if ev.Start > ev.End {
			ev.Start = ev.End
		}
		return ev
	}
	if ev.EndUTC == nil {
		return ev
	}

	startLoc := locationOr(ev.StartTimezone, c.zone)
	endLoc := locationOr(ev.EndTimezone, startLoc)
	start := ev.StartUTC.In(startLoc)
	oldEnd := ev.EndUTC.In(endLoc)

	end := time.Date(t.Day.Year(), t.Day.Month(), t.Day.Day(), oldEnd.Hour(), oldEnd.Minute(), 0, 0, endLoc)
	if !end.After(start) {
		end = time.Date(start.Year(), start.Month(), start.Day()+1, oldEnd.Hour(), oldEnd.Minute(), 0, 0, endLoc)
	}
	return c.setTimedBounds(ev, start, end, startLoc, endLoc)
}

func (c *Controller) resizeTop(ev model.Event, t Target) model.Event {
	if ev.AllDay() || ev.EndUTC == nil {
		return ev
	}

	startLoc := locationOr(ev.StartTimezone, c.zone)
	endLoc := locationOr(ev.EndTimezone, startLoc)
	end := ev.EndUTC.In(endLoc)

	start := time.Date(t.Day.Year(), t.Day.Month(), t.Day.Day(), t.Hour, t.Min, 0, 0, startLoc)
	if !start.Before(end) {
		end = start.Add(time.Hour).In(endLoc)
	}
	return c.setTimedBounds(ev, start, end, startLoc, endLoc)
}

func (c *Controller) resizeBottom(ev model.Event, t Target) model.Event {
	if ev.AllDay() || ev.EndUTC == nil {
		return ev
	}

	startLoc := locationOr(ev.StartTimezone, c.zone)
	endLoc := locationOr(ev.EndTimezone, startLoc)
	start := ev.StartUTC.In(startLoc)

	end := time.Date(t.Day.Year(), t.Day.Month(), t.Day.Day(), t.Hour, t.Min, 0, 0, endLoc)
	if !end.After(start) {
		end = start.Add(time.Hour).In(endLoc)
	}
	return c.setTimedBounds(ev, start, end, startLoc, endLoc)
}

func (c *Controller) setTimedBounds(ev model.Event, start, end time.Time, startLoc, endLoc *time.Location) model.Event {
	startUTC := start.UTC()
	endUTC := end.UTC()

	ev.Start = start.In(startLoc).Format("2006-01-02")
	ev.Time = start.In(startLoc).Format("15:04")
	ev.End = end.In(endLoc).Format("2006-01-02")
	ev.EndTime = end.In(endLoc).Format("15:04")
	ev.StartUTC = &startUTC
	ev.EndUTC = &endUTC
	ev.StartTimezone = startLoc.String()
	ev.EndTimezone = endLoc.String()
	return ev
}

// collides checks whether any lane below the limit can host the
// preview against the snapshotted events at their rendered lanes.
func (c *Controller) collides(preview model.ResolvedEvent) bool {
	first := layout.FirstDay(preview, c.zone)
	last := layout.VisualLastDay(preview, c.zone)

	for lane := 0; lane < c.maxLanes; lane++ {
		if c.laneFits(preview, lane, first, last) {
			return false
		}
	}
	return true
}

func (c *Controller) laneFits(preview model.ResolvedEvent, lane int, first, last time.Time) bool {
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		start, end := layout.DayInterval(preview, day, c.zone)
		for _, other := range c.others {
			otherLane, ok := c.lanes[other.ID]
			if !ok || otherLane != lane {
				continue
			}
			if day.Before(layout.FirstDay(other, c.zone)) || day.After(layout.VisualLastDay(other, c.zone)) {
				continue
			}
			if preview.IsAllDay && other.IsAllDay {
				return false
			}
			oStart, oEnd := layout.DayInterval(other, day, c.zone)
			lo := start
			if oStart > lo {
				lo = oStart
			}
			hi := end
			if oEnd < hi {
				hi = oEnd
			}
			if lo < hi && end > start && oEnd > oStart {
				return false
			}
		}
	}
	return true
}

func civilSpanDays(start, end string, zone *time.Location) int {
	s, err := time.ParseInLocation("2006-01-02", start, zone)
	if err != nil {
		return 0
	}
	e, err := time.ParseInLocation("2006-01-02", end, zone)
	if err != nil || e.Before(s) {
		return 0
	}
	days := 0
	for d := s; d.Before(e); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

func parseClock(value string) (int, int, bool) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, false
	}
	return t.Hour(), t.Minute(), true
}

func locationOr(name string, fallback *time.Location) *time.Location {
	if name == "" {
		return fallback
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallback
	}
	return loc
}

func formatDay(day time.Time) string {
	return day.Format("2006-01-02")
}
