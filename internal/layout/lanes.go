package layout

import (
	"sort"
	"time"

	"github.com/Joseda-hg/lazycal/internal/model"
)

// DefaultMaxLanes is the number of stacked event lanes per day cell.
const DefaultMaxLanes = 3

// GridOptions describes a rectangular day grid (month or year view).
type GridOptions struct {
	Start time.Time // midnight of the first cell, display zone
	End   time.Time // midnight after the last cell (exclusive)

	MaxLanes int
	Zone     *time.Location

	// RowEnd maps a day to the last day of its display row. Segments
	// never extend past the row they start in.
	RowEnd func(day time.Time) time.Time
}

// Plan is the deterministic output of planning a grid: drawable
// segments plus per-day hidden event counts for the "+N" marker.
type Plan struct {
	Segments    []model.Segment
	HiddenByDay map[string]int

	// LaneByEvent records the lane of each event's first segment, used
	// by the gesture controller's collision preview.
	LaneByEvent map[string]int
}

type laneSlot struct {
	eventID  string
	start    float64
	end      float64
	isAllDay bool
}

// MonthGrid builds options for a 6-week month grid starting on Monday.
func MonthGrid(anchor time.Time, zone *time.Location, maxLanes int) GridOptions {
	firstOfMonth := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, zone)
	start := startOfWeek(firstOfMonth)
	end := start.AddDate(0, 0, 7*6)
	return GridOptions{
		Start:    start,
		End:      end,
		MaxLanes: maxLanes,
		Zone:     zone,
		RowEnd: func(day time.Time) time.Time {
			row := int(day.Sub(start).Hours() / 24 / 7)
			return start.AddDate(0, 0, row*7+6)
		},
	}
}

// YearGrid builds options for a whole-year grid where each month is a
// row, so segments break at month boundaries.
func YearGrid(year int, zone *time.Location, maxLanes int) GridOptions {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, zone)
	end := time.Date(year+1, time.January, 1, 0, 0, 0, 0, zone)
	return GridOptions{
		Start:    start,
		End:      end,
		MaxLanes: maxLanes,
		Zone:     zone,
		RowEnd: func(day time.Time) time.Time {
			firstOfNext := time.Date(day.Year(), day.Month()+1, 1, 0, 0, 0, 0, zone)
			return prevDay(firstOfNext)
		},
	}
}

// PlanGrid assigns lanes and segments for all resolved events that
// touch the grid. Events are processed in a fixed order so the same
// inputs always produce the same plan.
func PlanGrid(resolved []model.ResolvedEvent, opts GridOptions) Plan {
	zone := opts.Zone
	if zone == nil {
		zone = time.Local
	}
	maxLanes := opts.MaxLanes
	if maxLanes <= 0 {
		maxLanes = DefaultMaxLanes
	}

	ordered := make([]model.ResolvedEvent, len(resolved))
	copy(ordered, resolved)
	sortForPlacement(ordered)

	plan := Plan{
		HiddenByDay: make(map[string]int),
		LaneByEvent: make(map[string]int),
	}
	occupied := make(map[string][][]laneSlot)

	lastCell := prevDay(opts.End)

	for _, ev := range ordered {
		if ev.ZeroDuration {
			continue
		}

		eventFirst := FirstDay(ev, zone)
		eventLast := VisualLastDay(ev, zone)

		day := eventFirst
		if day.Before(opts.Start) {
			day = opts.Start
		}
		visibleLast := eventLast
		if visibleLast.After(lastCell) {
			visibleLast = lastCell
		}

		for !day.After(visibleLast) {
			lane := findFreeLane(occupied, ev, day, zone, maxLanes)
			if lane < 0 {
				plan.HiddenByDay[DayKey(day)]++
				day = nextDay(day)
				continue
			}

			rowEnd := visibleLast
			if opts.RowEnd != nil {
				if re := opts.RowEnd(day); re.Before(rowEnd) {
					rowEnd = re
				}
			}

			segEnd := day
			for next := nextDay(day); !next.After(rowEnd); next = nextDay(next) {
				if !laneFree(occupied, ev, next, lane, zone) {
					break
				}
				segEnd = next
			}

			for d := day; !d.After(segEnd); d = nextDay(d) {
				occupy(occupied, ev, d, lane, zone)
			}

			seg := model.Segment{
				EventID:   ev.ID,
				StartDay:  day,
				Days:      daysBetween(day, segEnd) + 1,
				Lane:      lane,
				TrueStart: day.Equal(eventFirst),
				TrueEnd:   segEnd.Equal(eventLast),
			}
			plan.Segments = append(plan.Segments, seg)
			if _, ok := plan.LaneByEvent[ev.ID]; !ok {
				plan.LaneByEvent[ev.ID] = lane
			}

			day = nextDay(segEnd)
		}
	}

	return plan
}

// sortForPlacement orders events for lane assignment: earlier starts
// first, all-day before timed at equal start, longer events first.
func sortForPlacement(events []model.ResolvedEvent) {
	sort.SliceStable(events, func(i, j int) bool {
		a, b := events[i], events[j]
		if !a.StartInstant.Equal(b.StartInstant) {
			return a.StartInstant.Before(b.StartInstant)
		}
		if a.IsAllDay != b.IsAllDay {
			return a.IsAllDay
		}
		da := a.EndInstant.Sub(a.StartInstant)
		db := b.EndInstant.Sub(b.StartInstant)
		if da != db {
			return da > db
		}
		return a.ID < b.ID
	})
}

func findFreeLane(occupied map[string][][]laneSlot, ev model.ResolvedEvent, day time.Time, zone *time.Location, maxLanes int) int {
	for lane := 0; lane < maxLanes; lane++ {
		if laneFree(occupied, ev, day, lane, zone) {
			return lane
		}
	}
	return -1
}

func laneFree(occupied map[string][][]laneSlot, ev model.ResolvedEvent, day time.Time, lane int, zone *time.Location) bool {
	lanes := occupied[DayKey(day)]
	if lane >= len(lanes) {
		return true
	}
	start, end := DayInterval(ev, day, zone)
	for _, slot := range lanes[lane] {
		if slotsConflict(start, end, ev.IsAllDay, slot) {
			return false
		}
	}
	return true
}

// slotsConflict applies the fractional overlap rule: intervals collide
// when max(starts) < min(ends) and both have positive duration.
// All-day events additionally never share a lane slot on the same day.
func slotsConflict(start, end float64, isAllDay bool, slot laneSlot) bool {
	if isAllDay && slot.isAllDay {
		return true
	}
	lo := start
	if slot.start > lo {
		lo = slot.start
	}
	hi := end
	if slot.end < hi {
		hi = slot.end
	}
	return lo < hi && end > start && slot.end > slot.start
}

func occupy(occupied map[string][][]laneSlot, ev model.ResolvedEvent, day time.Time, lane int, zone *time.Location) {
	key := DayKey(day)
	lanes := occupied[key]
	for len(lanes) <= lane {
		lanes = append(lanes, nil)
	}
	start, end := DayInterval(ev, day, zone)
	lanes[lane] = append(lanes[lane], laneSlot{eventID: ev.ID, start: start, end: end, isAllDay: ev.IsAllDay})
	occupied[key] = lanes
}

// DayKey formats a day as its yyyy-mm-dd map key.
func DayKey(day time.Time) string {
	return day.Format("2006-01-02")
}

func daysBetween(a, b time.Time) int {
	days := 0
	for d := a; d.Before(b); d = nextDay(d) {
		days++
	}
	return days
}

func startOfWeek(day time.Time) time.Time {
	// Monday-based weeks.
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
