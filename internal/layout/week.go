package layout

import (
	"sort"
	"time"

	"github.com/Joseda-hg/lazycal/internal/model"
)

// WeekPlan lays out a single displayed week: all-day events in a lane
// matrix across the 7 days, timed events as per-day column placements.
type WeekPlan struct {
	AllDaySegments []model.Segment
	HiddenByDay    [7]int
	LaneByEvent    map[string]int

	// Timed placements keyed by day index 0..6.
	Timed [7][]TimedPlacement
}

// TimedPlacement positions one timed event inside a day column of the
// week view. Column/Columns describe horizontal sharing between
// concurrently running events.
type TimedPlacement struct {
	EventID       string
	StartFraction float64
	EndFraction   float64
	Column        int
	Columns       int
	TrueStart     bool
	TrueEnd       bool
}

// PlanWeek lays out the week starting at weekStart (midnight, display
// zone). All-day events that overflow maxLanes are counted per day.
func PlanWeek(resolved []model.ResolvedEvent, weekStart time.Time, zone *time.Location, maxLanes int) WeekPlan {
	if zone == nil {
		zone = time.Local
	}
	if maxLanes <= 0 {
		maxLanes = DefaultMaxLanes
	}

	weekEnd := weekStart.AddDate(0, 0, 6)

	ordered := make([]model.ResolvedEvent, len(resolved))
	copy(ordered, resolved)
	sortForPlacement(ordered)

	plan := WeekPlan{LaneByEvent: make(map[string]int)}

	// All-day lane matrix: occupied[lane][dayIdx].
	occupied := make([][7]bool, maxLanes)

	for _, ev := range ordered {
		if ev.ZeroDuration || !ev.IsAllDay {
			continue
		}

		first := FirstDay(ev, zone)
		last := VisualLastDay(ev, zone)
		if last.Before(weekStart) || first.After(weekEnd) {
			continue
		}

		fromIdx := dayIndex(weekStart, first)
		if fromIdx < 0 {
			fromIdx = 0
		}
		toIdx := dayIndex(weekStart, last)
		if toIdx > 6 {
			toIdx = 6
		}

		lane := -1
		for l := 0; l < maxLanes; l++ {
			free := true
			for i := fromIdx; i <= toIdx; i++ {
				if occupied[l][i] {
					free = false
					break
				}
			}
			if free {
				lane = l
				break
			}
		}

		if lane < 0 {
			for i := fromIdx; i <= toIdx; i++ {
				plan.HiddenByDay[i]++
			}
			continue
		}

		for i := fromIdx; i <= toIdx; i++ {
			occupied[lane][i] = true
		}
		plan.AllDaySegments = append(plan.AllDaySegments, model.Segment{
			EventID:   ev.ID,
			StartDay:  weekStart.AddDate(0, 0, fromIdx),
			Days:      toIdx - fromIdx + 1,
			Lane:      lane,
			TrueStart: !first.Before(weekStart),
			TrueEnd:   !last.After(weekEnd),
		})
		plan.LaneByEvent[ev.ID] = lane
	}

	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		plan.Timed[i] = planTimedDay(ordered, day, zone)
	}

	return plan
}

// planTimedDay assigns columns for the timed events touching one day
// with a sweep over sorted starts, reusing the first column whose
// previous occupant has ended.
func planTimedDay(resolved []model.ResolvedEvent, day time.Time, zone *time.Location) []TimedPlacement {
	type entry struct {
		ev         model.ResolvedEvent
		start, end float64
	}

	entries := make([]entry, 0)
	for _, ev := range resolved {
		if ev.IsAllDay || ev.ZeroDuration {
			continue
		}
		first := FirstDay(ev, zone)
		last := VisualLastDay(ev, zone)
		if day.Before(first) || day.After(last) {
			continue
		}
		start, end := DayInterval(ev, day, zone)
		if end <= start {
			continue
		}
		entries = append(entries, entry{ev: ev, start: start, end: end})
	}
	if len(entries) == 0 {
		return nil
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].start != entries[j].start {
			return entries[i].start < entries[j].start
		}
		if entries[i].end != entries[j].end {
			return entries[i].end > entries[j].end
		}
		return entries[i].ev.ID < entries[j].ev.ID
	})

	placements := make([]TimedPlacement, len(entries))
	var columnEnds []float64
	for i, e := range entries {
		column := -1
		for c, colEnd := range columnEnds {
			if colEnd <= e.start {
				column = c
				break
			}
		}
		if column < 0 {
			column = len(columnEnds)
			columnEnds = append(columnEnds, 0)
		}
		columnEnds[column] = e.end

		first := FirstDay(e.ev, zone)
		last := VisualLastDay(e.ev, zone)
		placements[i] = TimedPlacement{
			EventID:       e.ev.ID,
			StartFraction: e.start,
			EndFraction:   e.end,
			Column:        column,
			TrueStart:     day.Equal(first),
			TrueEnd:       day.Equal(last),
		}
	}

	// Width sharing: each placement spans 1/N where N is the widest
	// concurrent overlap it participates in.
	for i := range placements {
		count := 1
		for j := range placements {
			if i == j {
				continue
			}
			if overlaps(placements[i], placements[j]) {
				count++
			}
		}
		placements[i].Columns = maxInt(count, placements[i].Column+1)
	}

	return placements
}

func overlaps(a, b TimedPlacement) bool {
	lo := a.StartFraction
	if b.StartFraction > lo {
		lo = b.StartFraction
	}
	hi := a.EndFraction
	if b.EndFraction < hi {
		hi = b.EndFraction
	}
	return lo < hi
}

func dayIndex(weekStart, day time.Time) int {
	if day.Before(weekStart) {
		return -1
	}
	return daysBetween(weekStart, day)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
