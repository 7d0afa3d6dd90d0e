package tui

import (
	"context"
	"testing"
	"time"

	"github.com/Joseda-hg/lazycal/internal/db"
	"github.com/Joseda-hg/lazycal/internal/gesture"
	"github.com/Joseda-hg/lazycal/internal/layout"
)

func TestGeometryMapsMonthCells(t *testing.T) {
	start := time.Date(2024, 2, 26, 0, 0, 0, 0, time.UTC)
	geom := calendarGeometry{
		x0: 1, y0: 2, cellW: 10, cellH: 4,
		cols: 7, rows: 6,
		start: start,
		mode:  modeMonth,
	}

	day, ok := geom.dayAt(1, 2)
	if !ok {
		t.Fatalf("expected top-left cell to map")
	}
	if !day.Equal(start) {
		t.Fatalf("expected %v, got %v", start, day)
	}

	// Second row, third column.
	day, ok = geom.dayAt(1+2*10, 2+4)
	if !ok {
		t.Fatalf("expected cell to map")
	}
	if want := start.AddDate(0, 0, 9); !day.Equal(want) {
		t.Fatalf("expected %v, got %v", want, day)
	}

	if _, ok := geom.dayAt(1+7*10, 2); ok {
		t.Fatalf("expected click past last column to miss")
	}
	if _, ok := geom.dayAt(0, 1); ok {
		t.Fatalf("expected click above grid to miss")
	}
}

func TestGeometryHourAtWeekView(t *testing.T) {
	geom := calendarGeometry{
		x0: 1, y0: 2, cellW: 10, cellH: 28,
		cols: 7, rows: 1,
		start:      time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC),
		mode:       modeWeek,
		allDayRows: 4,
		timedRows:  24,
	}

	if _, ok := geom.hourAt(2); ok {
		t.Fatalf("expected all-day band to yield no hour")
	}
	hour, ok := geom.hourAt(2 + 4)
	if !ok || hour != 0 {
		t.Fatalf("expected first timed line to be hour 0, got %d ok=%v", hour, ok)
	}
	hour, ok = geom.hourAt(2 + 4 + 9)
	if !ok || hour != 9 {
		t.Fatalf("expected hour 9, got %d ok=%v", hour, ok)
	}
}

func TestHitSegmentPicksResizeOnEdges(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	created, err := store.CreateEvent(context.Background(), db.EventInput{
		Name:  "Offsite",
		Start: "2024-03-01",
		End:   "2024-03-03",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	ui := newTestUI(store)
	ui.anchor = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := ui.loadEvents(); err != nil {
		t.Fatalf("load events: %v", err)
	}

	gridStart := layout.MonthGrid(ui.anchor, time.UTC, ui.maxLanes).Start
	ui.geom = calendarGeometry{
		x0: 1, y0: 2, cellW: 10, cellH: 5,
		cols: 7, rows: 6,
		start: gridStart,
		mode:  modeMonth,
	}

	// 2024-03-01 is the Friday of the first grid row.
	firstDayX := 1 + 4*10
	laneY := 2 + 1

	mode, ev, ok := ui.hitSegment(firstDayX, laneY, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if !ok || ev.ID != created.ID {
		t.Fatalf("expected to hit event at leading edge")
	}
	if mode != gesture.ModeResizeStart {
		t.Fatalf("expected resize-start on first column, got %v", mode)
	}

	mode, _, ok = ui.hitSegment(firstDayX+5, laneY, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	if !ok || mode != gesture.ModeMove {
		t.Fatalf("expected move in cell body, got %v ok=%v", mode, ok)
	}

	// Last covered day, trailing column.
	lastDayX := 1 + 6*10 + 9
	mode, _, ok = ui.hitSegment(lastDayX, laneY, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC))
	if !ok || mode != gesture.ModeResizeEnd {
		t.Fatalf("expected resize-end on trailing column, got %v ok=%v", mode, ok)
	}

	if _, _, ok := ui.hitSegment(firstDayX, 2, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)); ok {
		t.Fatalf("expected header line to miss segments")
	}
}

func TestCommitDragPersistsMove(t *testing.T) {
	store, cleanup := newTestStore(t)
	defer cleanup()

	created, err := store.CreateEvent(context.Background(), db.EventInput{
		Name:  "Offsite",
		Start: "2024-03-01",
		End:   "2024-03-03",
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}

	ui := newTestUI(store)
	ui.anchor = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if err := ui.loadEvents(); err != nil {
		t.Fatalf("load events: %v", err)
	}

	if err := ui.drag.Begin(gesture.ModeMove, ui.resolvedByID[created.ID], ui.resolved, ui.plan.LaneByEvent); err != nil {
		t.Fatalf("begin drag: %v", err)
	}
	ui.drag.Update(gesture.Target{Kind: gesture.KindDay, Day: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)})

	if err := ui.commitDrag(nil, nil); err != nil {
		t.Fatalf("commit drag: %v", err)
	}
	if ui.drag.Active() {
		t.Fatalf("expected drag to be idle after commit")
	}

	moved, err := store.GetEvent(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("get event: %v", err)
	}
	if moved.Start != "2024-03-10" || moved.End != "2024-03-12" {
		t.Fatalf("expected 2024-03-10..2024-03-12, got %s..%s", moved.Start, moved.End)
	}
}

func TestParseFormFieldsTimedDefaults(t *testing.T) {
	fields := buildFormFields(nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	fields[fieldName].Value = "Call"
	fields[fieldAllDay].Value = "no"
	fields[fieldStartTime].Value = "09:00"

	input, err := parseFormFields(fields, time.UTC)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if input.StartUTC == nil || input.EndUTC == nil {
		t.Fatalf("expected timed instants")
	}
	if got := input.EndUTC.Sub(*input.StartUTC); got != time.Hour {
		t.Fatalf("expected 1h default duration, got %v", got)
	}
	if input.EndTime != "10:00" {
		t.Fatalf("expected default end time 10:00, got %s", input.EndTime)
	}
}

func TestParseFormFieldsRejectsBadRule(t *testing.T) {
	fields := buildFormFields(nil, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	fields[fieldName].Value = "Repeats"
	fields[fieldRRule].Value = "FREQ=NOTAFREQ"

	if _, err := parseFormFields(fields, time.UTC); err == nil {
		t.Fatalf("expected error for invalid repeat rule")
	}
}

func TestParseFormFieldsClampsAllDayEnd(t *testing.T) {
	fields := buildFormFields(nil, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC))
	fields[fieldName].Value = "Backwards"
	fields[fieldEndDate].Value = "2024-03-01"

	input, err := parseFormFields(fields, time.UTC)
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if input.End != "2024-03-10" {
		t.Fatalf("expected end clamped to start, got %s", input.End)
	}
}

func newTestUI(store *db.Store) *UI {
	return &UI{
		store:    store,
		zone:     time.UTC,
		maxLanes: 3,
		viewMode: modeMonth,
		drag:     gesture.NewController(time.UTC, 3),
	}
}

func newTestStore(t *testing.T) (*db.Store, func()) {
	t.Helper()
	dbConn, err := db.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	return db.NewStore(dbConn), func() {
		_ = dbConn.Close()
	}
}
