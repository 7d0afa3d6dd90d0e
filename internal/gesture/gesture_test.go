package gesture

import (
	"errors"
	"testing"
	"time"

	"github.com/Joseda-hg/lazycal/internal/layout"
	"github.com/Joseda-hg/lazycal/internal/model"
)

func TestBeginRefusedWhileActive(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := c.Begin(ModeMove, ev, nil, nil); !errors.Is(err, ErrActive) {
		t.Fatalf("expected ErrActive, got %v", err)
	}
}

func TestUpdateThrottlesTrailingEdge(t *testing.T) {
	c := NewController(time.UTC, 3)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")
	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if !c.Update(dayTarget(2024, 3, 5)) {
		t.Fatalf("expected first update to apply immediately")
	}

	clock = clock.Add(Throttle / 2)
	if c.Update(dayTarget(2024, 3, 6)) {
		t.Fatalf("expected update inside the window to be parked")
	}
	if c.Update(dayTarget(2024, 3, 7)) {
		t.Fatalf("expected second parked update to stay parked")
	}

	// The preview still shows the last applied target.
	preview, _, ok := c.Preview()
	if !ok || preview.Start != "2024-03-05" {
		t.Fatalf("preview start = %q ok=%v, want applied target", preview.Start, ok)
	}

	// Commit flushes the parked target, so the last position wins.
	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-03-07" {
		t.Fatalf("committed start = %q, want pending 2024-03-07", moved.Start)
	}
}

func TestUpdateAppliesAfterWindowReopens(t *testing.T) {
	c := NewController(time.UTC, 3)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { return clock }

	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")
	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 5))

	clock = clock.Add(Throttle)
	if !c.Update(dayTarget(2024, 3, 9)) {
		t.Fatalf("expected update after the window to apply")
	}
	preview, _, ok := c.Preview()
	if !ok || preview.Start != "2024-03-09" {
		t.Fatalf("preview start = %q ok=%v", preview.Start, ok)
	}
}

func TestMovePreservesTimedDuration(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveTimed(t, "a",
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC))

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 10))

	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-03-10" || moved.Time != "09:00" {
		t.Fatalf("moved start = %s %s, want Mar 10 09:00", moved.Start, moved.Time)
	}
	if moved.EndTime != "10:30" {
		t.Fatalf("moved end time = %s, want 10:30", moved.EndTime)
	}
	if got := moved.EndUTC.Sub(*moved.StartUTC); got != 90*time.Minute {
		t.Fatalf("duration = %v, want 90m", got)
	}
}

func TestMovePreservesAllDaySpan(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-03")

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 10))

	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-03-10" || moved.End != "2024-03-12" {
		t.Fatalf("moved span = %s..%s, want Mar 10..12", moved.Start, moved.End)
	}
	if !moved.AllDay() {
		t.Fatalf("expected event to stay all-day")
	}
}

func TestMoveToAllDayStripDropsTime(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveTimed(t, "a",
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(Target{Kind: KindAllDay, Day: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)})

	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if !moved.AllDay() {
		t.Fatalf("expected conversion to all-day")
	}
	if moved.Start != "2024-03-06" || moved.End != "2024-03-06" {
		t.Fatalf("converted span = %s..%s, want single day Mar 6", moved.Start, moved.End)
	}
	if moved.Time != "" || moved.EndTime != "" {
		t.Fatalf("expected clock times cleared, got %q/%q", moved.Time, moved.EndTime)
	}
}

func TestMoveToHourSlotMakesTimed(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(Target{Kind: KindHour, Day: time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC), Hour: 14, Min: 0})

	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.AllDay() {
		t.Fatalf("expected conversion to timed")
	}
	if moved.Time != "14:00" || moved.EndTime != "15:00" {
		t.Fatalf("converted clocks = %s..%s, want 14:00..15:00", moved.Time, moved.EndTime)
	}
}

func TestResizeStartKeepsClockAndPushesEnd(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveTimed(t, "a",
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

	if err := c.Begin(ModeResizeStart, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 2))
	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-03-02" || moved.Time != "09:00" {
		t.Fatalf("resized start = %s %s, want Mar 2 09:00", moved.Start, moved.Time)
	}
	if moved.End != "2024-03-04" {
		t.Fatalf("end = %s, want unchanged Mar 4", moved.End)
	}

	// Dragging the start past the end pushes the end a day out.
	if err := c.Begin(ModeResizeStart, ev, nil, nil); err != nil {
		t.Fatalf("begin again: %v", err)
	}
	c.Update(dayTarget(2024, 3, 5))
	moved, ok = c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-03-05" || moved.End != "2024-03-06" {
		t.Fatalf("pushed span = %s..%s, want Mar 5..6", moved.Start, moved.End)
	}
}

func TestResizeEndKeepsClockAndPushesForward(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveTimed(t, "a",
		time.Date(2024, 3, 4, 22, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 5, 1, 0, 0, 0, time.UTC))

	if err := c.Begin(ModeResizeEnd, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 7))
	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.End != "2024-03-07" || moved.EndTime != "01:00" {
		t.Fatalf("resized end = %s %s, want Mar 7 01:00", moved.End, moved.EndTime)
	}

	// Dragging the end onto the start day puts it before the start, so
	// it lands on the next day instead.
	if err := c.Begin(ModeResizeEnd, ev, nil, nil); err != nil {
		t.Fatalf("begin again: %v", err)
	}
	c.Update(dayTarget(2024, 3, 4))
	moved, ok = c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.End != "2024-03-05" || moved.EndTime != "01:00" {
		t.Fatalf("pushed end = %s %s, want Mar 5 01:00", moved.End, moved.EndTime)
	}
}

func TestResizeAllDayClampsOppositeEdge(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-03")

	if err := c.Begin(ModeResizeStart, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 5))
	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-03-05" || moved.End != "2024-03-05" {
		t.Fatalf("span = %s..%s, want end clamped to Mar 5", moved.Start, moved.End)
	}

	if err := c.Begin(ModeResizeEnd, ev, nil, nil); err != nil {
		t.Fatalf("begin again: %v", err)
	}
	c.Update(dayTarget(2024, 2, 27))
	moved, ok = c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Start != "2024-02-27" || moved.End != "2024-02-27" {
		t.Fatalf("span = %s..%s, want start clamped to Feb 27", moved.Start, moved.End)
	}
}

func TestResizeTopFloorsAtOneHour(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveTimed(t, "a",
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

	if err := c.Begin(ModeResizeTop, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(Target{Kind: KindHour, Day: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Hour: 10, Min: 30})
	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Time != "10:30" || moved.EndTime != "11:30" {
		t.Fatalf("clocks = %s..%s, want 10:30..11:30", moved.Time, moved.EndTime)
	}
}

func TestResizeBottomFloorsAtOneHour(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveTimed(t, "a",
		time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC),
		time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC))

	if err := c.Begin(ModeResizeBottom, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(Target{Kind: KindHour, Day: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Hour: 9, Min: 0})
	moved, ok := c.Commit(lookupFor(ev.Event))
	if !ok {
		t.Fatalf("expected commit to apply")
	}
	if moved.Time != "09:00" || moved.EndTime != "10:00" {
		t.Fatalf("clocks = %s..%s, want 09:00..10:00", moved.Time, moved.EndTime)
	}
}

func TestPreviewReportsCollision(t *testing.T) {
	c := NewController(time.UTC, 1)
	ev := resolveAllDay(t, "dragged", "2024-03-01", "2024-03-01")
	other := resolveAllDay(t, "fixed", "2024-03-06", "2024-03-06")

	if err := c.Begin(ModeMove, ev, []model.ResolvedEvent{other}, map[string]int{"fixed": 0}); err != nil {
		t.Fatalf("begin: %v", err)
	}

	if _, _, ok := c.Preview(); ok {
		t.Fatalf("expected no preview before any target")
	}

	c.Update(dayTarget(2024, 3, 6))
	preview, colliding, ok := c.Preview()
	if !ok {
		t.Fatalf("expected preview after target")
	}
	if !colliding {
		t.Fatalf("expected collision with the only lane taken")
	}
	if preview.Start != "2024-03-06" {
		t.Fatalf("preview start = %q", preview.Start)
	}

	// Collisions never block the commit.
	if _, ok := c.Commit(lookupFor(ev.Event)); !ok {
		t.Fatalf("expected commit despite collision")
	}
}

func TestPreviewClearOfCollisions(t *testing.T) {
	c := NewController(time.UTC, 1)
	ev := resolveAllDay(t, "dragged", "2024-03-01", "2024-03-01")
	other := resolveAllDay(t, "fixed", "2024-03-06", "2024-03-06")

	if err := c.Begin(ModeMove, ev, []model.ResolvedEvent{other}, map[string]int{"fixed": 0}); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 8))
	_, colliding, ok := c.Preview()
	if !ok || colliding {
		t.Fatalf("expected collision-free preview, colliding=%v ok=%v", colliding, ok)
	}
}

func TestCommitAbortsWhenEventGone(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 5))

	_, ok := c.Commit(func(string) (model.Event, bool) { return model.Event{}, false })
	if ok {
		t.Fatalf("expected silent abort when the event is gone")
	}
	if c.Active() {
		t.Fatalf("expected controller idle after abort")
	}
}

func TestCommitWithoutTargetAborts(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if _, ok := c.Commit(lookupFor(ev.Event)); ok {
		t.Fatalf("expected no commit without a target")
	}
}

func TestCancelResetsController(t *testing.T) {
	c := NewController(time.UTC, 3)
	ev := resolveAllDay(t, "a", "2024-03-01", "2024-03-01")

	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	c.Update(dayTarget(2024, 3, 5))
	c.Cancel()

	if c.Active() {
		t.Fatalf("expected controller idle after cancel")
	}
	if c.Update(dayTarget(2024, 3, 6)) {
		t.Fatalf("expected updates ignored after cancel")
	}
	if err := c.Begin(ModeMove, ev, nil, nil); err != nil {
		t.Fatalf("expected begin to work after cancel: %v", err)
	}
}

func dayTarget(year int, month time.Month, day int) Target {
	return Target{Kind: KindDay, Day: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func lookupFor(ev model.Event) func(string) (model.Event, bool) {
	return func(id string) (model.Event, bool) {
		if id == ev.ID {
			return ev, true
		}
		return model.Event{}, false
	}
}

func resolveAllDay(t *testing.T, id, start, end string) model.ResolvedEvent {
	t.Helper()
	r, err := layout.Resolve(model.Event{ID: id, Name: id, Start: start, End: end}, time.UTC)
	if err != nil {
		t.Fatalf("resolve all-day: %v", err)
	}
	return r
}

func resolveTimed(t *testing.T, id string, start, end time.Time) model.ResolvedEvent {
	t.Helper()
	s, e := start, end
	r, err := layout.Resolve(model.Event{
		ID:       id,
		Name:     id,
		Start:    start.Format("2006-01-02"),
		End:      end.Format("2006-01-02"),
		Time:     start.Format("15:04"),
		EndTime:  end.Format("15:04"),
		StartUTC: &s,
		EndUTC:   &e,
	}, time.UTC)
	if err != nil {
		t.Fatalf("resolve timed: %v", err)
	}
	return r
}
