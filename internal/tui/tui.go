package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Joseda-hg/lazycal/internal/config"
	"github.com/Joseda-hg/lazycal/internal/db"
	"github.com/Joseda-hg/lazycal/internal/gesture"
	"github.com/Joseda-hg/lazycal/internal/ics"
	"github.com/Joseda-hg/lazycal/internal/layout"
	"github.com/Joseda-hg/lazycal/internal/model"
	goerrors "github.com/go-errors/errors"
	"github.com/jesseduffield/gocui"
)

const (
	viewHeader   = "header"
	viewFooter   = "footer"
	viewCalendar = "calendar"
	viewDayList  = "dayList"
	viewForm     = "form"
	viewHelp     = "help"
	viewPrompt   = "prompt"
)

const (
	modeMonth = "month"
	modeWeek  = "week"
	modeYear  = "year"
)

const (
	promptImportMerge = iota
	promptImportReplace
	promptExport
)

type UI struct {
	store *db.Store
	gui   *gocui.Gui

	zone     *time.Location
	maxLanes int

	viewMode    string
	anchor      time.Time
	selectedDay time.Time

	events       []model.Event
	resolved     []model.ResolvedEvent
	resolvedByID map[string]model.ResolvedEvent
	plan         layout.Plan
	weekPlan     layout.WeekPlan
	holidays     map[string][]model.Holiday

	drag *gesture.Controller
	geom calendarGeometry

	dayListActive    bool
	dayEvents        []model.Event
	selectedDayEvent int

	form         *formState
	formEditor   *formEditor
	helpActive   bool
	promptActive bool
	promptKind   int
	status       string
}

type formState struct {
	eventID string
	fields  []formField
	index   int
}

type formEditor struct {
	ui *UI
}

func Run(store *db.Store, cfg config.Config) error {
	gui, err := gocui.NewGui(gocui.NewGuiOpts{OutputMode: gocui.OutputNormal})
	if err != nil {
		return err
	}
	defer gui.Close()

	zone := cfg.Location()
	now := time.Now().In(zone)
	ui := &UI{
		store:       store,
		gui:         gui,
		zone:        zone,
		maxLanes:    cfg.MaxLanes,
		viewMode:    modeMonth,
		anchor:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, zone),
		selectedDay: time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, zone),
		drag:        gesture.NewController(zone, cfg.MaxLanes),
	}
	gui.Mouse = true
	ui.formEditor = &formEditor{ui: ui}

	gui.SetManagerFunc(ui.layout)
	if err := ui.bindKeys(gui); err != nil {
		return err
	}
	if err := ui.loadEvents(); err != nil {
		return err
	}

	if err := gui.MainLoop(); err != nil && err != gocui.ErrQuit {
		return err
	}

	return nil
}

func (u *UI) bindKeys(gui *gocui.Gui) error {
	if err := gui.SetKeybinding("", gocui.KeyCtrlC, gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'q', gocui.ModNone, u.quit); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'r', gocui.ModNone, u.reload); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", '?', gocui.ModNone, u.toggleHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'm', gocui.ModNone, u.switchToMonth); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'w', gocui.ModNone, u.switchToWeek); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'y', gocui.ModNone, u.switchToYear); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 't', gocui.ModNone, u.goToday); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyArrowLeft, gocui.ModNone, u.prevPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'h', gocui.ModNone, u.prevPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyArrowRight, gocui.ModNone, u.nextPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'l', gocui.ModNone, u.nextPeriod); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'a', gocui.ModNone, u.addEvent); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'o', gocui.ModNone, u.openDayList); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'i', gocui.ModNone, u.startImportMerge); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'I', gocui.ModNone, u.startImportReplace); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", 'x', gocui.ModNone, u.startExport); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyEnter, gocui.ModNone, u.commitDrag); err != nil {
		return err
	}
	if err := gui.SetKeybinding("", gocui.KeyEsc, gocui.ModNone, u.cancelDrag); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, gocui.KeyArrowDown, gocui.ModNone, u.dayListDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, 'j', gocui.ModNone, u.dayListDown); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, gocui.KeyArrowUp, gocui.ModNone, u.dayListUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, 'k', gocui.ModNone, u.dayListUp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, 'e', gocui.ModNone, u.editDayEvent); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, 'd', gocui.ModNone, u.deleteDayEvent); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewDayList, gocui.KeyEsc, gocui.ModNone, u.closeDayList); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEnter, gocui.ModNone, u.submitFormNow); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyCtrlJ, gocui.ModNone, u.submitFormNow); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyTab, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyBacktab, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowDown, gocui.ModNone, u.nextFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyArrowUp, gocui.ModNone, u.prevFormField); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewForm, gocui.KeyEsc, gocui.ModNone, u.cancelForm); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, gocui.KeyEsc, gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, 'q', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewHelp, '?', gocui.ModNone, u.closeHelp); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEnter, gocui.ModNone, u.submitPrompt); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewPrompt, gocui.KeyEsc, gocui.ModNone, u.cancelPrompt); err != nil {
		return err
	}
	if err := gui.SetViewClickBinding(&gocui.ViewMouseBinding{ViewName: viewCalendar, Key: gocui.MouseLeft, Handler: func(opts gocui.ViewMouseBindingOpts) error {
		return u.onCalendarClick(gui, opts)
	}}); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewCalendar, gocui.MouseWheelUp, gocui.ModNone, u.wheelPrev); err != nil {
		return err
	}
	if err := gui.SetKeybinding(viewCalendar, gocui.MouseWheelDown, gocui.ModNone, u.wheelNext); err != nil {
		return err
	}
	return nil
}

func (u *UI) layout(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	if maxX <= 0 || maxY <= 0 {
		return nil
	}

	headerView, err := gui.SetView(viewHeader, 0, 0, maxX-1, 0, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	headerView.Frame = false
	headerView.Wrap = true
	headerView.FgColor = gocui.ColorDefault
	u.renderHeader(headerView)

	footerY1 := maxY - 2
	if footerY1 < 1 {
		footerY1 = 1
	}
	footerY0 := footerY1 - 2
	if footerY0 < 1 {
		footerY0 = 1
	}
	footerView, err := gui.SetView(viewFooter, 0, footerY0, maxX-1, footerY1, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	footerView.Frame = false
	footerView.Wrap = true
	footerView.FgColor = gocui.ColorDefault | gocui.AttrDim
	footerView.BgColor = gocui.ColorDefault
	u.renderFooter(footerView)

	bodyTop := 1
	bodyBottom := footerY0 - 1
	if bodyBottom < bodyTop {
		return nil
	}

	calendarView, err := gui.SetView(viewCalendar, 0, bodyTop, maxX-1, bodyBottom, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	applyViewStyle(calendarView, !u.inputActive())
	calendarView.Title = u.calendarTitle()
	u.geom = u.computeGeometry(calendarView)
	u.renderCalendar(calendarView)

	_, _ = gui.SetViewOnTop(viewHeader)
	_, _ = gui.SetViewOnTop(viewFooter)

	if u.dayListActive {
		if err := u.showDayList(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewDayList)
	}

	if u.form != nil {
		if err := u.showForm(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewForm)
	}

	if u.promptActive {
		if err := u.showPrompt(gui); err != nil {
			return err
		}
	} else {
		_ = gui.DeleteView(viewPrompt)
	}

	if u.helpActive {
		if err := u.showHelp(gui); err != nil {
			return err
		}
	} else if gui.CurrentView() == nil || (!u.inputActive() && gui.CurrentView().Name() != viewCalendar) {
		_, _ = gui.SetCurrentView(viewCalendar)
	}

	gui.Cursor = u.form != nil || u.promptActive

	return nil
}

func (u *UI) loadEvents() error {
	events, err := u.store.ListEvents(context.Background())
	if err != nil {
		return err
	}
	u.events = events

	resolved, errs := layout.ResolveAll(events, u.zone)
	if len(errs) > 0 {
		u.status = fmt.Sprintf("%d event(s) skipped: bad dates", len(errs))
	}
	u.resolved = resolved
	u.resolvedByID = make(map[string]model.ResolvedEvent, len(resolved))
	for _, r := range resolved {
		u.resolvedByID[r.Event.ID] = r
	}

	switch u.viewMode {
	case modeWeek:
		u.weekPlan = layout.PlanWeek(resolved, weekStart(u.anchor, u.zone), u.zone, u.maxLanes)
	case modeYear:
		opts := layout.YearGrid(u.anchor.Year(), u.zone, u.maxLanes)
		u.plan = layout.PlanGrid(resolved, opts)
	default:
		opts := layout.MonthGrid(u.anchor, u.zone, u.maxLanes)
		u.plan = layout.PlanGrid(resolved, opts)
	}

	return u.loadHolidays()
}

func (u *UI) loadHolidays() error {
	from, to := u.visibleRange()
	holidays, err := u.store.ListHolidays(context.Background(), from, to)
	if err != nil {
		return err
	}
	u.holidays = make(map[string][]model.Holiday)
	for _, h := range holidays {
		u.holidays[h.Date] = append(u.holidays[h.Date], h)
	}
	return nil
}

func (u *UI) visibleRange() (string, string) {
	switch u.viewMode {
	case modeWeek:
		start := weekStart(u.anchor, u.zone)
		return start.Format("2006-01-02"), start.AddDate(0, 0, 6).Format("2006-01-02")
	case modeYear:
		return fmt.Sprintf("%04d-01-01", u.anchor.Year()), fmt.Sprintf("%04d-12-31", u.anchor.Year())
	default:
		opts := layout.MonthGrid(u.anchor, u.zone, u.maxLanes)
		return opts.Start.Format("2006-01-02"), opts.End.AddDate(0, 0, -1).Format("2006-01-02")
	}
}

func (u *UI) renderHeader(view *gocui.View) {
	view.Clear()
	day := u.selectedDay.Format("Mon 2006-01-02")
	marks := holidayLabel(u.holidays[u.selectedDay.Format("2006-01-02")])
	if marks != "" {
		marks = " | " + marks
	}
	fmt.Fprintf(view, "lazycal | %s view | selected: %s%s", u.viewMode, day, marks)
}

func (u *UI) renderFooter(view *gocui.View) {
	view.Clear()
	view.SetOrigin(0, 0)
	view.SetCursor(0, 0)

	fmt.Fprintln(view, "a add | o day | e edit | d delete | i/I import | x export | click drag, enter commit, esc cancel")
	fmt.Fprintln(view, "m month | w week | y year | h/l period | t today | r reload | ? help | q quit")
	if line := u.statusLine(); line != "" {
		fmt.Fprint(view, line)
	}
}

func (u *UI) statusLine() string {
	if u.drag.Active() {
		preview, colliding, ok := u.drag.Preview()
		label := dragLabel(u.drag.Mode())
		if !ok {
			return fmt.Sprintf("%s: pick a target, enter to commit, esc to cancel", label)
		}
		suffix := ""
		if colliding {
			suffix = " [overlaps]"
		}
		return fmt.Sprintf("%s: %s -> %s%s", label, preview.Event.Name, formatWhenResolved(preview), suffix)
	}
	return u.status
}

func (u *UI) calendarTitle() string {
	switch u.viewMode {
	case modeWeek:
		start := weekStart(u.anchor, u.zone)
		return fmt.Sprintf("Week of %s", start.Format("2006-01-02"))
	case modeYear:
		return fmt.Sprintf("Year %d", u.anchor.Year())
	default:
		return u.anchor.Format("January 2006")
	}
}

// calendarGeometry maps screen cells to calendar days. Coordinates are
// absolute so mouse opts can be tested directly against it.
type calendarGeometry struct {
	x0, y0 int
	cellW  int
	cellH  int
	cols   int
	rows   int
	start  time.Time
	mode   string

	// week mode only: the all-day band occupies allDayRows lines at the
	// top, the remainder maps to the 24h of the day.
	allDayRows int
	timedRows  int
}

func (u *UI) computeGeometry(view *gocui.View) calendarGeometry {
	x0, y0, x1, y1 := view.Dimensions()
	innerW := x1 - x0 - 1
	innerH := y1 - y0 - 1

	geom := calendarGeometry{x0: x0 + 1, y0: y0 + 1, mode: u.viewMode}
	if innerW <= 0 || innerH <= 1 {
		return geom
	}

	switch u.viewMode {
	case modeWeek:
		geom.cols = 7
		geom.rows = 1
		geom.cellW = innerW / 7
		geom.allDayRows = u.maxLanes + 1
		// One header line for weekday names.
		geom.y0++
		innerH--
		geom.timedRows = innerH - geom.allDayRows
		if geom.timedRows < 0 {
			geom.timedRows = 0
		}
		geom.cellH = innerH
		geom.start = weekStart(u.anchor, u.zone)
	case modeYear:
		geom.cols = 31
		geom.rows = 12
		geom.cellW = maxInt(innerW/31, 1)
		geom.cellH = maxInt(innerH/12, 1)
		geom.start = time.Date(u.anchor.Year(), 1, 1, 0, 0, 0, 0, u.zone)
	default:
		geom.cols = 7
		geom.rows = 6
		geom.cellW = innerW / 7
		// One header line for weekday names.
		geom.y0++
		innerH--
		geom.cellH = maxInt(innerH/6, 1)
		geom.start = layout.MonthGrid(u.anchor, u.zone, u.maxLanes).Start
	}
	return geom
}

func (g calendarGeometry) usable() bool {
	return g.cellW > 0 && g.cellH > 0 && !g.start.IsZero()
}

// dayAt maps absolute screen coordinates to a calendar day. ok is
// false outside the grid.
func (g calendarGeometry) dayAt(x, y int) (time.Time, bool) {
	if !g.usable() || x < g.x0 || y < g.y0 {
		return time.Time{}, false
	}
	col := (x - g.x0) / g.cellW
	row := (y - g.y0) / g.cellH
	if col >= g.cols || row >= g.rows {
		return time.Time{}, false
	}
	switch g.mode {
	case modeYear:
		month := time.Month(row + 1)
		day := col + 1
		candidate := time.Date(g.start.Year(), month, day, 0, 0, 0, 0, g.start.Location())
		if candidate.Month() != month {
			return time.Time{}, false
		}
		return candidate, true
	case modeWeek:
		return g.start.AddDate(0, 0, col), true
	default:
		return g.start.AddDate(0, 0, row*7+col), true
	}
}

func (g calendarGeometry) cellLine(y int) int {
	if g.cellH <= 0 {
		return 0
	}
	return (y - g.y0) % g.cellH
}

func (g calendarGeometry) cellColumn(x int) int {
	if g.cellW <= 0 {
		return 0
	}
	return (x - g.x0) % g.cellW
}

// hourAt maps a y coordinate inside the week view's timed area to an
// hour of day. ok is false inside the all-day band.
func (g calendarGeometry) hourAt(y int) (int, bool) {
	line := y - g.y0 - g.allDayRows
	if line < 0 || g.timedRows <= 0 {
		return 0, false
	}
	hour := line * 24 / g.timedRows
	if hour > 23 {
		hour = 23
	}
	return hour, true
}

func (u *UI) renderCalendar(view *gocui.View) {
	view.Clear()
	if !u.geom.usable() {
		fmt.Fprint(view, "window too small")
		return
	}
	switch u.viewMode {
	case modeWeek:
		u.renderWeek(view)
	case modeYear:
		u.renderYear(view)
	default:
		u.renderMonth(view)
	}
}

func (u *UI) renderMonth(view *gocui.View) {
	g := u.geom
	fmt.Fprintln(view, weekdayHeader(g.cellW))

	segmentsByDay := u.segmentsByDay()
	for row := 0; row < g.rows; row++ {
		lines := make([]strings.Builder, g.cellH)
		for col := 0; col < g.cols; col++ {
			day := g.start.AddDate(0, 0, row*7+col)
			key := day.Format("2006-01-02")
			cells := u.dayCellLines(day, segmentsByDay[key], g.cellH, g.cellW)
			for i := 0; i < g.cellH; i++ {
				lines[i].WriteString(cells[i])
			}
		}
		for i := 0; i < g.cellH; i++ {
			fmt.Fprintln(view, lines[i].String())
		}
	}
}

// dayCellLines renders one day cell: a header line with the day number
// and markers, one line per lane, and a trailing "+N" overflow line.
func (u *UI) dayCellLines(day time.Time, cells []segmentCell, height, width int) []string {
	key := day.Format("2006-01-02")
	lines := make([]string, height)

	header := fmt.Sprintf("%2d", day.Day())
	if sameCivilDay(day, u.selectedDay) {
		header = "[" + strings.TrimSpace(header) + "]"
	}
	if mark := holidayMark(u.holidays[key]); mark != "" {
		header += mark
	}
	lines[0] = padCell(header, width)

	laneLines := height - 1
	hidden := u.plan.HiddenByDay[key]
	if hidden > 0 && laneLines > 0 {
		laneLines--
	}
	for _, cell := range cells {
		line := cell.Lane + 1
		if cell.Lane >= laneLines || line >= height {
			hidden++
			continue
		}
		lines[line] = padCell(formatSegmentCell(cell, width), width)
	}
	for i := 1; i < height; i++ {
		if lines[i] == "" {
			lines[i] = padCell("", width)
		}
	}
	if hidden > 0 && height > 1 {
		lines[height-1] = padCell(fmt.Sprintf("+%d", hidden), width)
	}
	return lines
}

func (u *UI) renderWeek(view *gocui.View) {
	g := u.geom
	fmt.Fprintln(view, weekdayHeader(g.cellW))

	// All-day band: one line per lane, then the overflow line.
	for lane := 0; lane < u.maxLanes; lane++ {
		var line strings.Builder
		for col := 0; col < 7; col++ {
			day := g.start.AddDate(0, 0, col)
			cell := ""
			for _, seg := range u.weekPlan.AllDaySegments {
				if seg.Lane != lane {
					continue
				}
				offset := int(day.Sub(seg.StartDay).Hours() / 24)
				if offset < 0 || offset >= seg.Days {
					continue
				}
				cell = formatSegmentCell(segmentCell{Segment: seg, Name: u.eventName(seg.EventID), First: offset == 0}, g.cellW)
				break
			}
			line.WriteString(padCell(cell, g.cellW))
		}
		fmt.Fprintln(view, line.String())
	}
	var overflow strings.Builder
	for col := 0; col < 7; col++ {
		cell := ""
		if n := u.weekPlan.HiddenByDay[col]; n > 0 {
			cell = fmt.Sprintf("+%d", n)
		}
		overflow.WriteString(padCell(cell, g.cellW))
	}
	fmt.Fprintln(view, overflow.String())

	// Timed area: each line covers 24/timedRows hours.
	for line := 0; line < g.timedRows; line++ {
		lineStart := float64(line) / float64(g.timedRows)
		lineEnd := float64(line+1) / float64(g.timedRows)
		var row strings.Builder
		for col := 0; col < 7; col++ {
			row.WriteString(padCell(u.timedCell(col, lineStart, lineEnd, g.cellW), g.cellW))
		}
		fmt.Fprintln(view, row.String())
	}
}

// timedCell picks the widest-starting placement overlapping this line
// of the day column and labels its first line with the event name.
func (u *UI) timedCell(col int, lineStart, lineEnd float64, width int) string {
	placements := u.weekPlan.Timed[col]
	for _, p := range placements {
		if p.StartFraction >= lineEnd || p.EndFraction <= lineStart {
			continue
		}
		label := "│"
		if p.StartFraction >= lineStart {
			label = u.eventName(p.EventID)
		}
		if p.Columns > 1 {
			label = fmt.Sprintf("%s %d/%d", label, p.Column+1, p.Columns)
		}
		return truncateCell(label, width)
	}
	return ""
}

func (u *UI) renderYear(view *gocui.View) {
	g := u.geom
	segmentsByDay := u.segmentsByDay()
	for month := time.January; month <= time.December; month++ {
		var line strings.Builder
		for day := 1; day <= 31; day++ {
			candidate := time.Date(g.start.Year(), month, day, 0, 0, 0, 0, u.zone)
			cell := "  "
			if candidate.Month() == month {
				key := candidate.Format("2006-01-02")
				switch {
				case len(segmentsByDay[key]) > 0 || u.plan.HiddenByDay[key] > 0:
					cell = "▪ "
				case len(u.holidays[key]) > 0:
					cell = "◦ "
				default:
					cell = "· "
				}
				if sameCivilDay(candidate, u.selectedDay) {
					cell = "@" + cell[1:]
				}
			}
			line.WriteString(padCell(cell, g.cellW))
		}
		fmt.Fprintf(view, "%s %s\n", month.String()[:3], line.String())
	}
}

type segmentCell struct {
	Segment model.Segment
	Name    string
	Lane    int
	First   bool
}

func (u *UI) segmentsByDay() map[string][]segmentCell {
	byDay := make(map[string][]segmentCell)
	for _, seg := range u.plan.Segments {
		for offset := 0; offset < seg.Days; offset++ {
			day := seg.StartDay.AddDate(0, 0, offset)
			key := day.Format("2006-01-02")
			byDay[key] = append(byDay[key], segmentCell{
				Segment: seg,
				Name:    u.eventName(seg.EventID),
				Lane:    seg.Lane,
				First:   offset == 0,
			})
		}
	}
	return byDay
}

func (u *UI) eventName(id string) string {
	if r, ok := u.resolvedByID[id]; ok {
		return r.Event.Name
	}
	return "?"
}

func (u *UI) onCalendarClick(gui *gocui.Gui, opts gocui.ViewMouseBindingOpts) error {
	if u.inputActive() {
		return nil
	}
	day, ok := u.geom.dayAt(opts.X, opts.Y)
	if !ok {
		return nil
	}
	u.selectedDay = day

	target, targetOK := u.targetAt(opts.X, opts.Y, day)
	if u.drag.Active() {
		if targetOK {
			u.drag.Update(target)
		}
		return nil
	}

	mode, ev, hit := u.hitSegment(opts.X, opts.Y, day)
	if hit {
		if err := u.drag.Begin(mode, ev, u.resolved, u.laneCache()); err != nil {
			u.status = err.Error()
		}
		return nil
	}

	return nil
}

// targetAt converts a click position to a drop target: the all-day
// band yields day targets that keep or force all-day nature, the week
// timed area yields hour targets.
func (u *UI) targetAt(x, y int, day time.Time) (gesture.Target, bool) {
	if u.viewMode == modeWeek {
		if hour, ok := u.geom.hourAt(y); ok {
			return gesture.Target{Kind: gesture.KindHour, Day: day, Hour: hour}, true
		}
		return gesture.Target{Kind: gesture.KindAllDay, Day: day}, true
	}
	return gesture.Target{Kind: gesture.KindDay, Day: day}, true
}

// hitSegment finds the event under the cursor and picks the drag mode
// from where in the cell the click landed: the first and last columns
// are resize handles, anywhere else moves.
func (u *UI) hitSegment(x, y int, day time.Time) (gesture.Mode, model.ResolvedEvent, bool) {
	line := u.geom.cellLine(y)
	column := u.geom.cellColumn(x)

	if u.viewMode == modeWeek {
		col := int(day.Sub(u.geom.start).Hours() / 24)
		if col < 0 || col > 6 {
			return "", model.ResolvedEvent{}, false
		}
		bandLine := y - u.geom.y0
		if bandLine >= 0 && bandLine < u.maxLanes {
			for _, seg := range u.weekPlan.AllDaySegments {
				offset := int(day.Sub(seg.StartDay).Hours() / 24)
				if seg.Lane != bandLine || offset < 0 || offset >= seg.Days {
					continue
				}
				return u.edgeMode(column, seg, offset), u.resolvedByID[seg.EventID], true
			}
			return "", model.ResolvedEvent{}, false
		}
		if hour, ok := u.geom.hourAt(y); ok {
			fraction := (float64(hour) + 0.5) / 24
			for _, p := range u.weekPlan.Timed[col] {
				if fraction < p.StartFraction || fraction >= p.EndFraction {
					continue
				}
				mode := gesture.ModeMove
				topLine := int(p.StartFraction * float64(u.geom.timedRows))
				bottomLine := int(p.EndFraction*float64(u.geom.timedRows)) - 1
				clickLine := y - u.geom.y0 - u.geom.allDayRows
				if clickLine <= topLine {
					mode = gesture.ModeResizeTop
				} else if clickLine >= bottomLine {
					mode = gesture.ModeResizeBottom
				}
				return mode, u.resolvedByID[p.EventID], true
			}
		}
		return "", model.ResolvedEvent{}, false
	}

	if u.viewMode == modeYear {
		// Year cells are too small for lanes; any marked day grabs the
		// first segment covering it as a move.
		for _, cell := range u.segmentsByDay()[day.Format("2006-01-02")] {
			return gesture.ModeMove, u.resolvedByID[cell.Segment.EventID], true
		}
		return "", model.ResolvedEvent{}, false
	}

	lane := line - 1
	if lane < 0 {
		return "", model.ResolvedEvent{}, false
	}
	for _, cell := range u.segmentsByDay()[day.Format("2006-01-02")] {
		if cell.Lane != lane {
			continue
		}
		offset := int(day.Sub(cell.Segment.StartDay).Hours() / 24)
		return u.edgeMode(column, cell.Segment, offset), u.resolvedByID[cell.Segment.EventID], true
	}
	return "", model.ResolvedEvent{}, false
}

// edgeMode maps a click on a segment to a drag mode: the leading edge
// of a true start resizes the start, the trailing edge of a true end
// resizes the end.
func (u *UI) edgeMode(column int, seg model.Segment, offset int) gesture.Mode {
	if column == 0 && offset == 0 && seg.TrueStart {
		return gesture.ModeResizeStart
	}
	if column >= u.geom.cellW-1 && offset == seg.Days-1 && seg.TrueEnd {
		return gesture.ModeResizeEnd
	}
	return gesture.ModeMove
}

func (u *UI) laneCache() map[string]int {
	if u.viewMode == modeWeek {
		return u.weekPlan.LaneByEvent
	}
	return u.plan.LaneByEvent
}

func (u *UI) commitDrag(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() || !u.drag.Active() {
		return nil
	}
	ev, ok := u.drag.Commit(func(id string) (model.Event, bool) {
		for _, candidate := range u.events {
			if candidate.ID == id {
				return candidate, true
			}
		}
		return model.Event{}, false
	})
	if !ok {
		return nil
	}
	if _, err := u.store.UpdateEvent(context.Background(), ev.ID, db.InputFromEvent(ev)); err != nil {
		u.status = err.Error()
		return nil
	}
	u.status = ""
	return u.loadEvents()
}

func (u *UI) cancelDrag(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.drag.Cancel()
	u.status = ""
	return nil
}

func (u *UI) wheelPrev(gui *gocui.Gui, _ *gocui.View) error {
	return u.prevPeriod(gui, nil)
}

func (u *UI) wheelNext(gui *gocui.Gui, _ *gocui.View) error {
	return u.nextPeriod(gui, nil)
}

func (u *UI) prevPeriod(gui *gocui.Gui, _ *gocui.View) error {
	return u.shiftPeriod(gui, -1)
}

func (u *UI) nextPeriod(gui *gocui.Gui, _ *gocui.View) error {
	return u.shiftPeriod(gui, 1)
}

func (u *UI) shiftPeriod(gui *gocui.Gui, delta int) error {
	if u.inputActive() {
		return nil
	}
	switch u.viewMode {
	case modeWeek:
		u.anchor = u.anchor.AddDate(0, 0, 7*delta)
	case modeYear:
		u.anchor = u.anchor.AddDate(delta, 0, 0)
	default:
		u.anchor = time.Date(u.anchor.Year(), u.anchor.Month(), 1, 0, 0, 0, 0, u.zone).AddDate(0, delta, 0)
	}
	return u.loadEvents()
}

func (u *UI) goToday(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	now := time.Now().In(u.zone)
	u.anchor = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, u.zone)
	u.selectedDay = u.anchor
	return u.loadEvents()
}

func (u *UI) switchToMonth(gui *gocui.Gui, _ *gocui.View) error {
	return u.switchMode(modeMonth)
}

func (u *UI) switchToWeek(gui *gocui.Gui, _ *gocui.View) error {
	return u.switchMode(modeWeek)
}

func (u *UI) switchToYear(gui *gocui.Gui, _ *gocui.View) error {
	return u.switchMode(modeYear)
}

func (u *UI) switchMode(mode string) error {
	if u.inputActive() {
		return nil
	}
	u.drag.Cancel()
	u.viewMode = mode
	u.anchor = u.selectedDay
	return u.loadEvents()
}

func (u *UI) reload(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.status = ""
	return u.loadEvents()
}

func (u *UI) openDayList(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	events, err := u.store.EventsForDay(context.Background(), u.selectedDay, u.zone)
	if err != nil {
		u.status = err.Error()
		return nil
	}
	u.dayEvents = events
	u.selectedDayEvent = 0
	u.dayListActive = true
	return nil
}

func (u *UI) showDayList(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := maxInt(50, maxX/2)
	height := minInt(maxInt(len(u.dayEvents)+3, 5), maxY-4)
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewDayList, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	view.Title = fmt.Sprintf("Events on %s", u.selectedDay.Format("2006-01-02"))
	view.Wrap = false
	view.Clear()
	if len(u.dayEvents) == 0 {
		fmt.Fprint(view, "no events")
	}
	for i, ev := range u.dayEvents {
		prefix := " "
		if i == u.selectedDayEvent {
			prefix = ">"
		}
		fmt.Fprintf(view, "%s %s\n", prefix, formatEventSummary(ev))
	}
	_, _ = gui.SetCurrentView(viewDayList)
	return nil
}

func (u *UI) dayListDown(gui *gocui.Gui, _ *gocui.View) error {
	if u.selectedDayEvent < len(u.dayEvents)-1 {
		u.selectedDayEvent++
	}
	return nil
}

func (u *UI) dayListUp(gui *gocui.Gui, _ *gocui.View) error {
	if u.selectedDayEvent > 0 {
		u.selectedDayEvent--
	}
	return nil
}

func (u *UI) editDayEvent(gui *gocui.Gui, _ *gocui.View) error {
	if u.selectedDayEvent < 0 || u.selectedDayEvent >= len(u.dayEvents) {
		return nil
	}
	ev := u.dayEvents[u.selectedDayEvent]
	u.dayListActive = false
	_ = gui.DeleteView(viewDayList)
	u.form = &formState{eventID: ev.ID, fields: buildFormFields(&ev, u.selectedDay)}
	return nil
}

func (u *UI) deleteDayEvent(gui *gocui.Gui, _ *gocui.View) error {
	if u.selectedDayEvent < 0 || u.selectedDayEvent >= len(u.dayEvents) {
		return nil
	}
	ev := u.dayEvents[u.selectedDayEvent]
	if err := u.store.DeleteEvent(context.Background(), ev.ID); err != nil {
		u.status = err.Error()
		return nil
	}
	if err := u.loadEvents(); err != nil {
		return err
	}
	return u.openDayList(gui, nil)
}

func (u *UI) closeDayList(gui *gocui.Gui, _ *gocui.View) error {
	u.dayListActive = false
	_ = gui.DeleteView(viewDayList)
	_, _ = gui.SetCurrentView(viewCalendar)
	return nil
}

func (u *UI) addEvent(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() {
		return nil
	}
	u.form = &formState{fields: buildFormFields(nil, u.selectedDay)}
	return nil
}

func (u *UI) showForm(gui *gocui.Gui) error {
	if u.form == nil {
		return nil
	}

	maxX, maxY := gui.Size()
	width := maxInt(60, maxX/2)
	height := minInt(14, maxInt(12, maxY/2))
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewForm, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
	}
	if u.form.eventID != "" {
		view.Title = "Edit Event"
	} else {
		view.Title = "New Event"
	}
	view.Editable = true
	view.KeybindOnEdit = true
	view.Editor = u.formEditor
	u.renderForm(view)
	_, _ = gui.SetCurrentView(viewForm)
	return nil
}

func (u *UI) submitFormNow(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}

	input, err := parseFormFields(u.form.fields, u.zone)
	if err != nil {
		u.status = err.Error()
		return nil
	}

	if u.form.eventID == "" {
		if _, err := u.store.CreateEvent(context.Background(), input); err != nil {
			u.status = err.Error()
			return nil
		}
	} else {
		if _, err := u.store.UpdateEvent(context.Background(), u.form.eventID, input); err != nil {
			u.status = err.Error()
			return nil
		}
	}

	u.form = nil
	u.status = ""
	_ = gui.DeleteView(viewForm)
	_, _ = gui.SetCurrentView(viewCalendar)
	return u.loadEvents()
}

func (u *UI) cancelForm(gui *gocui.Gui, _ *gocui.View) error {
	u.form = nil
	_ = gui.DeleteView(viewForm)
	_, _ = gui.SetCurrentView(viewCalendar)
	return nil
}

func (u *UI) nextFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index < len(u.form.fields)-1 {
		u.form.index++
	}
	u.renderForm(view)
	return nil
}

func (u *UI) prevFormField(gui *gocui.Gui, view *gocui.View) error {
	if u.form == nil {
		return nil
	}
	if u.form.index > 0 {
		u.form.index--
	}
	u.renderForm(view)
	return nil
}

func (u *UI) renderForm(view *gocui.View) {
	if u.form == nil || view == nil {
		return
	}
	view.Clear()
	for index, field := range u.form.fields {
		prefix := "  "
		if index == u.form.index {
			prefix = "> "
		}
		fmt.Fprintf(view, "%s%s: %s\n", prefix, field.Label, field.Value)
	}
	label := u.form.fields[u.form.index].Label + ": "
	cursorX := len([]rune(label)) + len([]rune(u.form.fields[u.form.index].Value)) + 2
	view.SetCursor(cursorX, u.form.index)
}

func (e *formEditor) Edit(view *gocui.View, key gocui.Key, ch rune, mod gocui.Modifier) bool {
	ui := e.ui
	if ui == nil || ui.form == nil || view == nil {
		return false
	}
	field := &ui.form.fields[ui.form.index]

	if isAllDayField(field.Label) {
		switch key {
		case gocui.KeySpace, gocui.KeyArrowLeft, gocui.KeyArrowRight:
			field.Value = toggleYesNo(field.Value)
		}
		ui.renderForm(view)
		return true
	}

	switch key {
	case gocui.KeyBackspace, gocui.KeyBackspace2:
		runes := []rune(field.Value)
		if len(runes) > 0 {
			field.Value = string(runes[:len(runes)-1])
		}
	case gocui.KeySpace:
		field.Value += " "
	case gocui.KeyCtrlU:
		field.Value = ""
	}

	if ch != 0 && ch != '\n' && ch != '\r' && mod == 0 {
		field.Value += string(ch)
	}

	ui.renderForm(view)
	return true
}

func (u *UI) startImportMerge(gui *gocui.Gui, _ *gocui.View) error {
	return u.startPrompt(promptImportMerge)
}

func (u *UI) startImportReplace(gui *gocui.Gui, _ *gocui.View) error {
	return u.startPrompt(promptImportReplace)
}

func (u *UI) startExport(gui *gocui.Gui, _ *gocui.View) error {
	return u.startPrompt(promptExport)
}

func (u *UI) startPrompt(kind int) error {
	if u.inputActive() {
		return nil
	}
	u.promptActive = true
	u.promptKind = kind
	return nil
}

func (u *UI) showPrompt(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := maxInt(50, maxX/3)
	height := 3
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewPrompt, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Wrap = true
		view.Clear()
	}
	switch u.promptKind {
	case promptExport:
		view.Title = "Export ICS to path"
	case promptImportReplace:
		view.Title = "Import ICS (replace all) from path"
	default:
		view.Title = "Import ICS (merge) from path"
	}
	view.Editable = true
	view.Editor = gocui.DefaultEditor
	_, _ = gui.SetCurrentView(viewPrompt)
	return nil
}

func (u *UI) submitPrompt(gui *gocui.Gui, view *gocui.View) error {
	if !u.promptActive {
		return nil
	}
	path := strings.TrimSpace(view.Buffer())
	kind := u.promptKind
	if err := u.closePrompt(gui); err != nil {
		return err
	}
	if path == "" {
		return nil
	}

	switch kind {
	case promptExport:
		payload, err := ics.Export(u.events)
		if err != nil {
			u.status = err.Error()
			return nil
		}
		if err := os.WriteFile(path, []byte(payload), 0o644); err != nil {
			u.status = err.Error()
			return nil
		}
		u.status = fmt.Sprintf("exported %d event(s) to %s", len(u.events), path)
	default:
		body, err := os.ReadFile(path)
		if err != nil {
			u.status = err.Error()
			return nil
		}
		imported, err := ics.Parse(body, u.zone)
		if err != nil {
			u.status = err.Error()
			return nil
		}
		if kind == promptImportReplace {
			if err := u.store.ReplaceEvents(context.Background(), imported); err != nil {
				u.status = err.Error()
				return nil
			}
		} else {
			for _, ev := range imported {
				if err := u.store.UpsertEvent(context.Background(), ev); err != nil {
					u.status = err.Error()
					return nil
				}
			}
		}
		u.status = fmt.Sprintf("imported %d event(s)", len(imported))
	}
	return u.loadEvents()
}

func (u *UI) cancelPrompt(gui *gocui.Gui, _ *gocui.View) error {
	if !u.promptActive {
		return nil
	}
	return u.closePrompt(gui)
}

func (u *UI) closePrompt(gui *gocui.Gui) error {
	u.promptActive = false
	_ = gui.DeleteView(viewPrompt)
	_, _ = gui.SetCurrentView(viewCalendar)
	return nil
}

func (u *UI) toggleHelp(gui *gocui.Gui, _ *gocui.View) error {
	if u.inputActive() && !u.helpActive {
		return nil
	}
	u.helpActive = !u.helpActive
	return nil
}

func (u *UI) closeHelp(gui *gocui.Gui, _ *gocui.View) error {
	u.helpActive = false
	_ = gui.DeleteView(viewHelp)
	_, _ = gui.SetCurrentView(viewCalendar)
	return nil
}

func (u *UI) showHelp(gui *gocui.Gui) error {
	maxX, maxY := gui.Size()
	width := maxInt(60, maxX/2)
	height := 16
	x0 := (maxX - width) / 2
	y0 := (maxY - height) / 2

	view, err := gui.SetView(viewHelp, x0, y0, x0+width, y0+height, 0)
	if err != nil && !goerrors.Is(err, gocui.ErrUnknownView) {
		return err
	}
	if goerrors.Is(err, gocui.ErrUnknownView) {
		view.Title = "Help"
		view.Wrap = true
	}
	view.Clear()
	fmt.Fprint(view, helpText())
	_, _ = gui.SetCurrentView(viewHelp)
	return nil
}

func (u *UI) inputActive() bool {
	return u.form != nil || u.helpActive || u.dayListActive || u.promptActive
}

func (u *UI) quit(_ *gocui.Gui, _ *gocui.View) error {
	return gocui.ErrQuit
}

func helpText() string {
	return strings.Join([]string{
		"Views:",
		"  m month | w week | y year",
		"  h/l or arrows previous/next period | t today",
		"  mouse wheel changes period",
		"",
		"Events:",
		"  a add event | o open day list (e edit, d delete inside)",
		"  click a day to select it",
		"",
		"Drag (mouse):",
		"  click an event to pick it up: middle moves,",
		"  first/last column resizes start/end,",
		"  top/bottom line resizes times (week view)",
		"  click a target day or hour, enter commits, esc cancels",
		"",
		"ICS:",
		"  i import merge | I import replace | x export",
		"",
		"Other:",
		"  r reload | ? help | esc/q close help | q quit",
	}, "\n")
}

func dragLabel(mode gesture.Mode) string {
	switch mode {
	case gesture.ModeResizeStart:
		return "resize start"
	case gesture.ModeResizeEnd:
		return "resize end"
	case gesture.ModeResizeTop:
		return "resize top"
	case gesture.ModeResizeBottom:
		return "resize bottom"
	default:
		return "move"
	}
}

func applyViewStyle(view *gocui.View, focused bool) {
	view.Frame = true
	view.Highlight = false
	view.HighlightInactive = false
	if focused {
		view.FrameColor = gocui.ColorCyan
		view.TitleColor = gocui.ColorCyan
	} else {
		view.FrameColor = gocui.ColorDefault
		view.TitleColor = gocui.ColorDefault
	}
}

func weekStart(day time.Time, zone *time.Location) time.Time {
	local := day.In(zone)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, zone)
	offset := (int(midnight.Weekday()) + 6) % 7
	return midnight.AddDate(0, 0, -offset)
}

func sameCivilDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
