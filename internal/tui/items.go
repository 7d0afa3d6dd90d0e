package tui

import (
	"fmt"
	"strings"

	"github.com/Joseda-hg/lazycal/internal/model"
)

func formatEventSummary(ev model.Event) string {
	if ev.AllDay() {
		if ev.Start == ev.End {
			return fmt.Sprintf("all day | %s", ev.Name)
		}
		return fmt.Sprintf("%s..%s | %s", ev.Start, ev.End, ev.Name)
	}
	return fmt.Sprintf("%s-%s | %s", ev.Time, ev.EndTime, ev.Name)
}

func formatWhenResolved(r model.ResolvedEvent) string {
	ev := r.Event
	if r.IsAllDay {
		if ev.Start == ev.End {
			return ev.Start
		}
		return ev.Start + ".." + ev.End
	}
	if ev.Start == ev.End {
		return fmt.Sprintf("%s %s-%s", ev.Start, ev.Time, ev.EndTime)
	}
	return fmt.Sprintf("%s %s .. %s %s", ev.Start, ev.Time, ev.End, ev.EndTime)
}

func weekdayHeader(cellW int) string {
	names := []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}
	var b strings.Builder
	for _, name := range names {
		b.WriteString(padCell(name, cellW))
	}
	return b.String()
}

// formatSegmentCell labels the first day of a segment with the event
// name and continues the bar on later days.
func formatSegmentCell(cell segmentCell, width int) string {
	if cell.First {
		label := cell.Name
		if !cell.Segment.TrueStart {
			label = "<" + label
		}
		if !cell.Segment.TrueEnd {
			label = label + ">"
		}
		return truncateCell(label, width)
	}
	return truncateCell(strings.Repeat("─", maxInt(width-1, 1)), width)
}

func padCell(s string, width int) string {
	runes := []rune(s)
	if len(runes) >= width {
		return string(runes[:maxInt(width, 0)])
	}
	return s + strings.Repeat(" ", width-len(runes))
}

func truncateCell(s string, width int) string {
	runes := []rune(s)
	if width <= 0 {
		return ""
	}
	if len(runes) <= width {
		return s
	}
	if width == 1 {
		return string(runes[:1])
	}
	return string(runes[:width-1]) + "…"
}

func holidayMark(holidays []model.Holiday) string {
	mark := ""
	for _, h := range holidays {
		switch h.Kind {
		case "public":
			mark += "*"
		case "school":
			mark += "~"
		}
	}
	return mark
}

func holidayLabel(holidays []model.Holiday) string {
	if len(holidays) == 0 {
		return ""
	}
	names := make([]string, 0, len(holidays))
	for _, h := range holidays {
		names = append(names, h.Name)
	}
	return strings.Join(names, ", ")
}
