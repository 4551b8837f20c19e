// Package report renders computed schedules for terminals: a markdown summary, a glamour
// rendering of it, a lipgloss Gantt chart and activity tables.
package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

// minWrapWidth keeps glamour output readable on narrow terminals.
const minWrapWidth = 24

// Markdown renders one schedule as a markdown document: a summary line, one table row per
// activity in topological order, the critical path and any graph warnings.
func Markdown(title string, sched schedule.Schedule) string {
	var b strings.Builder
	title = strings.TrimSpace(title)
	if title == "" {
		title = "Schedule"
	}
	fmt.Fprintf(&b, "# %s\n\n", escapeCell(title))
	if len(sched.Activities) == 0 {
		b.WriteString("_No activities._\n")
		return b.String()
	}
	fmt.Fprintf(&b, "Project duration: **%d days** across %d activities.\n\n", sched.ProjectDuration, len(sched.Activities))

	b.WriteString("| Code | Activity | Start | End | Days | ES | EF | LS | LF | Float | % | Status | Critical |\n")
	b.WriteString("|---|---|---|---|--:|--:|--:|--:|--:|--:|--:|---|:-:|\n")
	for _, a := range ordered(sched) {
		critical := ""
		if a.IsCritical {
			critical = "●"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %d | %d | %d | %d | %d | %d | %d | %s | %s |\n",
			escapeCell(a.Code),
			escapeCell(a.Name),
			domain.FormatDate(a.StartDate),
			domain.FormatDate(a.EndDate),
			a.Duration,
			a.CPM.ES, a.CPM.EF, a.CPM.LS, a.CPM.LF, a.CPM.Float,
			a.Percent,
			a.Status,
			critical,
		)
	}

	if path := sched.CriticalPath(); len(path) > 0 {
		labels := make([]string, 0, len(path))
		for _, id := range path {
			labels = append(labels, label(sched, id))
		}
		fmt.Fprintf(&b, "\n**Critical path:** %s\n", strings.Join(labels, " → "))
	}
	if len(sched.Warnings) > 0 {
		b.WriteString("\n## Warnings\n\n")
		for _, w := range sched.Warnings {
			fmt.Fprintf(&b, "- `%s` %s\n", w.Kind, w.Message)
		}
	}
	return b.String()
}

// Render converts markdown into ANSI-styled terminal text wrapped at width. Renderer failures
// fall back to the raw markdown.
func Render(markdown string, width int) string {
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return ""
	}
	if width < minWrapWidth {
		width = minWrapWidth
	}
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return markdown
	}
	rendered, err := renderer.Render(markdown)
	if err != nil {
		return markdown
	}
	return strings.TrimRight(rendered, "\n")
}

// ordered returns the scheduled activities in topological order.
func ordered(sched schedule.Schedule) []schedule.ScheduledActivity {
	if len(sched.Order) != len(sched.Activities) {
		return sched.Activities
	}
	out := make([]schedule.ScheduledActivity, 0, len(sched.Activities))
	for _, id := range sched.Order {
		if a, ok := sched.Lookup(id); ok {
			out = append(out, a)
		}
	}
	if len(out) != len(sched.Activities) {
		return sched.Activities
	}
	return out
}

// label prefers the activity code, then its name, then the id.
func label(sched schedule.Schedule, id string) string {
	a, ok := sched.Lookup(id)
	switch {
	case !ok:
		return id
	case strings.TrimSpace(a.Code) != "":
		return a.Code
	case strings.TrimSpace(a.Name) != "":
		return a.Name
	default:
		return id
	}
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "|", `\|`)
}
