package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hylla/groundline/internal/schedule"
)

const (
	barGlyph   = "█"
	floatGlyph = "░"
	minColumns = 10
	maxLabel   = 24
)

var (
	criticalBarStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	normalBarStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	floatStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	labelStyle       = lipgloss.NewStyle().Bold(true)
	mutedStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Gantt draws one bar per activity, scaled so the whole project spans the chart width. Bars
// start at ES and run for the activity duration; free float up to LF is shaded. Critical
// activities use the critical color.
func Gantt(sched schedule.Schedule, width int) string {
	if len(sched.Activities) == 0 || sched.ProjectDuration <= 0 {
		return mutedStyle.Render("No activities.")
	}
	rows := ordered(sched)

	labelWidth := 0
	for _, a := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(ganttLabel(a)))
	}
	columns := width - labelWidth - 3
	if columns < minColumns {
		columns = minColumns
	}

	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, fmt.Sprintf("%s  %s",
		strings.Repeat(" ", labelWidth),
		mutedStyle.Render(fmt.Sprintf("day 0%sday %d", strings.Repeat(" ", max(1, columns-10-digits(sched.ProjectDuration))), sched.ProjectDuration)),
	))
	for _, a := range rows {
		start := scale(a.CPM.ES, sched.ProjectDuration, columns)
		end := max(start+1, scale(a.CPM.EF, sched.ProjectDuration, columns))
		slack := max(end, scale(a.CPM.LF, sched.ProjectDuration, columns))

		style := normalBarStyle
		if a.IsCritical {
			style = criticalBarStyle
		}
		var bar strings.Builder
		bar.WriteString(strings.Repeat(" ", start))
		bar.WriteString(style.Render(strings.Repeat(barGlyph, end-start)))
		if slack > end {
			bar.WriteString(floatStyle.Render(strings.Repeat(floatGlyph, slack-end)))
		}

		name := ganttLabel(a)
		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(name))
		lines = append(lines, fmt.Sprintf("%s%s  %s", labelStyle.Render(name), pad, bar.String()))
	}
	return strings.Join(lines, "\n")
}

// scale maps a day offset onto [0, columns].
func scale(day, total, columns int) int {
	if total <= 0 {
		return 0
	}
	v := day * columns / total
	return min(max(v, 0), columns)
}

func ganttLabel(a schedule.ScheduledActivity) string {
	name := strings.TrimSpace(a.Code)
	if name == "" {
		name = strings.TrimSpace(a.Name)
	}
	if name == "" {
		name = a.ID
	}
	if r := []rune(name); len(r) > maxLabel {
		name = string(r[:maxLabel-1]) + "…"
	}
	return name
}

func digits(n int) int {
	return len(fmt.Sprint(n))
}
