package report

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hylla/groundline/internal/domain"
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// ActivityTable renders activities as a bordered table.
func ActivityTable(activities []domain.Activity) string {
	if len(activities) == 0 {
		return mutedStyle.Render("No activities.")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers("ID", "CODE", "NAME", "PARENT", "START", "END", "%", "STATUS", "WEIGHT").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, a := range activities {
		t.Row(
			a.ID,
			a.Code,
			a.Name,
			a.ParentID,
			domain.FormatDate(a.StartDate),
			domain.FormatDate(a.EndDate),
			fmt.Sprintf("%d", a.Percent),
			string(a.Status),
			fmt.Sprintf("%.2f", a.Weight()),
		)
	}
	return t.String()
}
