package report

import (
	"strings"
	"testing"
	"time"

	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func act(id string, offset, days int) domain.Activity {
	start := baseDay.AddDate(0, 0, offset)
	return domain.Activity{
		ID:        id,
		ProjectID: "p1",
		Code:      id,
		Name:      "Activity " + id,
		StartDate: start,
		EndDate:   start.AddDate(0, 0, days),
		Status:    domain.StatusNotStarted,
	}
}

func sampleSchedule(t *testing.T) schedule.Schedule {
	t.Helper()
	activities := []domain.Activity{act("A", 0, 5), act("B", 5, 3), act("C", 5, 2)}
	edges := []domain.Dependency{
		{ProjectID: "p1", ActivityID: "B", DependsOnActivityID: "A"},
		{ProjectID: "p1", ActivityID: "C", DependsOnActivityID: "A"},
	}
	sched, err := schedule.Compute(activities, edges)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	return sched
}

func TestMarkdownIncludesRowsAndCriticalPath(t *testing.T) {
	md := Markdown("Tower", sampleSchedule(t))
	for _, want := range []string{
		"# Tower",
		"Project duration: **8 days** across 3 activities.",
		"| A | Activity A | 2026-03-02 | 2026-03-07 | 5 | 0 | 5 | 0 | 5 | 0 | 0 | NOT_STARTED | ● |",
		"| C | Activity C | 2026-03-07 | 2026-03-09 | 2 | 5 | 7 | 6 | 8 | 1 | 0 | NOT_STARTED |  |",
		"**Critical path:** A → B",
	} {
		if !strings.Contains(md, want) {
			t.Fatalf("Markdown() missing %q in:\n%s", want, md)
		}
	}
	if strings.Contains(md, "## Warnings") {
		t.Fatalf("Markdown() has warnings section without warnings:\n%s", md)
	}
}

func TestMarkdownEmptyAndWarnings(t *testing.T) {
	if md := Markdown("", schedule.Schedule{}); !strings.Contains(md, "# Schedule") || !strings.Contains(md, "_No activities._") {
		t.Fatalf("Markdown(empty) = %q", md)
	}

	sched, err := schedule.Compute(
		[]domain.Activity{act("A|1", 0, 2)},
		[]domain.Dependency{{ProjectID: "p1", ActivityID: "A|1", DependsOnActivityID: "ghost"}},
	)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	md := Markdown("Pipes", sched)
	if !strings.Contains(md, `A\|1`) {
		t.Fatalf("Markdown() did not escape pipe:\n%s", md)
	}
	if !strings.Contains(md, "## Warnings") || !strings.Contains(md, "`unknown_dependency`") {
		t.Fatalf("Markdown() missing warning:\n%s", md)
	}
}

func TestRenderFallsBackAndTrims(t *testing.T) {
	if got := Render("   ", 80); got != "" {
		t.Fatalf("Render(blank) = %q, want empty", got)
	}
	got := Render("# Title\n\nbody text", 10)
	if !strings.Contains(got, "body") {
		t.Fatalf("Render() = %q, want body text", got)
	}
	if strings.HasSuffix(got, "\n") {
		t.Fatalf("Render() kept trailing newline: %q", got)
	}
}

func TestGanttScalesBars(t *testing.T) {
	out := Gantt(sampleSchedule(t), 20)
	lines := strings.Split(out, "\n")
	if len(lines) != 4 {
		t.Fatalf("Gantt() lines = %d, want header + 3:\n%s", len(lines), out)
	}
	cases := []struct {
		prefix string
		bar    int
		float  int
	}{
		{prefix: "A", bar: 10, float: 0},
		{prefix: "B", bar: 6, float: 0},
		{prefix: "C", bar: 4, float: 2},
	}
	for i, tc := range cases {
		line := lines[i+1]
		if !strings.HasPrefix(line, tc.prefix) {
			t.Fatalf("line %d = %q, want prefix %q", i+1, line, tc.prefix)
		}
		if got := strings.Count(line, barGlyph); got != tc.bar {
			t.Fatalf("%s bar = %d, want %d (%q)", tc.prefix, got, tc.bar, line)
		}
		if got := strings.Count(line, floatGlyph); got != tc.float {
			t.Fatalf("%s float = %d, want %d (%q)", tc.prefix, got, tc.float, line)
		}
	}
}

func TestGanttEmpty(t *testing.T) {
	if got := Gantt(schedule.Schedule{}, 80); !strings.Contains(got, "No activities.") {
		t.Fatalf("Gantt(empty) = %q", got)
	}
}

func TestActivityTable(t *testing.T) {
	a := act("A", 0, 5)
	a.PlannedWeight = 2
	out := ActivityTable([]domain.Activity{a})
	for _, want := range []string{"CODE", "Activity A", "2026-03-07", "2.00"} {
		if !strings.Contains(out, want) {
			t.Fatalf("ActivityTable() missing %q:\n%s", want, out)
		}
	}
	if got := ActivityTable(nil); !strings.Contains(got, "No activities.") {
		t.Fatalf("ActivityTable(nil) = %q", got)
	}
}
