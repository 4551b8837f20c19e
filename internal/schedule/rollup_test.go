package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/hylla/groundline/internal/domain"
)

var rollupNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func child(id, parent string, offset, days, percent int, weight float64) domain.Activity {
	a := act(id, offset, days)
	a.ParentID = parent
	a.Percent = percent
	a.PlannedWeight = weight
	return a
}

func TestApplyProgressWeightedAverage(t *testing.T) {
	activities := []domain.Activity{
		act("P", 0, 1),
		child("L1", "P", 2, 3, 0, 1),
		child("L2", "P", 0, 4, 0, 3),
	}
	out, err := ApplyProgress(activities, ProgressUpdate{ActivityID: "L2", Percent: 100}, rollupNow)
	if err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if out.Leaf.Percent != 100 || out.Leaf.Status != domain.StatusDone {
		t.Fatalf("unexpected leaf %+v", out.Leaf)
	}
	if len(out.Ancestors) != 1 {
		t.Fatalf("expected 1 ancestor, got %d", len(out.Ancestors))
	}
	parent := out.Ancestors[0]
	if parent.Percent != 75 {
		t.Fatalf("parent percent = %d, want 75", parent.Percent)
	}
	if !parent.StartDate.Equal(baseDay) || !parent.EndDate.Equal(baseDay.AddDate(0, 0, 5)) {
		t.Fatalf("parent span = %s..%s, want children envelope", parent.StartDate, parent.EndDate)
	}
	if activities[2].Percent != 0 {
		t.Fatal("input snapshot mutated")
	}
}

func TestApplyProgressIsIdempotent(t *testing.T) {
	activities := []domain.Activity{
		act("P", 0, 1),
		child("L1", "P", 0, 2, 20, 0),
		child("L2", "P", 0, 2, 0, 0),
	}
	first, err := ApplyProgress(activities, ProgressUpdate{ActivityID: "L2", Percent: 60}, rollupNow)
	if err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	next := []domain.Activity{first.Ancestors[0], activities[1], first.Leaf}
	second, err := ApplyProgress(next, ProgressUpdate{ActivityID: "L2", Percent: 60}, rollupNow)
	if err != nil {
		t.Fatalf("ApplyProgress() second error = %v", err)
	}
	if second.Leaf != first.Leaf || second.Ancestors[0] != first.Ancestors[0] {
		t.Fatalf("expected identical rollups, got %+v vs %+v", first, second)
	}
	if first.Ancestors[0].Percent != 40 {
		t.Fatalf("parent percent = %d, want 40", first.Ancestors[0].Percent)
	}
}

func TestApplyProgressClampsAndCompletes(t *testing.T) {
	out, err := ApplyProgress([]domain.Activity{act("A", 0, 2)}, ProgressUpdate{ActivityID: "A", Percent: 150}, rollupNow)
	if err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if out.Leaf.Percent != 100 || out.Leaf.Status != domain.StatusDone {
		t.Fatalf("unexpected leaf %+v", out.Leaf)
	}

	out, err = ApplyProgress([]domain.Activity{act("A", 0, 2)}, ProgressUpdate{ActivityID: "A", Percent: -5}, rollupNow)
	if err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if out.Leaf.Percent != 0 || out.Leaf.Status != domain.StatusNotStarted {
		t.Fatalf("unexpected leaf %+v", out.Leaf)
	}
}

func TestApplyProgressMultiLevel(t *testing.T) {
	activities := []domain.Activity{
		act("ROOT", 0, 1),
		child("MID", "ROOT", 0, 1, 0, 0),
		child("SIB", "ROOT", 0, 10, 50, 0),
		child("LEAF", "MID", 1, 2, 0, 0),
	}
	out, err := ApplyProgress(activities, ProgressUpdate{ActivityID: "LEAF", Percent: 100}, rollupNow)
	if err != nil {
		t.Fatalf("ApplyProgress() error = %v", err)
	}
	if len(out.Ancestors) != 2 {
		t.Fatalf("expected 2 ancestors, got %d", len(out.Ancestors))
	}
	mid, root := out.Ancestors[0], out.Ancestors[1]
	if mid.ID != "MID" || root.ID != "ROOT" {
		t.Fatalf("ancestor order = %s,%s, want MID,ROOT", mid.ID, root.ID)
	}
	if mid.Percent != 100 {
		t.Fatalf("mid percent = %d, want 100", mid.Percent)
	}
	if root.Percent != 75 {
		t.Fatalf("root percent = %d, want 75", root.Percent)
	}
	if mid.Status != domain.StatusNotStarted {
		t.Fatalf("rollup must not change parent status, got %s", mid.Status)
	}
	if !root.EndDate.Equal(baseDay.AddDate(0, 0, 10)) {
		t.Fatalf("root end = %s, want sibling end", root.EndDate)
	}
}

func TestApplyProgressRejections(t *testing.T) {
	closed := act("C", 0, 1)
	closed.Status = domain.StatusClosed
	activities := []domain.Activity{
		act("P", 0, 1),
		child("L", "P", 0, 1, 0, 0),
		closed,
	}
	cases := []struct {
		name string
		id   string
		want error
	}{
		{name: "aggregate", id: "P", want: ErrAggregateActivity},
		{name: "closed", id: "C", want: ErrActivityClosed},
		{name: "missing", id: "nope", want: ErrActivityNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ApplyProgress(activities, ProgressUpdate{ActivityID: tc.id, Percent: 10}, rollupNow)
			if !errors.Is(err, tc.want) {
				t.Fatalf("ApplyProgress(%s) error = %v, want %v", tc.id, err, tc.want)
			}
		})
	}
}

func TestAncestorsDetectsHierarchyCycle(t *testing.T) {
	a := act("A", 0, 1)
	a.ParentID = "B"
	b := act("B", 0, 1)
	b.ParentID = "A"
	leaf := child("L", "A", 0, 1, 0, 0)

	_, err := ApplyProgress([]domain.Activity{a, b, leaf}, ProgressUpdate{ActivityID: "L", Percent: 10}, rollupNow)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("ApplyProgress() error = %v, want ErrCycle", err)
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) || cycleErr.Kind != "hierarchy" {
		t.Fatalf("expected hierarchy cycle, got %v", err)
	}
}

func TestAncestorsStopsAtMissingParent(t *testing.T) {
	h := NewHierarchy([]domain.Activity{child("L", "gone", 0, 1, 0, 0)})
	chain, err := h.Ancestors("L")
	if err != nil {
		t.Fatalf("Ancestors() error = %v", err)
	}
	if len(chain) != 0 {
		t.Fatalf("expected empty chain, got %+v", chain)
	}
}

func TestAggregateWithoutChildrenKeepsParent(t *testing.T) {
	parent := act("P", 0, 3)
	parent.Percent = 40
	if got := Aggregate(parent, nil, rollupNow); got != parent {
		t.Fatalf("Aggregate() changed childless parent: %+v", got)
	}
}

func TestReaggregateIncludesSelfWhenParent(t *testing.T) {
	activities := []domain.Activity{
		act("ROOT", 0, 1),
		child("MID", "ROOT", 0, 1, 0, 0),
		child("LEAF", "MID", 3, 4, 40, 0),
	}
	out, err := Reaggregate(activities, "MID", rollupNow)
	if err != nil {
		t.Fatalf("Reaggregate() error = %v", err)
	}
	if len(out) != 2 || out[0].ID != "MID" || out[1].ID != "ROOT" {
		t.Fatalf("unexpected reaggregate chain %+v", out)
	}
	if out[1].Percent != 40 || !out[1].EndDate.Equal(baseDay.AddDate(0, 0, 7)) {
		t.Fatalf("root not refreshed from mid: %+v", out[1])
	}

	leafOnly, err := Reaggregate(activities, "LEAF", rollupNow)
	if err != nil {
		t.Fatalf("Reaggregate(leaf) error = %v", err)
	}
	if len(leafOnly) != 2 || leafOnly[0].ID != "MID" {
		t.Fatalf("leaf should refresh ancestors only, got %+v", leafOnly)
	}
}
