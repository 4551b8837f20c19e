package schedule

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/hylla/groundline/internal/domain"
)

var baseDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

// act builds one activity spanning days calendar days from baseDay+offset.
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

func dep(activityID, dependsOn string) domain.Dependency {
	return domain.Dependency{ProjectID: "p1", ActivityID: activityID, DependsOnActivityID: dependsOn}
}

func TestComputeThreeActivityScenario(t *testing.T) {
	activities := []domain.Activity{act("A", 0, 5), act("B", 5, 3), act("C", 5, 2)}
	edges := []domain.Dependency{dep("B", "A"), dep("C", "A")}

	sched, err := Compute(activities, edges)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if sched.ProjectDuration != 8 {
		t.Fatalf("ProjectDuration = %d, want 8", sched.ProjectDuration)
	}
	want := map[string]CPM{
		"A": {ES: 0, EF: 5, LS: 0, LF: 5, Float: 0, IsCritical: true},
		"B": {ES: 5, EF: 8, LS: 5, LF: 8, Float: 0, IsCritical: true},
		"C": {ES: 5, EF: 7, LS: 6, LF: 8, Float: 1, IsCritical: false},
	}
	for id, w := range want {
		got, ok := sched.Lookup(id)
		if !ok {
			t.Fatalf("Lookup(%q) missing", id)
		}
		if got.CPM != w {
			t.Fatalf("CPM(%s) = %+v, want %+v", id, got.CPM, w)
		}
		if got.IsCritical != w.IsCritical {
			t.Fatalf("IsCritical(%s) = %t, want %t", id, got.IsCritical, w.IsCritical)
		}
	}
	if path := sched.CriticalPath(); fmt.Sprint(path) != "[A B]" {
		t.Fatalf("CriticalPath() = %v, want [A B]", path)
	}
}

func TestComputeEmptyInput(t *testing.T) {
	sched, err := Compute(nil, nil)
	if err != nil {
		t.Fatalf("Compute(nil) error = %v", err)
	}
	if len(sched.Activities) != 0 || sched.ProjectDuration != 0 {
		t.Fatalf("expected empty schedule, got %+v", sched)
	}
	if sched.CriticalPath() != nil {
		t.Fatal("expected no critical path for empty schedule")
	}
}

func TestComputeDoesNotMutateInput(t *testing.T) {
	activities := []domain.Activity{act("A", 0, 2), act("B", 0, 2)}
	edges := []domain.Dependency{dep("B", "A")}
	before := activities[1]
	if _, err := Compute(activities, edges); err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if activities[1] != before {
		t.Fatalf("input activity mutated: %+v", activities[1])
	}
}

func TestComputeZeroLengthSpanCountsAsOneDay(t *testing.T) {
	sched, err := Compute([]domain.Activity{act("M", 0, 0)}, nil)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if sched.ProjectDuration != 1 {
		t.Fatalf("ProjectDuration = %d, want 1", sched.ProjectDuration)
	}
}

func TestComputeToleranceOption(t *testing.T) {
	activities := []domain.Activity{act("A", 0, 5), act("B", 5, 3), act("C", 5, 2)}
	edges := []domain.Dependency{dep("B", "A"), dep("C", "A")}
	sched, err := Compute(activities, edges, WithCriticalTolerance(1.5))
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	c, _ := sched.Lookup("C")
	if !c.IsCritical {
		t.Fatal("expected C critical with tolerance 1.5")
	}
}

func TestCriticalPathWithToleranceFollowsZeroFloat(t *testing.T) {
	cases := []struct {
		name       string
		activities []domain.Activity
		edges      []domain.Dependency
		want       string
	}{
		{
			name:       "near-critical source listed first",
			activities: []domain.Activity{act("X", 0, 2), act("A", 0, 3), act("Y", 3, 2)},
			edges:      []domain.Dependency{dep("Y", "X"), dep("Y", "A")},
			want:       "[A Y]",
		},
		{
			name:       "near-critical branch listed first",
			activities: []domain.Activity{act("A", 0, 2), act("C", 2, 2), act("B", 2, 3), act("D", 5, 1)},
			edges:      []domain.Dependency{dep("C", "A"), dep("B", "A"), dep("D", "C"), dep("D", "B")},
			want:       "[A B D]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sched, err := Compute(tc.activities, tc.edges, WithCriticalTolerance(1.5))
			if err != nil {
				t.Fatalf("Compute() error = %v", err)
			}
			path := sched.CriticalPath()
			if fmt.Sprint(path) != tc.want {
				t.Fatalf("CriticalPath() = %v, want %s", path, tc.want)
			}
			end, _ := sched.Lookup(path[len(path)-1])
			if end.CPM.EF != sched.ProjectDuration {
				t.Fatalf("critical path ends at %d, project duration %d", end.CPM.EF, sched.ProjectDuration)
			}
		})
	}
}

func TestComputeRejectsCycle(t *testing.T) {
	activities := []domain.Activity{act("A", 0, 1), act("B", 0, 1), act("C", 0, 1)}
	edges := []domain.Dependency{dep("B", "A"), dep("C", "B"), dep("A", "C")}
	_, err := Compute(activities, edges)
	if !errors.Is(err, ErrCycle) {
		t.Fatalf("Compute() error = %v, want ErrCycle", err)
	}
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T", err)
	}
	if len(cycleErr.Path) != 4 || cycleErr.Path[0] != cycleErr.Path[3] {
		t.Fatalf("unexpected cycle path %v", cycleErr.Path)
	}
}

func TestComputeReportsUnknownEdges(t *testing.T) {
	activities := []domain.Activity{act("A", 0, 2), act("B", 0, 2)}
	edges := []domain.Dependency{dep("B", "A"), dep("B", "ghost"), dep("B", "A")}
	sched, err := Compute(activities, edges)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if len(sched.Warnings) != 2 {
		t.Fatalf("expected unknown + duplicate warnings, got %+v", sched.Warnings)
	}
	if sched.Warnings[0].Kind != WarningUnknownDependency || sched.Warnings[1].Kind != WarningDuplicateEdge {
		t.Fatalf("unexpected warning kinds %+v", sched.Warnings)
	}
	b, _ := sched.Lookup("B")
	if b.CPM.ES != 2 {
		t.Fatalf("ES(B) = %d, want 2", b.CPM.ES)
	}
}

// randomDAG builds n activities with edges only from lower to higher creation index, then
// shuffles the activity slice so input order says nothing about dependency order.
func randomDAG(r *rand.Rand, n int) ([]domain.Activity, []domain.Dependency) {
	activities := make([]domain.Activity, 0, n)
	for i := 0; i < n; i++ {
		activities = append(activities, act(fmt.Sprintf("n%02d", i), r.Intn(10), r.Intn(6)))
	}
	var edges []domain.Dependency
	for j := 1; j < n; j++ {
		for i := 0; i < j; i++ {
			if r.Intn(4) == 0 {
				edges = append(edges, dep(activities[j].ID, activities[i].ID))
			}
		}
	}
	r.Shuffle(len(activities), func(i, j int) { activities[i], activities[j] = activities[j], activities[i] })
	return activities, edges
}

func TestTopologicalOrderRespectsEveryEdge(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		activities, edges := randomDAG(r, 2+r.Intn(20))
		g := BuildGraph(activities, edges)
		order, err := TopologicalOrder(g)
		if err != nil {
			t.Fatalf("round %d: TopologicalOrder() error = %v", round, err)
		}
		if len(order) != len(activities) {
			t.Fatalf("round %d: order has %d entries, want %d", round, len(order), len(activities))
		}
		pos := make(map[string]int, len(order))
		for k, i := range order {
			pos[g.Node(i).Activity.ID] = k
		}
		for _, e := range edges {
			if pos[e.DependsOnActivityID] >= pos[e.ActivityID] {
				t.Fatalf("round %d: %s must precede %s", round, e.DependsOnActivityID, e.ActivityID)
			}
		}
	}
}

func TestComputeFloatAndCriticalPathProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	for round := 0; round < 50; round++ {
		activities, edges := randomDAG(r, 1+r.Intn(25))
		sched, err := Compute(activities, edges)
		if err != nil {
			t.Fatalf("round %d: Compute() error = %v", round, err)
		}
		for _, a := range sched.Activities {
			if a.CPM.Float < 0 {
				t.Fatalf("round %d: negative float for %s: %+v", round, a.ID, a.CPM)
			}
			if a.CPM.EF-a.CPM.ES != a.Duration || a.CPM.LF-a.CPM.LS != a.Duration {
				t.Fatalf("round %d: inconsistent span for %s: %+v", round, a.ID, a.CPM)
			}
		}

		path := sched.CriticalPath()
		if len(path) == 0 {
			t.Fatalf("round %d: expected a critical path", round)
		}
		g := BuildGraph(activities, edges)
		first := g.Predecessors(path[0])
		last := g.Successors(path[len(path)-1])
		if len(first) != 0 || len(last) != 0 {
			t.Fatalf("round %d: critical path %v must run source to sink", round, path)
		}
		for k := 1; k < len(path); k++ {
			linked := false
			for _, p := range g.Predecessors(path[k]) {
				if p.ID == path[k-1] {
					linked = true
				}
			}
			if !linked {
				t.Fatalf("round %d: critical path %v broken at %s", round, path, path[k])
			}
		}
		end, _ := sched.Lookup(path[len(path)-1])
		if end.CPM.EF != sched.ProjectDuration {
			t.Fatalf("round %d: critical path ends at %d, project duration %d", round, end.CPM.EF, sched.ProjectDuration)
		}
	}
}
