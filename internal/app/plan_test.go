package app

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

const samplePlan = `{
  "version": "groundline.plan.v1",
  "project": {"id": "p-tower", "name": "Tower"},
  "activities": [
    {"id": "a", "code": "A", "name": "Excavation", "start_date": "2026-03-02", "end_date": "2026-03-07"},
    {"id": "b", "code": "B", "name": "Footings", "start_date": "2026-03-07", "end_date": "2026-03-10", "percent": 20, "status": "in_progress"},
    {"id": "c", "code": "C", "name": "Drainage", "start_date": "2026-03-07", "end_date": "2026-03-09"}
  ],
  "dependencies": [
    {"activity_id": "b", "depends_on_activity_id": "a"},
    {"activity_id": "c", "depends_on_activity_id": "a"}
  ]
}`

func TestDecodePlanAndCompute(t *testing.T) {
	plan, err := DecodePlan(strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}
	activities, edges, err := plan.Domain(testNow)
	if err != nil {
		t.Fatalf("Domain() error = %v", err)
	}
	if activities[1].Status != domain.StatusInProgress || activities[1].Percent != 20 {
		t.Fatalf("unexpected activity %+v", activities[1])
	}
	sched, err := schedule.Compute(activities, edges)
	if err != nil {
		t.Fatalf("Compute() error = %v", err)
	}
	if sched.ProjectDuration != 8 {
		t.Fatalf("ProjectDuration = %d, want 8", sched.ProjectDuration)
	}
}

func TestDecodePlanRejectsUnknownFields(t *testing.T) {
	_, err := DecodePlan(strings.NewReader(`{"version":"groundline.plan.v1","bogus":1}`))
	if !errors.Is(err, ErrInvalidPlan) {
		t.Fatalf("DecodePlan() error = %v, want ErrInvalidPlan", err)
	}
}

func TestPlanValidate(t *testing.T) {
	base, err := DecodePlan(strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Plan)
		want   error
	}{
		{name: "version", mutate: func(p *Plan) { p.Version = "v0" }, want: ErrUnsupportedPlanVersion},
		{name: "bad date", mutate: func(p *Plan) { p.Activities[0].EndDate = "soon" }, want: domain.ErrInvalidDate},
		{name: "unknown edge", mutate: func(p *Plan) { p.Dependencies[0].DependsOnActivityID = "zzz" }, want: ErrInvalidPlan},
		{name: "unknown parent", mutate: func(p *Plan) { p.Activities[2].ParentID = "zzz" }, want: ErrInvalidPlan},
		{name: "cycle", mutate: func(p *Plan) {
			p.Dependencies = append(p.Dependencies, PlanDependency{ActivityID: "a", DependsOnActivityID: "b"})
		}, want: schedule.ErrCycle},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan, _ := DecodePlan(strings.NewReader(samplePlan))
			tc.mutate(&plan)
			if err := plan.Validate(); !errors.Is(err, tc.want) {
				t.Fatalf("Validate() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestImportThenExportPlan(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	plan, err := DecodePlan(strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}
	project, err := svc.ImportPlan(ctx, plan)
	if err != nil {
		t.Fatalf("ImportPlan() error = %v", err)
	}
	if project.ID != "p-tower" || len(repo.activities) != 3 || len(repo.deps) != 2 {
		t.Fatalf("unexpected import result project=%+v activities=%d deps=%d", project, len(repo.activities), len(repo.deps))
	}

	plan.Activities[0].Name = "Excavation and shoring"
	if _, err := svc.ImportPlan(ctx, plan); err != nil {
		t.Fatalf("second ImportPlan() error = %v", err)
	}
	if len(repo.deps) != 2 {
		t.Fatalf("re-import duplicated edges: %d", len(repo.deps))
	}
	if repo.activities["a"].Name != "Excavation and shoring" {
		t.Fatalf("re-import did not update activity: %+v", repo.activities["a"])
	}

	out, err := svc.ExportPlan(ctx, project.ID)
	if err != nil {
		t.Fatalf("ExportPlan() error = %v", err)
	}
	if out.Version != PlanVersion || len(out.Activities) != 3 || len(out.Dependencies) != 2 {
		t.Fatalf("unexpected export %+v", out)
	}
	if out.Activities[0].StartDate != "2026-03-02" {
		t.Fatalf("export start date = %q", out.Activities[0].StartDate)
	}
	if out.Dependencies[0].ActivityID != "b" {
		t.Fatalf("dependencies not sorted: %+v", out.Dependencies)
	}
}

func TestImportPlanRejectsCycleWithStoredEdges(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	plan, err := DecodePlan(strings.NewReader(samplePlan))
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}
	if _, err := svc.ImportPlan(ctx, plan); err != nil {
		t.Fatalf("ImportPlan() error = %v", err)
	}

	plan.Activities[0].Name = "Renamed"
	plan.Dependencies = []PlanDependency{{ActivityID: "a", DependsOnActivityID: "b"}}
	_, err = svc.ImportPlan(ctx, plan)
	if !errors.Is(err, schedule.ErrCycle) {
		t.Fatalf("ImportPlan() error = %v, want ErrCycle", err)
	}
	if len(repo.deps) != 2 {
		t.Fatalf("conflicting import stored edges: %+v", repo.deps)
	}
	if repo.activities["a"].Name != "Excavation" {
		t.Fatalf("conflicting import wrote activities: %+v", repo.activities["a"])
	}
	if _, err := svc.ComputeSchedule(ctx, "p-tower"); err != nil {
		t.Fatalf("ComputeSchedule() after refused import error = %v", err)
	}
}

func TestCheckMergedPlanRejectsParentLoop(t *testing.T) {
	stored := []domain.Activity{
		{ID: "a", ProjectID: "p", Name: "A", StartDate: day(0), EndDate: day(1)},
		{ID: "y", ProjectID: "p", Name: "Y", ParentID: "a", StartDate: day(0), EndDate: day(1)},
	}
	incoming := []domain.Activity{
		{ID: "a", ProjectID: "p", Name: "A", ParentID: "y", StartDate: day(0), EndDate: day(1)},
	}
	if err := checkMergedPlan(stored, nil, incoming, nil); !errors.Is(err, schedule.ErrCycle) {
		t.Fatalf("checkMergedPlan() error = %v, want ErrCycle", err)
	}
	incoming[0].ParentID = ""
	if err := checkMergedPlan(stored, nil, incoming, nil); err != nil {
		t.Fatalf("checkMergedPlan() error = %v", err)
	}
}

func TestImportPlanReaggregatesParents(t *testing.T) {
	repo := newFakeRepo()
	svc := newTestService(repo)

	const nested = `{
  "version": "groundline.plan.v1",
  "project": {"id": "p-nested", "name": "Nested"},
  "activities": [
    {"id": "g", "name": "Building", "start_date": "2026-01-01", "end_date": "2026-12-31"},
    {"id": "p", "name": "Structure", "parent_id": "g", "start_date": "2026-01-01", "end_date": "2026-12-31", "percent": 10},
    {"id": "k", "name": "Columns", "parent_id": "p", "start_date": "2026-03-02", "end_date": "2026-03-04", "percent": 100}
  ],
  "dependencies": []
}`
	plan, err := DecodePlan(strings.NewReader(nested))
	if err != nil {
		t.Fatalf("DecodePlan() error = %v", err)
	}
	if _, err := svc.ImportPlan(context.Background(), plan); err != nil {
		t.Fatalf("ImportPlan() error = %v", err)
	}

	start, _ := domain.ParseDate("2026-03-02")
	end, _ := domain.ParseDate("2026-03-04")
	for _, id := range []string{"p", "g"} {
		got := repo.activities[id]
		if got.Percent != 100 {
			t.Fatalf("%s percent = %d, want 100", id, got.Percent)
		}
		if !got.StartDate.Equal(start) || !got.EndDate.Equal(end) {
			t.Fatalf("%s span = %s..%s, want child span", id, got.StartDate, got.EndDate)
		}
	}
}
