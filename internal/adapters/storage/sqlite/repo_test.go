package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hylla/groundline/internal/app"
	"github.com/hylla/groundline/internal/domain"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(filepath.Join(t.TempDir(), "groundline.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})
	return repo
}

func seedActivity(t *testing.T, repo *Repository, id, parentID string, now time.Time) domain.Activity {
	t.Helper()
	a, err := domain.NewActivity(domain.ActivityInput{
		ID:        id,
		ProjectID: "p1",
		Name:      "Activity " + id,
		ParentID:  parentID,
		StartDate: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC),
	}, now)
	if err != nil {
		t.Fatalf("NewActivity() error = %v", err)
	}
	if err := repo.CreateActivity(context.Background(), a); err != nil {
		t.Fatalf("CreateActivity() error = %v", err)
	}
	return a
}

func seedProject(t *testing.T, repo *Repository, now time.Time) domain.Project {
	t.Helper()
	project, err := domain.NewProject("p1", "Tower", "north lot", now)
	if err != nil {
		t.Fatalf("NewProject() error = %v", err)
	}
	if err := repo.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	return project
}

func TestRepository_ProjectActivityLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)

	loaded, err := repo.GetProject(ctx, "p1")
	if err != nil {
		t.Fatalf("GetProject() error = %v", err)
	}
	if loaded.Slug != "tower" || loaded.Description != "north lot" {
		t.Fatalf("unexpected project %#v", loaded)
	}
	if _, err := repo.GetProject(ctx, "missing"); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetProject(missing) error = %v, want ErrNotFound", err)
	}

	a := seedActivity(t, repo, "a1", "", now)
	seedActivity(t, repo, "a2", "a1", now.Add(time.Minute))

	got, err := repo.GetActivity(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if !got.StartDate.Equal(a.StartDate) || !got.EndDate.Equal(a.EndDate) || got.Status != domain.StatusNotStarted {
		t.Fatalf("activity did not round-trip: %#v", got)
	}

	got.ApplyPercent(40, now.Add(time.Hour))
	got.PlannedWeight = 2.5
	if err := repo.UpdateActivity(ctx, got); err != nil {
		t.Fatalf("UpdateActivity() error = %v", err)
	}
	activities, err := repo.ListActivities(ctx, "p1")
	if err != nil {
		t.Fatalf("ListActivities() error = %v", err)
	}
	if len(activities) != 2 || activities[0].ID != "a1" || activities[1].ParentID != "a1" {
		t.Fatalf("unexpected activities %#v", activities)
	}
	if activities[0].Percent != 40 || activities[0].Status != domain.StatusInProgress || activities[0].PlannedWeight != 2.5 {
		t.Fatalf("update not persisted: %#v", activities[0])
	}

	missing := got
	missing.ID = "nope"
	if err := repo.UpdateActivity(ctx, missing); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("UpdateActivity(missing) error = %v, want ErrNotFound", err)
	}
}

func TestRepository_Dependencies(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)
	seedActivity(t, repo, "a", "", now)
	seedActivity(t, repo, "b", "", now)

	dep, err := domain.NewDependency("p1", "b", "a", now)
	if err != nil {
		t.Fatalf("NewDependency() error = %v", err)
	}
	if err := repo.CreateDependency(ctx, dep); err != nil {
		t.Fatalf("CreateDependency() error = %v", err)
	}
	if err := repo.CreateDependency(ctx, dep); !errors.Is(err, domain.ErrDuplicateDependency) {
		t.Fatalf("duplicate CreateDependency() error = %v, want ErrDuplicateDependency", err)
	}
	edges, err := repo.ListDependencies(ctx, "p1")
	if err != nil {
		t.Fatalf("ListDependencies() error = %v", err)
	}
	if len(edges) != 1 || edges[0].DependsOnActivityID != "a" {
		t.Fatalf("unexpected edges %#v", edges)
	}

	if err := repo.DeleteDependency(ctx, dep); err != nil {
		t.Fatalf("DeleteDependency() error = %v", err)
	}
	if err := repo.DeleteDependency(ctx, dep); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("second DeleteDependency() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_SaveProgressUpsertsWeeklySnapshot(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)
	parent := seedActivity(t, repo, "parent", "", now)
	leaf := seedActivity(t, repo, "leaf", "parent", now)

	for i, percent := range []int{30, 55} {
		leaf.ApplyPercent(percent, now.Add(time.Duration(i)*time.Hour))
		parent.Percent = percent
		snap, err := domain.NewProgressSnapshot(leaf, now, time.Monday, "week note", now.Add(time.Duration(i)*time.Hour))
		if err != nil {
			t.Fatalf("NewProgressSnapshot() error = %v", err)
		}
		if err := repo.SaveProgress(ctx, app.ProgressWrite{Leaf: leaf, Ancestors: []domain.Activity{parent}, Snapshot: snap}); err != nil {
			t.Fatalf("SaveProgress() error = %v", err)
		}
	}

	snaps, err := repo.ListProgressSnapshots(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("ListProgressSnapshots() error = %v", err)
	}
	if len(snaps) != 1 || snaps[0].Percent != 55 {
		t.Fatalf("expected one overwritten snapshot, got %#v", snaps)
	}
	if want := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC); !snaps[0].WeekStart.Equal(want) {
		t.Fatalf("week start = %s, want %s", snaps[0].WeekStart, want)
	}
	storedParent, err := repo.GetActivity(ctx, parent.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if storedParent.Percent != 55 {
		t.Fatalf("parent percent = %d, want 55", storedParent.Percent)
	}

	events, err := repo.ListProjectChangeEvents(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListProjectChangeEvents() error = %v", err)
	}
	counts := map[domain.ChangeOperation]int{}
	for _, e := range events {
		counts[e.Operation]++
	}
	if counts[domain.ChangeOperationProgress] != 2 || counts[domain.ChangeOperationRollup] != 2 || counts[domain.ChangeOperationCreate] != 2 {
		t.Fatalf("unexpected event counts %#v", counts)
	}
}

func TestRepository_SaveProgressRollsBackOnMissingAncestor(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)
	leaf := seedActivity(t, repo, "leaf", "", now)

	leaf.ApplyPercent(80, now)
	ghost := leaf
	ghost.ID = "ghost"
	snap, _ := domain.NewProgressSnapshot(leaf, now, time.Monday, "", now)
	err := repo.SaveProgress(ctx, app.ProgressWrite{Leaf: leaf, Ancestors: []domain.Activity{ghost}, Snapshot: snap})
	if !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("SaveProgress() error = %v, want ErrNotFound", err)
	}
	stored, err := repo.GetActivity(ctx, leaf.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if stored.Percent != 0 {
		t.Fatalf("leaf percent = %d, want rollback to 0", stored.Percent)
	}
}

func TestRepository_CloseActivityKeepsSingleRecord(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)
	a := seedActivity(t, repo, "a", "", now)
	a.ApplyPercent(100, now)
	if err := repo.UpdateActivity(ctx, a); err != nil {
		t.Fatalf("UpdateActivity() error = %v", err)
	}

	approvers := domain.Approvers{ProjectManager: "Ana"}
	expected := a
	for i, code := range []string{"CLS-A-1", "CLS-A-2"} {
		rec, err := domain.NewClosureRecord("rec-"+code, expected, code, approvers, now.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("NewClosureRecord() error = %v", err)
		}
		closed := expected
		closed.Close(now)
		err = repo.CloseActivity(ctx, app.ClosureWrite{
			Record:          rec,
			Activity:        closed,
			ExpectedPercent: expected.Percent,
			ExpectedStatus:  expected.Status,
		})
		if err != nil {
			t.Fatalf("CloseActivity(%s) error = %v", code, err)
		}
		expected = closed
	}

	rec, err := repo.GetClosureRecord(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetClosureRecord() error = %v", err)
	}
	if rec.Code != "CLS-A-2" || rec.Approvers.ProjectManager != "Ana" {
		t.Fatalf("unexpected closure record %#v", rec)
	}
	var count int
	if err := repo.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM closure_records WHERE activity_id = ?`, a.ID).Scan(&count); err != nil {
		t.Fatalf("count closure records error = %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 closure record, got %d", count)
	}
}

func TestRepository_CloseActivityConflict(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	now := time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	seedProject(t, repo, now)
	a := seedActivity(t, repo, "a", "", now)

	observed := a
	observed.ApplyPercent(100, now)
	rec, err := domain.NewClosureRecord("rec-1", observed, "CLS-A-1", domain.Approvers{Director: "Bo"}, now)
	if err != nil {
		t.Fatalf("NewClosureRecord() error = %v", err)
	}
	closed := observed
	closed.Close(now)
	err = repo.CloseActivity(ctx, app.ClosureWrite{
		Record:          rec,
		Activity:        closed,
		ExpectedPercent: observed.Percent,
		ExpectedStatus:  observed.Status,
	})
	if !errors.Is(err, app.ErrConflict) {
		t.Fatalf("CloseActivity() error = %v, want ErrConflict", err)
	}
	if _, err := repo.GetClosureRecord(ctx, a.ID); !errors.Is(err, app.ErrNotFound) {
		t.Fatalf("GetClosureRecord() error = %v, want ErrNotFound", err)
	}
}

func TestRepository_ServiceIntegration(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)
	ids := []string{"p", "a", "b", "rec", "code"}
	svc := app.NewService(repo, func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}, func() time.Time {
		return time.Date(2026, 3, 4, 12, 0, 0, 0, time.UTC)
	}, app.ServiceConfig{})

	project, err := svc.CreateProject(ctx, "Tower", "")
	if err != nil {
		t.Fatalf("CreateProject() error = %v", err)
	}
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	a, err := svc.CreateActivity(ctx, app.CreateActivityInput{ProjectID: project.ID, Code: "A", Name: "A", StartDate: start, EndDate: start.AddDate(0, 0, 5)})
	if err != nil {
		t.Fatalf("CreateActivity(A) error = %v", err)
	}
	b, err := svc.CreateActivity(ctx, app.CreateActivityInput{ProjectID: project.ID, Code: "B", Name: "B", StartDate: start.AddDate(0, 0, 5), EndDate: start.AddDate(0, 0, 8)})
	if err != nil {
		t.Fatalf("CreateActivity(B) error = %v", err)
	}
	if _, err := svc.AddDependency(ctx, app.AddDependencyInput{ActivityID: b.ID, DependsOnActivityID: a.ID}); err != nil {
		t.Fatalf("AddDependency() error = %v", err)
	}
	sched, err := svc.ComputeSchedule(ctx, project.ID)
	if err != nil {
		t.Fatalf("ComputeSchedule() error = %v", err)
	}
	if sched.ProjectDuration != 8 {
		t.Fatalf("ProjectDuration = %d, want 8", sched.ProjectDuration)
	}

	if _, err := svc.ApplyProgressUpdate(ctx, app.ProgressUpdateInput{ActivityID: a.ID, Percent: 100}); err != nil {
		t.Fatalf("ApplyProgressUpdate() error = %v", err)
	}
	rec, err := svc.ValidateAndClose(ctx, app.CloseActivityInput{ActivityID: a.ID, Approvers: domain.Approvers{ProjectManager: "Ana"}})
	if err != nil {
		t.Fatalf("ValidateAndClose() error = %v", err)
	}
	if rec.Code != "CLS-A-CODE" {
		t.Fatalf("closure code = %q, want CLS-A-CODE", rec.Code)
	}
	stored, err := repo.GetActivity(ctx, a.ID)
	if err != nil {
		t.Fatalf("GetActivity() error = %v", err)
	}
	if stored.Status != domain.StatusClosed {
		t.Fatalf("status = %s, want CLOSED", stored.Status)
	}
}
