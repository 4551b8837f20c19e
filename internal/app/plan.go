package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

// PlanVersion tags the JSON plan format.
const PlanVersion = "groundline.plan.v1"

// Plan is the portable JSON form of one project: activities with day dates plus edges.
type Plan struct {
	Version      string           `json:"version"`
	ExportedAt   time.Time        `json:"exported_at,omitzero"`
	Project      PlanProject      `json:"project"`
	Activities   []PlanActivity   `json:"activities"`
	Dependencies []PlanDependency `json:"dependencies"`
}

// PlanProject represents plan project data used by this package.
type PlanProject struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PlanActivity represents one activity row in a plan. Dates use YYYY-MM-DD.
type PlanActivity struct {
	ID            string        `json:"id"`
	Code          string        `json:"code,omitempty"`
	Name          string        `json:"name"`
	ParentID      string        `json:"parent_id,omitempty"`
	StartDate     string        `json:"start_date"`
	EndDate       string        `json:"end_date"`
	Percent       int           `json:"percent,omitempty"`
	Status        domain.Status `json:"status,omitempty"`
	PlannedWeight float64       `json:"planned_weight,omitempty"`
}

// PlanDependency is one finish-to-start edge in a plan.
type PlanDependency struct {
	ActivityID          string `json:"activity_id"`
	DependsOnActivityID string `json:"depends_on_activity_id"`
}

// DecodePlan reads one JSON plan, rejecting unknown fields.
func DecodePlan(r io.Reader) (Plan, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	var plan Plan
	if err := dec.Decode(&plan); err != nil {
		return Plan{}, fmt.Errorf("%w: decode: %v", ErrInvalidPlan, err)
	}
	return plan, nil
}

// Domain converts the plan rows into engine inputs. It checks row shape only; references are left
// to Validate so a pure schedule run can still surface them as warnings.
func (p Plan) Domain(now time.Time) ([]domain.Activity, []domain.Dependency, error) {
	if v := strings.TrimSpace(p.Version); v != "" && v != PlanVersion {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedPlanVersion, v)
	}
	projectID := strings.TrimSpace(p.Project.ID)
	if projectID == "" {
		projectID = "plan"
	}

	activities := make([]domain.Activity, 0, len(p.Activities))
	for i, row := range p.Activities {
		a, err := row.toDomain(projectID, now)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: activities[%d]: %w", ErrInvalidPlan, i, err)
		}
		activities = append(activities, a)
	}
	edges := make([]domain.Dependency, 0, len(p.Dependencies))
	for i, row := range p.Dependencies {
		dep, err := domain.NewDependency(projectID, row.ActivityID, row.DependsOnActivityID, now)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: dependencies[%d]: %w", ErrInvalidPlan, i, err)
		}
		edges = append(edges, dep)
	}
	return activities, edges, nil
}

// Validate checks the plan is importable: unique ids, known parents and edge endpoints, and no
// dependency or hierarchy cycles.
func (p Plan) Validate() error {
	if strings.TrimSpace(p.Project.Name) == "" {
		return fmt.Errorf("%w: project.name is required", ErrInvalidPlan)
	}
	activities, edges, err := p.Domain(time.Now())
	if err != nil {
		return err
	}
	ids := make(map[string]struct{}, len(activities))
	for _, a := range activities {
		if _, dup := ids[a.ID]; dup {
			return fmt.Errorf("%w: duplicate activity id %q", ErrInvalidPlan, a.ID)
		}
		ids[a.ID] = struct{}{}
	}
	for _, a := range activities {
		if !a.HasParent() {
			continue
		}
		if _, ok := ids[a.ParentID]; !ok {
			return fmt.Errorf("%w: activity %q references unknown parent %q", ErrInvalidPlan, a.ID, a.ParentID)
		}
	}
	g := schedule.BuildGraph(activities, edges)
	if warnings := g.Warnings(); len(warnings) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPlan, warnings[0].Message)
	}
	if cycle := schedule.CycleFor(g); cycle != nil {
		return cycle
	}
	h := schedule.NewHierarchy(activities)
	for _, a := range activities {
		if _, err := h.Ancestors(a.ID); err != nil {
			return err
		}
	}
	return nil
}

// ExportPlan exports one project as a plan.
func (s *Service) ExportPlan(ctx context.Context, projectID string) (Plan, error) {
	project, err := s.repo.GetProject(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return Plan{}, err
	}
	activities, err := s.repo.ListActivities(ctx, project.ID)
	if err != nil {
		return Plan{}, err
	}
	edges, err := s.repo.ListDependencies(ctx, project.ID)
	if err != nil {
		return Plan{}, err
	}

	plan := Plan{
		Version:    PlanVersion,
		ExportedAt: s.clock().UTC(),
		Project: PlanProject{
			ID:          project.ID,
			Name:        project.Name,
			Description: project.Description,
		},
		Activities:   make([]PlanActivity, 0, len(activities)),
		Dependencies: make([]PlanDependency, 0, len(edges)),
	}
	for _, a := range activities {
		plan.Activities = append(plan.Activities, planActivityFromDomain(a))
	}
	for _, e := range edges {
		plan.Dependencies = append(plan.Dependencies, PlanDependency{
			ActivityID:          e.ActivityID,
			DependsOnActivityID: e.DependsOnActivityID,
		})
	}
	sort.Slice(plan.Dependencies, func(i, j int) bool {
		a, b := plan.Dependencies[i], plan.Dependencies[j]
		if a.ActivityID == b.ActivityID {
			return a.DependsOnActivityID < b.DependsOnActivityID
		}
		return a.ActivityID < b.ActivityID
	})
	return plan, nil
}

// ImportPlan creates or updates the plan's project, activities and edges. Existing rows with the
// same id are overwritten; edges already present are kept. The plan is checked against the stored
// project before anything is written, and every parent is re-aggregated from its children after.
func (s *Service) ImportPlan(ctx context.Context, plan Plan) (domain.Project, error) {
	if err := plan.Validate(); err != nil {
		return domain.Project{}, err
	}
	now := s.clock()
	if strings.TrimSpace(plan.Project.ID) == "" {
		plan.Project.ID = s.idGen()
	}
	activities, edges, err := plan.Domain(now)
	if err != nil {
		return domain.Project{}, err
	}

	project, err := s.repo.GetProject(ctx, strings.TrimSpace(plan.Project.ID))
	exists := err == nil
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Project{}, err
	}
	var storedActivities []domain.Activity
	var storedEdges []domain.Dependency
	if exists {
		if storedActivities, err = s.repo.ListActivities(ctx, project.ID); err != nil {
			return domain.Project{}, err
		}
		if storedEdges, err = s.repo.ListDependencies(ctx, project.ID); err != nil {
			return domain.Project{}, err
		}
		if err := checkMergedPlan(storedActivities, storedEdges, activities, edges); err != nil {
			return domain.Project{}, err
		}
	} else {
		project, err = domain.NewProject(plan.Project.ID, plan.Project.Name, plan.Project.Description, now)
		if err != nil {
			return domain.Project{}, err
		}
	}

	for _, a := range activities {
		existing, getErr := s.repo.GetActivity(ctx, a.ID)
		switch {
		case getErr == nil:
			if existing.ProjectID != project.ID {
				return domain.Project{}, fmt.Errorf("%w: activity %q is in project %q", ErrProjectMismatch, a.ID, existing.ProjectID)
			}
		case !errors.Is(getErr, ErrNotFound):
			return domain.Project{}, getErr
		}
	}

	if !exists {
		if err := s.repo.CreateProject(ctx, project); err != nil {
			return domain.Project{}, err
		}
	}
	for _, a := range activities {
		existing, getErr := s.repo.GetActivity(ctx, a.ID)
		switch {
		case getErr == nil:
			a.CreatedAt = existing.CreatedAt
			if err := s.repo.UpdateActivity(ctx, a); err != nil {
				return domain.Project{}, err
			}
		case errors.Is(getErr, ErrNotFound):
			if err := s.repo.CreateActivity(ctx, a); err != nil {
				return domain.Project{}, err
			}
		default:
			return domain.Project{}, getErr
		}
	}

	for _, e := range edges {
		if containsEdge(storedEdges, e) {
			continue
		}
		if err := s.repo.CreateDependency(ctx, e); err != nil {
			return domain.Project{}, err
		}
		storedEdges = append(storedEdges, e)
	}

	if err := s.reaggregateParents(ctx, project.ID); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// checkMergedPlan overlays incoming rows on the stored project and refuses the result when it
// holds a dependency cycle or a parent loop.
func checkMergedPlan(stored []domain.Activity, storedEdges []domain.Dependency, incoming []domain.Activity, incomingEdges []domain.Dependency) error {
	replaced := make(map[string]domain.Activity, len(incoming))
	for _, a := range incoming {
		replaced[a.ID] = a
	}
	merged := make([]domain.Activity, 0, len(stored)+len(incoming))
	for _, a := range stored {
		if _, ok := replaced[a.ID]; !ok {
			merged = append(merged, a)
		}
	}
	merged = append(merged, incoming...)

	edges := make([]domain.Dependency, 0, len(storedEdges)+len(incomingEdges))
	edges = append(edges, storedEdges...)
	for _, e := range incomingEdges {
		if !containsEdge(edges, e) {
			edges = append(edges, e)
		}
	}

	if cycle := schedule.CycleFor(schedule.BuildGraph(merged, edges)); cycle != nil {
		return cycle
	}
	h := schedule.NewHierarchy(merged)
	for _, a := range merged {
		if _, err := h.Ancestors(a.ID); err != nil {
			return err
		}
	}
	return nil
}

// reaggregateParents recomputes every activity with children, deepest first.
func (s *Service) reaggregateParents(ctx context.Context, projectID string) error {
	activities, err := s.repo.ListActivities(ctx, projectID)
	if err != nil {
		return err
	}
	h := schedule.NewHierarchy(activities)
	type parentDepth struct {
		id    string
		depth int
	}
	var parents []parentDepth
	for _, a := range activities {
		if !h.HasChildren(a.ID) {
			continue
		}
		chain, err := h.Ancestors(a.ID)
		if err != nil {
			return err
		}
		parents = append(parents, parentDepth{id: a.ID, depth: len(chain)})
	}
	sort.SliceStable(parents, func(i, j int) bool { return parents[i].depth > parents[j].depth })
	for _, p := range parents {
		if err := s.refreshHierarchy(ctx, projectID, p.id); err != nil {
			return err
		}
	}
	return nil
}

func containsEdge(edges []domain.Dependency, want domain.Dependency) bool {
	for _, e := range edges {
		if e.SameEdge(want) {
			return true
		}
	}
	return false
}

func planActivityFromDomain(a domain.Activity) PlanActivity {
	return PlanActivity{
		ID:            a.ID,
		Code:          a.Code,
		Name:          a.Name,
		ParentID:      a.ParentID,
		StartDate:     domain.FormatDate(a.StartDate),
		EndDate:       domain.FormatDate(a.EndDate),
		Percent:       a.Percent,
		Status:        a.Status,
		PlannedWeight: a.PlannedWeight,
	}
}

func (row PlanActivity) toDomain(projectID string, now time.Time) (domain.Activity, error) {
	start, err := domain.ParseDate(row.StartDate)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("start_date: %w", err)
	}
	end, err := domain.ParseDate(row.EndDate)
	if err != nil {
		return domain.Activity{}, fmt.Errorf("end_date: %w", err)
	}
	a, err := domain.NewActivity(domain.ActivityInput{
		ID:            row.ID,
		ProjectID:     projectID,
		Code:          row.Code,
		Name:          row.Name,
		ParentID:      row.ParentID,
		StartDate:     start,
		EndDate:       end,
		PlannedWeight: row.PlannedWeight,
	}, now)
	if err != nil {
		return domain.Activity{}, err
	}
	if row.Percent < 0 || row.Percent > 100 {
		return domain.Activity{}, domain.ErrInvalidPercent
	}
	a.Percent = row.Percent
	if strings.TrimSpace(string(row.Status)) != "" {
		if err := a.SetStatus(row.Status, now); err != nil {
			return domain.Activity{}, err
		}
	}
	return a, nil
}
