package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/groundline/internal/app"
	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

// AppServiceAdapter maps transport contracts onto app.Service.
type AppServiceAdapter struct {
	service *app.Service
}

// NewAppServiceAdapter builds one common adapter over an app.Service instance.
func NewAppServiceAdapter(service *app.Service) *AppServiceAdapter {
	return &AppServiceAdapter{service: service}
}

// ListProjects lists every project.
func (a *AppServiceAdapter) ListProjects(ctx context.Context) ([]domain.Project, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	projects, err := a.service.ListProjects(ctx)
	if err != nil {
		return nil, mapAppError("list projects", err)
	}
	return projects, nil
}

// CreateProject creates one project.
func (a *AppServiceAdapter) CreateProject(ctx context.Context, in CreateProjectRequest) (domain.Project, error) {
	if err := a.ready(); err != nil {
		return domain.Project{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Project{}, fmt.Errorf("name is required: %w", ErrInvalidRequest)
	}
	project, err := a.service.CreateProject(ctx, name, strings.TrimSpace(in.Description))
	if err != nil {
		return domain.Project{}, mapAppError("create project", err)
	}
	return project, nil
}

// ListActivities lists one project's activities.
func (a *AppServiceAdapter) ListActivities(ctx context.Context, projectID string) ([]domain.Activity, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	projectID, err := requireID("project_id", projectID)
	if err != nil {
		return nil, err
	}
	activities, err := a.service.ListActivities(ctx, projectID)
	if err != nil {
		return nil, mapAppError("list activities", err)
	}
	return activities, nil
}

// CreateActivity creates one activity under a project.
func (a *AppServiceAdapter) CreateActivity(ctx context.Context, in CreateActivityRequest) (domain.Activity, error) {
	if err := a.ready(); err != nil {
		return domain.Activity{}, err
	}
	projectID, err := requireID("project_id", in.ProjectID)
	if err != nil {
		return domain.Activity{}, err
	}
	start, err := parseDay("start_date", in.StartDate)
	if err != nil {
		return domain.Activity{}, err
	}
	end, err := parseDay("end_date", in.EndDate)
	if err != nil {
		return domain.Activity{}, err
	}
	activity, err := a.service.CreateActivity(ctx, app.CreateActivityInput{
		ProjectID:     projectID,
		Code:          in.Code,
		Name:          in.Name,
		ParentID:      strings.TrimSpace(in.ParentID),
		StartDate:     start,
		EndDate:       end,
		PlannedWeight: in.PlannedWeight,
	})
	if err != nil {
		return domain.Activity{}, mapAppError("create activity", err)
	}
	return activity, nil
}

// AddDependency records one finish-to-start edge.
func (a *AppServiceAdapter) AddDependency(ctx context.Context, in DependencyRequest) (domain.Dependency, error) {
	if err := a.ready(); err != nil {
		return domain.Dependency{}, err
	}
	in, err := normalizeDependencyRequest(in)
	if err != nil {
		return domain.Dependency{}, err
	}
	dep, err := a.service.AddDependency(ctx, app.AddDependencyInput{
		ProjectID:           in.ProjectID,
		ActivityID:          in.ActivityID,
		DependsOnActivityID: in.DependsOnActivityID,
	})
	if err != nil {
		return domain.Dependency{}, mapAppError("add dependency", err)
	}
	return dep, nil
}

// RemoveDependency deletes one finish-to-start edge.
func (a *AppServiceAdapter) RemoveDependency(ctx context.Context, in DependencyRequest) error {
	if err := a.ready(); err != nil {
		return err
	}
	in, err := normalizeDependencyRequest(in)
	if err != nil {
		return err
	}
	if err := a.service.RemoveDependency(ctx, in.ProjectID, in.ActivityID, in.DependsOnActivityID); err != nil {
		return mapAppError("remove dependency", err)
	}
	return nil
}

// ComputeSchedule runs the critical-path computation for one project.
func (a *AppServiceAdapter) ComputeSchedule(ctx context.Context, projectID string) (ScheduleView, error) {
	if err := a.ready(); err != nil {
		return ScheduleView{}, err
	}
	projectID, err := requireID("project_id", projectID)
	if err != nil {
		return ScheduleView{}, err
	}
	sched, err := a.service.ComputeSchedule(ctx, projectID)
	if err != nil {
		return ScheduleView{}, mapAppError("compute schedule", err)
	}
	return NewScheduleView(projectID, sched), nil
}

// ApplyProgress records one leaf percent and returns every rolled-up activity.
func (a *AppServiceAdapter) ApplyProgress(ctx context.Context, in ProgressRequest) (schedule.Rollup, error) {
	if err := a.ready(); err != nil {
		return schedule.Rollup{}, err
	}
	activityID, err := requireID("activity_id", in.ActivityID)
	if err != nil {
		return schedule.Rollup{}, err
	}
	if in.Percent == nil {
		return schedule.Rollup{}, fmt.Errorf("percent is required: %w", ErrInvalidRequest)
	}
	var reportedAt time.Time
	if strings.TrimSpace(in.ReportedAt) != "" {
		reportedAt, err = parseDay("reported_at", in.ReportedAt)
		if err != nil {
			return schedule.Rollup{}, err
		}
	}
	rollup, err := a.service.ApplyProgressUpdate(ctx, app.ProgressUpdateInput{
		ActivityID: activityID,
		Percent:    *in.Percent,
		Note:       in.Note,
		ReportedAt: reportedAt,
	})
	if err != nil {
		return schedule.Rollup{}, mapAppError("apply progress", err)
	}
	return rollup, nil
}

// CloseActivity validates the closure gates and closes one activity.
func (a *AppServiceAdapter) CloseActivity(ctx context.Context, in CloseActivityRequest) (domain.ClosureRecord, error) {
	if err := a.ready(); err != nil {
		return domain.ClosureRecord{}, err
	}
	activityID, err := requireID("activity_id", in.ActivityID)
	if err != nil {
		return domain.ClosureRecord{}, err
	}
	record, err := a.service.ValidateAndClose(ctx, app.CloseActivityInput{
		ActivityID: activityID,
		Approvers: domain.Approvers{
			ProjectManager: in.ProjectManager,
			Director:       in.Director,
			Contractor:     in.Contractor,
		},
	})
	if err != nil {
		return domain.ClosureRecord{}, mapAppError("close activity", err)
	}
	return record, nil
}

// GetClosureRecord returns the closure record of one activity.
func (a *AppServiceAdapter) GetClosureRecord(ctx context.Context, activityID string) (domain.ClosureRecord, error) {
	if err := a.ready(); err != nil {
		return domain.ClosureRecord{}, err
	}
	activityID, err := requireID("activity_id", activityID)
	if err != nil {
		return domain.ClosureRecord{}, err
	}
	record, err := a.service.GetClosureRecord(ctx, activityID)
	if err != nil {
		return domain.ClosureRecord{}, mapAppError("get closure record", err)
	}
	return record, nil
}

// ListProgressSnapshots lists the weekly progress rows of one activity.
func (a *AppServiceAdapter) ListProgressSnapshots(ctx context.Context, activityID string) ([]domain.ProgressSnapshot, error) {
	if err := a.ready(); err != nil {
		return nil, err
	}
	activityID, err := requireID("activity_id", activityID)
	if err != nil {
		return nil, err
	}
	snaps, err := a.service.ListProgressSnapshots(ctx, activityID)
	if err != nil {
		return nil, mapAppError("list progress snapshots", err)
	}
	return snaps, nil
}

// NewScheduleView converts one computed schedule to its transport shape.
func NewScheduleView(projectID string, sched schedule.Schedule) ScheduleView {
	path := sched.CriticalPath()
	if path == nil {
		path = []string{}
	}
	activities := sched.Activities
	if activities == nil {
		activities = []schedule.ScheduledActivity{}
	}
	return ScheduleView{
		ProjectID:       projectID,
		ProjectDuration: sched.ProjectDuration,
		CriticalPath:    path,
		Order:           sched.Order,
		Activities:      activities,
		Warnings:        sched.Warnings,
	}
}

func (a *AppServiceAdapter) ready() error {
	if a == nil || a.service == nil {
		return errors.New("app service adapter is not configured")
	}
	return nil
}

func normalizeDependencyRequest(in DependencyRequest) (DependencyRequest, error) {
	var err error
	if in.ProjectID, err = requireID("project_id", in.ProjectID); err != nil {
		return DependencyRequest{}, err
	}
	if in.ActivityID, err = requireID("activity_id", in.ActivityID); err != nil {
		return DependencyRequest{}, err
	}
	if in.DependsOnActivityID, err = requireID("depends_on_activity_id", in.DependsOnActivityID); err != nil {
		return DependencyRequest{}, err
	}
	return in, nil
}

func requireID(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("%s is required: %w", field, ErrInvalidRequest)
	}
	return value, nil
}

func parseDay(field, value string) (time.Time, error) {
	day, err := domain.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s: %w: %w", field, ErrInvalidRequest, err)
	}
	return day, nil
}

// mapAppError classifies app, engine and domain errors into transport sentinels. The original error
// stays in the chain so callers can still reach typed values such as *schedule.ClosureError.
func mapAppError(operation string, err error) error {
	if err == nil {
		return nil
	}
	var class error
	switch {
	case errors.Is(err, app.ErrNotFound), errors.Is(err, schedule.ErrActivityNotFound):
		class = ErrNotFound
	case errors.Is(err, app.ErrConflict),
		errors.Is(err, domain.ErrDuplicateDependency),
		errors.Is(err, schedule.ErrCycle):
		class = ErrConflict
	case errors.Is(err, schedule.ErrClosureRejected),
		errors.Is(err, schedule.ErrAggregateActivity),
		errors.Is(err, schedule.ErrActivityClosed),
		errors.Is(err, app.ErrProjectMismatch),
		errors.Is(err, domain.ErrSelfDependency),
		errors.Is(err, domain.ErrSelfParent):
		class = ErrBusinessRule
	case isDomainValidation(err),
		errors.Is(err, app.ErrInvalidPlan),
		errors.Is(err, app.ErrUnsupportedPlanVersion):
		class = ErrInvalidRequest
	default:
		return fmt.Errorf("%s: %w", operation, err)
	}
	return fmt.Errorf("%s: %w: %w", operation, class, err)
}

func isDomainValidation(err error) bool {
	for _, target := range []error{
		domain.ErrInvalidID,
		domain.ErrInvalidName,
		domain.ErrInvalidCode,
		domain.ErrInvalidDate,
		domain.ErrInvalidDateRange,
		domain.ErrInvalidPercent,
		domain.ErrInvalidWeight,
		domain.ErrInvalidStatus,
		domain.ErrInvalidApprovers,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
