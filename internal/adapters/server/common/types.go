// Package common provides transport-agnostic server contracts used by HTTP and MCP adapters.
package common

import (
	"context"
	"errors"

	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

// ErrInvalidRequest reports malformed or incomplete transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrNotFound reports missing transport-visible resources.
var ErrNotFound = errors.New("not found")

// ErrBusinessRule reports requests refused by a scheduling rule, such as a failed closure gate.
var ErrBusinessRule = errors.New("business rule violated")

// ErrConflict reports requests that collide with stored state: duplicates, cycles and stale writes.
var ErrConflict = errors.New("conflict")

// CreateProjectRequest creates one project.
type CreateProjectRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
}

// CreateActivityRequest creates one activity. Dates use YYYY-MM-DD.
type CreateActivityRequest struct {
	ProjectID     string  `json:"-"`
	Code          string  `json:"code" validate:"required"`
	Name          string  `json:"name" validate:"required"`
	ParentID      string  `json:"parent_id,omitempty"`
	StartDate     string  `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate       string  `json:"end_date" validate:"required,datetime=2006-01-02"`
	PlannedWeight float64 `json:"planned_weight,omitempty" validate:"gte=0"`
}

// DependencyRequest names one finish-to-start edge.
type DependencyRequest struct {
	ProjectID           string `json:"-"`
	ActivityID          string `json:"activity_id" validate:"required"`
	DependsOnActivityID string `json:"depends_on_activity_id" validate:"required,nefield=ActivityID"`
}

// ProgressRequest reports one manual percent for a leaf activity.
type ProgressRequest struct {
	ActivityID string `json:"-"`
	Percent    *int   `json:"percent" validate:"required"`
	Note       string `json:"note,omitempty"`
	// ReportedAt is an optional YYYY-MM-DD day selecting the snapshot week.
	ReportedAt string `json:"reported_at,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// CloseActivityRequest asks for one activity closure with its sign-offs.
type CloseActivityRequest struct {
	ActivityID     string `json:"-"`
	ProjectManager string `json:"project_manager,omitempty"`
	Director       string `json:"director,omitempty"`
	Contractor     string `json:"contractor,omitempty"`
}

// ScheduleView is the transport shape of one computed project schedule.
type ScheduleView struct {
	ProjectID       string                       `json:"project_id"`
	ProjectDuration int                          `json:"project_duration"`
	CriticalPath    []string                     `json:"critical_path"`
	Order           []string                     `json:"order"`
	Activities      []schedule.ScheduledActivity `json:"activities"`
	Warnings        []schedule.Warning           `json:"warnings,omitempty"`
}

// ProjectService exposes project catalog operations.
type ProjectService interface {
	ListProjects(context.Context) ([]domain.Project, error)
	CreateProject(context.Context, CreateProjectRequest) (domain.Project, error)
}

// ActivityService exposes activity and dependency editing.
type ActivityService interface {
	ListActivities(context.Context, string) ([]domain.Activity, error)
	CreateActivity(context.Context, CreateActivityRequest) (domain.Activity, error)
	AddDependency(context.Context, DependencyRequest) (domain.Dependency, error)
	RemoveDependency(context.Context, DependencyRequest) error
}

// ProgressService exposes the schedule, progress and closure operations.
type ProgressService interface {
	ComputeSchedule(context.Context, string) (ScheduleView, error)
	ApplyProgress(context.Context, ProgressRequest) (schedule.Rollup, error)
	CloseActivity(context.Context, CloseActivityRequest) (domain.ClosureRecord, error)
	GetClosureRecord(context.Context, string) (domain.ClosureRecord, error)
	ListProgressSnapshots(context.Context, string) ([]domain.ProgressSnapshot, error)
}

// ScheduleService is the full surface served by the HTTP and MCP adapters.
type ScheduleService interface {
	ProjectService
	ActivityService
	ProgressService
}
