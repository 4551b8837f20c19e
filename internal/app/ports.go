package app

import (
	"context"

	"github.com/hylla/groundline/internal/domain"
)

// Repository is the persistence port the service drives.
type Repository interface {
	CreateProject(context.Context, domain.Project) error
	GetProject(context.Context, string) (domain.Project, error)
	ListProjects(context.Context) ([]domain.Project, error)

	CreateActivity(context.Context, domain.Activity) error
	UpdateActivity(context.Context, domain.Activity) error
	GetActivity(context.Context, string) (domain.Activity, error)
	ListActivities(context.Context, string) ([]domain.Activity, error)

	CreateDependency(context.Context, domain.Dependency) error
	DeleteDependency(context.Context, domain.Dependency) error
	ListDependencies(context.Context, string) ([]domain.Dependency, error)

	SaveProgress(context.Context, ProgressWrite) error
	ListProgressSnapshots(context.Context, string) ([]domain.ProgressSnapshot, error)

	CloseActivity(context.Context, ClosureWrite) error
	GetClosureRecord(context.Context, string) (domain.ClosureRecord, error)

	ListProjectChangeEvents(context.Context, string, int) ([]domain.ChangeEvent, error)
}

// ProgressWrite is one rollup result. Implementations persist it in a single transaction,
// leaf first, then ancestors child before parent, then the weekly snapshot.
type ProgressWrite struct {
	Leaf      domain.Activity
	Ancestors []domain.Activity
	Snapshot  domain.ProgressSnapshot
}

// ClosureWrite replaces the activity's closure record and flips it to CLOSED in one transaction.
// The write must fail with ErrConflict when the stored percent or status no longer matches the
// values the closure gates were evaluated against.
type ClosureWrite struct {
	Record          domain.ClosureRecord
	Activity        domain.Activity
	ExpectedPercent int
	ExpectedStatus  domain.Status
}
