package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/groundline/internal/domain"
	"github.com/hylla/groundline/internal/schedule"
)

// DefaultClosureCodePrefix prefixes generated closure codes.
const DefaultClosureCodePrefix = "CLS"

// ServiceConfig holds configuration for service.
type ServiceConfig struct {
	CriticalTolerance float64
	ClosureCodePrefix string
	// WeekStart names the first day of a progress week; "" means Monday.
	WeekStart string
}

// IDGenerator returns unique identifiers for new entities.
type IDGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// Service orchestrates the scheduling engine over the repository.
type Service struct {
	repo       Repository
	idGen      IDGenerator
	clock      Clock
	tolerance  float64
	codePrefix string
	weekStart  time.Weekday
}

// NewService constructs a new value for this package.
func NewService(repo Repository, idGen IDGenerator, clock Clock, cfg ServiceConfig) *Service {
	if idGen == nil {
		idGen = func() string { return "" }
	}
	if clock == nil {
		clock = time.Now
	}
	if cfg.CriticalTolerance <= 0 {
		cfg.CriticalTolerance = schedule.DefaultCriticalTolerance
	}
	prefix := strings.ToUpper(strings.TrimSpace(cfg.ClosureCodePrefix))
	if prefix == "" {
		prefix = DefaultClosureCodePrefix
	}
	weekStart, ok := domain.ParseWeekday(cfg.WeekStart)
	if !ok {
		weekStart = time.Monday
	}

	return &Service{
		repo:       repo,
		idGen:      idGen,
		clock:      clock,
		tolerance:  cfg.CriticalTolerance,
		codePrefix: prefix,
		weekStart:  weekStart,
	}
}

// CreateProject creates project.
func (s *Service) CreateProject(ctx context.Context, name, description string) (domain.Project, error) {
	project, err := domain.NewProject(s.idGen(), name, description, s.clock())
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.repo.CreateProject(ctx, project); err != nil {
		return domain.Project{}, err
	}
	return project, nil
}

// GetProject returns one project.
func (s *Service) GetProject(ctx context.Context, projectID string) (domain.Project, error) {
	return s.repo.GetProject(ctx, strings.TrimSpace(projectID))
}

// ListProjects lists projects.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.repo.ListProjects(ctx)
}

// CreateActivityInput holds input values for create activity operations.
type CreateActivityInput struct {
	ProjectID     string
	Code          string
	Name          string
	ParentID      string
	StartDate     time.Time
	EndDate       time.Time
	PlannedWeight float64
}

// CreateActivity creates one activity and refreshes its parent chain.
func (s *Service) CreateActivity(ctx context.Context, in CreateActivityInput) (domain.Activity, error) {
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.ParentID = strings.TrimSpace(in.ParentID)
	if _, err := s.repo.GetProject(ctx, in.ProjectID); err != nil {
		return domain.Activity{}, err
	}
	if in.ParentID != "" {
		parent, err := s.repo.GetActivity(ctx, in.ParentID)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("parent activity %q: %w", in.ParentID, err)
		}
		if parent.ProjectID != in.ProjectID {
			return domain.Activity{}, fmt.Errorf("%w: parent %q is in project %q", ErrProjectMismatch, parent.ID, parent.ProjectID)
		}
		if parent.Status == domain.StatusClosed {
			return domain.Activity{}, fmt.Errorf("%w: %s", schedule.ErrActivityClosed, parent.Name)
		}
	}

	activity, err := domain.NewActivity(domain.ActivityInput{
		ID:            s.idGen(),
		ProjectID:     in.ProjectID,
		Code:          in.Code,
		Name:          in.Name,
		ParentID:      in.ParentID,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		PlannedWeight: in.PlannedWeight,
	}, s.clock())
	if err != nil {
		return domain.Activity{}, err
	}
	if err := s.repo.CreateActivity(ctx, activity); err != nil {
		return domain.Activity{}, err
	}
	if activity.HasParent() {
		if err := s.refreshHierarchy(ctx, activity.ProjectID, activity.ParentID); err != nil {
			return domain.Activity{}, err
		}
	}
	return activity, nil
}

// GetActivity returns one activity.
func (s *Service) GetActivity(ctx context.Context, activityID string) (domain.Activity, error) {
	return s.repo.GetActivity(ctx, strings.TrimSpace(activityID))
}

// UpdateActivityScheduleInput holds input values for schedule edits. Zero dates, a nil weight and
// an empty status leave the stored value alone.
type UpdateActivityScheduleInput struct {
	ActivityID    string
	StartDate     time.Time
	EndDate       time.Time
	PlannedWeight *float64
	Status        domain.Status
}

// UpdateActivitySchedule edits the planned span, weight or explicit status of one activity.
func (s *Service) UpdateActivitySchedule(ctx context.Context, in UpdateActivityScheduleInput) (domain.Activity, error) {
	activity, err := s.repo.GetActivity(ctx, strings.TrimSpace(in.ActivityID))
	if err != nil {
		return domain.Activity{}, err
	}
	if activity.Status == domain.StatusClosed {
		return domain.Activity{}, fmt.Errorf("%w: %s", schedule.ErrActivityClosed, activity.Name)
	}
	now := s.clock()

	if !in.StartDate.IsZero() || !in.EndDate.IsZero() {
		activities, err := s.repo.ListActivities(ctx, activity.ProjectID)
		if err != nil {
			return domain.Activity{}, err
		}
		if schedule.NewHierarchy(activities).HasChildren(activity.ID) {
			return domain.Activity{}, fmt.Errorf("%w: %s", schedule.ErrAggregateActivity, activity.Name)
		}
		start, end := in.StartDate, in.EndDate
		if start.IsZero() {
			start = activity.StartDate
		}
		if end.IsZero() {
			end = activity.EndDate
		}
		if err := activity.Reschedule(start, end, now); err != nil {
			return domain.Activity{}, err
		}
	}
	if in.PlannedWeight != nil {
		if err := activity.SetPlannedWeight(*in.PlannedWeight, now); err != nil {
			return domain.Activity{}, err
		}
	}
	if strings.TrimSpace(string(in.Status)) != "" {
		// CLOSED is only reachable through ValidateAndClose.
		if domain.NormalizeStatus(in.Status) == domain.StatusClosed {
			return domain.Activity{}, fmt.Errorf("%w: use closure to close an activity", domain.ErrInvalidStatus)
		}
		if err := activity.SetStatus(in.Status, now); err != nil {
			return domain.Activity{}, err
		}
	}

	if err := s.repo.UpdateActivity(ctx, activity); err != nil {
		return domain.Activity{}, err
	}
	if activity.HasParent() {
		if err := s.refreshHierarchy(ctx, activity.ProjectID, activity.ParentID); err != nil {
			return domain.Activity{}, err
		}
	}
	return activity, nil
}

// SetActivityParent moves an activity under parentID, or detaches it when parentID is empty.
// Moves that would make an activity its own ancestor are refused with a *schedule.CycleError,
// and closed parents accept no new children.
func (s *Service) SetActivityParent(ctx context.Context, activityID, parentID string) (domain.Activity, error) {
	activity, err := s.repo.GetActivity(ctx, strings.TrimSpace(activityID))
	if err != nil {
		return domain.Activity{}, err
	}
	parentID = strings.TrimSpace(parentID)
	if parentID == activity.ParentID {
		return activity, nil
	}
	if parentID == activity.ID {
		return domain.Activity{}, domain.ErrSelfParent
	}
	if parentID != "" {
		parent, err := s.repo.GetActivity(ctx, parentID)
		if err != nil {
			return domain.Activity{}, fmt.Errorf("parent activity %q: %w", parentID, err)
		}
		if parent.ProjectID != activity.ProjectID {
			return domain.Activity{}, fmt.Errorf("%w: parent %q is in project %q", ErrProjectMismatch, parent.ID, parent.ProjectID)
		}
		if parent.Status == domain.StatusClosed {
			return domain.Activity{}, fmt.Errorf("%w: %s", schedule.ErrActivityClosed, parent.Name)
		}
		activities, err := s.repo.ListActivities(ctx, activity.ProjectID)
		if err != nil {
			return domain.Activity{}, err
		}
		chain, err := schedule.NewHierarchy(activities).Ancestors(parentID)
		if err != nil {
			return domain.Activity{}, err
		}
		path := []string{activity.ID, parentID}
		for _, ancestor := range chain {
			path = append(path, ancestor.ID)
			if ancestor.ID == activity.ID {
				return domain.Activity{}, &schedule.CycleError{Kind: "hierarchy", Path: path}
			}
		}
	}

	oldParentID := activity.ParentID
	if err := activity.SetParent(parentID, s.clock()); err != nil {
		return domain.Activity{}, err
	}
	if err := s.repo.UpdateActivity(ctx, activity); err != nil {
		return domain.Activity{}, err
	}
	for _, id := range []string{oldParentID, parentID} {
		if id == "" {
			continue
		}
		if err := s.refreshHierarchy(ctx, activity.ProjectID, id); err != nil {
			return domain.Activity{}, err
		}
	}
	return activity, nil
}

// ListActivities lists one project's activities.
func (s *Service) ListActivities(ctx context.Context, projectID string) ([]domain.Activity, error) {
	projectID = strings.TrimSpace(projectID)
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.repo.ListActivities(ctx, projectID)
}

// AddDependencyInput holds input values for add dependency operations.
type AddDependencyInput struct {
	ProjectID           string
	ActivityID          string
	DependsOnActivityID string
}

// AddDependency records a finish-to-start edge. It refuses self edges, duplicates, unknown or
// cross-project activities and any edge that would close a cycle.
func (s *Service) AddDependency(ctx context.Context, in AddDependencyInput) (domain.Dependency, error) {
	in.ActivityID = strings.TrimSpace(in.ActivityID)
	in.DependsOnActivityID = strings.TrimSpace(in.DependsOnActivityID)
	if in.ActivityID != "" && in.ActivityID == in.DependsOnActivityID {
		return domain.Dependency{}, domain.ErrSelfDependency
	}
	activity, err := s.repo.GetActivity(ctx, in.ActivityID)
	if err != nil {
		return domain.Dependency{}, fmt.Errorf("activity %q: %w", in.ActivityID, err)
	}
	pred, err := s.repo.GetActivity(ctx, in.DependsOnActivityID)
	if err != nil {
		return domain.Dependency{}, fmt.Errorf("activity %q: %w", in.DependsOnActivityID, err)
	}
	projectID := strings.TrimSpace(in.ProjectID)
	if projectID == "" {
		projectID = activity.ProjectID
	}
	if activity.ProjectID != projectID || pred.ProjectID != projectID {
		return domain.Dependency{}, fmt.Errorf("%w: %q and %q", ErrProjectMismatch, activity.ID, pred.ID)
	}

	dep, err := domain.NewDependency(projectID, activity.ID, pred.ID, s.clock())
	if err != nil {
		return domain.Dependency{}, err
	}
	edges, err := s.repo.ListDependencies(ctx, projectID)
	if err != nil {
		return domain.Dependency{}, err
	}
	for _, existing := range edges {
		if existing.SameEdge(dep) {
			return domain.Dependency{}, fmt.Errorf("%w: %s -> %s", domain.ErrDuplicateDependency, pred.ID, activity.ID)
		}
	}
	activities, err := s.repo.ListActivities(ctx, projectID)
	if err != nil {
		return domain.Dependency{}, err
	}
	if cycle := schedule.CycleFor(schedule.BuildGraph(activities, append(edges, dep))); cycle != nil {
		return domain.Dependency{}, cycle
	}

	if err := s.repo.CreateDependency(ctx, dep); err != nil {
		return domain.Dependency{}, err
	}
	return dep, nil
}

// RemoveDependency deletes one edge.
func (s *Service) RemoveDependency(ctx context.Context, projectID, activityID, dependsOnID string) error {
	return s.repo.DeleteDependency(ctx, domain.Dependency{
		ProjectID:           strings.TrimSpace(projectID),
		ActivityID:          strings.TrimSpace(activityID),
		DependsOnActivityID: strings.TrimSpace(dependsOnID),
	})
}

// ListDependencies lists one project's edges.
func (s *Service) ListDependencies(ctx context.Context, projectID string) ([]domain.Dependency, error) {
	return s.repo.ListDependencies(ctx, strings.TrimSpace(projectID))
}

// ComputeSchedule runs CPM over the stored project snapshot.
func (s *Service) ComputeSchedule(ctx context.Context, projectID string) (schedule.Schedule, error) {
	activities, err := s.ListActivities(ctx, projectID)
	if err != nil {
		return schedule.Schedule{}, err
	}
	edges, err := s.repo.ListDependencies(ctx, strings.TrimSpace(projectID))
	if err != nil {
		return schedule.Schedule{}, err
	}
	return schedule.Compute(activities, edges, schedule.WithCriticalTolerance(s.tolerance))
}

// ProgressUpdateInput holds one manually reported percent. ReportedAt picks the snapshot week and
// defaults to now.
type ProgressUpdateInput struct {
	ActivityID string
	Percent    int
	Note       string
	ReportedAt time.Time
}

// ApplyProgressUpdate applies a leaf percent, rolls it up the hierarchy and stores the weekly
// snapshot, all in one repository write.
func (s *Service) ApplyProgressUpdate(ctx context.Context, in ProgressUpdateInput) (schedule.Rollup, error) {
	activity, err := s.repo.GetActivity(ctx, strings.TrimSpace(in.ActivityID))
	if err != nil {
		return schedule.Rollup{}, err
	}
	activities, err := s.repo.ListActivities(ctx, activity.ProjectID)
	if err != nil {
		return schedule.Rollup{}, err
	}
	now := s.clock()
	rollup, err := schedule.ApplyProgress(activities, schedule.ProgressUpdate{
		ActivityID: activity.ID,
		Percent:    in.Percent,
		Notes:      in.Note,
	}, now)
	if err != nil {
		return schedule.Rollup{}, err
	}
	snap, err := domain.NewProgressSnapshot(rollup.Leaf, in.ReportedAt, s.weekStart, in.Note, now)
	if err != nil {
		return schedule.Rollup{}, err
	}
	if err := s.repo.SaveProgress(ctx, ProgressWrite{
		Leaf:      rollup.Leaf,
		Ancestors: rollup.Ancestors,
		Snapshot:  snap,
	}); err != nil {
		return schedule.Rollup{}, err
	}
	return rollup, nil
}

// CloseActivityInput holds input values for closure requests.
type CloseActivityInput struct {
	ActivityID string
	Approvers  domain.Approvers
}

// ValidateAndClose evaluates the closure gates and, when they pass, writes the closure record and
// the CLOSED status together. Gate failures return a *schedule.ClosureError listing every violation.
func (s *Service) ValidateAndClose(ctx context.Context, in CloseActivityInput) (domain.ClosureRecord, error) {
	activity, err := s.repo.GetActivity(ctx, strings.TrimSpace(in.ActivityID))
	if err != nil {
		return domain.ClosureRecord{}, err
	}
	activities, err := s.repo.ListActivities(ctx, activity.ProjectID)
	if err != nil {
		return domain.ClosureRecord{}, err
	}
	edges, err := s.repo.ListDependencies(ctx, activity.ProjectID)
	if err != nil {
		return domain.ClosureRecord{}, err
	}
	if observed, ok := schedule.NewHierarchy(activities).Get(activity.ID); ok {
		activity = observed
	}

	now := s.clock()
	record, closed, err := schedule.PrepareClosure(activities, edges, schedule.ClosureRequest{
		ActivityID: activity.ID,
		Approvers:  in.Approvers,
		RecordID:   s.idGen(),
		Code:       s.closureCode(activity, now),
	}, now)
	if err != nil {
		return domain.ClosureRecord{}, err
	}
	if err := s.repo.CloseActivity(ctx, ClosureWrite{
		Record:          record,
		Activity:        closed,
		ExpectedPercent: activity.Percent,
		ExpectedStatus:  activity.Status,
	}); err != nil {
		return domain.ClosureRecord{}, err
	}
	return record, nil
}

// closureCode renders PREFIX-ACTIVITYCODE-SUFFIX with an eight character random suffix.
func (s *Service) closureCode(activity domain.Activity, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(s.idGen(), "-", ""))
	if len(suffix) > 8 {
		suffix = suffix[:8]
	}
	if suffix == "" {
		suffix = now.UTC().Format("20060102150405")
	}
	return fmt.Sprintf("%s-%s-%s", s.codePrefix, strings.ToUpper(activity.Code), suffix)
}

// GetClosureRecord returns the closure record of one activity.
func (s *Service) GetClosureRecord(ctx context.Context, activityID string) (domain.ClosureRecord, error) {
	return s.repo.GetClosureRecord(ctx, strings.TrimSpace(activityID))
}

// ListProgressSnapshots lists the weekly progress ledger of one activity.
func (s *Service) ListProgressSnapshots(ctx context.Context, activityID string) ([]domain.ProgressSnapshot, error) {
	return s.repo.ListProgressSnapshots(ctx, strings.TrimSpace(activityID))
}

// ListChangeEvents lists recent mutations for one project, newest first.
func (s *Service) ListChangeEvents(ctx context.Context, projectID string, limit int) ([]domain.ChangeEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListProjectChangeEvents(ctx, strings.TrimSpace(projectID), limit)
}

// refreshHierarchy re-aggregates id and its ancestors from a fresh project snapshot.
func (s *Service) refreshHierarchy(ctx context.Context, projectID, id string) error {
	activities, err := s.repo.ListActivities(ctx, projectID)
	if err != nil {
		return err
	}
	updated, err := schedule.Reaggregate(activities, id, s.clock())
	if err != nil {
		return err
	}
	for _, a := range updated {
		if err := s.repo.UpdateActivity(ctx, a); err != nil {
			return err
		}
	}
	return nil
}
