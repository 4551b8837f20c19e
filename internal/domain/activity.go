package domain

import (
	"math"
	"slices"
	"strings"
	"time"
)

// Status is the lifecycle state of one activity.
type Status string

// Status values.
const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusBlocked    Status = "BLOCKED"
	StatusDone       Status = "DONE"
	StatusClosed     Status = "CLOSED"
)

var validStatuses = []Status{StatusNotStarted, StatusInProgress, StatusBlocked, StatusDone, StatusClosed}

// DefaultPlannedWeight applies whenever an activity has no usable planned weight.
const DefaultPlannedWeight = 1.0

// NormalizeStatus canonicalizes status aliases.
func NormalizeStatus(status Status) Status {
	raw := strings.ToUpper(strings.TrimSpace(string(status)))
	raw = strings.NewReplacer("-", "_", " ", "_").Replace(raw)
	switch raw {
	case "TODO", "NOT_STARTED", "NOTSTARTED":
		return StatusNotStarted
	case "PROGRESS", "IN_PROGRESS", "INPROGRESS", "DOING":
		return StatusInProgress
	case "COMPLETE", "COMPLETED", "DONE":
		return StatusDone
	default:
		return Status(raw)
	}
}

// IsValidStatus reports whether status is a canonical value.
func IsValidStatus(status Status) bool {
	return slices.Contains(validStatuses, status)
}

// Settled reports whether a status satisfies dependency and child gates.
func (s Status) Settled() bool {
	return s == StatusDone || s == StatusClosed
}

// Activity is one schedulable unit of work.
type Activity struct {
	ID            string    `json:"id"`
	ProjectID     string    `json:"project_id"`
	Code          string    `json:"code"`
	Name          string    `json:"name"`
	ParentID      string    `json:"parent_id,omitempty"`
	StartDate     time.Time `json:"start_date"`
	EndDate       time.Time `json:"end_date"`
	Percent       int       `json:"percent"`
	Status        Status    `json:"status"`
	PlannedWeight float64   `json:"planned_weight"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ActivityInput holds write-time values for NewActivity.
type ActivityInput struct {
	ID            string
	ProjectID     string
	Code          string
	Name          string
	ParentID      string
	StartDate     time.Time
	EndDate       time.Time
	PlannedWeight float64
}

// NewActivity validates input and returns a NOT_STARTED activity at 0%.
func NewActivity(in ActivityInput, now time.Time) (Activity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.ProjectID = strings.TrimSpace(in.ProjectID)
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	in.ParentID = strings.TrimSpace(in.ParentID)

	if in.ID == "" || in.ProjectID == "" {
		return Activity{}, ErrInvalidID
	}
	if in.Name == "" {
		return Activity{}, ErrInvalidName
	}
	if in.Code == "" {
		in.Code = in.ID
	}
	if in.ParentID == in.ID {
		return Activity{}, ErrSelfParent
	}
	start, end, err := normalizeSpan(in.StartDate, in.EndDate)
	if err != nil {
		return Activity{}, err
	}
	if in.PlannedWeight < 0 || math.IsNaN(in.PlannedWeight) || math.IsInf(in.PlannedWeight, 0) {
		return Activity{}, ErrInvalidWeight
	}

	return Activity{
		ID:            in.ID,
		ProjectID:     in.ProjectID,
		Code:          in.Code,
		Name:          in.Name,
		ParentID:      in.ParentID,
		StartDate:     start,
		EndDate:       end,
		Percent:       0,
		Status:        StatusNotStarted,
		PlannedWeight: in.PlannedWeight,
		CreatedAt:     now.UTC(),
		UpdatedAt:     now.UTC(),
	}, nil
}

// Weight returns the aggregation weight: PlannedWeight when finite and positive, else 1.
func (a Activity) Weight() float64 {
	w := a.PlannedWeight
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return DefaultPlannedWeight
	}
	return w
}

// DurationDays returns the whole-day span between start and end, at least one day.
func (a Activity) DurationDays() int {
	return SpanDays(a.StartDate, a.EndDate)
}

// HasParent reports whether the activity sits under another activity.
func (a Activity) HasParent() bool {
	return strings.TrimSpace(a.ParentID) != ""
}

// Reschedule replaces the planned span.
func (a *Activity) Reschedule(start, end time.Time, now time.Time) error {
	start, end, err := normalizeSpan(start, end)
	if err != nil {
		return err
	}
	a.StartDate = start
	a.EndDate = end
	a.UpdatedAt = now.UTC()
	return nil
}

// SetPlannedWeight replaces the planned weight; zero restores the default.
func (a *Activity) SetPlannedWeight(weight float64, now time.Time) error {
	if weight < 0 || math.IsNaN(weight) || math.IsInf(weight, 0) {
		return ErrInvalidWeight
	}
	a.PlannedWeight = weight
	a.UpdatedAt = now.UTC()
	return nil
}

// SetParent re-parents the activity; "" detaches it.
func (a *Activity) SetParent(parentID string, now time.Time) error {
	parentID = strings.TrimSpace(parentID)
	if parentID == a.ID {
		return ErrSelfParent
	}
	a.ParentID = parentID
	a.UpdatedAt = now.UTC()
	return nil
}

// SetStatus applies an explicit caller override such as BLOCKED.
func (a *Activity) SetStatus(status Status, now time.Time) error {
	status = NormalizeStatus(status)
	if !IsValidStatus(status) {
		return ErrInvalidStatus
	}
	a.Status = status
	a.UpdatedAt = now.UTC()
	return nil
}

// ApplyPercent clamps percent to [0,100] and applies the automatic status transitions:
// NOT_STARTED becomes IN_PROGRESS for 0<p<100 and any status becomes DONE at 100.
func (a *Activity) ApplyPercent(percent int, now time.Time) {
	percent = ClampPercent(percent)
	a.Percent = percent
	switch {
	case percent >= 100:
		a.Status = StatusDone
	case percent > 0 && a.Status == StatusNotStarted:
		a.Status = StatusInProgress
	}
	a.UpdatedAt = now.UTC()
}

// Close moves the activity into the terminal CLOSED state.
func (a *Activity) Close(now time.Time) {
	a.Status = StatusClosed
	a.UpdatedAt = now.UTC()
}

// ClampPercent bounds a percent to [0,100].
func ClampPercent(percent int) int {
	switch {
	case percent < 0:
		return 0
	case percent > 100:
		return 100
	default:
		return percent
	}
}

// normalizeSpan validates and day-truncates a start/end pair.
func normalizeSpan(start, end time.Time) (time.Time, time.Time, error) {
	start = NormalizeDate(start)
	end = NormalizeDate(end)
	if start.IsZero() || end.IsZero() {
		return time.Time{}, time.Time{}, ErrInvalidDate
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, ErrInvalidDateRange
	}
	return start, end, nil
}
