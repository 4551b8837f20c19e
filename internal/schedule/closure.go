package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hylla/groundline/internal/domain"
)

// ErrClosureRejected marks closure requests that failed a gate.
var ErrClosureRejected = errors.New("closure rejected")

// Gate names one closure precondition.
type Gate string

// Gate values, in evaluation order.
const (
	GateCompletion Gate = "completion"
	GateDependency Gate = "dependency"
	GateChildren   Gate = "children"
)

// Violation is one failed closure gate with the entities blocking it.
type Violation struct {
	Gate     Gate     `json:"gate"`
	Message  string   `json:"message"`
	Blocking []string `json:"blocking,omitempty"`
}

// ClosureError carries every violation found for one activity.
type ClosureError struct {
	ActivityID string      `json:"activity_id"`
	Violations []Violation `json:"violations"`
}

// Error implements error.
func (e *ClosureError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Message)
	}
	return fmt.Sprintf("%s: %s", ErrClosureRejected, strings.Join(msgs, "; "))
}

// Unwrap lets errors.Is match ErrClosureRejected.
func (e *ClosureError) Unwrap() error {
	return ErrClosureRejected
}

// ValidateClosure evaluates the completion, dependency and children gates for activity
// against the snapshot and returns every violation, in gate order.
func ValidateClosure(activity domain.Activity, activities []domain.Activity, edges []domain.Dependency) []Violation {
	var out []Violation

	if activity.Percent < 100 {
		out = append(out, Violation{
			Gate:     GateCompletion,
			Message:  fmt.Sprintf("activity %q is %d%% complete; closure requires 100%%", activity.Name, activity.Percent),
			Blocking: []string{activity.Name},
		})
	}

	g := BuildGraph(activities, edges)
	var pending []string
	for _, pred := range g.Predecessors(activity.ID) {
		if !pred.Status.Settled() {
			pending = append(pending, pred.Name)
		}
	}
	if len(pending) > 0 {
		out = append(out, Violation{
			Gate:     GateDependency,
			Message:  "pending dependencies: " + strings.Join(pending, ", "),
			Blocking: pending,
		})
	}

	var open []string
	for _, child := range NewHierarchy(activities).Children(activity.ID) {
		if !child.Status.Settled() {
			open = append(open, child.Name)
		}
	}
	if len(open) > 0 {
		out = append(out, Violation{
			Gate:     GateChildren,
			Message:  "child activities must be done or closed before closing the parent",
			Blocking: open,
		})
	}
	return out
}

// ClosureRequest names the activity to close and who approved it.
type ClosureRequest struct {
	ActivityID string
	Approvers  domain.Approvers
	RecordID   string
	Code       string
}

// PrepareClosure validates a closure request and, on success, returns the new closure record
// and the activity flipped to CLOSED. Both must be persisted as one unit.
func PrepareClosure(activities []domain.Activity, edges []domain.Dependency, req ClosureRequest, now time.Time) (domain.ClosureRecord, domain.Activity, error) {
	id := strings.TrimSpace(req.ActivityID)
	activity, ok := NewHierarchy(activities).Get(id)
	if !ok {
		return domain.ClosureRecord{}, domain.Activity{}, fmt.Errorf("%w: %s", ErrActivityNotFound, id)
	}
	if violations := ValidateClosure(activity, activities, edges); len(violations) > 0 {
		return domain.ClosureRecord{}, domain.Activity{}, &ClosureError{ActivityID: activity.ID, Violations: violations}
	}
	record, err := domain.NewClosureRecord(req.RecordID, activity, req.Code, req.Approvers, now)
	if err != nil {
		return domain.ClosureRecord{}, domain.Activity{}, fmt.Errorf("build closure record: %w", err)
	}
	activity.Close(now)
	return record, activity, nil
}
