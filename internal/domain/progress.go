package domain

import (
	"strings"
	"time"
)

// ProgressSnapshot is the per-week progress ledger row for one activity.
type ProgressSnapshot struct {
	ActivityID string    `json:"activity_id"`
	ProjectID  string    `json:"project_id"`
	WeekStart  time.Time `json:"week_start"`
	Percent    int       `json:"percent"`
	Note       string    `json:"note,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// NewProgressSnapshot builds the snapshot row for the week containing at.
func NewProgressSnapshot(activity Activity, at time.Time, firstDay time.Weekday, note string, now time.Time) (ProgressSnapshot, error) {
	if strings.TrimSpace(activity.ID) == "" {
		return ProgressSnapshot{}, ErrInvalidID
	}
	if at.IsZero() {
		at = now
	}
	return ProgressSnapshot{
		ActivityID: activity.ID,
		ProjectID:  activity.ProjectID,
		WeekStart:  WeekStart(at, firstDay),
		Percent:    ClampPercent(activity.Percent),
		Note:       strings.TrimSpace(note),
		RecordedAt: now.UTC(),
	}, nil
}
