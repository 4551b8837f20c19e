package domain

import (
	"strings"
	"time"
)

// Dependency records that ActivityID cannot finish before DependsOnActivityID
// (finish-to-start, zero lag).
type Dependency struct {
	ProjectID           string    `json:"project_id"`
	ActivityID          string    `json:"activity_id"`
	DependsOnActivityID string    `json:"depends_on_activity_id"`
	CreatedAt           time.Time `json:"created_at"`
}

// NewDependency validates one edge.
func NewDependency(projectID, activityID, dependsOnID string, now time.Time) (Dependency, error) {
	projectID = strings.TrimSpace(projectID)
	activityID = strings.TrimSpace(activityID)
	dependsOnID = strings.TrimSpace(dependsOnID)
	if projectID == "" || activityID == "" || dependsOnID == "" {
		return Dependency{}, ErrInvalidID
	}
	if activityID == dependsOnID {
		return Dependency{}, ErrSelfDependency
	}
	return Dependency{
		ProjectID:           projectID,
		ActivityID:          activityID,
		DependsOnActivityID: dependsOnID,
		CreatedAt:           now.UTC(),
	}, nil
}

// SameEdge reports whether both values describe the same ordered pair.
func (d Dependency) SameEdge(other Dependency) bool {
	return d.ActivityID == other.ActivityID && d.DependsOnActivityID == other.DependsOnActivityID
}
