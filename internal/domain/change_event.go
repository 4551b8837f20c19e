package domain

import "time"

// ChangeOperation describes a persisted mutation of an activity.
type ChangeOperation string

// ChangeOperation values used by the local change ledger.
const (
	ChangeOperationCreate           ChangeOperation = "create"
	ChangeOperationUpdate           ChangeOperation = "update"
	ChangeOperationProgress         ChangeOperation = "progress"
	ChangeOperationRollup           ChangeOperation = "rollup"
	ChangeOperationClose            ChangeOperation = "close"
	ChangeOperationDependencyAdd    ChangeOperation = "dependency_add"
	ChangeOperationDependencyRemove ChangeOperation = "dependency_remove"
)

// ChangeEvent represents a single ledger entry for a project activity.
type ChangeEvent struct {
	ID         int64             `json:"id"`
	ProjectID  string            `json:"project_id"`
	ActivityID string            `json:"activity_id"`
	Operation  ChangeOperation   `json:"operation"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
