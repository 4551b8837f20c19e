package domain

import (
	"strings"
	"time"
)

// Approvers lists the sign-off names captured on closure.
type Approvers struct {
	ProjectManager string `json:"project_manager,omitempty"`
	Director       string `json:"director,omitempty"`
	Contractor     string `json:"contractor,omitempty"`
}

// Normalize trims every approver name.
func (a Approvers) Normalize() Approvers {
	return Approvers{
		ProjectManager: strings.TrimSpace(a.ProjectManager),
		Director:       strings.TrimSpace(a.Director),
		Contractor:     strings.TrimSpace(a.Contractor),
	}
}

// Empty reports whether no approver was named.
func (a Approvers) Empty() bool {
	a = a.Normalize()
	return a.ProjectManager == "" && a.Director == "" && a.Contractor == ""
}

// ClosureRecord is the audit record written when an activity is closed.
type ClosureRecord struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	ActivityID string    `json:"activity_id"`
	Code       string    `json:"code"`
	ClosedAt   time.Time `json:"closed_at"`
	Approvers  Approvers `json:"approvers"`
}

// NewClosureRecord validates and builds one closure record.
func NewClosureRecord(id string, activity Activity, code string, approvers Approvers, now time.Time) (ClosureRecord, error) {
	id = strings.TrimSpace(id)
	code = strings.TrimSpace(code)
	if id == "" || strings.TrimSpace(activity.ID) == "" {
		return ClosureRecord{}, ErrInvalidID
	}
	if code == "" {
		return ClosureRecord{}, ErrInvalidCode
	}
	if approvers.Empty() {
		return ClosureRecord{}, ErrInvalidApprovers
	}
	return ClosureRecord{
		ID:         id,
		ProjectID:  activity.ProjectID,
		ActivityID: activity.ID,
		Code:       code,
		ClosedAt:   now.UTC(),
		Approvers:  approvers.Normalize(),
	}, nil
}
