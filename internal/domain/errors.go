package domain

import "errors"

var (
	ErrInvalidID           = errors.New("invalid id")
	ErrInvalidName         = errors.New("invalid name")
	ErrInvalidCode         = errors.New("invalid code")
	ErrInvalidDate         = errors.New("invalid date")
	ErrInvalidDateRange    = errors.New("end date precedes start date")
	ErrInvalidPercent      = errors.New("invalid percent")
	ErrInvalidWeight       = errors.New("invalid planned weight")
	ErrInvalidStatus       = errors.New("invalid status")
	ErrSelfDependency      = errors.New("activity cannot depend on itself")
	ErrDuplicateDependency = errors.New("duplicate dependency")
	ErrSelfParent          = errors.New("activity cannot be its own parent")
	ErrInvalidApprovers    = errors.New("at least one approver name is required")
)
