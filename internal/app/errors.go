package app

import "errors"

// ErrNotFound and related errors describe validation and runtime failures.
var (
	ErrNotFound               = errors.New("not found")
	ErrConflict               = errors.New("activity changed concurrently")
	ErrProjectMismatch        = errors.New("activities belong to different projects")
	ErrInvalidPlan            = errors.New("invalid plan")
	ErrUnsupportedPlanVersion = errors.New("unsupported plan version")
)
