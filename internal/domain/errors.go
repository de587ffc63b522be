package domain

import "errors"

// Domain-specific errors for business logic validation.
var (
	// Task errors
	ErrTaskNotFound = errors.New("task not found")

	// Assignment errors
	ErrInvalidAssignment = errors.New("invalid assignment")

	// Permission errors
	ErrForbidden = errors.New("forbidden")

	// User errors
	ErrUserNotFound = errors.New("user not found")
	ErrUserInactive = errors.New("user is inactive")
	ErrInvalidToken = errors.New("invalid authentication token")

	// Track errors
	ErrTrackNotFound = errors.New("track not found")

	// Scope block errors
	ErrScopeBlockNotFound = errors.New("scope block not found")
	ErrScopeBlockCycle    = errors.New("scope block parent chain contains a cycle")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidStatus   = errors.New("invalid task status")
	ErrInvalidPriority = errors.New("invalid task priority")
)
