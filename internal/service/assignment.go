package service

import (
	"context"
	"fmt"

	"github.com/trackboard/trackboard/internal/domain"
)

// TrackFinder checks track existence. Satisfied by repository.TrackRepository.
type TrackFinder interface {
	Exists(ctx context.Context, trackID string) (bool, error)
}

// UserFinder checks user existence. Satisfied by repository.UserRepository.
type UserFinder interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// AssignmentValidator enforces that a task's polymorphic assignment fields
// are mutually consistent for the declared kind, and that referenced tracks
// and users exist. Pure validation, no side effects.
type AssignmentValidator struct {
	tracks TrackFinder
	users  UserFinder
}

// NewAssignmentValidator creates a new AssignmentValidator.
func NewAssignmentValidator(tracks TrackFinder, users UserFinder) *AssignmentValidator {
	return &AssignmentValidator{tracks: tracks, users: users}
}

// Validate checks the assignment shape, then the referenced track or user.
func (v *AssignmentValidator) Validate(ctx context.Context, assignee domain.Assignee) error {
	if err := assignee.Validate(); err != nil {
		return err
	}

	switch assignee.Kind {
	case domain.AssigneeTrack:
		ok, err := v.tracks.Exists(ctx, *assignee.TrackID)
		if err != nil {
			return fmt.Errorf("check track existence: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrTrackNotFound, *assignee.TrackID)
		}
	case domain.AssigneeUser:
		ok, err := v.users.Exists(ctx, *assignee.UserID)
		if err != nil {
			return fmt.Errorf("check user existence: %w", err)
		}
		if !ok {
			return fmt.Errorf("%w: %s", domain.ErrUserNotFound, *assignee.UserID)
		}
	}

	return nil
}
