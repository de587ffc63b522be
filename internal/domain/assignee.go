package domain

import "fmt"

// AssigneeKind is the closed set of assignment targets.
type AssigneeKind string

const (
	AssigneeTrack  AssigneeKind = "TRACK"
	AssigneeUser   AssigneeKind = "USER"
	AssigneeHR     AssigneeKind = "HR"
	AssigneeGlobal AssigneeKind = "GLOBAL"
)

// IsValid checks if the kind is one of the allowed values.
func (k AssigneeKind) IsValid() bool {
	switch k {
	case AssigneeTrack, AssigneeUser, AssigneeHR, AssigneeGlobal:
		return true
	default:
		return false
	}
}

// Assignee is the polymorphic assignment target of a task. Exactly the field
// matching Kind is set; TrackID and UserID are both nil for HR and GLOBAL.
type Assignee struct {
	Kind    AssigneeKind
	TrackID *string
	UserID  *string
}

// TrackAssignee builds a TRACK assignee.
func TrackAssignee(trackID string) Assignee {
	return Assignee{Kind: AssigneeTrack, TrackID: &trackID}
}

// UserAssignee builds a USER assignee.
func UserAssignee(userID string) Assignee {
	return Assignee{Kind: AssigneeUser, UserID: &userID}
}

// HRAssignee builds an HR assignee.
func HRAssignee() Assignee {
	return Assignee{Kind: AssigneeHR}
}

// GlobalAssignee builds a GLOBAL assignee.
func GlobalAssignee() Assignee {
	return Assignee{Kind: AssigneeGlobal}
}

// Validate checks that the populated fields are mutually consistent with Kind.
// Referential existence is checked separately by the assignment validator.
func (a Assignee) Validate() error {
	switch a.Kind {
	case AssigneeTrack:
		if a.TrackID == nil || *a.TrackID == "" {
			return fmt.Errorf("%w: TRACK assignment requires a track id", ErrInvalidAssignment)
		}
		if a.UserID != nil {
			return fmt.Errorf("%w: TRACK assignment must not carry a user id", ErrInvalidAssignment)
		}
	case AssigneeUser:
		if a.UserID == nil || *a.UserID == "" {
			return fmt.Errorf("%w: USER assignment requires a user id", ErrInvalidAssignment)
		}
		if a.TrackID != nil {
			return fmt.Errorf("%w: USER assignment must not carry a track id", ErrInvalidAssignment)
		}
	case AssigneeHR, AssigneeGlobal:
		if a.TrackID != nil || a.UserID != nil {
			return fmt.Errorf("%w: %s assignment must not carry a track or user id", ErrInvalidAssignment, a.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown assignee kind %q", ErrInvalidAssignment, a.Kind)
	}
	return nil
}
