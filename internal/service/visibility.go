package service

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/trackboard/trackboard/internal/domain"
)

// Lens optionally narrows a task listing beyond the role-derived predicate.
type Lens string

const (
	// LensNone applies the plain role/grant predicate.
	LensNone Lens = ""
	// LensMine restricts to tasks assigned to the caller, directly or
	// through an individual assignment row.
	LensMine Lens = "mine"
	// LensTrack restricts to TRACK-type tasks within the caller's granted
	// tracks. A caller with no grants gets an empty result set, not an error.
	LensTrack Lens = "track"
)

// notDeleted excludes soft-deleted tasks from every predicate.
var notDeleted = sq.Eq{"deleted": false}

// neverMatches is the deliberate zero-result predicate.
var neverMatches = sq.Expr("1 = 0")

// BuildVisibilityFilter produces the query predicate selecting exactly the
// tasks the actor may see. It is a pure function of role and grants and must
// be applied before any pagination, search or sort, so counts and totals are
// always computed over the visible subset only.
func BuildVisibilityFilter(actor domain.Actor, lens Lens) (sq.Sqlizer, error) {
	switch lens {
	case LensNone:
		return baseVisibility(actor), nil
	case LensMine:
		return sq.And{
			notDeleted,
			sq.Or{
				sq.Eq{"assignee_user_id": actor.ID},
				sq.Expr("EXISTS (SELECT 1 FROM task_assignments ta WHERE ta.task_id = tasks.id AND ta.user_id = ?)", actor.ID),
			},
		}, nil
	case LensTrack:
		if len(actor.TrackGrants) == 0 {
			return sq.And{notDeleted, neverMatches}, nil
		}
		return sq.And{
			notDeleted,
			sq.Eq{"assignee_type": domain.AssigneeTrack},
			sq.Eq{"assignee_track_id": actor.TrackGrants},
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown lens %q", domain.ErrValidation, lens)
	}
}

// CanViewTask mirrors the listing predicate for a single loaded task. It does
// not cover the individual-assignment leg; callers holding a join row check
// that separately.
func CanViewTask(actor domain.Actor, task *domain.Task) bool {
	if task.Deleted {
		return false
	}
	if actor.Role.IsPrivileged() {
		return true
	}
	switch {
	case task.Assignee.Kind == domain.AssigneeGlobal:
		return true
	case task.IsDirectAssignee(actor.ID):
		return true
	case task.IsCreatedBy(actor.ID):
		return true
	case task.Assignee.Kind == domain.AssigneeTrack &&
		task.Assignee.TrackID != nil &&
		actor.HasTrackGrant(*task.Assignee.TrackID):
		return true
	case task.Assignee.Kind == domain.AssigneeHR && actor.Role == domain.RoleHR:
		return true
	}
	return false
}

// baseVisibility builds the role/grant predicate. Privileged roles see every
// task that is not soft-deleted; everyone else sees the union of the
// visibility legs below.
func baseVisibility(actor domain.Actor) sq.Sqlizer {
	if actor.Role.IsPrivileged() {
		return notDeleted
	}

	legs := sq.Or{
		sq.Eq{"assignee_type": domain.AssigneeGlobal},
		sq.And{
			sq.Eq{"assignee_type": domain.AssigneeUser},
			sq.Eq{"assignee_user_id": actor.ID},
		},
		sq.Eq{"created_by": actor.ID},
	}

	if len(actor.TrackGrants) > 0 {
		legs = append(legs, sq.And{
			sq.Eq{"assignee_type": domain.AssigneeTrack},
			sq.Eq{"assignee_track_id": actor.TrackGrants},
		})
	}

	if actor.Role == domain.RoleHR {
		legs = append(legs, sq.Eq{"assignee_type": domain.AssigneeHR})
	}

	return sq.And{notDeleted, legs}
}
