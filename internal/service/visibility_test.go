package service_test

import (
	"testing"

	sq "github.com/Masterminds/squirrel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/service"
)

func filterSQL(t *testing.T, actor domain.Actor, lens service.Lens) (string, []interface{}) {
	t.Helper()
	filter, err := service.BuildVisibilityFilter(actor, lens)
	require.NoError(t, err)
	query, args, err := sq.Select("id").From("tasks").Where(filter).ToSql()
	require.NoError(t, err)
	return query, args
}

func TestVisibility_PrivilegedSeesEverythingNotDeleted(t *testing.T) {
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RolePM} {
		query, args := filterSQL(t, domain.Actor{ID: "u1", Role: role}, service.LensNone)
		assert.Contains(t, query, "deleted")
		assert.NotContains(t, query, "assignee_type")
		assert.Equal(t, []interface{}{false}, args)
	}
}

func TestVisibility_MemberLegs(t *testing.T) {
	actor := domain.Actor{ID: "u1", Role: domain.RoleMember, TrackGrants: []string{"t1", "t2"}}
	query, args := filterSQL(t, actor, service.LensNone)

	assert.Contains(t, query, "assignee_type")
	assert.Contains(t, query, "created_by")
	assert.Contains(t, query, "assignee_track_id")

	// GLOBAL leg, USER leg (kind + id), creator leg, TRACK leg (kind + both grants)
	assert.Contains(t, args, domain.AssigneeGlobal)
	assert.Contains(t, args, domain.AssigneeTrack)
	assert.Contains(t, args, "t1")
	assert.Contains(t, args, "t2")
}

func TestVisibility_MemberWithoutGrantsHasNoTrackLeg(t *testing.T) {
	actor := domain.Actor{ID: "u1", Role: domain.RoleMember}
	_, args := filterSQL(t, actor, service.LensNone)
	assert.NotContains(t, args, domain.AssigneeTrack)
}

func TestVisibility_HRSeesHRPool(t *testing.T) {
	hr := domain.Actor{ID: "u1", Role: domain.RoleHR}
	_, hrArgs := filterSQL(t, hr, service.LensNone)
	assert.Contains(t, hrArgs, domain.AssigneeHR)

	member := domain.Actor{ID: "u1", Role: domain.RoleMember}
	_, memberArgs := filterSQL(t, member, service.LensNone)
	assert.NotContains(t, memberArgs, domain.AssigneeHR)
}

func TestVisibility_MineLens(t *testing.T) {
	actor := domain.Actor{ID: "u1", Role: domain.RoleMember, TrackGrants: []string{"t1"}}
	query, args := filterSQL(t, actor, service.LensMine)

	// Direct assignee or an individual assignment row; grants play no part.
	assert.Contains(t, query, "assignee_user_id")
	assert.Contains(t, query, "task_assignments")
	assert.NotContains(t, args, "t1")
}

func TestVisibility_TrackLensWithoutGrantsMatchesNothing(t *testing.T) {
	actor := domain.Actor{ID: "u1", Role: domain.RoleMember}
	query, _ := filterSQL(t, actor, service.LensTrack)
	assert.Contains(t, query, "1 = 0")
}

func TestVisibility_TrackLensNarrowsToGrants(t *testing.T) {
	actor := domain.Actor{ID: "u1", Role: domain.RoleMember, TrackGrants: []string{"t1"}}
	query, args := filterSQL(t, actor, service.LensTrack)
	assert.NotContains(t, query, "1 = 0")
	assert.Contains(t, args, domain.AssigneeTrack)
	assert.Contains(t, args, "t1")
}

func TestVisibility_UnknownLens(t *testing.T) {
	_, err := service.BuildVisibilityFilter(domain.Actor{ID: "u1", Role: domain.RoleAdmin}, "everything")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCanViewTask(t *testing.T) {
	trackID := "t1"
	otherTrack := "t2"
	userID := "u1"

	member := domain.Actor{ID: userID, Role: domain.RoleMember, TrackGrants: []string{trackID}}

	cases := []struct {
		name string
		task domain.Task
		want bool
	}{
		{"global pool", domain.Task{Assignee: domain.GlobalAssignee()}, true},
		{"own direct assignment", domain.Task{Assignee: domain.UserAssignee(userID)}, true},
		{"someone else's assignment", domain.Task{Assignee: domain.UserAssignee("u2")}, false},
		{"own creation", domain.Task{CreatedBy: userID, Assignee: domain.UserAssignee("u2")}, true},
		{"granted track", domain.Task{Assignee: domain.TrackAssignee(trackID)}, true},
		{"ungranted track", domain.Task{Assignee: domain.TrackAssignee(otherTrack)}, false},
		{"hr pool as member", domain.Task{Assignee: domain.HRAssignee()}, false},
		{"deleted task", domain.Task{Deleted: true, Assignee: domain.GlobalAssignee()}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, service.CanViewTask(member, &tc.task))
		})
	}

	admin := domain.Actor{ID: "boss", Role: domain.RoleAdmin}
	assert.True(t, service.CanViewTask(admin, &domain.Task{Assignee: domain.UserAssignee("u2")}))

	hr := domain.Actor{ID: "hr1", Role: domain.RoleHR}
	assert.True(t, service.CanViewTask(hr, &domain.Task{Assignee: domain.HRAssignee()}))
}
