package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/service"
)

type fakeFinder struct {
	known map[string]bool
}

func (f fakeFinder) Exists(_ context.Context, id string) (bool, error) {
	return f.known[id], nil
}

func newValidator() *service.AssignmentValidator {
	return service.NewAssignmentValidator(
		fakeFinder{known: map[string]bool{"track-1": true}},
		fakeFinder{known: map[string]bool{"user-1": true}},
	)
}

func TestAssignmentValidator_ValidShapes(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	assert.NoError(t, v.Validate(ctx, domain.TrackAssignee("track-1")))
	assert.NoError(t, v.Validate(ctx, domain.UserAssignee("user-1")))
	assert.NoError(t, v.Validate(ctx, domain.HRAssignee()))
	assert.NoError(t, v.Validate(ctx, domain.GlobalAssignee()))
}

func TestAssignmentValidator_ShapeViolations(t *testing.T) {
	v := newValidator()
	ctx := context.Background()
	trackID := "track-1"
	userID := "user-1"

	cases := []domain.Assignee{
		{Kind: domain.AssigneeTrack},                                          // missing track
		{Kind: domain.AssigneeUser},                                           // missing user
		{Kind: domain.AssigneeTrack, TrackID: &trackID, UserID: &userID},      // both set
		{Kind: domain.AssigneeUser, TrackID: &trackID, UserID: &userID},       // both set
		{Kind: domain.AssigneeHR, TrackID: &trackID},                          // pool kinds carry no ids
		{Kind: domain.AssigneeGlobal, UserID: &userID},                        // pool kinds carry no ids
		{Kind: "TEAM", TrackID: &trackID},                                     // unknown kind
	}
	for _, assignee := range cases {
		assert.ErrorIs(t, v.Validate(ctx, assignee), domain.ErrInvalidAssignment)
	}
}

func TestAssignmentValidator_MissingReferences(t *testing.T) {
	v := newValidator()
	ctx := context.Background()

	assert.ErrorIs(t, v.Validate(ctx, domain.TrackAssignee("track-missing")), domain.ErrTrackNotFound)
	assert.ErrorIs(t, v.Validate(ctx, domain.UserAssignee("user-missing")), domain.ErrUserNotFound)
}
