package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/trackboard/trackboard/internal/domain"
)

func TestKPIAchievement(t *testing.T) {
	assert.Equal(t, 50.0, (&domain.KPI{Target: 100, Actual: 50}).Achievement())
	assert.Equal(t, 100.0, (&domain.KPI{Target: 100, Actual: 100}).Achievement())

	// Over-performance is capped
	assert.Equal(t, 100.0, (&domain.KPI{Target: 100, Actual: 250}).Achievement())

	// Degenerate targets score 0, not Inf
	assert.Equal(t, 0.0, (&domain.KPI{Target: 0, Actual: 50}).Achievement())
	assert.Equal(t, 0.0, (&domain.KPI{Target: -10, Actual: 50}).Achievement())
}

func TestFileMetaValidate(t *testing.T) {
	assert.NoError(t, domain.FileMeta{Name: "report.pdf", Size: 1024}.Validate())
	assert.NoError(t, domain.FileMeta{Name: "PHOTO.JPG", Size: 1024}.Validate())

	assert.ErrorIs(t, domain.FileMeta{Name: "run.exe", Size: 1024}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, domain.FileMeta{Name: "noext", Size: 1024}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, domain.FileMeta{Name: "empty.pdf", Size: 0}.Validate(), domain.ErrValidation)
	assert.ErrorIs(t, domain.FileMeta{Name: "huge.zip", Size: domain.MaxAttachmentSize + 1}.Validate(), domain.ErrValidation)
}

func TestTaskEffectiveWeight(t *testing.T) {
	assert.Equal(t, 2.5, (&domain.Task{Weight: 2.5}).EffectiveWeight())
	assert.Equal(t, 1.0, (&domain.Task{}).EffectiveWeight())
	assert.Equal(t, 1.0, (&domain.Task{Weight: -3}).EffectiveWeight())
}

func TestTaskIsDirectAssignee(t *testing.T) {
	task := domain.Task{Assignee: domain.UserAssignee("u1")}
	assert.True(t, task.IsDirectAssignee("u1"))
	assert.False(t, task.IsDirectAssignee("u2"))

	// Pool and track assignments have no direct assignee
	pooled := domain.Task{Assignee: domain.GlobalAssignee()}
	assert.False(t, pooled.IsDirectAssignee("u1"))
	tracked := domain.Task{Assignee: domain.TrackAssignee("t1")}
	assert.False(t, tracked.IsDirectAssignee("u1"))
}

func TestTrackPermissionHas(t *testing.T) {
	perm := domain.TrackPermission{Capabilities: []domain.Capability{domain.CapabilityView, domain.CapabilityEdit}}
	assert.True(t, perm.Has(domain.CapabilityView))
	assert.True(t, perm.Has(domain.CapabilityEdit))
	assert.False(t, perm.Has(domain.CapabilityDelete))
}

func TestStatusAndPriorityValidation(t *testing.T) {
	for _, status := range []domain.TaskStatus{
		domain.TaskStatusPending, domain.TaskStatusInProgress, domain.TaskStatusCompleted,
		domain.TaskStatusDelayed, domain.TaskStatusCancelled,
	} {
		assert.True(t, status.IsValid())
	}
	assert.False(t, domain.TaskStatus("done").IsValid())

	assert.True(t, domain.TaskPriorityCritical.IsValid())
	assert.False(t, domain.TaskPriority("urgent").IsValid())
}
