package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/repository"
)

// AuditWriter records before/after snapshots of task mutations in the
// task-scoped, append-only audit log. Audit failures are logged and
// swallowed so they never block the primary mutation.
type AuditWriter struct {
	repo *repository.AuditRepository
}

// NewAuditWriter creates a new AuditWriter.
func NewAuditWriter(repo *repository.AuditRepository) *AuditWriter {
	return &AuditWriter{repo: repo}
}

// Record appends an audit entry. before and after may be nil; non-nil values
// are stored as JSON snapshots. Never returns an error.
func (w *AuditWriter) Record(ctx context.Context, taskID string, actorID *string, action domain.AuditAction, before, after any) {
	entry := &domain.TaskAuditEntry{
		TaskID:  taskID,
		ActorID: actorID,
		Action:  action,
		Before:  marshalSnapshot(taskID, before),
		After:   marshalSnapshot(taskID, after),
	}

	if err := w.repo.Append(ctx, entry); err != nil {
		slog.Error("task audit write failed",
			"task_id", taskID,
			"action", action,
			"error", err,
		)
	}
}

func marshalSnapshot(taskID string, v any) json.RawMessage {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("audit snapshot marshal failed", "task_id", taskID, "error", err)
		return nil
	}
	return data
}

// taskSnapshot is the audit view of a task: the fields whose transitions the
// log exists to explain.
type taskSnapshot struct {
	Title        string              `json:"title"`
	Status       domain.TaskStatus   `json:"status"`
	Priority     domain.TaskPriority `json:"priority"`
	Progress     float64             `json:"progress"`
	Weight       float64             `json:"weight"`
	AssigneeType domain.AssigneeKind `json:"assignee_type"`
	AssigneeID   *string             `json:"assignee_id,omitempty"`
	TrackID      *string             `json:"track_id,omitempty"`
	Deleted      bool                `json:"deleted"`
}

func snapshotTask(t *domain.Task) taskSnapshot {
	snap := taskSnapshot{
		Title:        t.Title,
		Status:       t.Status,
		Priority:     t.Priority,
		Progress:     t.Progress,
		Weight:       t.Weight,
		AssigneeType: t.Assignee.Kind,
		TrackID:      t.TrackID,
		Deleted:      t.Deleted,
	}
	switch t.Assignee.Kind {
	case domain.AssigneeTrack:
		snap.AssigneeID = t.Assignee.TrackID
	case domain.AssigneeUser:
		snap.AssigneeID = t.Assignee.UserID
	}
	return snap
}
