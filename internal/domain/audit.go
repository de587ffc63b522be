package domain

import (
	"encoding/json"
	"time"
)

// AuditAction is the closed vocabulary of task audit actions.
type AuditAction string

const (
	AuditCreated          AuditAction = "CREATED"
	AuditUpdated          AuditAction = "UPDATED"
	AuditReassigned       AuditAction = "REASSIGNED"
	AuditStatusChanged    AuditAction = "STATUS_CHANGED"
	AuditDeleted          AuditAction = "DELETED"
	AuditChecklistAdded   AuditAction = "CHECKLIST_ADDED"
	AuditChecklistUpdated AuditAction = "CHECKLIST_UPDATED"
	AuditChecklistDeleted AuditAction = "CHECKLIST_DELETED"
	AuditAdminNoteAdded   AuditAction = "ADMIN_NOTE_ADDED"
	AuditAdminNoteUpdated AuditAction = "ADMIN_NOTE_UPDATED"
	AuditAdminNoteDeleted AuditAction = "ADMIN_NOTE_DELETED"
	AuditUpdateAdded      AuditAction = "UPDATE_ADDED"
	AuditFileUploaded     AuditAction = "FILE_UPLOADED"
	AuditFileDeleted      AuditAction = "FILE_DELETED"
)

// TaskAuditEntry is an append-only, per-task action history row, distinct
// from the platform's generic cross-entity audit log.
type TaskAuditEntry struct {
	ID        string
	TaskID    string
	ActorID   *string // nil for system entries
	Action    AuditAction
	Before    json.RawMessage
	After     json.RawMessage
	CreatedAt time.Time
}

// IsSystemEntry returns true if the entry was written by the system.
func (e *TaskAuditEntry) IsSystemEntry() bool {
	return e.ActorID == nil
}
