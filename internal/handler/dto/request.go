package dto

import (
	"encoding/json"
	"time"
)

// CreateTaskRequest represents the request body for POST /tasks.
type CreateTaskRequest struct {
	Title          string     `json:"title" validate:"required,min=3,max=200"`
	TitleLocalized string     `json:"title_localized,omitempty" validate:"max=200"`
	Description    string     `json:"description,omitempty"`
	Priority       string     `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Progress       float64    `json:"progress,omitempty" validate:"gte=0,lte=100"`
	Weight         float64    `json:"weight,omitempty" validate:"gte=0"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	TrackID        *string    `json:"track_id,omitempty" validate:"omitempty,uuid"`
	ScopeBlockID   *string    `json:"scope_block_id,omitempty" validate:"omitempty,uuid"`
	AssigneeType   string     `json:"assignee_type" validate:"required,oneof=TRACK USER HR GLOBAL"`
	AssigneeTrack  *string    `json:"assignee_track_id,omitempty" validate:"omitempty,uuid"`
	AssigneeUser   *string    `json:"assignee_user_id,omitempty" validate:"omitempty,uuid"`
	AssigneeIDs    []string   `json:"assignee_ids,omitempty" validate:"dive,uuid"`
}

// UpdateTaskRequest represents the request body for PATCH /tasks/:id.
// Absent fields are left untouched.
type UpdateTaskRequest struct {
	Title          *string    `json:"title,omitempty" validate:"omitempty,min=3,max=200"`
	TitleLocalized *string    `json:"title_localized,omitempty" validate:"omitempty,max=200"`
	Description    *string    `json:"description,omitempty"`
	Priority       *string    `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Progress       *float64   `json:"progress,omitempty" validate:"omitempty,gte=0,lte=100"`
	Weight         *float64   `json:"weight,omitempty" validate:"omitempty,gt=0"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	Status         *string    `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed delayed cancelled"`
	TrackID        *string    `json:"track_id,omitempty" validate:"omitempty,uuid"`
	ScopeBlockID   *string    `json:"scope_block_id,omitempty" validate:"omitempty,uuid"`
	AssigneeType   *string    `json:"assignee_type,omitempty" validate:"omitempty,oneof=TRACK USER HR GLOBAL"`
	AssigneeTrack  *string    `json:"assignee_track_id,omitempty" validate:"omitempty,uuid"`
	AssigneeUser   *string    `json:"assignee_user_id,omitempty" validate:"omitempty,uuid"`
	AssigneeIDs    []string   `json:"assignee_ids,omitempty" validate:"omitempty,dive,uuid"`
}

// ChangeStatusRequest represents the request body for PATCH /tasks/:id/status.
type ChangeStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=pending in_progress completed delayed cancelled"`
}

// AssignUsersRequest represents the request body for POST /tasks/:id/assign.
type AssignUsersRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,uuid"`
}

// SubObjectChangeRequest represents the request body for POST /tasks/:id/audit.
type SubObjectChangeRequest struct {
	Action string          `json:"action" validate:"required"`
	Before json.RawMessage `json:"before,omitempty"`
	After  json.RawMessage `json:"after,omitempty"`
}

// AttachFileRequest represents attachment metadata for POST /tasks/:id/files.
type AttachFileRequest struct {
	Name string `json:"name" validate:"required"`
	Size int64  `json:"size" validate:"required,gt=0"`
}

// CreateScopeBlockRequest represents the request body for POST /scope-blocks.
type CreateScopeBlockRequest struct {
	TrackID    string  `json:"track_id" validate:"required,uuid"`
	Code       string  `json:"code" validate:"required,max=50"`
	Title      string  `json:"title" validate:"required,max=200"`
	Content    string  `json:"content,omitempty"`
	ParentID   *string `json:"parent_id,omitempty" validate:"omitempty,uuid"`
	OrderIndex int     `json:"order_index,omitempty" validate:"gte=0"`
}

// UpdateScopeBlockRequest represents the request body for PATCH /scope-blocks/:id.
type UpdateScopeBlockRequest struct {
	Title   *string `json:"title,omitempty" validate:"omitempty,min=1,max=200"`
	Content *string `json:"content,omitempty"`
	Status  *string `json:"status,omitempty" validate:"omitempty,oneof=pending in_progress completed"`
}

// ScopeBlockProgressRequest represents the request body for
// PATCH /scope-blocks/:id/progress.
type ScopeBlockProgressRequest struct {
	Progress float64 `json:"progress" validate:"gte=0,lte=100"`
}

// ReorderScopeBlocksRequest represents the request body for
// POST /tracks/:id/scope-blocks/reorder.
type ReorderScopeBlocksRequest struct {
	Items []ReorderScopeBlockItem `json:"items" validate:"required,min=1,dive"`
}

// ReorderScopeBlockItem is one entry of a batch reorder.
type ReorderScopeBlockItem struct {
	BlockID    string `json:"block_id" validate:"required,uuid"`
	OrderIndex int    `json:"order_index" validate:"gte=0"`
}
