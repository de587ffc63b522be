package dto

import (
	"encoding/json"
	"time"

	"github.com/trackboard/trackboard/internal/domain"
	"github.com/trackboard/trackboard/internal/service"
)

// TaskResponse represents a task in API responses.
type TaskResponse struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	TitleLocalized string     `json:"title_localized,omitempty"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	Progress       float64    `json:"progress"`
	Weight         float64    `json:"weight"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	TrackID        *string    `json:"track_id,omitempty"`
	ScopeBlockID   *string    `json:"scope_block_id,omitempty"`
	AssigneeType   string     `json:"assignee_type"`
	AssigneeTrack  *string    `json:"assignee_track_id,omitempty"`
	AssigneeUser   *string    `json:"assignee_user_id,omitempty"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TasksListResponse represents the response for GET /tasks.
type TasksListResponse struct {
	Tasks  []TaskResponse `json:"tasks"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// ToTaskResponse converts a domain.Task to its API shape.
func ToTaskResponse(task *domain.Task) TaskResponse {
	return TaskResponse{
		ID:             task.ID,
		Title:          task.Title,
		TitleLocalized: task.TitleLocalized,
		Description:    task.Description,
		Status:         string(task.Status),
		Priority:       string(task.Priority),
		Progress:       task.Progress,
		Weight:         task.Weight,
		DueDate:        task.DueDate,
		CompletedAt:    task.CompletedAt,
		TrackID:        task.TrackID,
		ScopeBlockID:   task.ScopeBlockID,
		AssigneeType:   string(task.Assignee.Kind),
		AssigneeTrack:  task.Assignee.TrackID,
		AssigneeUser:   task.Assignee.UserID,
		CreatedBy:      task.CreatedBy,
		CreatedAt:      task.CreatedAt,
		UpdatedAt:      task.UpdatedAt,
	}
}

// AuditEntryResponse represents one task audit log row.
type AuditEntryResponse struct {
	ID        string          `json:"id"`
	Action    string          `json:"action"`
	ActorID   *string         `json:"actor_id"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// AuditTrailResponse represents the response for GET /tasks/:id/audit.
type AuditTrailResponse struct {
	TaskID  string               `json:"task_id"`
	Entries []AuditEntryResponse `json:"entries"`
}

// ToAuditEntryResponse converts a domain audit entry to its API shape.
func ToAuditEntryResponse(entry *domain.TaskAuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:        entry.ID,
		Action:    string(entry.Action),
		ActorID:   entry.ActorID,
		Before:    entry.Before,
		After:     entry.After,
		CreatedAt: entry.CreatedAt,
	}
}

// TaskDetailResponse represents the response for GET /tasks/:id, the task
// together with its full audit trail and individually assigned users.
type TaskDetailResponse struct {
	Task        TaskResponse         `json:"task"`
	AssigneeIDs []string             `json:"assignee_ids"`
	Audit       []AuditEntryResponse `json:"audit"`
}

// ProgressEventResponse represents one append-only progress change row.
type ProgressEventResponse struct {
	ID         string    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	OldPercent float64   `json:"old_percent"`
	NewPercent float64   `json:"new_percent"`
	ChangedBy  *string   `json:"changed_by,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ToProgressEventResponse converts a domain progress event to its API shape.
func ToProgressEventResponse(event *domain.ProgressEvent) ProgressEventResponse {
	return ProgressEventResponse{
		ID:         event.ID,
		EntityType: event.EntityType,
		EntityID:   event.EntityID,
		OldPercent: event.OldPercent,
		NewPercent: event.NewPercent,
		ChangedBy:  event.ChangedBy,
		CreatedAt:  event.CreatedAt,
	}
}

// ScopeBlockResponse represents a scope block in API responses.
type ScopeBlockResponse struct {
	ID         string  `json:"id"`
	TrackID    string  `json:"track_id"`
	Code       string  `json:"code"`
	Title      string  `json:"title"`
	Content    string  `json:"content,omitempty"`
	ParentID   *string `json:"parent_id,omitempty"`
	OrderIndex int     `json:"order_index"`
	Progress   float64 `json:"progress"`
	Status     string  `json:"status"`
}

// ToScopeBlockResponse converts a domain.ScopeBlock to its API shape.
func ToScopeBlockResponse(block *domain.ScopeBlock) ScopeBlockResponse {
	return ScopeBlockResponse{
		ID:         block.ID,
		TrackID:    block.TrackID,
		Code:       block.Code,
		Title:      block.Title,
		Content:    block.Content,
		ParentID:   block.ParentID,
		OrderIndex: block.OrderIndex,
		Progress:   block.Progress,
		Status:     string(block.Status),
	}
}

// SignalScoreResponse is one weighted component of a track score.
type SignalScoreResponse struct {
	Score  float64 `json:"score"`
	Weight float64 `json:"weight"`
	Count  int     `json:"count"`
}

// TrackProgressResponse represents the response for GET /tracks/:id/progress.
type TrackProgressResponse struct {
	TrackID          string              `json:"track_id"`
	Overall          float64             `json:"overall"`
	SimpleProgress   float64             `json:"simple_progress"`
	WeightedProgress float64             `json:"weighted_progress"`
	Tasks            SignalScoreResponse `json:"tasks"`
	Reports          SignalScoreResponse `json:"reports"`
	ScopeBlocks      SignalScoreResponse `json:"scope_blocks"`
	KPIs             SignalScoreResponse `json:"kpis"`
}

// ToTrackProgressResponse converts an aggregator result to its API shape.
func ToTrackProgressResponse(p *service.TrackProgress) TrackProgressResponse {
	toSignal := func(s service.SignalScore) SignalScoreResponse {
		return SignalScoreResponse{Score: s.Score, Weight: s.Weight, Count: s.Count}
	}
	return TrackProgressResponse{
		TrackID:          p.TrackID,
		Overall:          p.Overall,
		SimpleProgress:   p.SimpleProgress,
		WeightedProgress: p.WeightedProgress,
		Tasks:            toSignal(p.Tasks),
		Reports:          toSignal(p.Reports),
		ScopeBlocks:      toSignal(p.ScopeBlocks),
		KPIs:             toSignal(p.KPIs),
	}
}

// EmployeeProgressResponse represents the response for GET /employees/:id/progress.
type EmployeeProgressResponse struct {
	UserID     string  `json:"user_id"`
	Overall    float64 `json:"overall"`
	TaskScore  float64 `json:"task_score"`
	ScopeScore float64 `json:"scope_score"`
	TaskCount  int     `json:"task_count"`
	TrackCount int     `json:"track_count"`
}

// ToEmployeeProgressResponse converts an aggregator result to its API shape.
func ToEmployeeProgressResponse(p *service.EmployeeProgress) EmployeeProgressResponse {
	return EmployeeProgressResponse{
		UserID:     p.UserID,
		Overall:    p.Overall,
		TaskScore:  p.TaskScore,
		ScopeScore: p.ScopeScore,
		TaskCount:  p.TaskCount,
		TrackCount: p.TrackCount,
	}
}
