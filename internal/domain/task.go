package domain

import "time"

// TaskStatus represents the status of a task in the state machine.
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusDelayed    TaskStatus = "delayed"
	TaskStatusCancelled  TaskStatus = "cancelled"
)

// IsValid checks if the status is one of the allowed values.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted,
		TaskStatusDelayed, TaskStatusCancelled:
		return true
	default:
		return false
	}
}

// TaskPriority represents the priority level of a task.
type TaskPriority string

const (
	TaskPriorityLow      TaskPriority = "low"
	TaskPriorityMedium   TaskPriority = "medium"
	TaskPriorityHigh     TaskPriority = "high"
	TaskPriorityCritical TaskPriority = "critical"
)

// IsValid checks if the priority is one of the allowed values.
func (p TaskPriority) IsValid() bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh, TaskPriorityCritical:
		return true
	default:
		return false
	}
}

// Task represents a unit of work tracked on the board.
type Task struct {
	ID             string
	Title          string
	TitleLocalized string
	Description    string
	Status         TaskStatus
	Priority       TaskPriority
	Progress       float64 // 0-100
	Weight         float64 // > 0, default 1, used in weighted aggregation
	DueDate        *time.Time
	CompletedAt    *time.Time
	TrackID        *string
	ScopeBlockID   *string
	Assignee       Assignee
	CreatedBy      string
	Deleted        bool
	DeletedAt      *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// EffectiveWeight returns the task weight, defaulting to 1 when unset.
func (t *Task) EffectiveWeight() float64 {
	if t.Weight <= 0 {
		return 1
	}
	return t.Weight
}

// IsCreatedBy checks if the task was created by the given user.
func (t *Task) IsCreatedBy(userID string) bool {
	return t.CreatedBy == userID
}

// IsDirectAssignee checks if the task is directly assigned to the given user
// through the polymorphic assignee.
func (t *Task) IsDirectAssignee(userID string) bool {
	return t.Assignee.Kind == AssigneeUser && t.Assignee.UserID != nil && *t.Assignee.UserID == userID
}

// TaskAssignment is a join row recording an individually assigned user,
// independent of the polymorphic primary assignee.
type TaskAssignment struct {
	ID         string
	TaskID     string
	UserID     string
	AssignedBy string
	AssignedAt time.Time
}
