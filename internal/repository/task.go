package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
)

// taskColumns is the shared list of columns for task queries.
var taskColumns = []string{
	"id", "title", "title_localized", "description", "status", "priority",
	"progress", "weight", "due_date", "completed_at", "track_id", "scope_block_id",
	"assignee_type", "assignee_track_id", "assignee_user_id", "created_by",
	"deleted", "deleted_at", "created_at", "updated_at",
}

// TaskRepository handles database operations for tasks.
type TaskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository creates a new TaskRepository.
func NewTaskRepository(pool *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{pool: pool}
}

// scanTask scans a single row into a Task struct.
func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.TitleLocalized,
		&task.Description,
		&task.Status,
		&task.Priority,
		&task.Progress,
		&task.Weight,
		&task.DueDate,
		&task.CompletedAt,
		&task.TrackID,
		&task.ScopeBlockID,
		&task.Assignee.Kind,
		&task.Assignee.TrackID,
		&task.Assignee.UserID,
		&task.CreatedBy,
		&task.Deleted,
		&task.DeletedAt,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("scan task: %w", err)
	}
	return &task, nil
}

// scanTasks scans multiple rows into a slice of Task structs.
func scanTasks(rows pgx.Rows) ([]*domain.Task, error) {
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return tasks, nil
}

// GetByID retrieves a task by ID. Soft-deleted tasks are not returned.
func (r *TaskRepository) GetByID(ctx context.Context, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID, "deleted": false}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for task: %w", err)
	}

	return scanTask(r.pool.QueryRow(ctx, query, args...))
}

// GetByIDForUpdate retrieves a task by ID with FOR UPDATE lock (within transaction).
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, taskID string) (*domain.Task, error) {
	query, args, err := psql.
		Select(taskColumns...).
		From("tasks").
		Where(sq.Eq{"id": taskID, "deleted": false}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByIDForUpdate query for task %s: %w", taskID, err)
	}

	return scanTask(tx.QueryRow(ctx, query, args...))
}

// Create creates a new task in the database within a transaction.
// Returns the created task with ID, CreatedAt, and UpdatedAt populated.
func (r *TaskRepository) Create(ctx context.Context, tx pgx.Tx, task *domain.Task) (*domain.Task, error) {
	if task.Status == "" {
		task.Status = domain.TaskStatusPending
	}
	if task.Priority == "" {
		task.Priority = domain.TaskPriorityMedium
	}
	if task.Weight <= 0 {
		task.Weight = 1
	}

	query, args, err := psql.
		Insert("tasks").
		Columns(
			"title", "title_localized", "description", "status", "priority",
			"progress", "weight", "due_date", "completed_at", "track_id", "scope_block_id",
			"assignee_type", "assignee_track_id", "assignee_user_id", "created_by",
		).
		Values(
			task.Title,
			task.TitleLocalized,
			task.Description,
			task.Status,
			task.Priority,
			task.Progress,
			task.Weight,
			task.DueDate,
			task.CompletedAt,
			task.TrackID,
			task.ScopeBlockID,
			task.Assignee.Kind,
			task.Assignee.TrackID,
			task.Assignee.UserID,
			task.CreatedBy,
		).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for task: %w", err)
	}

	err = tx.QueryRow(ctx, query, args...).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}

	return task, nil
}

// Update persists the mutable fields of a task within a transaction.
func (r *TaskRepository) Update(ctx context.Context, tx pgx.Tx, task *domain.Task) error {
	query, args, err := psql.
		Update("tasks").
		Set("title", task.Title).
		Set("title_localized", task.TitleLocalized).
		Set("description", task.Description).
		Set("status", task.Status).
		Set("priority", task.Priority).
		Set("progress", task.Progress).
		Set("weight", task.Weight).
		Set("due_date", task.DueDate).
		Set("completed_at", task.CompletedAt).
		Set("track_id", task.TrackID).
		Set("scope_block_id", task.ScopeBlockID).
		Set("assignee_type", task.Assignee.Kind).
		Set("assignee_track_id", task.Assignee.TrackID).
		Set("assignee_user_id", task.Assignee.UserID).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": task.ID, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for task %s: %w", task.ID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}

// SoftDelete flags a task as deleted and stamps the deletion time.
// The row, its audit trail and its progress events are retained.
func (r *TaskRepository) SoftDelete(ctx context.Context, tx pgx.Tx, taskID string, deletedAt time.Time) error {
	query, args, err := psql.
		Update("tasks").
		Set("deleted", true).
		Set("deleted_at", deletedAt).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": taskID, "deleted": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build SoftDelete query for task %s: %w", taskID, err)
	}

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("soft delete task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}

	return nil
}
