package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
)

// TaskAssignmentRepository handles the task/user assignment join rows.
type TaskAssignmentRepository struct {
	pool *pgxpool.Pool
}

// NewTaskAssignmentRepository creates a new TaskAssignmentRepository.
func NewTaskAssignmentRepository(pool *pgxpool.Pool) *TaskAssignmentRepository {
	return &TaskAssignmentRepository{pool: pool}
}

// ListUserIDs returns the ids of all individually assigned users for a task.
func (r *TaskAssignmentRepository) ListUserIDs(ctx context.Context, taskID string) ([]string, error) {
	query, args, err := psql.
		Select("user_id").
		From("task_assignments").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("assigned_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListUserIDs query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task assignments: %w", err)
	}
	defer rows.Close()

	var userIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		userIDs = append(userIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return userIDs, nil
}

// Replace deletes all assignment rows for a task and recreates them from
// userIDs, within the caller's transaction. Used on wholesale task updates.
func (r *TaskAssignmentRepository) Replace(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	userIDs []string,
	assignedBy string,
) error {
	delQuery, delArgs, err := psql.
		Delete("task_assignments").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	if _, err := tx.Exec(ctx, delQuery, delArgs...); err != nil {
		return fmt.Errorf("delete task assignments: %w", err)
	}

	_, err = r.addWithinTx(ctx, tx, taskID, userIDs, assignedBy)
	return err
}

// Add inserts assignment rows for the given users, skipping ids that are
// already assigned. Returns the ids actually added, within the caller's tx.
func (r *TaskAssignmentRepository) Add(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	userIDs []string,
	assignedBy string,
) ([]string, error) {
	return r.addWithinTx(ctx, tx, taskID, userIDs, assignedBy)
}

func (r *TaskAssignmentRepository) addWithinTx(
	ctx context.Context,
	tx pgx.Tx,
	taskID string,
	userIDs []string,
	assignedBy string,
) ([]string, error) {
	var added []string
	for _, userID := range userIDs {
		query, args, err := psql.
			Insert("task_assignments").
			Columns("task_id", "user_id", "assigned_by").
			Values(taskID, userID, assignedBy).
			Suffix("ON CONFLICT (task_id, user_id) DO NOTHING RETURNING user_id").
			ToSql()
		if err != nil {
			return nil, fmt.Errorf("build insert query: %w", err)
		}

		var inserted string
		err = tx.QueryRow(ctx, query, args...).Scan(&inserted)
		if err == pgx.ErrNoRows {
			continue // already assigned
		}
		if err != nil {
			return nil, fmt.Errorf("insert task assignment: %w", err)
		}
		added = append(added, inserted)
	}
	return added, nil
}

// DeleteByTask removes all assignment rows for a task within a transaction.
func (r *TaskAssignmentRepository) DeleteByTask(ctx context.Context, tx pgx.Tx, taskID string) error {
	query, args, err := psql.
		Delete("task_assignments").
		Where(sq.Eq{"task_id": taskID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build DeleteByTask query: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete task assignments: %w", err)
	}
	return nil
}

// IsAssigned checks whether a user is individually assigned to a task.
func (r *TaskAssignmentRepository) IsAssigned(ctx context.Context, taskID, userID string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("task_assignments").
		Where(sq.Eq{"task_id": taskID, "user_id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build IsAssigned query: %w", err)
	}

	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query task assignment: %w", err)
	}
	return true, nil
}

// ListByTask returns the full assignment rows for a task.
func (r *TaskAssignmentRepository) ListByTask(ctx context.Context, taskID string) ([]*domain.TaskAssignment, error) {
	query, args, err := psql.
		Select("id", "task_id", "user_id", "assigned_by", "assigned_at").
		From("task_assignments").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("assigned_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTask query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query task assignments: %w", err)
	}
	defer rows.Close()

	var assignments []*domain.TaskAssignment
	for rows.Next() {
		var a domain.TaskAssignment
		if err := rows.Scan(&a.ID, &a.TaskID, &a.UserID, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		assignments = append(assignments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return assignments, nil
}
