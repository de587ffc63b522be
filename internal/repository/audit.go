package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
)

// AuditRepository handles the append-only per-task audit log. Rows are kept
// even after the task itself is soft-deleted, so there is no foreign key to
// the tasks table.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append inserts a new audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.TaskAuditEntry) error {
	query, args, err := psql.
		Insert("task_audit_logs").
		Columns("task_id", "actor_id", "action", "before", "after").
		Values(entry.TaskID, entry.ActorID, entry.Action, entry.Before, entry.After).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build Append query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListByTask retrieves the full action history for a task, oldest first.
func (r *AuditRepository) ListByTask(ctx context.Context, taskID string) ([]*domain.TaskAuditEntry, error) {
	query, args, err := psql.
		Select("id", "task_id", "actor_id", "action", "before", "after", "created_at").
		From("task_audit_logs").
		Where(sq.Eq{"task_id": taskID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTask query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TaskAuditEntry
	for rows.Next() {
		var entry domain.TaskAuditEntry
		err := rows.Scan(
			&entry.ID,
			&entry.TaskID,
			&entry.ActorID,
			&entry.Action,
			&entry.Before,
			&entry.After,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return entries, nil
}
