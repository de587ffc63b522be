package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
)

// ProgressRepository handles the generic polymorphic progress records and
// their immutable change history.
type ProgressRepository struct {
	pool *pgxpool.Pool
}

// NewProgressRepository creates a new ProgressRepository.
func NewProgressRepository(pool *pgxpool.Pool) *ProgressRepository {
	return &ProgressRepository{pool: pool}
}

// Get retrieves the current progress row for an entity, or nil when absent.
func (r *ProgressRepository) Get(ctx context.Context, entityType, entityID string) (*domain.ProgressItem, error) {
	query, args, err := psql.
		Select("id", "entity_type", "entity_id", "progress_percent", "status",
			"start_date", "end_date", "metadata", "created_at", "updated_at").
		From("progress_items").
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Get query for progress item: %w", err)
	}

	var item domain.ProgressItem
	var metadata []byte
	err = r.pool.QueryRow(ctx, query, args...).Scan(
		&item.ID,
		&item.EntityType,
		&item.EntityID,
		&item.ProgressPercent,
		&item.Status,
		&item.StartDate,
		&item.EndDate,
		&metadata,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query progress item: %w", err)
	}

	if err := json.Unmarshal(metadata, &item.Metadata); err != nil {
		return nil, fmt.Errorf("parse progress metadata: %w", err)
	}
	return &item, nil
}

// Upsert writes the current-state row for (entityType, entityID), one row per
// entity, and returns the previous percent plus whether the row existed.
func (r *ProgressRepository) Upsert(ctx context.Context, item *domain.ProgressItem) (float64, bool, error) {
	metadata, err := json.Marshal(item.Metadata)
	if err != nil {
		return 0, false, fmt.Errorf("marshal progress metadata: %w", err)
	}
	if item.Metadata == nil {
		metadata = []byte("{}")
	}

	existing, err := r.Get(ctx, item.EntityType, item.EntityID)
	if err != nil {
		return 0, false, err
	}

	var oldPercent float64
	if existing != nil {
		oldPercent = existing.ProgressPercent
	}

	query := `
		INSERT INTO progress_items (entity_type, entity_id, progress_percent, status, start_date, end_date, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			progress_percent = EXCLUDED.progress_percent,
			status = EXCLUDED.status,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			metadata = EXCLUDED.metadata,
			updated_at = NOW()
		RETURNING id
	`

	err = r.pool.QueryRow(ctx, query,
		item.EntityType, item.EntityID, item.ProgressPercent, item.Status,
		item.StartDate, item.EndDate, metadata,
	).Scan(&item.ID)
	if err != nil {
		return 0, false, fmt.Errorf("upsert progress item: %w", err)
	}

	return oldPercent, existing != nil, nil
}

// AppendEvent appends an immutable progress change row. Events are never
// mutated or deleted, even when the tracked entity is soft-deleted.
func (r *ProgressRepository) AppendEvent(ctx context.Context, event *domain.ProgressEvent) error {
	query, args, err := psql.
		Insert("progress_events").
		Columns("entity_type", "entity_id", "old_percent", "new_percent", "changed_by").
		Values(event.EntityType, event.EntityID, event.OldPercent, event.NewPercent, event.ChangedBy).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build AppendEvent query: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		return fmt.Errorf("append progress event: %w", err)
	}
	return nil
}

// EventsByEntity returns the full change history for an entity, oldest first.
func (r *ProgressRepository) EventsByEntity(ctx context.Context, entityType, entityID string) ([]*domain.ProgressEvent, error) {
	query, args, err := psql.
		Select("id", "entity_type", "entity_id", "old_percent", "new_percent", "changed_by", "created_at").
		From("progress_events").
		Where(sq.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("created_at ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build EventsByEntity query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query progress events: %w", err)
	}
	defer rows.Close()

	var events []*domain.ProgressEvent
	for rows.Next() {
		var event domain.ProgressEvent
		err := rows.Scan(
			&event.ID,
			&event.EntityType,
			&event.EntityID,
			&event.OldPercent,
			&event.NewPercent,
			&event.ChangedBy,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan progress event: %w", err)
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return events, nil
}
