package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/trackboard/trackboard/internal/domain"
)

// TaskListFilters holds all supported filters for task listing. Visibility is
// the caller's resolved predicate and is always applied, before search, sort
// and pagination, so counts are computed over the visible subset only.
type TaskListFilters struct {
	Visibility sq.Sqlizer // Required: resolved visibility predicate
	TrackID    *string    // Optional: filter by owning track
	Statuses   []string   // Optional: filter by status
	Priorities []string   // Optional: filter by priority
	Search     string     // Optional: title/description substring
	Sort       []string   // Optional: sort fields (with - prefix for DESC)
	Limit      int        // Required: page size
	Offset     int        // Required: page offset
}

// sortableFields guards ORDER BY input against arbitrary SQL.
var sortableFields = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"due_date":   true,
	"progress":   true,
	"title":      true,
	"status":     true,
}

// priorityOrder ranks the priority enum for sorting.
const priorityOrder = "CASE priority WHEN 'critical' THEN 1 WHEN 'high' THEN 2 WHEN 'medium' THEN 3 WHEN 'low' THEN 4 END"

// applyTaskFilters attaches the shared filter set to a select builder.
func applyTaskFilters(qb sq.SelectBuilder, filters TaskListFilters) sq.SelectBuilder {
	qb = qb.Where(filters.Visibility)

	if filters.TrackID != nil {
		qb = qb.Where(sq.Eq{"track_id": *filters.TrackID})
	}
	if len(filters.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filters.Statuses})
	}
	if len(filters.Priorities) > 0 {
		qb = qb.Where(sq.Eq{"priority": filters.Priorities})
	}
	if filters.Search != "" {
		pattern := "%" + filters.Search + "%"
		qb = qb.Where(sq.Or{
			sq.ILike{"title": pattern},
			sq.ILike{"description": pattern},
		})
	}
	return qb
}

// List retrieves tasks matching the visibility predicate and filters,
// with pagination. Returns the page and the total visible count.
func (r *TaskRepository) List(ctx context.Context, filters TaskListFilters) ([]*domain.Task, int, error) {
	qb := applyTaskFilters(psql.Select(taskColumns...).From("tasks"), filters)

	if len(filters.Sort) == 0 {
		qb = qb.OrderBy(priorityOrder + " ASC")
		qb = qb.OrderBy("created_at ASC")
	} else {
		for _, sort := range filters.Sort {
			field, dir := sort, "ASC"
			if strings.HasPrefix(sort, "-") {
				field, dir = sort[1:], "DESC"
			}
			switch {
			case field == "priority":
				qb = qb.OrderBy(priorityOrder + " " + dir)
			case sortableFields[field]:
				qb = qb.OrderBy(field + " " + dir)
			}
		}
	}

	qb = qb.Limit(uint64(filters.Limit)).Offset(uint64(filters.Offset))

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build List query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query tasks: %w", err)
	}

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, 0, err
	}

	countQuery, countArgs, err := applyTaskFilters(psql.Select("COUNT(*)").From("tasks"), filters).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	return tasks, total, nil
}
