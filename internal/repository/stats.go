package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
)

// StatsRepository reads the raw aggregation signals the progress aggregator
// combines. Soft-deleted tasks are excluded from every signal.
type StatsRepository struct {
	pool *pgxpool.Pool
}

// NewStatsRepository creates a new StatsRepository.
func NewStatsRepository(pool *pgxpool.Pool) *StatsRepository {
	return &StatsRepository{pool: pool}
}

// TrackTaskStats holds the raw task signal for one track.
type TrackTaskStats struct {
	Count          int
	MeanProgress   float64
	WeightedSum    float64 // sum(progress * weight)
	WeightSum      float64 // sum(weight)
	CompletedCount int
}

// TaskStatsByTrack aggregates task progress for one track.
func (r *StatsRepository) TaskStatsByTrack(ctx context.Context, trackID string) (TrackTaskStats, error) {
	var stats TrackTaskStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(AVG(progress), 0),
			COALESCE(SUM(progress * weight), 0),
			COALESCE(SUM(weight), 0),
			COUNT(*) FILTER (WHERE status = $2)
		FROM tasks
		WHERE track_id = $1 AND NOT deleted
	`, trackID, domain.TaskStatusCompleted).Scan(
		&stats.Count,
		&stats.MeanProgress,
		&stats.WeightedSum,
		&stats.WeightSum,
		&stats.CompletedCount,
	)
	if err != nil {
		return TrackTaskStats{}, fmt.Errorf("query track task stats: %w", err)
	}
	return stats, nil
}

// ReportCountByTrack counts the reports filed for a track.
func (r *StatsRepository) ReportCountByTrack(ctx context.Context, trackID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM reports WHERE track_id = $1
	`, trackID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count track reports: %w", err)
	}
	return count, nil
}

// ScopeBlockStats holds the raw scope-block signal for one or more tracks.
type ScopeBlockStats struct {
	Count        int
	MeanProgress float64
}

// ScopeBlockStatsByTrack aggregates scope-block progress at all depths.
func (r *StatsRepository) ScopeBlockStatsByTrack(ctx context.Context, trackID string) (ScopeBlockStats, error) {
	var stats ScopeBlockStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(progress), 0)
		FROM scope_blocks
		WHERE track_id = $1
	`, trackID).Scan(&stats.Count, &stats.MeanProgress)
	if err != nil {
		return ScopeBlockStats{}, fmt.Errorf("query track scope block stats: %w", err)
	}
	return stats, nil
}

// ScopeBlockStatsByTracks aggregates scope-block progress across a set of
// tracks. An empty set yields zero stats.
func (r *StatsRepository) ScopeBlockStatsByTracks(ctx context.Context, trackIDs []string) (ScopeBlockStats, error) {
	if len(trackIDs) == 0 {
		return ScopeBlockStats{}, nil
	}

	var stats ScopeBlockStats
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*), COALESCE(AVG(progress), 0)
		FROM scope_blocks
		WHERE track_id = ANY($1)
	`, trackIDs).Scan(&stats.Count, &stats.MeanProgress)
	if err != nil {
		return ScopeBlockStats{}, fmt.Errorf("query scope block stats for tracks: %w", err)
	}
	return stats, nil
}

// KPIsByTrack retrieves the KPI rows for a track.
func (r *StatsRepository) KPIsByTrack(ctx context.Context, trackID string) ([]*domain.KPI, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, track_id, name, target, actual, created_at
		FROM kpis
		WHERE track_id = $1
		ORDER BY name
	`, trackID)
	if err != nil {
		return nil, fmt.Errorf("query track kpis: %w", err)
	}
	defer rows.Close()

	var kpis []*domain.KPI
	for rows.Next() {
		var kpi domain.KPI
		if err := rows.Scan(&kpi.ID, &kpi.TrackID, &kpi.Name, &kpi.Target, &kpi.Actual, &kpi.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan kpi: %w", err)
		}
		kpis = append(kpis, &kpi)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate kpi rows: %w", err)
	}
	return kpis, nil
}

// UserTaskStats holds the raw own-task signal for one user: the weighted
// progress terms plus the distinct tracks the user's tasks touch.
type UserTaskStats struct {
	Count       int
	WeightedSum float64
	WeightSum   float64
	TrackIDs    []string
}

// TaskStatsByUser aggregates tasks a user is responsible for: tasks with a
// direct USER assignment plus tasks the user is individually assigned to.
func (r *StatsRepository) TaskStatsByUser(ctx context.Context, userID string) (UserTaskStats, error) {
	var stats UserTaskStats
	err := r.pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(t.progress * t.weight), 0),
			COALESCE(SUM(t.weight), 0),
			COALESCE(ARRAY_AGG(DISTINCT t.track_id) FILTER (WHERE t.track_id IS NOT NULL), '{}')
		FROM tasks t
		WHERE NOT t.deleted
		  AND (t.assignee_user_id = $1
		       OR EXISTS (SELECT 1 FROM task_assignments ta
		                  WHERE ta.task_id = t.id AND ta.user_id = $1))
	`, userID).Scan(&stats.Count, &stats.WeightedSum, &stats.WeightSum, &stats.TrackIDs)
	if err != nil {
		return UserTaskStats{}, fmt.Errorf("query user task stats: %w", err)
	}
	return stats, nil
}
