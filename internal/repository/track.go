package repository

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/trackboard/trackboard/internal/domain"
)

// TrackRepository handles database operations for tracks.
type TrackRepository struct {
	pool *pgxpool.Pool
}

// NewTrackRepository creates a new TrackRepository.
func NewTrackRepository(pool *pgxpool.Pool) *TrackRepository {
	return &TrackRepository{pool: pool}
}

// GetByID retrieves a track by ID.
func (r *TrackRepository) GetByID(ctx context.Context, trackID string) (*domain.Track, error) {
	query, args, err := psql.
		Select("id", "name", "code", "created_at").
		From("tracks").
		Where(sq.Eq{"id": trackID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for track %s: %w", trackID, err)
	}

	var track domain.Track
	err = r.pool.QueryRow(ctx, query, args...).Scan(&track.ID, &track.Name, &track.Code, &track.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTrackNotFound
		}
		return nil, fmt.Errorf("query track: %w", err)
	}

	return &track, nil
}

// ListIDs returns the ids of all tracks, used by the progress repair pass.
func (r *TrackRepository) ListIDs(ctx context.Context) ([]string, error) {
	query, args, err := psql.
		Select("id").
		From("tracks").
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListIDs query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query track ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan track id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Exists checks whether a track with the given id exists.
func (r *TrackRepository) Exists(ctx context.Context, trackID string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("tracks").
		Where(sq.Eq{"id": trackID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build Exists query for track: %w", err)
	}

	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query track existence: %w", err)
	}
	return true, nil
}
