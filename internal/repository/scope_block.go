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

var scopeBlockColumns = []string{
	"id", "track_id", "code", "title", "content", "parent_id",
	"order_index", "progress", "status", "created_at", "updated_at",
}

// ScopeBlockRepository handles database operations for scope blocks.
type ScopeBlockRepository struct {
	pool *pgxpool.Pool
}

// NewScopeBlockRepository creates a new ScopeBlockRepository.
func NewScopeBlockRepository(pool *pgxpool.Pool) *ScopeBlockRepository {
	return &ScopeBlockRepository{pool: pool}
}

func scanScopeBlock(row pgx.Row) (*domain.ScopeBlock, error) {
	var block domain.ScopeBlock
	err := row.Scan(
		&block.ID,
		&block.TrackID,
		&block.Code,
		&block.Title,
		&block.Content,
		&block.ParentID,
		&block.OrderIndex,
		&block.Progress,
		&block.Status,
		&block.CreatedAt,
		&block.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrScopeBlockNotFound
		}
		return nil, fmt.Errorf("scan scope block: %w", err)
	}
	return &block, nil
}

// GetByID retrieves a scope block by ID.
func (r *ScopeBlockRepository) GetByID(ctx context.Context, blockID string) (*domain.ScopeBlock, error) {
	query, args, err := psql.
		Select(scopeBlockColumns...).
		From("scope_blocks").
		Where(sq.Eq{"id": blockID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for scope block: %w", err)
	}
	return scanScopeBlock(r.pool.QueryRow(ctx, query, args...))
}

// Exists checks whether a scope block with the given id exists.
func (r *ScopeBlockRepository) Exists(ctx context.Context, blockID string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("scope_blocks").
		Where(sq.Eq{"id": blockID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build Exists query for scope block: %w", err)
	}

	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query scope block existence: %w", err)
	}
	return true, nil
}

// Create inserts a new scope block.
func (r *ScopeBlockRepository) Create(ctx context.Context, block *domain.ScopeBlock) (*domain.ScopeBlock, error) {
	if block.Status == "" {
		block.Status = domain.ScopeBlockStatusPending
	}

	query, args, err := psql.
		Insert("scope_blocks").
		Columns("track_id", "code", "title", "content", "parent_id", "order_index", "progress", "status").
		Values(block.TrackID, block.Code, block.Title, block.Content, block.ParentID,
			block.OrderIndex, block.Progress, block.Status).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build Create query for scope block: %w", err)
	}

	err = r.pool.QueryRow(ctx, query, args...).Scan(&block.ID, &block.CreatedAt, &block.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create scope block: %w", err)
	}
	return block, nil
}

// Update persists title, content and status of a scope block.
func (r *ScopeBlockRepository) Update(ctx context.Context, block *domain.ScopeBlock) error {
	query, args, err := psql.
		Update("scope_blocks").
		Set("title", block.Title).
		Set("content", block.Content).
		Set("status", block.Status).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": block.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build Update query for scope block %s: %w", block.ID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update scope block: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScopeBlockNotFound
	}
	return nil
}

// UpdateProgress sets the stored progress of a single block. Used for leaf
// writes and for recomputed parent values during the rollup walk.
func (r *ScopeBlockRepository) UpdateProgress(ctx context.Context, blockID string, progress float64) error {
	query, args, err := psql.
		Update("scope_blocks").
		Set("progress", progress).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": blockID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build UpdateProgress query for scope block %s: %w", blockID, err)
	}

	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update scope block progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrScopeBlockNotFound
	}
	return nil
}

// ChildrenStats returns the unrounded mean progress of a block's direct
// children and the child count. A childless block yields (0, 0).
func (r *ScopeBlockRepository) ChildrenStats(ctx context.Context, parentID string) (float64, int, error) {
	query, args, err := psql.
		Select("COALESCE(AVG(progress), 0)", "COUNT(*)").
		From("scope_blocks").
		Where(sq.Eq{"parent_id": parentID}).
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("build ChildrenStats query: %w", err)
	}

	var mean float64
	var count int
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&mean, &count); err != nil {
		return 0, 0, fmt.Errorf("query children stats: %w", err)
	}
	return mean, count, nil
}

// ListByTrack returns the full outline of a track ordered as displayed.
func (r *ScopeBlockRepository) ListByTrack(ctx context.Context, trackID string) ([]*domain.ScopeBlock, error) {
	query, args, err := psql.
		Select(scopeBlockColumns...).
		From("scope_blocks").
		Where(sq.Eq{"track_id": trackID}).
		OrderBy("code ASC", "order_index ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListByTrack query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query scope blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*domain.ScopeBlock
	for rows.Next() {
		block, err := scanScopeBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return blocks, nil
}

// ListParents returns all blocks of a track that have at least one child,
// deepest codes first. Used by the full repair pass.
func (r *ScopeBlockRepository) ListParents(ctx context.Context, trackID string) ([]*domain.ScopeBlock, error) {
	query, args, err := psql.
		Select(scopeBlockColumns...).
		From("scope_blocks").
		Where(sq.Eq{"track_id": trackID}).
		Where("id IN (SELECT DISTINCT parent_id FROM scope_blocks WHERE parent_id IS NOT NULL)").
		OrderBy("length(code) DESC", "code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ListParents query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query parent blocks: %w", err)
	}
	defer rows.Close()

	var blocks []*domain.ScopeBlock
	for rows.Next() {
		block, err := scanScopeBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return blocks, nil
}

// ReorderItem pairs a block id with its new sibling position.
type ReorderItem struct {
	BlockID    string
	OrderIndex int
}

// Reorder applies a batch of sibling position changes in one transaction so
// partial application is never visible to readers.
func (r *ScopeBlockRepository) Reorder(ctx context.Context, items []ReorderItem) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, item := range items {
		query, args, err := psql.
			Update("scope_blocks").
			Set("order_index", item.OrderIndex).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": item.BlockID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("build Reorder query for block %s: %w", item.BlockID, err)
		}

		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("reorder scope block %s: %w", item.BlockID, err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("%w: %s", domain.ErrScopeBlockNotFound, item.BlockID)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
