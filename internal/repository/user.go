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

// UserRepository handles database operations for users and their track grants.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

var userColumns = []string{"id", "name", "email", "role", "token", "is_active", "created_at"}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.Token,
		&user.IsActive,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, userID string) (*domain.User, error) {
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByID query for user: %w", err)
	}
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// GetByToken finds a user by authentication token.
func (r *UserRepository) GetByToken(ctx context.Context, token string) (*domain.User, error) {
	query, args, err := psql.
		Select(userColumns...).
		From("users").
		Where(sq.Eq{"token": token}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetByToken query: %w", err)
	}
	return scanUser(r.pool.QueryRow(ctx, query, args...))
}

// Exists checks whether a user with the given id exists.
func (r *UserRepository) Exists(ctx context.Context, userID string) (bool, error) {
	query, args, err := psql.
		Select("1").
		From("users").
		Where(sq.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build Exists query for user: %w", err)
	}

	var one int
	err = r.pool.QueryRow(ctx, query, args...).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user existence: %w", err)
	}
	return true, nil
}

// TrackGrants returns the track ids the user holds any capability grant for.
func (r *UserRepository) TrackGrants(ctx context.Context, userID string) ([]string, error) {
	query, args, err := psql.
		Select("track_id").
		From("track_permissions").
		Where(sq.Eq{"user_id": userID}).
		Where("cardinality(capabilities) > 0").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build TrackGrants query: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query track grants: %w", err)
	}
	defer rows.Close()

	var trackIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan track grant: %w", err)
		}
		trackIDs = append(trackIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return trackIDs, nil
}

// GetPermission returns the capability grant for one user on one track,
// or nil when no grant exists.
func (r *UserRepository) GetPermission(ctx context.Context, userID, trackID string) (*domain.TrackPermission, error) {
	query, args, err := psql.
		Select("user_id", "track_id", "capabilities", "granted_at").
		From("track_permissions").
		Where(sq.Eq{"user_id": userID, "track_id": trackID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build GetPermission query: %w", err)
	}

	var perm domain.TrackPermission
	var caps []string
	err = r.pool.QueryRow(ctx, query, args...).Scan(&perm.UserID, &perm.TrackID, &caps, &perm.GrantedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query track permission: %w", err)
	}
	for _, c := range caps {
		perm.Capabilities = append(perm.Capabilities, domain.Capability(c))
	}
	return &perm, nil
}

// Resolve loads a user by token and builds the Actor the visibility
// resolver consumes: identity, role and track grants.
func (r *UserRepository) Resolve(ctx context.Context, token string) (*domain.User, domain.Actor, error) {
	user, err := r.GetByToken(ctx, token)
	if err != nil {
		return nil, domain.Actor{}, err
	}

	grants, err := r.TrackGrants(ctx, user.ID)
	if err != nil {
		return nil, domain.Actor{}, err
	}

	return user, domain.Actor{ID: user.ID, Role: user.Role, TrackGrants: grants}, nil
}
