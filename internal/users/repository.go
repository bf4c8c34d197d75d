package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// Daily usage bucket operations used by the quota ledger.
	GetDailyUsage(ctx context.Context, userID uuid.UUID) (*DailyUsage, error)
	ResetDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error)
	IncrementDailyUsage(ctx context.Context, userID uuid.UUID, tokens int) error
}

type postgresRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &postgresRepository{pool: pool}
}

func (r *postgresRepository) Create(ctx context.Context, user *User) error {
	query := `
		INSERT INTO users (id, email, password_hash, role, usage_date, tokens_used_today, requests_today, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7)`

	_, err := r.pool.Exec(ctx, query,
		user.ID, user.Email, user.PasswordHash, user.Role,
		time.Now().UTC().Truncate(24*time.Hour),
		user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	query := `SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE id = $1`

	user := &User{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by id: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	query := `SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE email = $1`

	user := &User{}
	err := r.pool.QueryRow(ctx, query, email).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying user by email: %w", err)
	}
	return user, nil
}

func (r *postgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)`

	var exists bool
	err := r.pool.QueryRow(ctx, query, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking email existence: %w", err)
	}
	return exists, nil
}

func (r *postgresRepository) GetDailyUsage(ctx context.Context, userID uuid.UUID) (*DailyUsage, error) {
	query := `SELECT id, role, usage_date, tokens_used_today, requests_today FROM users WHERE id = $1`

	usage := &DailyUsage{}
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&usage.UserID, &usage.Role, &usage.UsageDate, &usage.TokensUsed, &usage.RequestCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("querying daily usage: %w", err)
	}
	return usage, nil
}

// ResetDailyUsage zeroes the bucket when its stored date is older than
// the given day. The date guard makes the reset idempotent under
// concurrent rollovers. Returns true if a reset was performed.
func (r *postgresRepository) ResetDailyUsage(ctx context.Context, userID uuid.UUID, day time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET usage_date = $2,
		     tokens_used_today = 0,
		     requests_today = 0,
		     updated_at = NOW()
		 WHERE id = $1 AND usage_date < $2`, userID, day)
	if err != nil {
		return false, fmt.Errorf("resetting daily usage: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementDailyUsage adds tokens and bumps the request count in a
// single UPDATE, so concurrent commits never lose an increment.
func (r *postgresRepository) IncrementDailyUsage(ctx context.Context, userID uuid.UUID, tokens int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users
		 SET tokens_used_today = tokens_used_today + $2,
		     requests_today = requests_today + 1,
		     updated_at = NOW()
		 WHERE id = $1`, userID, tokens)
	if err != nil {
		return fmt.Errorf("incrementing daily usage: %w", err)
	}
	return nil
}
