package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
)

const userColumns = `id, username, email, password_hash, enabled, verification_code,
	reset_code, reset_code_expires_at, avatar_key, created_at, updated_at`

type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func scanUser(row pgx.Row) (models.User, error) {
	var user models.User
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Enabled,
		&user.VerificationCode,
		&user.ResetCode,
		&user.ResetCodeExpiresAt,
		&user.AvatarKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, repository.ErrUserNotFound
		}
		return models.User{}, err
	}
	return user, nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	return scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	if user.ID == 0 {
		return r.insert(ctx, user)
	}

	const query = `
		UPDATE users SET
			username = $2,
			email = $3,
			password_hash = $4,
			enabled = $5,
			verification_code = $6,
			reset_code = $7,
			reset_code_expires_at = $8,
			avatar_key = $9,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Enabled,
		user.VerificationCode,
		user.ResetCode,
		user.ResetCodeExpiresAt,
		user.AvatarKey,
	).Scan(&user.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrUserNotFound
	}
	return mapWriteErr(err)
}

func (r *UserRepository) insert(ctx context.Context, user *models.User) error {
	const query = `
		INSERT INTO users (
			username, email, password_hash, enabled, verification_code,
			reset_code, reset_code_expires_at, avatar_key, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW()
		)
		RETURNING id, created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Enabled,
		user.VerificationCode,
		user.ResetCode,
		user.ResetCodeExpiresAt,
		user.AvatarKey,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapWriteErr(err))
	}
	return nil
}

func (r *UserRepository) Search(ctx context.Context, query string, excludeID int64, limit int) ([]models.PublicUser, error) {
	const sql = `
		SELECT id, username FROM users
		WHERE LOWER(username) LIKE $1 ESCAPE '\' AND id <> $2
		ORDER BY username
		LIMIT $3
	`
	rows, err := r.pool.Query(ctx, sql, repository.ContainsPattern(query), excludeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.PublicUser, 0)
	for rows.Next() {
		var u models.PublicUser
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *UserRepository) ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE users SET reset_code = NULL, reset_code_expires_at = NULL, updated_at = NOW()
		WHERE reset_code_expires_at IS NOT NULL AND reset_code_expires_at <= $1
	`
	cmd, err := r.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
