package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
)

type UserRepository struct {
	db *gorm.DB
}

func toUser(r userRow) models.User {
	return models.User{
		ID:                 r.ID,
		Username:           r.Username,
		Email:              r.Email,
		PasswordHash:       r.PasswordHash,
		Enabled:            r.Enabled,
		VerificationCode:   r.VerificationCode,
		ResetCode:          r.ResetCode,
		ResetCodeExpiresAt: r.ResetCodeExpiresAt,
		AvatarKey:          r.AvatarKey,
		CreatedAt:          r.CreatedAt,
		UpdatedAt:          r.UpdatedAt,
	}
}

func fromUser(u models.User) userRow {
	if u.ResetCodeExpiresAt != nil {
		expires := u.ResetCodeExpiresAt.UTC()
		u.ResetCodeExpiresAt = &expires
	}
	return userRow{
		ID:                 u.ID,
		Username:           u.Username,
		Email:              u.Email,
		PasswordHash:       u.PasswordHash,
		Enabled:            u.Enabled,
		VerificationCode:   u.VerificationCode,
		ResetCode:          u.ResetCode,
		ResetCodeExpiresAt: u.ResetCodeExpiresAt,
		AvatarKey:          u.AvatarKey,
		CreatedAt:          u.CreatedAt,
		UpdatedAt:          u.UpdatedAt,
	}
}

func (r *UserRepository) findOne(ctx context.Context, query string, arg any) (models.User, error) {
	var row userRow
	err := r.db.WithContext(ctx).Where(query, arg).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, repository.ErrUserNotFound
	}
	if err != nil {
		return models.User{}, err
	}
	return toUser(row), nil
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	return r.findOne(ctx, "id = ?", id)
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (models.User, error) {
	return r.findOne(ctx, "username = ?", username)
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	return r.findOne(ctx, "email = ?", email)
}

func (r *UserRepository) Save(ctx context.Context, user *models.User) error {
	row := fromUser(*user)
	if row.ID == 0 {
		if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
			return fmt.Errorf("insert user: %w", mapWriteErr(err))
		}
		user.ID, user.CreatedAt, user.UpdatedAt = row.ID, row.CreatedAt, row.UpdatedAt
		return nil
	}

	res := r.db.WithContext(ctx).
		Model(&userRow{ID: row.ID}).
		Select("*").
		Omit("id", "created_at").
		Updates(&row)
	if res.Error != nil {
		return mapWriteErr(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrUserNotFound
	}
	user.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *UserRepository) Search(ctx context.Context, query string, excludeID int64, limit int) ([]models.PublicUser, error) {
	users := make([]models.PublicUser, 0)
	err := r.db.WithContext(ctx).
		Model(&userRow{}).
		Select("id", "username").
		Where("LOWER(username) LIKE ? ESCAPE '\\' AND id <> ?", repository.ContainsPattern(query), excludeID).
		Order("username").
		Limit(limit).
		Scan(&users).Error
	return users, err
}

func (r *UserRepository) ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&userRow{}).
		Where("reset_code_expires_at IS NOT NULL AND reset_code_expires_at <= ?", now.UTC()).
		Updates(map[string]any{"reset_code": nil, "reset_code_expires_at": nil})
	return res.RowsAffected, res.Error
}
