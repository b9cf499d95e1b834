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

type FriendRequestRepository struct {
	db *gorm.DB
}

func toFriendRequest(r friendRequestRow) models.FriendRequest {
	return models.FriendRequest{
		ID:         r.ID,
		SenderID:   r.SenderID,
		ReceiverID: r.ReceiverID,
		Status:     r.Status,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type friendRequestWriter struct {
	db *gorm.DB
}

func (w friendRequestWriter) FindDirected(ctx context.Context, senderID, receiverID int64) (models.FriendRequest, error) {
	var row friendRequestRow
	err := w.db.WithContext(ctx).
		Where("sender_id = ? AND receiver_id = ?", senderID, receiverID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FriendRequest{}, repository.ErrFriendRequestNotFound
	}
	if err != nil {
		return models.FriendRequest{}, err
	}
	return toFriendRequest(row), nil
}

func (w friendRequestWriter) Insert(ctx context.Context, req *models.FriendRequest) error {
	row := friendRequestRow{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Status:     req.Status,
		CreatedAt:  req.CreatedAt.UTC(),
		UpdatedAt:  req.CreatedAt.UTC(),
	}
	if err := w.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert friend request: %w", mapWriteErr(err))
	}
	req.ID = row.ID
	req.UpdatedAt = req.CreatedAt
	return nil
}

func (w friendRequestWriter) Transition(ctx context.Context, id int64, from, to models.FriendStatus, at time.Time) error {
	updates := map[string]any{"status": to, "updated_at": at.UTC()}
	if to == models.FriendStatusPending {
		updates["created_at"] = at.UTC()
	}
	res := w.db.WithContext(ctx).
		Model(&friendRequestRow{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrStaleState
	}
	return nil
}

func (r *FriendRequestRepository) FindDirected(ctx context.Context, senderID, receiverID int64) (models.FriendRequest, error) {
	return friendRequestWriter{db: r.db}.FindDirected(ctx, senderID, receiverID)
}

func (r *FriendRequestRepository) Insert(ctx context.Context, req *models.FriendRequest) error {
	return friendRequestWriter{db: r.db}.Insert(ctx, req)
}

func (r *FriendRequestRepository) Transition(ctx context.Context, id int64, from, to models.FriendStatus, at time.Time) error {
	return friendRequestWriter{db: r.db}.Transition(ctx, id, from, to, at)
}

func (r *FriendRequestRepository) InTx(ctx context.Context, fn func(tx repository.FriendRequestWriter) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(friendRequestWriter{db: tx})
	})
}

func (r *FriendRequestRepository) GetByID(ctx context.Context, id int64) (models.FriendRequest, error) {
	var row friendRequestRow
	err := r.db.WithContext(ctx).Take(&row, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.FriendRequest{}, repository.ErrFriendRequestNotFound
	}
	if err != nil {
		return models.FriendRequest{}, err
	}
	return toFriendRequest(row), nil
}

type pendingRow struct {
	ID               int64
	SenderID         int64
	ReceiverID       int64
	Status           models.FriendStatus
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SenderUsername   string
	ReceiverUsername string
}

func (r *FriendRequestRepository) ListPending(ctx context.Context, receiverID int64) ([]models.FriendRequest, error) {
	var rows []pendingRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.created_at, fr.updated_at,
			s.username AS sender_username, rc.username AS receiver_username
		FROM friend_requests fr
		JOIN users s ON s.id = fr.sender_id
		JOIN users rc ON rc.id = fr.receiver_id
		WHERE fr.receiver_id = ? AND fr.status = ?
		ORDER BY fr.created_at DESC, fr.id DESC
	`, receiverID, models.FriendStatusPending).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	requests := make([]models.FriendRequest, 0, len(rows))
	for _, row := range rows {
		requests = append(requests, models.FriendRequest{
			ID:         row.ID,
			SenderID:   row.SenderID,
			ReceiverID: row.ReceiverID,
			Status:     row.Status,
			CreatedAt:  row.CreatedAt,
			UpdatedAt:  row.UpdatedAt,
			Sender:     models.PublicUser{ID: row.SenderID, Username: row.SenderUsername},
			Receiver:   models.PublicUser{ID: row.ReceiverID, Username: row.ReceiverUsername},
		})
	}
	return requests, nil
}

func (r *FriendRequestRepository) ListFriends(ctx context.Context, userID int64) ([]models.PublicUser, error) {
	friends := make([]models.PublicUser, 0)
	err := r.db.WithContext(ctx).Raw(`
		SELECT u.id, u.username
		FROM friend_requests fr
		JOIN users u ON u.id = CASE WHEN fr.sender_id = ? THEN fr.receiver_id ELSE fr.sender_id END
		WHERE (fr.sender_id = ? OR fr.receiver_id = ?) AND fr.status = ?
		ORDER BY u.username
	`, userID, userID, userID, models.FriendStatusAccepted).Scan(&friends).Error
	return friends, err
}
