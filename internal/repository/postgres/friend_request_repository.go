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

type FriendRequestRepository struct {
	pool *pgxpool.Pool
	friendRequestQueries
}

func NewFriendRequestRepository(pool *pgxpool.Pool) *FriendRequestRepository {
	return &FriendRequestRepository{pool: pool, friendRequestQueries: friendRequestQueries{db: pool}}
}

// friendRequestQueries holds the statements that run either on the pool or
// inside a transaction.
type friendRequestQueries struct {
	db querier
}

func scanFriendRequest(row pgx.Row) (models.FriendRequest, error) {
	var req models.FriendRequest
	if err := row.Scan(
		&req.ID,
		&req.SenderID,
		&req.ReceiverID,
		&req.Status,
		&req.CreatedAt,
		&req.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.FriendRequest{}, repository.ErrFriendRequestNotFound
		}
		return models.FriendRequest{}, err
	}
	return req, nil
}

func (q friendRequestQueries) FindDirected(ctx context.Context, senderID, receiverID int64) (models.FriendRequest, error) {
	const query = `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests WHERE sender_id = $1 AND receiver_id = $2
	`
	return scanFriendRequest(q.db.QueryRow(ctx, query, senderID, receiverID))
}

func (q friendRequestQueries) Insert(ctx context.Context, req *models.FriendRequest) error {
	const query = `
		INSERT INTO friend_requests (sender_id, receiver_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id
	`
	if err := q.db.QueryRow(ctx, query, req.SenderID, req.ReceiverID, req.Status, req.CreatedAt).Scan(&req.ID); err != nil {
		return fmt.Errorf("insert friend request: %w", mapWriteErr(err))
	}
	req.UpdatedAt = req.CreatedAt
	return nil
}

func (q friendRequestQueries) Transition(ctx context.Context, id int64, from, to models.FriendStatus, at time.Time) error {
	const query = `
		UPDATE friend_requests SET
			status = $3,
			updated_at = $4,
			created_at = CASE WHEN $3 = 'PENDING' THEN $4 ELSE created_at END
		WHERE id = $1 AND status = $2
	`
	cmd, err := q.db.Exec(ctx, query, id, from, to, at)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return repository.ErrStaleState
	}
	return nil
}

func (r *FriendRequestRepository) InTx(ctx context.Context, fn func(tx repository.FriendRequestWriter) error) error {
	return serializable(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(friendRequestQueries{db: tx})
	})
}

func (r *FriendRequestRepository) GetByID(ctx context.Context, id int64) (models.FriendRequest, error) {
	const query = `
		SELECT id, sender_id, receiver_id, status, created_at, updated_at
		FROM friend_requests WHERE id = $1
	`
	return scanFriendRequest(r.pool.QueryRow(ctx, query, id))
}

func (r *FriendRequestRepository) ListPending(ctx context.Context, receiverID int64) ([]models.FriendRequest, error) {
	const query = `
		SELECT fr.id, fr.sender_id, fr.receiver_id, fr.status, fr.created_at, fr.updated_at,
			s.username, rc.username
		FROM friend_requests fr
		JOIN users s ON s.id = fr.sender_id
		JOIN users rc ON rc.id = fr.receiver_id
		WHERE fr.receiver_id = $1 AND fr.status = 'PENDING'
		ORDER BY fr.created_at DESC, fr.id DESC
	`
	rows, err := r.pool.Query(ctx, query, receiverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	requests := make([]models.FriendRequest, 0)
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(
			&req.ID,
			&req.SenderID,
			&req.ReceiverID,
			&req.Status,
			&req.CreatedAt,
			&req.UpdatedAt,
			&req.Sender.Username,
			&req.Receiver.Username,
		); err != nil {
			return nil, err
		}
		req.Sender.ID = req.SenderID
		req.Receiver.ID = req.ReceiverID
		requests = append(requests, req)
	}
	return requests, rows.Err()
}

func (r *FriendRequestRepository) ListFriends(ctx context.Context, userID int64) ([]models.PublicUser, error) {
	const query = `
		SELECT u.id, u.username
		FROM friend_requests fr
		JOIN users u ON u.id = CASE WHEN fr.sender_id = $1 THEN fr.receiver_id ELSE fr.sender_id END
		WHERE (fr.sender_id = $1 OR fr.receiver_id = $1) AND fr.status = 'ACCEPTED'
		ORDER BY u.username
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	friends := make([]models.PublicUser, 0)
	for rows.Next() {
		var u models.PublicUser
		if err := rows.Scan(&u.ID, &u.Username); err != nil {
			return nil, err
		}
		friends = append(friends, u)
	}
	return friends, rows.Err()
}
