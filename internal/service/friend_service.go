package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
)

// FriendService owns the friend request state machine:
//
//	PENDING -> ACCEPTED | DECLINED   (receiver, once)
//	DECLINED -> PENDING              (original sender re-sends)
type FriendService struct {
	users    repository.UserStore
	requests repository.FriendRequestStore
	now      func() time.Time
	log      zerolog.Logger
}

func NewFriendService(users repository.UserStore, requests repository.FriendRequestStore, log zerolog.Logger) *FriendService {
	return &FriendService{
		users:    users,
		requests: requests,
		now:      time.Now,
		log:      log,
	}
}

// SendRequest creates or reopens the edge sender -> receiver.
func (s *FriendService) SendRequest(ctx context.Context, senderID, receiverID int64) (models.FriendRequestView, error) {
	if senderID == receiverID {
		return models.FriendRequestView{}, newError(KindConflict, "you cannot send a friend request to yourself")
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return models.FriendRequestView{}, fmt.Errorf("load sender: %w", err)
	}
	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.FriendRequestView{}, newError(KindNotFound, "receiver not found")
		}
		return models.FriendRequestView{}, err
	}

	var result models.FriendRequest
	err = s.requests.InTx(ctx, func(tx repository.FriendRequestWriter) error {
		now := s.now().UTC()

		forward, err := tx.FindDirected(ctx, senderID, receiverID)
		switch {
		case err == nil:
			switch forward.Status {
			case models.FriendStatusPending:
				return newError(KindConflict, "friend request already pending")
			case models.FriendStatusAccepted:
				return newError(KindConflict, "you are already friends")
			}
			if err := tx.Transition(ctx, forward.ID, models.FriendStatusDeclined, models.FriendStatusPending, now); err != nil {
				if errors.Is(err, repository.ErrStaleState) {
					return newError(KindConflict, "friend request already pending")
				}
				return err
			}
			forward.Status = models.FriendStatusPending
			forward.CreatedAt, forward.UpdatedAt = now, now
			result = forward
			return nil
		case !errors.Is(err, repository.ErrFriendRequestNotFound):
			return err
		}

		reverse, err := tx.FindDirected(ctx, receiverID, senderID)
		switch {
		case err == nil:
			switch reverse.Status {
			case models.FriendStatusPending:
				return newError(KindConflict, "this user already sent you a request, check your inbox")
			case models.FriendStatusAccepted:
				return newError(KindConflict, "you are already friends")
			default:
				return newError(KindConflict, "friend request already exists")
			}
		case !errors.Is(err, repository.ErrFriendRequestNotFound):
			return err
		}

		req := models.FriendRequest{
			SenderID:   senderID,
			ReceiverID: receiverID,
			Status:     models.FriendStatusPending,
			CreatedAt:  now,
		}
		if err := tx.Insert(ctx, &req); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return newError(KindConflict, "friend request already exists")
			}
			return err
		}
		result = req
		return nil
	})
	if err != nil {
		return models.FriendRequestView{}, err
	}

	result.Sender = sender.Public()
	result.Receiver = receiver.Public()
	s.log.Info().
		Int64("request_id", result.ID).
		Int64("sender_id", senderID).
		Int64("receiver_id", receiverID).
		Msg("friend request sent")
	return result.View(), nil
}

// Respond lets the receiver accept or decline a pending request.
func (s *FriendService) Respond(ctx context.Context, currentUserID, requestID int64, status models.FriendStatus) (models.FriendRequestView, error) {
	if !status.IsResponse() {
		return models.FriendRequestView{}, newError(KindValidation, "invalid status: must be ACCEPTED or DECLINED")
	}

	req, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrFriendRequestNotFound) {
			return models.FriendRequestView{}, newError(KindNotFound, "request not found")
		}
		return models.FriendRequestView{}, err
	}
	if req.ReceiverID != currentUserID {
		return models.FriendRequestView{}, newError(KindConflict, "you cannot respond to this friend request")
	}
	if req.Status != models.FriendStatusPending {
		return models.FriendRequestView{}, newError(KindConflict, "this request has already been responded to")
	}

	now := s.now().UTC()
	if err := s.requests.Transition(ctx, req.ID, models.FriendStatusPending, status, now); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return models.FriendRequestView{}, newError(KindConflict, "this request has already been responded to")
		}
		return models.FriendRequestView{}, err
	}
	req.Status = status
	req.UpdatedAt = now

	sender, err := s.users.GetByID(ctx, req.SenderID)
	if err != nil {
		return models.FriendRequestView{}, fmt.Errorf("load sender: %w", err)
	}
	receiver, err := s.users.GetByID(ctx, req.ReceiverID)
	if err != nil {
		return models.FriendRequestView{}, fmt.Errorf("load receiver: %w", err)
	}
	req.Sender = sender.Public()
	req.Receiver = receiver.Public()

	s.log.Info().
		Int64("request_id", req.ID).
		Str("status", string(status)).
		Msg("friend request answered")
	return req.View(), nil
}

func (s *FriendService) ListPending(ctx context.Context, userID int64) ([]models.FriendRequestView, error) {
	requests, err := s.requests.ListPending(ctx, userID)
	if err != nil {
		return nil, err
	}
	views := make([]models.FriendRequestView, 0, len(requests))
	for _, req := range requests {
		views = append(views, req.View())
	}
	return views, nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID int64) ([]models.PublicUser, error) {
	return s.requests.ListFriends(ctx, userID)
}
