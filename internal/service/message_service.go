package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// MessageService persists direct messages and fans them out to the live
// sessions of both parties. Whether the two users are friends is not checked.
type MessageService struct {
	users     repository.UserStore
	messages  repository.MessageStore
	cipher    Cipher
	publisher Publisher
	now       func() time.Time
	log       zerolog.Logger
}

func NewMessageService(
	users repository.UserStore,
	messages repository.MessageStore,
	cipher Cipher,
	publisher Publisher,
	log zerolog.Logger,
) *MessageService {
	return &MessageService{
		users:     users,
		messages:  messages,
		cipher:    cipher,
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return newError(KindValidation, "message content cannot be empty")
	}
	if utf8.RuneCountInString(content) > models.MaxMessageLength {
		return newError(KindValidation, "message is too long (max 1000 characters)")
	}
	return nil
}

// Submit stores the message and then pushes it to the recipient and sender
// queues. Delivery failures are logged and do not undo the write.
func (s *MessageService) Submit(ctx context.Context, senderID, recipientID int64, content string) (models.MessageView, error) {
	if err := validateContent(content); err != nil {
		return models.MessageView{}, err
	}

	sender, err := s.users.GetByID(ctx, senderID)
	if err != nil {
		return models.MessageView{}, fmt.Errorf("load sender: %w", err)
	}
	recipient, err := s.users.GetByID(ctx, recipientID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.MessageView{}, newError(KindNotFound, "recipient not found")
		}
		return models.MessageView{}, err
	}

	sealed, err := s.cipher.Encrypt(content)
	if err != nil {
		return models.MessageView{}, fmt.Errorf("encrypt content: %w", err)
	}
	msg := models.Message{
		SenderID:    sender.ID,
		RecipientID: recipient.ID,
		Content:     sealed,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.messages.Create(ctx, &msg); err != nil {
		return models.MessageView{}, err
	}

	view := models.MessageView{
		ID:        msg.ID,
		Content:   content,
		Timestamp: msg.CreatedAt,
		Sender:    sender.Public(),
		Recipient: recipient.Public(),
	}
	s.fanOut(ctx, view)
	return view, nil
}

func (s *MessageService) fanOut(ctx context.Context, view models.MessageView) {
	destinations := []string{PrivateQueue(view.Recipient.Username)}
	if view.Sender.Username != view.Recipient.Username {
		destinations = append(destinations, PrivateQueue(view.Sender.Username))
	}
	for _, dest := range destinations {
		if err := s.publisher.SendToDestination(ctx, dest, view); err != nil {
			s.log.Warn().
				Err(err).
				Int64("message_id", view.ID).
				Str("destination", dest).
				Msg("push message failed")
		}
	}
}

// History returns one page of the conversation between userID and
// counterpartID in ascending order. Page 0 holds the newest messages.
func (s *MessageService) History(ctx context.Context, userID, counterpartID int64, page, size int) ([]models.MessageView, error) {
	if page < 0 {
		return nil, newError(KindValidation, "page must not be negative")
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}

	me, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	other, err := s.users.GetByID(ctx, counterpartID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, newError(KindNotFound, "user not found")
		}
		return nil, err
	}

	messages, err := s.messages.Conversation(ctx, userID, counterpartID, size, page*size)
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)

	parties := map[int64]models.PublicUser{me.ID: me.Public(), other.ID: other.Public()}
	views := make([]models.MessageView, 0, len(messages))
	for _, msg := range messages {
		plain, err := s.cipher.Decrypt(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("decrypt message %d: %w", msg.ID, err)
		}
		views = append(views, models.MessageView{
			ID:        msg.ID,
			Content:   plain,
			Timestamp: msg.CreatedAt,
			Sender:    parties[msg.SenderID],
			Recipient: parties[msg.RecipientID],
		})
	}
	return views, nil
}
