package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/ids"
	"github.com/Raimpz/simple-chat/internal/media/sniffer"
	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/storage"
)

const searchLimit = 20

type UserService struct {
	users         repository.UserStore
	avatars       AvatarStore
	maxAvatarSize int64
	log           zerolog.Logger
}

// NewUserService builds the service. avatars may be nil, in which case the
// avatar operations report that uploads are unavailable.
func NewUserService(users repository.UserStore, avatars AvatarStore, maxAvatarSize int64, log zerolog.Logger) *UserService {
	if maxAvatarSize <= 0 {
		maxAvatarSize = 2 << 20
	}
	return &UserService{
		users:         users,
		avatars:       avatars,
		maxAvatarSize: maxAvatarSize,
		log:           log,
	}
}

func (s *UserService) Me(ctx context.Context, userID int64) (models.PublicUser, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.PublicUser{}, newError(KindNotFound, "user not found")
		}
		return models.PublicUser{}, err
	}
	return user.Public(), nil
}

// Search matches usernames containing query, ignoring case, and never
// returns the caller.
func (s *UserService) Search(ctx context.Context, userID int64, query string) ([]models.PublicUser, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.PublicUser{}, nil
	}
	return s.users.Search(ctx, query, userID, searchLimit)
}

type AvatarUpload struct {
	Body         io.Reader
	Size         int64
	DeclaredType string
}

func (s *UserService) SetAvatar(ctx context.Context, userID int64, upload AvatarUpload) error {
	if s.avatars == nil {
		return newError(KindValidation, "avatar uploads are not enabled")
	}
	if upload.Body == nil || upload.Size == 0 {
		return newError(KindValidation, "empty file")
	}
	if upload.Size > s.maxAvatarSize {
		return newError(KindValidation, fmt.Sprintf("avatar must not exceed %d bytes", s.maxAvatarSize))
	}

	result, head, err := sniffer.Detect(upload.Body)
	if err != nil {
		if errors.Is(err, sniffer.ErrUnknownType) {
			return newError(KindValidation, "avatar must be a jpeg, png, gif or webp image")
		}
		return fmt.Errorf("detect type: %w", err)
	}
	if upload.DeclaredType != "" && upload.DeclaredType != "application/octet-stream" && upload.DeclaredType != result.MIME {
		return newError(KindValidation, fmt.Sprintf("content type mismatch: declared %s, actual %s", upload.DeclaredType, result.MIME))
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	key := fmt.Sprintf("avatars/%d/%s.%s", userID, ids.New(), result.Ext())
	body := io.MultiReader(bytes.NewReader(head), upload.Body)
	if err := s.avatars.Put(ctx, key, body, upload.Size, result.MIME); err != nil {
		return err
	}

	previous := user.AvatarKey
	user.AvatarKey = &key
	if err := s.users.Save(ctx, &user); err != nil {
		return fmt.Errorf("store avatar key: %w", err)
	}

	if previous != nil && *previous != key {
		if err := s.avatars.Delete(ctx, *previous); err != nil {
			s.log.Warn().Err(err).Int64("user_id", userID).Str("key", *previous).Msg("delete previous avatar failed")
		}
	}
	return nil
}

// Avatar opens the stored avatar of userID. The caller closes Body.
func (s *UserService) Avatar(ctx context.Context, userID int64) (storage.Object, error) {
	notFound := newError(KindNotFound, "avatar not found")
	if s.avatars == nil {
		return storage.Object{}, notFound
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return storage.Object{}, notFound
		}
		return storage.Object{}, err
	}
	if user.AvatarKey == nil {
		return storage.Object{}, notFound
	}

	obj, err := s.avatars.Get(ctx, *user.AvatarKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return storage.Object{}, notFound
		}
		return storage.Object{}, err
	}
	return obj, nil
}
