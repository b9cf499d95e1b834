package service

import (
	"context"
	"io"
	"time"

	"github.com/Raimpz/simple-chat/internal/storage"
)

// Notifier delivers account codes to a user's mailbox.
type Notifier interface {
	SendVerification(ctx context.Context, email, code string) error
	SendPasswordReset(ctx context.Context, email, code string) error
}

// Publisher pushes a payload to every live session subscribed to destination.
type Publisher interface {
	SendToDestination(ctx context.Context, destination string, payload any) error
}

type Cipher interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(stored string) (string, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

type TokenIssuer interface {
	Issue(username string) (string, time.Time, error)
}

type AvatarStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (storage.Object, error)
	Delete(ctx context.Context, key string) error
}

// PrivateQueue is the destination a user's sessions subscribe to.
func PrivateQueue(username string) string {
	return "/user/" + username + "/queue/private"
}
