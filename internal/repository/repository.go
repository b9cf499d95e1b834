package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Raimpz/simple-chat/internal/models"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrFriendRequestNotFound = errors.New("friend request not found")
	ErrDuplicate             = errors.New("duplicate key")
	// ErrStaleState is returned by a compare-and-set transition whose
	// expected state no longer holds.
	ErrStaleState = errors.New("stale state")
)

type UserStore interface {
	GetByID(ctx context.Context, id int64) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// Save inserts the user when ID is zero and updates it otherwise. On
	// insert the generated ID and timestamps are written back.
	Save(ctx context.Context, user *models.User) error
	Search(ctx context.Context, query string, excludeID int64, limit int) ([]models.PublicUser, error)
	ClearExpiredResetCodes(ctx context.Context, now time.Time) (int64, error)
}

// FriendRequestWriter is the part of the friend request store usable inside
// a transaction.
type FriendRequestWriter interface {
	FindDirected(ctx context.Context, senderID, receiverID int64) (models.FriendRequest, error)
	Insert(ctx context.Context, req *models.FriendRequest) error
	// Transition moves request id from one status to another. Moving back to
	// PENDING also refreshes created_at.
	Transition(ctx context.Context, id int64, from, to models.FriendStatus, at time.Time) error
}

type FriendRequestStore interface {
	FriendRequestWriter
	GetByID(ctx context.Context, id int64) (models.FriendRequest, error)
	ListPending(ctx context.Context, receiverID int64) ([]models.FriendRequest, error)
	ListFriends(ctx context.Context, userID int64) ([]models.PublicUser, error)
	InTx(ctx context.Context, fn func(tx FriendRequestWriter) error) error
}

type MessageStore interface {
	Create(ctx context.Context, msg *models.Message) error
	// Conversation returns messages between a and b in either direction,
	// newest first.
	Conversation(ctx context.Context, a, b int64, limit, offset int) ([]models.Message, error)
}

type Stores struct {
	Users          UserStore
	FriendRequests FriendRequestStore
	Messages       MessageStore
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ContainsPattern builds a case-folded LIKE pattern matching query anywhere.
func ContainsPattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
}
