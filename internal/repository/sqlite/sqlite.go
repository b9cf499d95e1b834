package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
)

type userRow struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	Username           string `gorm:"size:20;not null;uniqueIndex"`
	Email              string `gorm:"size:255;not null;uniqueIndex"`
	PasswordHash       string `gorm:"not null"`
	Enabled            bool   `gorm:"not null"`
	VerificationCode   *string
	ResetCode          *string
	ResetCodeExpiresAt *time.Time `gorm:"index"`
	AvatarKey          *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (userRow) TableName() string { return "users" }

type friendRequestRow struct {
	ID         int64               `gorm:"primaryKey;autoIncrement"`
	SenderID   int64               `gorm:"not null;index:idx_friend_requests_sender_receiver"`
	ReceiverID int64               `gorm:"not null;index:idx_friend_requests_sender_receiver;index:idx_friend_requests_receiver_status"`
	Status     models.FriendStatus `gorm:"type:text;not null;index:idx_friend_requests_receiver_status"`
	PairLow    int64               `gorm:"not null;uniqueIndex:idx_friend_requests_pair"`
	PairHigh   int64               `gorm:"not null;uniqueIndex:idx_friend_requests_pair"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (friendRequestRow) TableName() string { return "friend_requests" }

// BeforeCreate derives the unordered pair key so both directions of an edge
// collide on the same unique index.
func (r *friendRequestRow) BeforeCreate(*gorm.DB) error {
	r.PairLow, r.PairHigh = models.PairKey(r.SenderID, r.ReceiverID)
	return nil
}

type messageRow struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	SenderID    int64     `gorm:"not null;index:idx_messages_sender_recipient"`
	RecipientID int64     `gorm:"not null;index:idx_messages_sender_recipient"`
	Content     string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"index"`
}

func (messageRow) TableName() string { return "messages" }

// Migrate creates or updates the tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&userRow{}, &friendRequestRow{}, &messageRow{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func NewStores(db *gorm.DB) repository.Stores {
	db = db.Session(&gorm.Session{NowFunc: func() time.Time { return time.Now().UTC() }})
	return repository.Stores{
		Users:          &UserRepository{db: db},
		FriendRequests: &FriendRequestRepository{db: db},
		Messages:       &MessageRepository{db: db},
	}
}

func mapWriteErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}
