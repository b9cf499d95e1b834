package models

import (
	"time"

	"github.com/Raimpz/simple-chat/internal/security"
)

type User struct {
	ID                 int64
	Username           string
	Email              string
	PasswordHash       string
	Enabled            bool
	VerificationCode   *string
	ResetCode          *string
	ResetCodeExpiresAt *time.Time
	AvatarKey          *string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PublicUser is the only user shape other users ever see.
type PublicUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}

// ResetCodeValid reports whether code matches an unexpired reset code.
func (u User) ResetCodeValid(code string, now time.Time) bool {
	if u.ResetCode == nil || u.ResetCodeExpiresAt == nil {
		return false
	}
	if !now.Before(*u.ResetCodeExpiresAt) {
		return false
	}
	return security.ConstantTimeEqual(*u.ResetCode, code)
}

const AuthorityUser = "ROLE_USER"

// Identity is the authenticated principal bound to a real-time session.
type Identity struct {
	UserID      int64
	Username    string
	Authorities []string
}
