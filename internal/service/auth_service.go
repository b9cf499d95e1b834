package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/security"
)

const (
	minUsernameLength = 3
	maxUsernameLength = 20
	minPasswordLength = 6
)

type AuthService struct {
	users        repository.UserStore
	hasher       PasswordHasher
	tokens       TokenIssuer
	notifier     Notifier
	resetCodeTTL time.Duration
	newCode      func() (string, error)
	now          func() time.Time
	log          zerolog.Logger
}

func NewAuthService(
	users repository.UserStore,
	hasher PasswordHasher,
	tokens TokenIssuer,
	notifier Notifier,
	resetCodeTTL time.Duration,
	log zerolog.Logger,
) *AuthService {
	if resetCodeTTL <= 0 {
		resetCodeTTL = 15 * time.Minute
	}
	return &AuthService{
		users:        users,
		hasher:       hasher,
		tokens:       tokens,
		notifier:     notifier,
		resetCodeTTL: resetCodeTTL,
		newCode:      security.NewNumericCode,
		now:          time.Now,
		log:          log,
	}
}

type RegisterInput struct {
	Username string
	Password string
	Email    string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateRegistration(input RegisterInput) error {
	n := utf8.RuneCountInString(input.Username)
	if strings.TrimSpace(input.Username) == "" {
		return newError(KindValidation, "username is required")
	}
	if n < minUsernameLength || n > maxUsernameLength {
		return newError(KindValidation, "username must be between 3 and 20 characters")
	}
	if strings.IndexFunc(input.Username, invalidUsernameRune) >= 0 {
		return newError(KindValidation, "username may only contain letters, digits, '.', '_' and '-'")
	}
	if input.Password == "" {
		return newError(KindValidation, "password is required")
	}
	if utf8.RuneCountInString(input.Password) < minPasswordLength {
		return newError(KindValidation, "password must be at least 6 characters")
	}
	if input.Email == "" {
		return newError(KindValidation, "email is required")
	}
	if addr, err := mail.ParseAddress(input.Email); err != nil || addr.Address != input.Email {
		return newError(KindValidation, "invalid email format")
	}
	return nil
}

// Usernames are embedded in real-time destinations, so path separators and
// whitespace are not allowed.
func invalidUsernameRune(r rune) bool {
	return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '_' || r == '-')
}

// Register creates a disabled account and sends it a verification code.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) error {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = normalizeEmail(input.Email)
	if err := validateRegistration(input); err != nil {
		return err
	}

	if _, err := s.users.FindByUsername(ctx, input.Username); err == nil {
		return newError(KindConflict, "username already taken")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}
	if _, err := s.users.FindByEmail(ctx, input.Email); err == nil {
		return newError(KindConflict, "email already taken")
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return err
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return err
	}
	code, err := s.newCode()
	if err != nil {
		return err
	}

	user := models.User{
		Username:         input.Username,
		Email:            input.Email,
		PasswordHash:     passwordHash,
		VerificationCode: &code,
	}
	if err := s.users.Save(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return newError(KindConflict, "username or email already taken")
		}
		return fmt.Errorf("create user: %w", err)
	}

	if err := s.notifier.SendVerification(ctx, user.Email, code); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("enqueue verification email failed")
	}
	s.log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	return nil
}

// Verify enables the account when code matches. It reports false for an
// unknown email, an already enabled account, or a wrong code.
func (s *AuthService) Verify(ctx context.Context, email, code string) (bool, error) {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	if user.Enabled || user.VerificationCode == nil || code == "" {
		return false, nil
	}
	if !security.ConstantTimeEqual(*user.VerificationCode, code) {
		return false, nil
	}

	user.Enabled = true
	user.VerificationCode = nil
	if err := s.users.Save(ctx, &user); err != nil {
		return false, fmt.Errorf("enable user: %w", err)
	}
	return true, nil
}

type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      models.PublicUser
}

func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	invalid := newError(KindUnauthorized, "invalid username or password")

	user, err := s.users.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return LoginResult{}, invalid
		}
		return LoginResult{}, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("verify password hash")
		return LoginResult{}, invalid
	}
	if !ok {
		return LoginResult{}, invalid
	}
	if !user.Enabled {
		return LoginResult{}, newError(KindForbidden, "account not verified, please check your email")
	}

	token, expiresAt, err := s.tokens.Issue(user.Username)
	if err != nil {
		return LoginResult{}, err
	}
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user.Public()}, nil
}

// ForgotPassword stores a fresh reset code and mails it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(KindNotFound, "email not found")
		}
		return err
	}

	code, err := s.newCode()
	if err != nil {
		return err
	}
	expiresAt := s.now().UTC().Add(s.resetCodeTTL)
	user.ResetCode = &code
	user.ResetCodeExpiresAt = &expiresAt
	if err := s.users.Save(ctx, &user); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, user.Email, code); err != nil {
		s.log.Warn().Err(err).Int64("user_id", user.ID).Msg("enqueue password reset email failed")
	}
	return nil
}

type ResetPasswordInput struct {
	Email       string
	Code        string
	NewPassword string
}

func (s *AuthService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	if utf8.RuneCountInString(input.NewPassword) < minPasswordLength {
		return newError(KindValidation, "password must be at least 6 characters")
	}

	user, err := s.users.FindByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return newError(KindValidation, "invalid or expired reset code")
		}
		return err
	}
	if !user.ResetCodeValid(input.Code, s.now()) {
		return newError(KindValidation, "invalid or expired reset code")
	}

	passwordHash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = passwordHash
	user.ResetCode = nil
	user.ResetCodeExpiresAt = nil
	if err := s.users.Save(ctx, &user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.log.Info().Int64("user_id", user.ID).Msg("password reset")
	return nil
}
