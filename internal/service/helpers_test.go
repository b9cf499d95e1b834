package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Raimpz/simple-chat/internal/config"
	"github.com/Raimpz/simple-chat/internal/database"
	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/repository/sqlite"
	"github.com/Raimpz/simple-chat/internal/security"
)

type sentMail struct {
	Kind  string
	Email string
	Code  string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (n *fakeNotifier) record(kind, email, code string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, sentMail{Kind: kind, Email: email, Code: code})
	return n.err
}

func (n *fakeNotifier) SendVerification(_ context.Context, email, code string) error {
	return n.record("verification", email, code)
}

func (n *fakeNotifier) SendPasswordReset(_ context.Context, email, code string) error {
	return n.record("password_reset", email, code)
}

func (n *fakeNotifier) last(t *testing.T) sentMail {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.sent)
	return n.sent[len(n.sent)-1]
}

type published struct {
	Destination string
	Payload     any
}

type fakePublisher struct {
	mu   sync.Mutex
	sent []published
	err  error
}

func (p *fakePublisher) SendToDestination(_ context.Context, destination string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, published{Destination: destination, Payload: payload})
	return p.err
}

type testEnv struct {
	stores    repository.Stores
	notifier  *fakeNotifier
	publisher *fakePublisher
	tokens    *security.TokenService
	auth      *AuthService
	friends   *FriendService
	messages  *MessageService
	users     *UserService
	clock     time.Time
}

func (e *testEnv) now() time.Time { return e.clock }

func (e *testEnv) advance(d time.Duration) { e.clock = e.clock.Add(d) }

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewSQLite(config.DatabaseConfig{DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cipher, err := security.NewFieldCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("k", 32))))
	require.NoError(t, err)
	tokens, err := security.NewTokenService(config.SecurityConfig{JWTSecret: "test-secret", JWTTTL: time.Hour})
	require.NoError(t, err)
	hasher := security.NewPasswordHasher(security.Argon2Params{Time: 1, Memory: 8 * 1024, Threads: 1, KeyLen: 32, SaltLen: 16})

	env := &testEnv{
		stores:    sqlite.NewStores(db),
		notifier:  &fakeNotifier{},
		publisher: &fakePublisher{},
		clock:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
	env.tokens = tokens.WithClock(env.now)
	log := zerolog.Nop()

	env.auth = NewAuthService(env.stores.Users, hasher, env.tokens, env.notifier, 15*time.Minute, log)
	env.auth.now = env.now
	env.friends = NewFriendService(env.stores.Users, env.stores.FriendRequests, log)
	env.friends.now = env.now
	env.messages = NewMessageService(env.stores.Users, env.stores.Messages, cipher, env.publisher, log)
	env.messages.now = env.now
	env.users = NewUserService(env.stores.Users, nil, 0, log)
	return env
}

// register creates and verifies an account, returning it.
func (e *testEnv) register(t *testing.T, username string) models.User {
	t.Helper()
	ctx := context.Background()
	email := username + "@example.com"
	require.NoError(t, e.auth.Register(ctx, RegisterInput{Username: username, Password: "password1", Email: email}))

	mail := e.notifier.last(t)
	ok, err := e.auth.Verify(ctx, email, mail.Code)
	require.NoError(t, err)
	require.True(t, ok)

	user, err := e.stores.Users.FindByUsername(ctx, username)
	require.NoError(t, err)
	return user
}

func requireKind(t *testing.T, err error, kind Kind, reason string) {
	t.Helper()
	require.Error(t, err)
	svcErr, ok := AsError(err)
	require.True(t, ok, "expected service error, got %v", err)
	require.Equal(t, kind, svcErr.Kind, svcErr.Reason)
	if reason != "" {
		require.Equal(t, reason, svcErr.Reason)
	}
}

var errBoom = errors.New("boom")
