package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
		want  string
	}{
		{"short username", RegisterInput{Username: "ab", Password: "password1", Email: "a@example.com"}, "username must be between 3 and 20 characters"},
		{"long username", RegisterInput{Username: "abcdefghijklmnopqrstu", Password: "password1", Email: "a@example.com"}, "username must be between 3 and 20 characters"},
		{"slash in username", RegisterInput{Username: "a/b/c", Password: "password1", Email: "a@example.com"}, ""},
		{"short password", RegisterInput{Username: "alice", Password: "12345", Email: "a@example.com"}, "password must be at least 6 characters"},
		{"bad email", RegisterInput{Username: "alice", Password: "password1", Email: "not-an-email"}, "invalid email format"},
		{"missing email", RegisterInput{Username: "alice", Password: "password1"}, "email is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			requireKind(t, env.auth.Register(ctx, tc.input), KindValidation, tc.want)
		})
	}
	assert.Empty(t, env.notifier.sent)
}

func TestRegisterCreatesDisabledUserAndSendsCode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.auth.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Email: "  Bob@Example.com "})
	require.NoError(t, err)

	user, err := env.stores.Users.FindByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", user.Email)
	assert.False(t, user.Enabled)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	require.NotNil(t, user.VerificationCode)

	mail := env.notifier.last(t)
	assert.Equal(t, sentMail{Kind: "verification", Email: "bob@example.com", Code: *user.VerificationCode}, mail)
}

func TestRegisterDuplicateLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.auth.Register(ctx, RegisterInput{Username: "alice", Password: "password1", Email: "alice@example.com"}))
	before, err := env.stores.Users.FindByUsername(ctx, "alice")
	require.NoError(t, err)

	err = env.auth.Register(ctx, RegisterInput{Username: "alice", Password: "other-pass", Email: "new@example.com"})
	requireKind(t, err, KindConflict, "username already taken")

	err = env.auth.Register(ctx, RegisterInput{Username: "alice2", Password: "other-pass", Email: "ALICE@example.com"})
	requireKind(t, err, KindConflict, "email already taken")

	after, err := env.stores.Users.FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash)
	assert.Equal(t, before.Email, after.Email)

	_, err = env.stores.Users.FindByEmail(ctx, "new@example.com")
	assert.Error(t, err)
	_, err = env.stores.Users.FindByUsername(ctx, "alice2")
	assert.Error(t, err)
	assert.Len(t, env.notifier.sent, 1)
}

func TestRegisterSurvivesNotifierFailure(t *testing.T) {
	env := newTestEnv(t)
	env.notifier.err = errBoom

	err := env.auth.Register(context.Background(), RegisterInput{Username: "carol", Password: "password1", Email: "carol@example.com"})
	require.NoError(t, err)

	_, err = env.stores.Users.FindByUsername(context.Background(), "carol")
	assert.NoError(t, err)
}

func TestVerifyThenLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.auth.Register(ctx, RegisterInput{Username: "bob", Password: "secret1", Email: "bob@example.com"}))
	code := env.notifier.last(t).Code

	_, err := env.auth.Login(ctx, "bob", "secret1")
	requireKind(t, err, KindForbidden, "")

	ok, err := env.auth.Verify(ctx, "bob@example.com", "000000x")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.auth.Verify(ctx, "nobody@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = env.auth.Verify(ctx, "bob@example.com", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = env.auth.Verify(ctx, "bob@example.com", code)
	require.NoError(t, err)
	assert.False(t, ok, "second verify is rejected")

	res, err := env.auth.Login(ctx, "bob", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "bob", res.User.Username)
	assert.Equal(t, env.clock.Add(time.Hour), res.ExpiresAt)

	username, valid := env.tokens.Verify(res.Token)
	assert.True(t, valid)
	assert.Equal(t, "bob", username)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	ctx := context.Background()

	_, err := env.auth.Login(ctx, "alice", "wrong-password")
	requireKind(t, err, KindUnauthorized, "invalid username or password")

	_, err = env.auth.Login(ctx, "nobody", "password1")
	requireKind(t, err, KindUnauthorized, "invalid username or password")
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	ctx := context.Background()

	requireKind(t, env.auth.ForgotPassword(ctx, "missing@example.com"), KindNotFound, "email not found")

	require.NoError(t, env.auth.ForgotPassword(ctx, "alice@example.com"))
	mail := env.notifier.last(t)
	assert.Equal(t, "password_reset", mail.Kind)

	err := env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "alice@example.com", Code: mail.Code, NewPassword: "123"})
	requireKind(t, err, KindValidation, "password must be at least 6 characters")

	err = env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "alice@example.com", Code: "wrong", NewPassword: "new-password"})
	requireKind(t, err, KindValidation, "invalid or expired reset code")

	require.NoError(t, env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "alice@example.com", Code: mail.Code, NewPassword: "new-password"}))

	_, err = env.auth.Login(ctx, "alice", "password1")
	requireKind(t, err, KindUnauthorized, "")
	_, err = env.auth.Login(ctx, "alice", "new-password")
	require.NoError(t, err)

	err = env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "alice@example.com", Code: mail.Code, NewPassword: "third-password"})
	requireKind(t, err, KindValidation, "invalid or expired reset code")
}

func TestPasswordResetCodeExpires(t *testing.T) {
	env := newTestEnv(t)
	env.register(t, "alice")
	ctx := context.Background()

	require.NoError(t, env.auth.ForgotPassword(ctx, "alice@example.com"))
	code := env.notifier.last(t).Code

	env.advance(15 * time.Minute)
	err := env.auth.ResetPassword(ctx, ResetPasswordInput{Email: "alice@example.com", Code: code, NewPassword: "new-password"})
	requireKind(t, err, KindValidation, "invalid or expired reset code")
}
