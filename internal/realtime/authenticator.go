package realtime

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/security"
)

type TokenVerifier interface {
	Verify(token string) (string, bool)
}

// Authenticator binds an identity to a session from its CONNECT frame. It
// fails open: a bad credential leaves the session anonymous.
type Authenticator struct {
	tokens TokenVerifier
	users  repository.UserStore
	log    zerolog.Logger
}

func NewAuthenticator(tokens TokenVerifier, users repository.UserStore, log zerolog.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, log: log}
}

func (a *Authenticator) Authenticate(ctx context.Context, authorization string) (models.Identity, bool) {
	token, ok := security.BearerToken(authorization)
	if !ok {
		a.log.Warn().Msg("connect without bearer token")
		return models.Identity{}, false
	}

	username, ok := a.tokens.Verify(token)
	if !ok {
		a.log.Warn().Msg("connect with invalid token")
		return models.Identity{}, false
	}

	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		a.log.Warn().Err(err).Str("username", username).Msg("connect for unknown user")
		return models.Identity{}, false
	}
	if !user.Enabled {
		a.log.Warn().Int64("user_id", user.ID).Msg("connect for disabled user")
		return models.Identity{}, false
	}

	return models.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		Authorities: []string{models.AuthorityUser},
	}, true
}
