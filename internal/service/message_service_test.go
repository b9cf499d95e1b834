package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raimpz/simple-chat/internal/models"
)

func TestSubmitValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")

	_, err := env.messages.Submit(ctx, alice.ID, alice.ID, "   \n\t")
	requireKind(t, err, KindValidation, "message content cannot be empty")

	_, err = env.messages.Submit(ctx, alice.ID, alice.ID, strings.Repeat("é", 1001))
	requireKind(t, err, KindValidation, "message is too long (max 1000 characters)")

	_, err = env.messages.Submit(ctx, alice.ID, 9999, "hi")
	requireKind(t, err, KindNotFound, "recipient not found")

	assert.Empty(t, env.publisher.sent)
}

func TestSubmitPersistsEncryptedAndFansOut(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	view, err := env.messages.Submit(ctx, alice.ID, bob.ID, strings.Repeat("x", 1000))
	require.NoError(t, err)
	assert.NotZero(t, view.ID)
	assert.Equal(t, env.clock, view.Timestamp)
	assert.Equal(t, models.PublicUser{ID: alice.ID, Username: "alice"}, view.Sender)
	assert.Equal(t, models.PublicUser{ID: bob.ID, Username: "bob"}, view.Recipient)

	require.Len(t, env.publisher.sent, 2)
	assert.Equal(t, "/user/bob/queue/private", env.publisher.sent[0].Destination)
	assert.Equal(t, "/user/alice/queue/private", env.publisher.sent[1].Destination)
	assert.Equal(t, view, env.publisher.sent[1].Payload)

	stored, err := env.stores.Messages.Conversation(ctx, alice.ID, bob.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.NotEqual(t, view.Content, stored[0].Content, "content is encrypted at rest")
}

func TestSubmitToSelfPushesOnce(t *testing.T) {
	env := newTestEnv(t)
	alice := env.register(t, "alice")

	_, err := env.messages.Submit(context.Background(), alice.ID, alice.ID, "note to self")
	require.NoError(t, err)
	require.Len(t, env.publisher.sent, 1)
	assert.Equal(t, "/user/alice/queue/private", env.publisher.sent[0].Destination)
}

func TestSubmitKeepsMessageWhenPushFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	env.publisher.err = errBoom

	view, err := env.messages.Submit(ctx, alice.ID, bob.ID, "hello")
	require.NoError(t, err)

	history, err := env.messages.History(ctx, bob.ID, alice.ID, 0, 20)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, view.ID, history[0].ID)
}

func TestHistoryPagination(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")
	carol := env.register(t, "carol")

	for i := 0; i < 25; i++ {
		from, to := alice.ID, bob.ID
		if i%2 == 1 {
			from, to = bob.ID, alice.ID
		}
		_, err := env.messages.Submit(ctx, from, to, fmt.Sprintf("msg-%02d", i))
		require.NoError(t, err)
		env.advance(time.Second)
	}
	_, err := env.messages.Submit(ctx, alice.ID, carol.ID, "unrelated")
	require.NoError(t, err)

	page0, err := env.messages.History(ctx, alice.ID, bob.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, page0, DefaultPageSize)
	assert.Equal(t, "msg-05", page0[0].Content)
	assert.Equal(t, "msg-24", page0[len(page0)-1].Content)
	for i := 1; i < len(page0); i++ {
		assert.False(t, page0[i].Timestamp.Before(page0[i-1].Timestamp), "ascending within a page")
	}

	page1, err := env.messages.History(ctx, bob.ID, alice.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, page1, 5)
	assert.Equal(t, "msg-00", page1[0].Content)
	assert.Equal(t, "msg-04", page1[4].Content)
	assert.Equal(t, "alice", page1[0].Sender.Username)
	assert.Equal(t, "bob", page1[1].Sender.Username)

	empty, err := env.messages.History(ctx, alice.ID, bob.ID, 5, 20)
	require.NoError(t, err)
	assert.Empty(t, empty)

	capped, err := env.messages.History(ctx, alice.ID, bob.ID, 0, 1000)
	require.NoError(t, err)
	assert.Len(t, capped, 25)

	_, err = env.messages.History(ctx, alice.ID, bob.ID, -1, 20)
	requireKind(t, err, KindValidation, "")
}

func TestHistoryVisibleToBothParties(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	alice := env.register(t, "alice")
	bob := env.register(t, "bob")

	view, err := env.messages.Submit(ctx, alice.ID, bob.ID, "hello bob")
	require.NoError(t, err)

	for _, pair := range [][2]int64{{alice.ID, bob.ID}, {bob.ID, alice.ID}} {
		page, err := env.messages.History(ctx, pair[0], pair[1], 0, 20)
		require.NoError(t, err)
		require.Len(t, page, 1)
		assert.Equal(t, view.ID, page[0].ID)
		assert.Equal(t, "hello bob", page[0].Content)
	}
}
