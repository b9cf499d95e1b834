package realtime

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Raimpz/simple-chat/internal/config"
	"github.com/Raimpz/simple-chat/internal/database"
	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/repository/sqlite"
	"github.com/Raimpz/simple-chat/internal/security"
	"github.com/Raimpz/simple-chat/internal/service"
)

type wsEnv struct {
	url    string
	stores repository.Stores
	tokens *security.TokenService
}

func newWSEnv(t *testing.T) *wsEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewSQLite(config.DatabaseConfig{DSN: ":memory:"})
	require.NoError(t, err)
	require.NoError(t, sqlite.Migrate(db))
	stores := sqlite.NewStores(db)

	tokens, err := security.NewTokenService(config.SecurityConfig{JWTSecret: "ws-secret"})
	require.NoError(t, err)
	cipher, err := security.NewFieldCipher(base64.StdEncoding.EncodeToString([]byte(strings.Repeat("w", 32))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	log := zerolog.Nop()
	hub := NewHub(nil, "", log)
	messages := service.NewMessageService(stores.Users, stores.Messages, cipher, hub, log)
	endpoint := NewEndpoint(ctx, hub, NewAuthenticator(tokens, stores.Users, log), messages, nil, log)

	router := gin.New()
	router.GET("/ws", endpoint.Handle)
	srv := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		srv.Close()
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	return &wsEnv{
		url:    "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws",
		stores: stores,
		tokens: tokens,
	}
}

func (e *wsEnv) user(t *testing.T, username string, enabled bool) (models.User, string) {
	t.Helper()
	u := models.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "unused",
		Enabled:      enabled,
	}
	require.NoError(t, e.stores.Users.Save(context.Background(), &u))
	token, _, err := e.tokens.Issue(username)
	require.NoError(t, err)
	return u, token
}

func (e *wsEnv) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(e.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func write(t *testing.T, conn *websocket.Conn, f Frame) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(f))
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func connect(t *testing.T, conn *websocket.Conn, token string) Frame {
	t.Helper()
	write(t, conn, Frame{Type: FrameConnect, Headers: map[string]string{HeaderAuthorization: "Bearer " + token}})
	f := read(t, conn)
	require.Equal(t, FrameConnected, f.Type)
	return f
}

func subscribe(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	write(t, conn, Frame{
		Type:        FrameSubscribe,
		Destination: UserQueuePrivate,
		Headers:     map[string]string{"id": "sub-0", HeaderReceipt: "r-sub"},
	})
	f := read(t, conn)
	require.Equal(t, FrameReceipt, f.Type)
	require.Equal(t, "r-sub", f.Header(HeaderReceiptID))
}

func sendChat(t *testing.T, conn *websocket.Conn, recipientID int64, content, receipt string) {
	t.Helper()
	body, err := json.Marshal(ChatMessageRequest{RecipientID: recipientID, Content: content})
	require.NoError(t, err)
	headers := map[string]string{}
	if receipt != "" {
		headers[HeaderReceipt] = receipt
	}
	write(t, conn, Frame{Type: FrameSend, Destination: AppChatSend, Headers: headers, Body: body})
}

func TestSessionDeliversToBothParties(t *testing.T) {
	env := newWSEnv(t)
	alice, aliceToken := env.user(t, "alice", true)
	bob, bobToken := env.user(t, "bob", true)

	aliceConn := env.dial(t)
	connected := connect(t, aliceConn, aliceToken)
	assert.Equal(t, "true", connected.Header(HeaderAuthenticated))
	assert.Equal(t, "alice", connected.Header(HeaderUserName))
	subscribe(t, aliceConn)

	bobConn := env.dial(t)
	connect(t, bobConn, bobToken)
	subscribe(t, bobConn)

	sendChat(t, aliceConn, bob.ID, "hello bob", "")

	for _, conn := range []*websocket.Conn{bobConn, aliceConn} {
		f := read(t, conn)
		require.Equal(t, FrameMessage, f.Type)

		var view models.MessageView
		require.NoError(t, json.Unmarshal(f.Body, &view))
		assert.Equal(t, "hello bob", view.Content)
		assert.Equal(t, alice.ID, view.Sender.ID)
		assert.Equal(t, bob.ID, view.Recipient.ID)
	}
}

func TestSessionFailsOpenOnBadToken(t *testing.T) {
	env := newWSEnv(t)
	bob, _ := env.user(t, "bob", true)

	conn := env.dial(t)
	connected := connect(t, conn, "not-a-token")
	assert.Equal(t, "false", connected.Header(HeaderAuthenticated))
	assert.Empty(t, connected.Header(HeaderUserName))

	write(t, conn, Frame{Type: FrameSubscribe, Destination: UserQueuePrivate})
	f := read(t, conn)
	assert.Equal(t, FrameError, f.Type)
	assert.Equal(t, "unauthorized", f.Header(HeaderMessage))

	sendChat(t, conn, bob.ID, "hi", "")
	f = read(t, conn)
	assert.Equal(t, "unauthorized", f.Header(HeaderMessage))
}

func TestSessionRejectsDisabledUser(t *testing.T) {
	env := newWSEnv(t)
	_, token := env.user(t, "carol", false)

	conn := env.dial(t)
	connected := connect(t, conn, token)
	assert.Equal(t, "false", connected.Header(HeaderAuthenticated))
}

func TestSessionReportsErrorsAndStaysOpen(t *testing.T) {
	env := newWSEnv(t)
	alice, token := env.user(t, "alice", true)
	env.user(t, "bob", true)

	conn := env.dial(t)
	connect(t, conn, token)

	write(t, conn, Frame{Type: FrameSubscribe, Destination: "/user/bob/queue/private"})
	assert.Equal(t, "unknown destination", read(t, conn).Header(HeaderMessage))

	sendChat(t, conn, alice.ID, "   ", "")
	assert.Equal(t, "message content cannot be empty", read(t, conn).Header(HeaderMessage))

	sendChat(t, conn, 9999, "hi", "")
	assert.Equal(t, "recipient not found", read(t, conn).Header(HeaderMessage))

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, "invalid frame", read(t, conn).Header(HeaderMessage))

	sendChat(t, conn, alice.ID, "note to self", "r-1")
	f := read(t, conn)
	assert.Equal(t, FrameReceipt, f.Type)
	assert.Equal(t, "r-1", f.Header(HeaderReceiptID))
}
