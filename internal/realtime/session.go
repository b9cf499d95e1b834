package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/ids"
	"github.com/Raimpz/simple-chat/internal/models"
	"github.com/Raimpz/simple-chat/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 16 << 10
	sendBufferSize = 64
)

type MessageSubmitter interface {
	Submit(ctx context.Context, senderID, recipientID int64, content string) (models.MessageView, error)
}

// Session is one WebSocket connection. Frame handling and the identity live
// on the read pump goroutine; the hub only touches the send buffer.
type Session struct {
	id       string
	conn     *websocket.Conn
	hub      *Hub
	auth     *Authenticator
	messages MessageSubmitter
	log      zerolog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	connected bool
	identity  *models.Identity
	subs      map[string]string
	nextSubID int
}

func newSession(conn *websocket.Conn, hub *Hub, auth *Authenticator, messages MessageSubmitter, bufferSize int, log zerolog.Logger) *Session {
	id := ids.New()
	return &Session{
		id:       id,
		conn:     conn,
		hub:      hub,
		auth:     auth,
		messages: messages,
		log:      log.With().Str("session_id", id).Logger(),
		send:     make(chan []byte, bufferSize),
		done:     make(chan struct{}),
		subs:     make(map[string]string),
	}
}

func (s *Session) ID() string { return s.id }

// enqueue reports false when the buffer is full.
func (s *Session) enqueue(data []byte) bool {
	select {
	case <-s.done:
		return true
	default:
	}
	select {
	case s.send <- data:
		return true
	default:
		return false
	}
}

// Close detaches the session from the hub and closes the socket. Safe to
// call more than once and from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.hub.Remove(s)
		if s.conn != nil {
			_ = s.conn.Close()
		}
	})
}

func (s *Session) reply(f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		s.log.Error().Err(err).Msg("encode frame")
		return
	}
	if !s.enqueue(data) {
		s.log.Warn().Msg("send buffer full, closing session")
		s.Close()
	}
}

func (s *Session) readPump(ctx context.Context) {
	defer s.Close()

	s.conn.SetReadLimit(maxFrameSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Debug().Err(err).Msg("read error")
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			s.reply(errorFrame("invalid frame"))
			continue
		}
		if !s.handle(ctx, f) {
			return
		}
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.Close()
	}()

	for {
		select {
		case <-s.done:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case data := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handle processes one client frame and reports whether to keep reading.
func (s *Session) handle(ctx context.Context, f Frame) bool {
	switch f.Type {
	case FrameConnect:
		s.handleConnect(ctx, f)
	case FrameSubscribe:
		s.handleSubscribe(f)
	case FrameUnsubscribe:
		s.handleUnsubscribe(f)
	case FrameSend:
		s.handleSend(ctx, f)
	case FrameDisconnect:
		if receipt := f.Header(HeaderReceipt); receipt != "" {
			s.reply(Frame{Type: FrameReceipt, Headers: map[string]string{HeaderReceiptID: receipt}})
		}
		return false
	default:
		s.reply(errorFrame("unsupported frame type"))
	}
	return true
}

func (s *Session) handleConnect(ctx context.Context, f Frame) {
	if s.connected {
		s.reply(errorFrame("already connected"))
		return
	}
	s.connected = true

	headers := map[string]string{
		HeaderSessionID:     s.id,
		HeaderAuthenticated: "false",
	}
	if identity, ok := s.auth.Authenticate(ctx, f.Header(HeaderAuthorization)); ok {
		s.identity = &identity
		s.log = s.log.With().Int64("user_id", identity.UserID).Logger()
		headers[HeaderAuthenticated] = "true"
		headers[HeaderUserName] = identity.Username
	}
	s.reply(Frame{Type: FrameConnected, Headers: headers})
}

// resolveDestination maps a subscription request to the concrete queue of
// the session's own user. Other users' queues are never resolvable.
func (s *Session) resolveDestination(destination string) (string, bool) {
	own := service.PrivateQueue(s.identity.Username)
	switch destination {
	case UserQueuePrivate, own:
		return own, true
	}
	return "", false
}

func (s *Session) handleSubscribe(f Frame) {
	if s.identity == nil {
		s.reply(errorFrame("unauthorized"))
		return
	}
	resolved, ok := s.resolveDestination(f.Destination)
	if !ok {
		s.reply(errorFrame("unknown destination"))
		return
	}

	subID := f.Header("id")
	if subID == "" {
		subID = s.autoSubscriptionID()
	}
	if !s.hub.Subscribe(resolved, s) {
		return
	}
	s.subs[subID] = resolved

	if receipt := f.Header(HeaderReceipt); receipt != "" {
		s.reply(Frame{Type: FrameReceipt, Headers: map[string]string{HeaderReceiptID: receipt}})
	}
}

// autoSubscriptionID picks an id for a SUBSCRIBE that carried none, skipping
// ids the client already uses.
func (s *Session) autoSubscriptionID() string {
	for {
		s.nextSubID++
		id := "auto-" + strconv.Itoa(s.nextSubID)
		if _, taken := s.subs[id]; !taken {
			return id
		}
	}
}

func (s *Session) handleUnsubscribe(f Frame) {
	destination, ok := s.subs[f.Header("id")]
	if !ok {
		s.reply(errorFrame("unknown subscription"))
		return
	}
	delete(s.subs, f.Header("id"))
	for _, other := range s.subs {
		if other == destination {
			return
		}
	}
	s.hub.Unsubscribe(destination, s)
}

func (s *Session) handleSend(ctx context.Context, f Frame) {
	if s.identity == nil {
		s.reply(errorFrame("unauthorized"))
		return
	}
	if f.Destination != AppChatSend {
		s.reply(errorFrame("unknown destination"))
		return
	}

	var req ChatMessageRequest
	if err := json.Unmarshal(f.Body, &req); err != nil || req.RecipientID == 0 {
		s.reply(errorFrame("invalid message body"))
		return
	}

	if _, err := s.messages.Submit(ctx, s.identity.UserID, req.RecipientID, req.Content); err != nil {
		var svcErr *service.Error
		if errors.As(err, &svcErr) {
			s.reply(errorFrame(svcErr.Reason))
			return
		}
		s.log.Error().Err(err).Msg("submit message")
		s.reply(errorFrame("internal error"))
		return
	}

	if receipt := f.Header(HeaderReceipt); receipt != "" {
		s.reply(Frame{Type: FrameReceipt, Headers: map[string]string{HeaderReceiptID: receipt}})
	}
}
