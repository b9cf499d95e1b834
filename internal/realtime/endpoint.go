package realtime

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Endpoint upgrades GET /ws requests into sessions attached to the hub.
type Endpoint struct {
	ctx      context.Context
	hub      *Hub
	auth     *Authenticator
	messages MessageSubmitter
	upgrader websocket.Upgrader
	log      zerolog.Logger

	BufferSize int
}

// NewEndpoint ties session lifetimes to ctx rather than to the upgrade
// request. An empty origins list or "*" accepts any Origin.
func NewEndpoint(ctx context.Context, hub *Hub, auth *Authenticator, messages MessageSubmitter, origins []string, log zerolog.Logger) *Endpoint {
	return &Endpoint{
		ctx:      ctx,
		hub:      hub,
		auth:     auth,
		messages: messages,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
		log:        log,
		BufferSize: sendBufferSize,
	}
}

func originChecker(origins []string) func(*http.Request) bool {
	allowed := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.TrimSpace(o)
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		if o != "" {
			allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allowed[strings.ToLower(origin)]
		return ok
	}
}

func (e *Endpoint) Handle(c *gin.Context) {
	conn, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		e.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	s := newSession(conn, e.hub, e.auth, e.messages, e.BufferSize, e.log)
	s.log.Debug().Str("remote", c.ClientIP()).Msg("session opened")

	go s.writePump()
	go func() {
		s.readPump(e.ctx)
		s.log.Debug().Msg("session closed")
	}()
	go func() {
		select {
		case <-e.ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}
