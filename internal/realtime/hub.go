package realtime

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Hub routes frames to the sessions subscribed to a destination. With a
// Redis client every frame goes through pub/sub so sessions on any API
// instance receive it; without one delivery stays in-process.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Session]struct{}

	rdb    *redis.Client
	prefix string
	log    zerolog.Logger
}

func NewHub(rdb *redis.Client, prefix string, log zerolog.Logger) *Hub {
	if prefix == "" {
		prefix = "simplechat:dest:"
	}
	return &Hub{
		subs:   make(map[string]map[*Session]struct{}),
		rdb:    rdb,
		prefix: prefix,
		log:    log,
	}
}

// Subscribe adds s to destination. It reports false when s is already
// closed; Close removes the session under the same lock.
func (h *Hub) Subscribe(destination string, s *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-s.done:
		return false
	default:
	}
	set, ok := h.subs[destination]
	if !ok {
		set = make(map[*Session]struct{})
		h.subs[destination] = set
	}
	set[s] = struct{}{}
	return true
}

func (h *Hub) Unsubscribe(destination string, s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(destination, s)
}

// Remove drops s from every destination.
func (h *Hub) Remove(s *Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for destination := range h.subs {
		h.removeLocked(destination, s)
	}
}

func (h *Hub) removeLocked(destination string, s *Session) {
	set, ok := h.subs[destination]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.subs, destination)
	}
}

// Subscribers reports how many local sessions listen on destination.
func (h *Hub) Subscribers(destination string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[destination])
}

// SendToDestination delivers payload as a message frame. A destination
// without subscribers is a no-op.
func (h *Hub) SendToDestination(ctx context.Context, destination string, payload any) error {
	data, err := messageFrame(destination, payload)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	if h.rdb != nil {
		if err := h.rdb.Publish(ctx, h.prefix+destination, data).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", destination, err)
		}
		return nil
	}
	h.deliver(destination, data)
	return nil
}

func (h *Hub) deliver(destination string, data []byte) {
	h.mu.RLock()
	targets := make([]*Session, 0, len(h.subs[destination]))
	for s := range h.subs[destination] {
		targets = append(targets, s)
	}
	h.mu.RUnlock()

	for _, s := range targets {
		if !s.enqueue(data) {
			h.log.Warn().
				Str("session_id", s.ID()).
				Str("destination", destination).
				Msg("send buffer full, closing slow session")
			s.Close()
		}
	}
}

// Run relays frames published by any instance to local subscribers until
// ctx is done. Without Redis it just waits for ctx.
func (h *Hub) Run(ctx context.Context) error {
	if h.rdb == nil {
		<-ctx.Done()
		return nil
	}

	pubsub := h.rdb.PSubscribe(ctx, h.prefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("psubscribe: %w", err)
	}
	h.log.Info().Str("pattern", h.prefix+"*").Msg("hub relay subscribed")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			h.deliver(strings.TrimPrefix(msg.Channel, h.prefix), []byte(msg.Payload))
		}
	}
}
