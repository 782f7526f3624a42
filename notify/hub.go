// Package notify delivers toast notifications to connected clients over WebSocket.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	VariantDefault     = "default"
	VariantDestructive = "destructive"
)

// Toast is a short user-facing notification.
type Toast struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     string    `json:"variant"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Success builds a default-variant toast.
func Success(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: VariantDefault}
}

// Failure builds a destructive toast.
func Failure(title, description string) Toast {
	return Toast{Title: title, Description: description, Variant: VariantDestructive}
}

// Notifier is what services publish toasts through.
type Notifier interface {
	Publish(t Toast)
}

// Config tunes the hub.
type Config struct {
	// BufferSize is the channel buffer per subscriber
	BufferSize int
	// History is how many recent toasts are kept for late subscribers
	History int
	// PingInterval is how often idle connections are pinged
	PingInterval time.Duration
	// WriteTimeout bounds each WebSocket write
	WriteTimeout time.Duration
}

// DefaultConfig returns the hub defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize:   64,
		History:      50,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Subscription receives every toast published after it was created.
type Subscription struct {
	ID     string
	ch     chan Toast
	closed bool
	mu     sync.Mutex
}

// C returns the channel of toasts.
func (s *Subscription) C() <-chan Toast {
	return s.ch
}

func (s *Subscription) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// Hub fans toasts out to subscribers.
type Hub struct {
	cfg    Config
	log    *zap.SugaredLogger
	mu     sync.RWMutex
	subs   map[string]*Subscription
	recent []Toast
	nextID uint64
}

// NewHub creates a hub. A nil logger disables logging.
func NewHub(cfg Config, log *zap.SugaredLogger) *Hub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{cfg: cfg, log: log, subs: make(map[string]*Subscription)}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &Subscription{
		ID: fmt.Sprintf("sub-%d", h.nextID),
		ch: make(chan Toast, h.cfg.BufferSize),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscriber and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.close()
	}
}

// Publish stamps the toast and delivers it to every subscriber. Slow
// subscribers with a full buffer miss the toast.
func (h *Hub) Publish(t Toast) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	if t.Variant == "" {
		t.Variant = VariantDefault
	}

	h.mu.Lock()
	if h.cfg.History > 0 {
		h.recent = append(h.recent, t)
		if len(h.recent) > h.cfg.History {
			h.recent = h.recent[len(h.recent)-h.cfg.History:]
		}
	}
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		select {
		case sub.ch <- t:
		default:
			h.log.Warnf("[Notify] dropping toast %q for %s: buffer full", t.Title, sub.ID)
		}
	}
}

// Recent returns the retained toasts, oldest first.
func (h *Hub) Recent() []Toast {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Toast, len(h.recent))
	copy(out, h.recent)
	return out
}

// Count returns the number of subscribers.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// ServeWS upgrades the request and streams toasts until the client goes away.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Errorf("[Notify] websocket upgrade failed: %v", err)
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub := h.Subscribe()
	defer h.Unsubscribe(sub.ID)

	// the read loop only detects disconnects; clients send nothing
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	var ping <-chan time.Time
	if h.cfg.PingInterval > 0 {
		ticker := time.NewTicker(h.cfg.PingInterval)
		defer ticker.Stop()
		ping = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case t, ok := <-sub.C():
			if !ok {
				return
			}
			msg, err := json.Marshal(t)
			if err != nil {
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		}
	}
}
