// Package realtime fans registry and alert events out to WebSocket clients.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-meme-radar/internal/events"
	"solana-meme-radar/internal/logging"
	"solana-meme-radar/internal/observability"
)

// WelcomeMessage is sent to every client on connect.
const WelcomeMessage = "Connected to Solana Meme Coin Radar"

// Control message types.
const (
	TypeConnected   = "connected"
	TypePong        = "pong"
	TypePing        = "ping"
	TypeSubscribe   = "subscribe"
	TypeUnsubscribe = "unsubscribe"
)

// Config configures connection timing.
type Config struct {
	// PingInterval is the protocol heartbeat period. A client that misses
	// two heartbeats is dropped.
	PingInterval time.Duration
	WriteTimeout time.Duration
	// SendBuffer is the number of queued messages per client. A client
	// whose queue is full is disconnected.
	SendBuffer int
}

// DefaultConfig returns the default hub timing.
func DefaultConfig() Config {
	return Config{
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
		SendBuffer:   64,
	}
}

// Message is the envelope of every server-sent message.
type Message struct {
	Type      string `json:"type"`
	Data      any    `json:"data,omitempty"`
	Message   string `json:"message,omitempty"`
	Timestamp int64  `json:"timestamp"` // ms
}

type controlMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
}

// Hub tracks connected clients and broadcasts events to all of them.
type Hub struct {
	cfg      Config
	upgrader websocket.Upgrader
	now      func() time.Time
	logger   *logrus.Entry

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

var _ events.Subscriber = (*Hub)(nil)

// Options contains configuration for creating a Hub.
type Options struct {
	Config *Config
	// CheckOrigin defaults to accepting every origin.
	CheckOrigin func(r *http.Request) bool
	Now         func() time.Time
	Logger      *logrus.Entry
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = DefaultConfig().SendBuffer
	}
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logging.For("realtime")
	}
	return &Hub{
		cfg:      cfg,
		upgrader: websocket.Upgrader{CheckOrigin: checkOrigin},
		now:      opts.Now,
		logger:   opts.Logger,
		clients:  make(map[*client]struct{}),
	}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("websocket upgrade failed")
		return
	}

	c := newClient(h, conn)
	if !h.register(c) {
		conn.Close()
		return
	}
	h.logger.WithField("remote", clientIP(r)).Info("websocket client connected")

	c.enqueue(h.encode(Message{Type: TypeConnected, Message: WelcomeMessage, Timestamp: h.nowMs()}))
	go c.writeLoop()
	c.readLoop()
}

// HandleEvent broadcasts ev as {type, data, timestamp}.
func (h *Hub) HandleEvent(_ context.Context, ev events.Event) error {
	payload := h.encode(Message{Type: string(ev.Kind()), Data: ev.Payload(), Timestamp: h.nowMs()})
	if payload == nil {
		return errors.Newf("encode %s event", ev.Kind())
	}
	h.Broadcast(payload)
	return nil
}

// Broadcast queues an encoded message for every client.
func (h *Hub) Broadcast(payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		c.enqueue(payload)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		targets = append(targets, c)
	}
	h.mu.Unlock()

	for _, c := range targets {
		c.close()
	}
	h.logger.Info("websocket hub shut down")
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	observability.SetWSClients(len(h.clients))
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	observability.SetWSClients(len(h.clients))
}

func (h *Hub) encode(m Message) []byte {
	b, err := json.Marshal(m)
	if err != nil {
		h.logger.WithError(err).WithField("type", m.Type).Error("encode websocket message")
		return nil
	}
	return b
}

func (h *Hub) nowMs() int64 {
	return h.now().UnixMilli()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return fwd
	}
	return r.RemoteAddr
}
