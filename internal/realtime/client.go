package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// client is one connection. All writes happen on writeLoop.
type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once

	mu       sync.Mutex
	channels map[string]struct{}
}

func newClient(h *Hub, conn *websocket.Conn) *client {
	return &client{
		hub:      h,
		conn:     conn,
		send:     make(chan []byte, h.cfg.SendBuffer),
		done:     make(chan struct{}),
		channels: make(map[string]struct{}),
	}
}

// enqueue queues payload without blocking. A full queue drops the client.
func (c *client) enqueue(payload []byte) {
	if payload == nil {
		return
	}
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.hub.logger.Warn("websocket client too slow, disconnecting")
		c.close()
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.hub.unregister(c)
		c.conn.Close()
	})
}

// readLoop handles control messages until the connection fails or misses
// two heartbeats.
func (c *client) readLoop() {
	defer c.close()

	deadline := 2 * c.hub.cfg.PingInterval
	c.conn.SetReadDeadline(time.Now().Add(deadline))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.hub.logger.WithError(err).Debug("websocket read failed")
			}
			return
		}
		var msg controlMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		c.handle(msg)
	}
}

func (c *client) handle(msg controlMessage) {
	switch msg.Type {
	case TypeSubscribe:
		if msg.Channel == "" {
			return
		}
		c.mu.Lock()
		c.channels[msg.Channel] = struct{}{}
		c.mu.Unlock()
	case TypeUnsubscribe:
		c.mu.Lock()
		delete(c.channels, msg.Channel)
		c.mu.Unlock()
	case TypePing:
		c.enqueue(c.hub.encode(Message{Type: TypePong, Timestamp: c.hub.nowMs()}))
	}
}

// subscriptions returns the channels the client subscribed to.
func (c *client) subscriptions() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.channels))
	for ch := range c.channels {
		out = append(out, ch)
	}
	return out
}

func (c *client) writeLoop() {
	ticker := time.NewTicker(c.hub.cfg.PingInterval)
	defer ticker.Stop()
	defer c.close()

	for {
		select {
		case <-c.done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.hub.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
