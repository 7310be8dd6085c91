package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 30 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	sendBufferSize = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// statusClient is one connected status-feed websocket.
type statusClient struct {
	hub  *StatusHub
	conn *websocket.Conn
	send chan []byte
}

// StatusHub fans ring and storage Events out to every connected websocket
// client. It is a supplemental read-only view, not part of the peer
// protocol: nothing in the lookup or stabilization path blocks on it.
//
// Unlike a channel-driven fan-out loop, client bookkeeping here lives
// behind one mutex, the same discipline internal/routing.Table uses for
// its own shared state: connect, disconnect, and broadcast all take the
// lock directly rather than routing through a dedicated goroutine.
type StatusHub struct {
	mu      sync.Mutex
	clients map[*statusClient]struct{}
	closed  bool

	log zerolog.Logger
}

// NewStatusHub creates a hub with no connected clients.
func NewStatusHub(log zerolog.Logger) *StatusHub {
	return &StatusHub{
		clients: make(map[*statusClient]struct{}),
		log:     log,
	}
}

// Stop disconnects every client and rejects any future registration. Safe
// to call more than once.
func (h *StatusHub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		c.conn.Close()
		delete(h.clients, c)
	}
}

// Broadcast implements Broadcaster: it marshals ev and queues it on every
// connected client's send buffer, dropping and disconnecting any client
// whose buffer is saturated rather than blocking the caller.
func (h *StatusHub) Broadcast(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.log.Warn().Err(err).Msg("api: failed to marshal status event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.log.Warn().Msg("api: status client send buffer full, disconnecting")
			delete(h.clients, c)
			close(c.send)
		}
	}
}

func (h *StatusHub) addClient(c *statusClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.log.Info().Int("clients", len(h.clients)).Msg("api: status client connected")
	return true
}

func (h *StatusHub) removeClient(c *statusClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.log.Info().Int("clients", len(h.clients)).Msg("api: status client disconnected")
}

func (c *statusClient) readPump() {
	defer func() {
		c.hub.removeClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *statusClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWebSocket upgrades r into a status-feed websocket connection.
func (h *StatusHub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("api: status websocket upgrade failed")
		return
	}

	c := &statusClient{hub: h, conn: conn, send: make(chan []byte, sendBufferSize)}
	if !h.addClient(c) {
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
