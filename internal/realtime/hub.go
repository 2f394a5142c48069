// Package realtime pushes change events to connected presentation clients.
// Nothing in the write path depends on delivery.
package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sportclub/internal/logging"
	"sportclub/internal/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
	sendBuffer = 64
)

const (
	KindReservation  = "reservation"
	KindCancellation = "cancellation"
	KindAttendance   = "attendance"
	KindSchedule     = "schedule"
	KindQuota        = "quota"
)

// ChangeEvent tells clients which view to refresh.
type ChangeEvent struct {
	Kind   string `json:"kind"`
	Date   string `json:"date,omitempty"`
	Ref    string `json:"occurrence_ref,omitempty"`
	UserID int64  `json:"user_id,omitempty"`
}

// Publisher is what services depend on.
type Publisher interface {
	Publish(ev ChangeEvent)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(ChangeEvent) {}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type client struct {
	userID int64
	conn   *websocket.Conn
	send   chan []byte

	mu    sync.Mutex
	dates map[string]bool
}

// wants reports whether the client should get ev. A client that has not
// subscribed to any date receives everything.
func (c *client) wants(ev ChangeEvent) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.dates) == 0 || ev.Date == "" {
		return true
	}
	return c.dates[ev.Date]
}

type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.ChangeFeedClients.Set(float64(n))
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()
	metrics.ChangeFeedClients.Set(float64(n))
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Publish fans ev out to every interested client without blocking.
func (h *Hub) Publish(ev ChangeEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.send <- data:
		default:
			// slow client
		}
	}
}

// Serve upgrades the request and runs the connection until it closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, userID int64) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	c := &client{
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBuffer),
		dates:  make(map[string]bool),
	}
	h.register(c)

	go h.writePump(c)
	h.readPump(c)
}

// readPump handles {"type":"subscribe"|"unsubscribe","date":"YYYY-MM-DD"}.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var in struct {
			Type string `json:"type"`
			Date string `json:"date"`
		}
		if err := json.Unmarshal(msg, &in); err != nil || in.Date == "" {
			continue
		}
		c.mu.Lock()
		switch in.Type {
		case "subscribe":
			c.dates[in.Date] = true
		case "unsubscribe":
			delete(c.dates, in.Date)
		}
		c.mu.Unlock()
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
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
