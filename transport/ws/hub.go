package ws

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang/glog"
	"github.com/gorilla/websocket"
)

// syncedMessage follows whatever the hub replays to a new connection.
// It is never relayed, so clients need not pass it on.
var syncedMessage = []byte(`{"type":"synced"}`)

// HubSettings tunes a Hub's connections.
type HubSettings struct {
	WriteTimeout   time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	SendBufferSize int
	MaxMessageSize int64
	// ReplayLast sends the most recent message to every new connection,
	// so an instance that joins late starts from the current tree.
	ReplayLast bool
}

// DefaultHubSettings returns the settings NewHub uses when given nil.
func DefaultHubSettings() *HubSettings {
	return &HubSettings{
		WriteTimeout:   5 * time.Second,
		ReadTimeout:    30 * time.Second,
		PingInterval:   10 * time.Second,
		SendBufferSize: 32,
		MaxMessageSize: 16 << 20,
		ReplayLast:     true,
	}
}

// Hub relays every message a connection sends to all other connections.
// It is the shared channel that Clients in different processes join.
type Hub struct {
	settings *HubSettings
	upgrader websocket.Upgrader

	mu     sync.Mutex
	conns  map[*hubConn]struct{}
	last   []byte
	closed bool
}

type hubConn struct {
	ws   *websocket.Conn
	send chan []byte
}

// NewHub returns a Hub with no connections. Serve it with Routes or
// directly as an http.Handler.
func NewHub(settings *HubSettings) *Hub {
	if settings == nil {
		settings = DefaultHubSettings()
	}
	return &Hub{
		settings: settings,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: map[*hubConn]struct{}{},
	}
}

// Routes mounts the hub at /ws, with a liveness check at /healthz.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", h.ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return r
}

// Connections returns the number of connected clients.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// ServeHTTP upgrades r to a websocket and relays its messages until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[hub]upgrade %s error = %s\n", r.RemoteAddr, err)
		return
	}
	c := &hubConn{
		ws: ws,
		// room for the replay and syncedMessage
		send: make(chan []byte, h.settings.SendBufferSize+2),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		ws.Close()
		return
	}
	h.conns[c] = struct{}{}
	if h.settings.ReplayLast && h.last != nil {
		c.send <- h.last
	}
	c.send <- syncedMessage
	n := len(h.conns)
	h.mu.Unlock()
	glog.Infof("[hub]join %s (%d connected)\n", r.RemoteAddr, n)

	go h.writeLoop(c)
	h.readLoop(c)

	h.remove(c)
	glog.Infof("[hub]leave %s\n", r.RemoteAddr)
}

func (h *Hub) readLoop(c *hubConn) {
	c.ws.SetReadLimit(h.settings.MaxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
		return nil
	})
	for {
		messageType, message, err := c.ws.ReadMessage()
		if err != nil {
			glog.V(2).Infof("[hub]read error = %s\n", err)
			return
		}
		c.ws.SetReadDeadline(time.Now().Add(h.settings.ReadTimeout))
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if bytes.Equal(message, syncedMessage) {
				continue
			}
			h.relay(c, message)
		default:
			glog.V(2).Infof("[hub]other=%d\n", messageType)
		}
	}
}

func (h *Hub) writeLoop(c *hubConn) {
	ticker := time.NewTicker(h.settings.PingInterval)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if !ok {
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				// a websocket write deadline cannot be recovered
				glog.Infof("[hub]write error = %s\n", err)
				return
			}
		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(h.settings.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) relay(from *hubConn, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.last = message
	for c := range h.conns {
		if c == from {
			continue
		}
		select {
		case c.send <- message:
		default:
			glog.Infof("[hub]drop slow connection %s\n", c.ws.RemoteAddr())
			h.removeLocked(c)
		}
	}
	glog.V(2).Infof("[hub]relay %d bytes to %d\n", len(message), len(h.conns)-1)
}

func (h *Hub) remove(c *hubConn) {
	h.mu.Lock()
	h.removeLocked(c)
	h.mu.Unlock()
}

func (h *Hub) removeLocked(c *hubConn) {
	if _, ok := h.conns[c]; !ok {
		return
	}
	delete(h.conns, c)
	close(c.send)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.conns {
		h.removeLocked(c)
	}
}
