// Package ws replicates livetree stores across processes over
// websockets. A Hub relays messages between connections; each Store
// joins through a Client, which implements livetree.Transport.
package ws

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/jrhy/livetree"
)

// ErrSendBufferFull is returned by Publish when the connection is down
// or too slow to take another message within PublishTimeout.
var ErrSendBufferFull = errors.New("send buffer full")

// ClientSettings tunes a Client's connection to the hub.
type ClientSettings struct {
	HandshakeTimeout time.Duration
	ReconnectTimeout time.Duration
	WriteTimeout     time.Duration
	ReadTimeout      time.Duration
	PublishTimeout   time.Duration
	SendBufferSize   int
	MaxMessageSize   int64
}

// DefaultClientSettings returns the settings Dial uses when given nil.
func DefaultClientSettings() *ClientSettings {
	return &ClientSettings{
		HandshakeTimeout: 2 * time.Second,
		ReconnectTimeout: 2 * time.Second,
		WriteTimeout:     5 * time.Second,
		ReadTimeout:      30 * time.Second,
		PublishTimeout:   1 * time.Second,
		SendBufferSize:   32,
		MaxMessageSize:   16 << 20,
	}
}

// Client is a livetree.Transport connected to a Hub. It reconnects
// until closed; messages published while disconnected wait in the send
// buffer. Messages received before the first Subscribe are held, up to
// SendBufferSize of the most recent, and handed to that subscriber.
type Client struct {
	ctx    context.Context
	cancel context.CancelFunc

	url      string
	settings *ClientSettings
	dialer   *websocket.Dialer
	send     chan []byte
	// pending counts published messages not yet written
	pending atomic.Int64

	// deliverMu orders deliveries; taken before mu.
	deliverMu sync.Mutex

	mu         sync.Mutex
	handlers   map[uint64]func([]byte)
	nextID     uint64
	subscribed bool
	early      [][]byte
	connected  bool
	synced     bool
}

var _ livetree.Transport = (*Client)(nil)

// Dial returns a Client that connects to the hub at url in the
// background and keeps reconnecting until it is closed or ctx ends.
func Dial(ctx context.Context, url string, settings *ClientSettings) *Client {
	if settings == nil {
		settings = DefaultClientSettings()
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	c := &Client{
		ctx:      cancelCtx,
		cancel:   cancel,
		url:      url,
		settings: settings,
		dialer: &websocket.Dialer{
			HandshakeTimeout: settings.HandshakeTimeout,
		},
		send:     make(chan []byte, settings.SendBufferSize),
		handlers: map[uint64]func([]byte){},
	}
	go c.run()
	return c
}

// Connected reports whether the client currently has a hub connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Publish queues msg for the hub. It fails with ErrSendBufferFull if the
// queue stays full for PublishTimeout.
func (c *Client) Publish(ctx context.Context, msg []byte) error {
	select {
	case <-c.ctx.Done():
		return livetree.ErrClosed
	default:
	}
	c.pending.Add(1)
	select {
	case c.send <- msg:
		return nil
	case <-c.ctx.Done():
		c.pending.Add(-1)
		return livetree.ErrClosed
	case <-ctx.Done():
		c.pending.Add(-1)
		return ctx.Err()
	case <-time.After(c.settings.PublishTimeout):
		c.pending.Add(-1)
		return ErrSendBufferFull
	}
}

// Synced reports whether the hub has sent everything it replays to new
// connections on the current connection, and subscribers have handled it.
func (c *Client) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected && c.synced
}

// WaitConnected blocks until the client has a hub connection.
func (c *Client) WaitConnected(ctx context.Context) error {
	return c.wait(ctx, c.Connected)
}

// WaitSynced blocks until Synced. A store that subscribed before
// calling it has then caught up with the hub's last snapshot.
func (c *Client) WaitSynced(ctx context.Context) error {
	return c.wait(ctx, c.Synced)
}

func (c *Client) wait(ctx context.Context, cond func() bool) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for !cond() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.ctx.Done():
			return livetree.ErrClosed
		case <-ticker.C:
		}
	}
	return nil
}

// Subscribe calls f with every message from the hub. The first
// subscriber also receives the messages held since Dial.
func (c *Client) Subscribe(f func([]byte)) func() {
	c.mu.Lock()
	first := !c.subscribed
	c.mu.Unlock()
	if first {
		// hold off the reader so held messages go first
		c.deliverMu.Lock()
		defer c.deliverMu.Unlock()
	}
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.handlers[id] = f
	c.subscribed = true
	early := c.early
	c.early = nil
	c.mu.Unlock()
	for _, message := range early {
		f(message)
	}
	return func() {
		c.mu.Lock()
		delete(c.handlers, id)
		c.mu.Unlock()
	}
}

// Close disconnects. While connected, it first gives messages already
// published up to WriteTimeout to be written.
func (c *Client) Close() error {
	deadline := time.Now().Add(c.settings.WriteTimeout)
	for c.pending.Load() > 0 && c.Connected() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	c.cancel()
	return nil
}

func (c *Client) run() {
	defer c.cancel()
	for {
		ws, _, err := c.dialer.DialContext(c.ctx, c.url, nil)
		if err != nil {
			glog.Infof("[ws]dial %s error = %s\n", c.url, err)
		} else {
			glog.Infof("[ws]connected %s\n", c.url)
			c.handle(ws)
			glog.Infof("[ws]disconnected %s\n", c.url)
		}
		select {
		case <-c.ctx.Done():
			return
		case <-time.After(c.settings.ReconnectTimeout):
		}
	}
}

func (c *Client) setConnected(connected bool) {
	c.mu.Lock()
	c.connected = connected
	c.synced = false
	c.mu.Unlock()
}

func (c *Client) setSynced() {
	c.mu.Lock()
	c.synced = true
	c.mu.Unlock()
}

func (c *Client) handle(ws *websocket.Conn) {
	defer ws.Close()
	c.setConnected(true)
	defer c.setConnected(false)

	handleCtx, handleCancel := context.WithCancel(c.ctx)
	defer handleCancel()

	go func() {
		defer handleCancel()
		for {
			select {
			case <-handleCtx.Done():
				return
			case message := <-c.send:
				ws.SetWriteDeadline(time.Now().Add(c.settings.WriteTimeout))
				err := ws.WriteMessage(websocket.TextMessage, message)
				c.pending.Add(-1)
				if err != nil {
					// a websocket write deadline cannot be recovered
					glog.Infof("[ws]%s-> error = %s\n", c.url, err)
					return
				}
				glog.V(2).Infof("[ws]%s->\n", c.url)
			}
		}
	}()

	go func() {
		// unblock ReadMessage once the connection is abandoned
		<-handleCtx.Done()
		ws.Close()
	}()

	ws.SetReadLimit(c.settings.MaxMessageSize)
	ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
	ws.SetPingHandler(func(appData string) error {
		ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		return ws.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.settings.WriteTimeout))
	})
	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if handleCtx.Err() == nil {
				glog.Infof("[ws]%s<- error = %s\n", c.url, err)
			}
			return
		}
		ws.SetReadDeadline(time.Now().Add(c.settings.ReadTimeout))
		switch messageType {
		case websocket.TextMessage, websocket.BinaryMessage:
			if bytes.Equal(message, syncedMessage) {
				glog.V(2).Infof("[ws]%s<- synced\n", c.url)
				c.setSynced()
				continue
			}
			glog.V(2).Infof("[ws]%s<-\n", c.url)
			c.deliver(message)
		default:
			glog.V(2).Infof("[ws]other=%d %s<-\n", messageType, c.url)
		}
	}
}

func (c *Client) deliver(message []byte) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	c.mu.Lock()
	if !c.subscribed {
		c.early = append(c.early, message)
		if len(c.early) > c.settings.SendBufferSize {
			c.early = c.early[len(c.early)-c.settings.SendBufferSize:]
		}
		c.mu.Unlock()
		return
	}
	handlers := make([]func([]byte), 0, len(c.handlers))
	for _, f := range c.handlers {
		handlers = append(handlers, f)
	}
	c.mu.Unlock()
	for _, f := range handlers {
		f(message)
	}
}
