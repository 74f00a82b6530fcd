// Package websocket provides WebSocket connection handling.
package websocket

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Connection errors
var (
	ErrConnectionClosed = errors.New("connection closed")
)

// Config holds connection limits and keepalive timings.
type Config struct {
	// Maximum message size allowed from peer.
	MaxMessageSize int64
	// Time allowed to write a message to the peer.
	WriteWait time.Duration
	// Time allowed to read the next pong message from the peer.
	PongWait time.Duration
	// Send pings to peer with this period. Must be less than PongWait.
	PingPeriod time.Duration
}

// DefaultConfig returns the default connection settings.
func DefaultConfig() Config {
	return Config{
		MaxMessageSize: 8 * 1024,
		WriteWait:      10 * time.Second,
		PongWait:       60 * time.Second,
		PingPeriod:     54 * time.Second,
	}
}

// NewUpgrader returns an upgrader that accepts origins allowed by checkOrigin.
// A nil checkOrigin accepts every origin.
func NewUpgrader(checkOrigin func(origin string) bool) *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || checkOrigin == nil {
				return true
			}
			return checkOrigin(origin)
		},
	}
}

// Connection wraps a WebSocket connection with serialized writes and
// read deadlines refreshed by pongs.
type Connection struct {
	// conn is the underlying WebSocket connection.
	conn   *websocket.Conn
	config Config

	// sendMutex is used to synchronize writes to the connection.
	sendMutex sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// NewConnection wraps conn and applies the read limit and pong handling.
func NewConnection(conn *websocket.Conn, config Config) *Connection {
	c := &Connection{
		conn:   conn,
		config: config,
		closed: make(chan struct{}),
	}

	if config.MaxMessageSize > 0 {
		conn.SetReadLimit(config.MaxMessageSize)
	}
	c.extendReadDeadline()
	conn.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	return c
}

func (c *Connection) extendReadDeadline() {
	if c.config.PongWait > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.config.PongWait))
	}
}

// ReadJSON reads the next message into v. Only one goroutine may read.
func (c *Connection) ReadJSON(v any) error {
	if c.IsClosed() {
		return ErrConnectionClosed
	}

	err := c.conn.ReadJSON(v)
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.Close()
			return ErrConnectionClosed
		}
		return err
	}

	return nil
}

// WriteJSON writes v as a text message within the configured write wait.
func (c *Connection) WriteJSON(v any) error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.IsClosed() {
		return ErrConnectionClosed
	}

	if c.config.WriteWait > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteWait)); err != nil {
			return err
		}
	}

	err := c.conn.WriteJSON(v)
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || errors.Is(err, websocket.ErrCloseSent) {
			c.Close()
			return ErrConnectionClosed
		}
		return err
	}

	return nil
}

// ping sends a ping control frame.
func (c *Connection) ping() error {
	c.sendMutex.Lock()
	defer c.sendMutex.Unlock()

	if c.IsClosed() {
		return ErrConnectionClosed
	}
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.config.WriteWait))
}

// KeepAlive pings the peer every PingPeriod until ctx is done, the
// connection closes or a ping fails.
func (c *Connection) KeepAlive(ctx context.Context) {
	if c.config.PingPeriod <= 0 {
		return
	}

	ticker := time.NewTicker(c.config.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := c.ping(); err != nil {
				c.Close()
				return
			}
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		}
	}
}

// CloseWithMessage sends a close frame with code and reason, then closes.
func (c *Connection) CloseWithMessage(code int, reason string) error {
	c.sendMutex.Lock()
	if !c.IsClosed() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	}
	c.sendMutex.Unlock()
	return c.Close()
}

// Close closes the connection. It is safe to call more than once.
func (c *Connection) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		err = c.conn.Close()
	})
	return err
}

// Done is closed when the connection closes.
func (c *Connection) Done() <-chan struct{} {
	return c.closed
}

// IsClosed returns whether the connection is closed.
func (c *Connection) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// RemoteAddr returns the remote network address.
func (c *Connection) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
