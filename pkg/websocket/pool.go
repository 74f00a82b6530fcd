// Package websocket provides WebSocket connection handling.
package websocket

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

// Pool errors
var (
	ErrPoolClosed = errors.New("pool closed")
)

// Pool tracks live connections so they can be closed together. HTTP server
// shutdown does not reach hijacked connections.
type Pool struct {
	// connections is a map of connection IDs to connections.
	connections map[string]*Connection

	// mutex is used to synchronize access to the connections map and the closed flag.
	mutex  sync.RWMutex
	closed bool
}

// NewPool creates a new connection pool.
func NewPool() *Pool {
	return &Pool{
		connections: make(map[string]*Connection),
	}
}

// Add adds a connection to the pool.
func (p *Pool) Add(id string, conn *Connection) error {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.connections[id] = conn
	return nil
}

// Remove removes a connection from the pool.
func (p *Pool) Remove(id string) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.connections, id)
}

// Count returns the number of connections in the pool.
func (p *Pool) Count() int {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return len(p.connections)
}

// Close closes every connection with a going-away frame and rejects
// further additions.
func (p *Pool) Close() {
	p.mutex.Lock()
	p.closed = true
	conns := make([]*Connection, 0, len(p.connections))
	for id, conn := range p.connections {
		conns = append(conns, conn)
		delete(p.connections, id)
	}
	p.mutex.Unlock()

	for _, conn := range conns {
		_ = conn.CloseWithMessage(websocket.CloseGoingAway, "server shutting down")
	}
}
