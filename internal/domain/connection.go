package domain

import (
	"sync"

	"github.com/google/uuid"
)

type Role string

const (
	RoleHost  Role = "host"
	RoleGuest Role = "guest"
)

func (r Role) Valid() bool {
	return r == RoleHost || r == RoleGuest
}

type ConnectionState string

const (
	ConnectionUnbound ConnectionState = "unbound"
	ConnectionBound   ConnectionState = "bound"
	ConnectionClosed  ConnectionState = "closed"
)

const connectionQueueSize = 64

// Connection is a live signaling socket. It is Unbound until a successful
// join, Bound to exactly one call and role afterwards, and Closed once the
// transport goes away.
type Connection struct {
	ID     string
	Events chan ServerMessage

	mu       sync.RWMutex
	state    ConnectionState
	clientID string
	callID   string
	role     Role
}

func NewConnection() *Connection {
	return &Connection{
		ID:     uuid.New().String(),
		Events: make(chan ServerMessage, connectionQueueSize),
		state:  ConnectionUnbound,
	}
}

// Binding returns the current binding; ok is false unless the connection is Bound.
func (c *Connection) Binding() (clientID, callID string, role Role, ok bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != ConnectionBound {
		return "", "", "", false
	}
	return c.clientID, c.callID, c.role, true
}

func (c *Connection) State() ConnectionState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

func (c *Connection) Bind(clientID, callID string, role Role) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ConnectionClosed {
		return
	}
	c.state = ConnectionBound
	c.clientID = clientID
	c.callID = callID
	c.role = role
}

func (c *Connection) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ConnectionClosed {
		return
	}
	c.state = ConnectionUnbound
	c.clientID, c.callID, c.role = "", "", ""
}

// EnqueueEvent queues msg for the writer. It returns false when the queue
// is full or the connection is closed; the message is dropped in that case.
func (c *Connection) EnqueueEvent(msg ServerMessage) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state == ConnectionClosed {
		return false
	}
	select {
	case c.Events <- msg:
		return true
	default:
		return false
	}
}

// Close marks the connection Closed and releases the writer. It returns the
// binding held at close time.
func (c *Connection) Close() (clientID, callID string, role Role, wasBound bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == ConnectionClosed {
		return "", "", "", false
	}
	wasBound = c.state == ConnectionBound
	clientID, callID, role = c.clientID, c.callID, c.role
	c.state = ConnectionClosed
	close(c.Events)
	return clientID, callID, role, wasBound
}
