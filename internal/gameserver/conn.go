package gameserver

import (
	"fmt"
	"sync"
)

// DefaultSendBuffer is the outbound queue depth of a connection.
const DefaultSendBuffer = 64

// Conn is one realtime client's outbound queue. Broadcasts push encoded
// messages; the connection's writer goroutine drains Events to the socket.
type Conn struct {
	id     string
	events chan []byte

	mu        sync.Mutex
	closed    bool
	sessionID string
}

// NewConn creates a Conn with the given id.
//
// Precondition: id must be non-empty.
// Postcondition: Returns a Conn with an open events channel.
func NewConn(id string, bufferSize int) *Conn {
	if bufferSize <= 0 {
		bufferSize = DefaultSendBuffer
	}
	return &Conn{
		id:     id,
		events: make(chan []byte, bufferSize),
	}
}

// ID returns the connection identifier.
func (c *Conn) ID() string { return c.id }

// Push enqueues data without blocking.
//
// Postcondition: Returns an error if the connection is closed or its buffer is full.
func (c *Conn) Push(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("connection %s is closed", c.id)
	}
	select {
	case c.events <- data:
		return nil
	default:
		return fmt.Errorf("connection %s send buffer full", c.id)
	}
}

// Events returns the read-only outbound channel. It is closed by Close.
func (c *Conn) Events() <-chan []byte {
	return c.events
}

// Close closes the outbound channel. It is idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// SessionID returns the session this connection is attached to, or "".
func (c *Conn) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

func (c *Conn) bind(sessionID string) (previous string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	previous = c.sessionID
	c.sessionID = sessionID
	return previous
}

// unbindFrom clears the binding only if it still names sessionID.
func (c *Conn) unbindFrom(sessionID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionID != sessionID {
		return false
	}
	c.sessionID = ""
	return true
}
