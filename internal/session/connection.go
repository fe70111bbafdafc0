package session

import (
	"sync/atomic"
	"time"

	"github.com/aishgopalia-innov/sse-poc/internal/auth"
)

// WriterState tracks the lifecycle of a connection's writer.
//
// open → draining → closed. Draining begins when the disconnect signal or a
// write error is observed; the connection leaves the indexes as the first
// step. Closed is terminal: the send queue accepts nothing and the id is
// retired.
type WriterState int32

const (
	StateOpen WriterState = iota
	StateDraining
	StateClosed
)

func (s WriterState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// EnqueueResult is the outcome of a non-blocking enqueue attempt.
type EnqueueResult int

const (
	Delivered EnqueueResult = iota
	DroppedFull
	DroppedClosed
)

func (r EnqueueResult) String() string {
	switch r {
	case Delivered:
		return "delivered"
	case DroppedFull:
		return "dropped_full"
	case DroppedClosed:
		return "dropped_closed"
	default:
		return "unknown"
	}
}

// Connection is one live subscriber. The channel set is fixed at accept
// time; the send queue has many producers (publish handlers) and exactly
// one consumer (the connection's writer).
type Connection struct {
	ID          string
	Principal   auth.Principal
	Channels    []string
	ConnectedAt time.Time

	send  chan *Envelope
	state int32 // WriterState, accessed atomically

	messagesSent int64 // owned by the writer, read by stats
}

func newConnection(id string, principal auth.Principal, channels []string, queueSize int) *Connection {
	return &Connection{
		ID:          id,
		Principal:   principal,
		Channels:    channels,
		ConnectedAt: time.Now(),
		send:        make(chan *Envelope, queueSize),
		state:       int32(StateOpen),
	}
}

// TryEnqueue offers an envelope to the send queue without blocking.
// Publishers never wait on a subscriber's writer: a full queue sheds the
// envelope for this subscriber only.
func (c *Connection) TryEnqueue(env *Envelope) EnqueueResult {
	if c.State() != StateOpen {
		return DroppedClosed
	}
	select {
	case c.send <- env:
		return Delivered
	default:
		return DroppedFull
	}
}

// Queue exposes the consumer end of the send queue to the writer.
func (c *Connection) Queue() <-chan *Envelope {
	return c.send
}

// State returns the current writer state.
func (c *Connection) State() WriterState {
	return WriterState(atomic.LoadInt32(&c.state))
}

// beginDraining transitions open → draining. Returns false if the
// connection had already left the open state.
func (c *Connection) beginDraining() bool {
	return atomic.CompareAndSwapInt32(&c.state, int32(StateOpen), int32(StateDraining))
}

func (c *Connection) markClosed() {
	atomic.StoreInt32(&c.state, int32(StateClosed))
}

// RecordSent increments the per-connection delivery counter. Called by the
// writer after each successful wire write.
func (c *Connection) RecordSent() {
	atomic.AddInt64(&c.messagesSent, 1)
}

// MessagesSent returns how many records the writer has put on the wire.
func (c *Connection) MessagesSent() int64 {
	return atomic.LoadInt64(&c.messagesSent)
}
