// Package events delivers scan and deletion messages to consumers.
// Delivery is best-effort: a sink never blocks or fails its producer.
package events

import (
	"sync"
	"sync/atomic"
)

// Event is a message emitted by a scan or a deletion batch.
type Event interface {
	EventKind() string
}

// Sink receives events. Emit must not block for long and must be safe
// for concurrent use.
type Sink interface {
	Emit(ev Event)
}

// Func adapts a function to a Sink.
type Func func(ev Event)

func (f Func) Emit(ev Event) { f(ev) }

// Discard drops every event.
var Discard Sink = Func(func(Event) {})

// Chan delivers events on a buffered channel, dropping them when the buffer
// is full instead of blocking the producer.
type Chan struct {
	ch      chan Event
	dropped atomic.Int64
	onDrop  func()

	mu     sync.RWMutex
	closed bool
}

// NewChan creates a channel sink with the given buffer size.
func NewChan(size int) *Chan {
	if size <= 0 {
		size = 1
	}
	return &Chan{ch: make(chan Event, size)}
}

// OnDrop registers a callback invoked for every dropped event. It may be
// called while events are being emitted.
func (c *Chan) OnDrop(fn func()) {
	c.mu.Lock()
	c.onDrop = fn
	c.mu.Unlock()
}

// C returns the receive side of the sink.
func (c *Chan) C() <-chan Event { return c.ch }

// Dropped returns the number of events lost to a full buffer.
func (c *Chan) Dropped() int64 { return c.dropped.Load() }

func (c *Chan) Emit(ev Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
		if c.onDrop != nil {
			c.onDrop()
		}
	}
}

// Close closes the channel. Later events are discarded.
func (c *Chan) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.ch)
	}
}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(ev)
		}
	}
}
