// Package eventchan provides the one-directional push channel a setup
// backend uses to deliver events to a single client subscriber.
package eventchan

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"oulipoly-plane/internal/domain"
)

// Handler receives delivered events, one at a time, in send order.
type Handler func(ev domain.SetupEvent)

var nextID atomic.Uint64

// Channel is a FIFO, single-subscriber event conduit. Every Channel is a
// distinct object; events sent on one never reach another's subscriber.
type Channel struct {
	id     uint64
	logger *slog.Logger

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []domain.SetupEvent
	sub    *Subscription
	closed bool
	done   chan struct{}
}

// Subscription is the exclusive delivery handle of a Channel.
type Subscription struct {
	ch        *Channel
	handler   Handler
	cancelled atomic.Bool
}

// New creates a channel with a process-unique id.
func New(logger *slog.Logger) *Channel {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Channel{
		id:     nextID.Add(1),
		logger: logger,
		done:   make(chan struct{}),
	}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// ID returns the channel's unique id.
func (c *Channel) ID() uint64 { return c.id }

// Subscribe attaches handler and starts delivery. Events sent before
// Subscribe are buffered and delivered first. A channel accepts exactly
// one subscription over its lifetime.
func (c *Channel) Subscribe(handler Handler) (*Subscription, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sub != nil {
		return nil, domain.ErrAlreadySubscribed
	}
	c.sub = &Subscription{ch: c, handler: handler}
	go c.pump(c.sub)
	return c.sub, nil
}

// Send enqueues ev for delivery. It never blocks on the subscriber.
func (c *Channel) Send(ev domain.SetupEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ErrChannelClosed
	}
	c.queue = append(c.queue, ev)
	c.cond.Signal()
	return nil
}

// Close stops accepting events. Already queued events are still delivered
// to an active subscriber. Close is idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.cond.Broadcast()
}

// Done is closed once the delivery goroutine has exited, which happens
// after Close drains the queue or when the subscription is cancelled.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Cancel detaches the subscription. Queued and future events are dropped,
// never handed to another handler.
func (s *Subscription) Cancel() {
	if s.cancelled.Swap(true) {
		return
	}
	s.ch.mu.Lock()
	s.ch.queue = nil
	s.ch.cond.Broadcast()
	s.ch.mu.Unlock()
}

// Active reports whether the subscription still receives events.
func (s *Subscription) Active() bool { return !s.cancelled.Load() }

func (c *Channel) pump(sub *Subscription) {
	defer close(c.done)
	for {
		c.mu.Lock()
		for len(c.queue) == 0 && !c.closed && sub.Active() {
			c.cond.Wait()
		}
		if !sub.Active() || len(c.queue) == 0 {
			dropped := len(c.queue)
			c.queue = nil
			c.mu.Unlock()
			if dropped > 0 {
				c.logger.Debug("channel dropped undelivered events", "channel", c.id, "count", dropped)
			}
			return
		}
		ev := c.queue[0]
		c.queue[0] = nil
		c.queue = c.queue[1:]
		c.mu.Unlock()

		c.deliver(sub, ev)
	}
}

func (c *Channel) deliver(sub *Subscription, ev domain.SetupEvent) {
	if !sub.Active() {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("event handler panicked",
				"channel", c.id,
				"event", string(ev.EventKind()),
				"panic", r,
			)
		}
	}()
	sub.handler(ev)
}
