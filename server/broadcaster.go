package server

import (
	"sync"
	"sync/atomic"

	"github.com/spindrift-labs/statserve/tool"
)

// streamEvent is a lifecycle event stamped with a stream sequence number.
type streamEvent struct {
	Seq   uint64
	Event tool.Event
}

// subscriberBuffer bounds each subscriber channel. A subscriber that falls
// this far behind starts losing events rather than stalling publishers.
const subscriberBuffer = 64

// Broadcaster fans invocation lifecycle events out to SSE subscribers.
// Publishing never blocks; slow subscribers drop events.
type Broadcaster struct {
	mu     sync.Mutex
	seq    atomic.Uint64
	subs   map[chan streamEvent]struct{}
	closed bool
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan streamEvent]struct{})}
}

// Sink returns an EventSink that publishes into this broadcaster.
func (b *Broadcaster) Sink() tool.EventSink {
	return func(e tool.Event) { b.Publish(e) }
}

// Publish stamps the event with the next sequence number and delivers it to
// every live subscriber.
func (b *Broadcaster) Publish(e tool.Event) {
	evt := streamEvent{Seq: b.seq.Add(1), Event: e}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for ch := range b.subs {
		select {
		case ch <- evt:
		default:
		}
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called when the subscriber is done.
func (b *Broadcaster) Subscribe() (<-chan streamEvent, func()) {
	ch := make(chan streamEvent, subscriberBuffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, cancel
}

// Close shuts the broadcaster down and closes all subscriber channels.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
