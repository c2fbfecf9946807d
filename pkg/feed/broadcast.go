package feed

import (
	"context"
	"sync"
)

// Broadcaster fans updates out to every registered listener. Each listener
// owns a buffered channel, so two dashboards watching the feed both see the
// full event stream.
type Broadcaster struct {
	mu        sync.Mutex
	listeners map[int]chan Update
	nextID    int
	buffer    int
}

// NewBroadcaster creates a broadcaster; every listener channel gets the
// given buffer size.
func NewBroadcaster(buffer int) *Broadcaster {
	return &Broadcaster{
		listeners: make(map[int]chan Update),
		buffer:    buffer,
	}
}

// Send publishes an update to all listeners (non-blocking with drop on full buffer).
func (b *Broadcaster) Send(update Update) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.listeners {
		select {
		case ch <- update:
		default:
			// drop if this listener is slow; keep simple
		}
	}
}

// Listen registers a listener and returns its channel plus a cancel function.
// The channel is closed once the listener is cancelled or ctx is done.
func (b *Broadcaster) Listen(ctx context.Context) (<-chan Update, context.CancelFunc) {
	listenerCtx, cancel := context.WithCancel(ctx)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Update, b.buffer)
	b.listeners[id] = ch
	b.mu.Unlock()

	go func() {
		<-listenerCtx.Done()
		b.mu.Lock()
		delete(b.listeners, id)
		close(ch)
		b.mu.Unlock()
	}()

	return ch, cancel
}
