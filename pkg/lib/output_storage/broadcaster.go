package output_storage

import (
	"errors"
	"sync"
)

// ErrBroadcasterStopped is returned by Subscribe after Stop.
var ErrBroadcasterStopped = errors.New("failed to subscribe: broadcaster is stopped")

// Broadcaster fans a published value out to every subscriber. Delivery is
// latest-wins: a subscriber that has not consumed its previous value gets it
// replaced, so publishers never block on slow readers.
type Broadcaster[T any] struct {
	messageReceiver chan T

	// publishMu guards closing messageReceiver against concurrent Publish.
	publishMu sync.RWMutex
	closed    bool

	mu          sync.Mutex
	subscribers map[chan T]struct{}
	stopped     bool
}

func RunNewBroadcaster[T any]() *Broadcaster[T] {
	broadcaster := &Broadcaster[T]{
		messageReceiver: make(chan T, 1),
		subscribers:     make(map[chan T]struct{}),
	}

	go broadcaster.start()

	return broadcaster
}

func (broadcaster *Broadcaster[T]) start() {
	for msg := range broadcaster.messageReceiver {
		broadcaster.mu.Lock()
		for s := range broadcaster.subscribers {
			offerLatest(s, msg)
		}
		broadcaster.mu.Unlock()
	}

	broadcaster.mu.Lock()
	for s := range broadcaster.subscribers {
		close(s)
	}
	broadcaster.subscribers = map[chan T]struct{}{}
	broadcaster.stopped = true
	broadcaster.mu.Unlock()

	logger.Debug("broadcaster stopped")
}

// offerLatest sends msg without blocking, dropping the pending value if the
// buffer is full. Only the broadcaster goroutine sends, so the retry cannot block.
func offerLatest[T any](ch chan T, msg T) {
	select {
	case ch <- msg:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- msg:
	default:
	}
}

// Stop closes the broadcaster. Subscriber channels are closed once every
// value published before Stop has been fanned out. Stop is idempotent.
func (broadcaster *Broadcaster[T]) Stop() {
	broadcaster.publishMu.Lock()
	defer broadcaster.publishMu.Unlock()
	if broadcaster.closed {
		return
	}
	broadcaster.closed = true
	close(broadcaster.messageReceiver)
}

func (broadcaster *Broadcaster[T]) Subscribe() (chan T, error) {
	// A buffer of 1 lets the fan-out replace stale values without blocking.
	ch := make(chan T, 1)
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if broadcaster.stopped {
		return nil, ErrBroadcasterStopped
	}
	broadcaster.subscribers[ch] = struct{}{}
	return ch, nil
}

func (broadcaster *Broadcaster[T]) Unsubscribe(subscriberSender chan T) {
	broadcaster.mu.Lock()
	defer broadcaster.mu.Unlock()
	if _, ok := broadcaster.subscribers[subscriberSender]; !ok {
		// Already closed by the fan-out on Stop.
		return
	}
	delete(broadcaster.subscribers, subscriberSender)
	close(subscriberSender)
}

// Publish queues msg for fan-out. Publishing after Stop is a no-op.
func (broadcaster *Broadcaster[T]) Publish(msg T) {
	broadcaster.publishMu.RLock()
	defer broadcaster.publishMu.RUnlock()
	if broadcaster.closed {
		return
	}

	select {
	case broadcaster.messageReceiver <- msg:
	default:
		// Receiver is full: replace the queued value with the newer one.
		select {
		case <-broadcaster.messageReceiver:
		default:
		}
		broadcaster.messageReceiver <- msg
	}
}
