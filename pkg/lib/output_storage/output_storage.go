package output_storage

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// node is an element of the singly linked list of output chunks.
// The list uses a sentinel head node so readers can hold a position before
// the first chunk arrives.
type node struct {
	data []byte
	next atomic.Pointer[node]
}

var logger = slog.New(slog.DiscardHandler)

// SetLogger replaces the package debug logger.
func SetLogger(l *slog.Logger) {
	if l != nil {
		logger = l.With("component", "output_storage")
	}
}

// OutputStorage is an append-only list of the merged stdout/stderr chunks of
// one tunnel process. Appends are serialized; readers walk the list without
// locks through a Cursor and are woken by the broadcaster on every append.
type OutputStorage struct {
	head *node // sentinel head, immutable

	mu   sync.Mutex
	tail *node

	size        atomic.Int64
	broadcaster *Broadcaster[struct{}]
}

// RunNewOutputStorage creates a new, empty OutputStorage and starts its notifier.
func RunNewOutputStorage() *OutputStorage {
	sentinel := &node{}
	return &OutputStorage{
		head:        sentinel,
		tail:        sentinel,
		broadcaster: RunNewBroadcaster[struct{}](),
	}
}

// Stop marks the storage as complete. Cursors still see every chunk appended
// before Stop, and their notification channels are closed.
func (s *OutputStorage) Stop() {
	if s == nil {
		return
	}

	s.broadcaster.Stop()
}

// Append adds data to the end of the list and wakes cursors.
// The slice is stored as-is; Write copies before appending.
func (s *OutputStorage) Append(data []byte) {
	if s == nil {
		return
	}

	newTail := &node{data: data}

	s.mu.Lock()
	s.tail.next.Store(newTail)
	s.tail = newTail
	s.mu.Unlock()

	s.size.Add(int64(len(data)))
	logger.Debug("appended chunk", "bytes", len(data))
	s.broadcaster.Publish(struct{}{})
}

// Len returns the total number of bytes appended so far.
func (s *OutputStorage) Len() int64 {
	if s == nil {
		return 0
	}
	return s.size.Load()
}
