package output_storage

// closedNotifier is handed to cursors of a stopped storage so waiters wake at once.
var closedNotifier = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// Cursor is a reader position in an OutputStorage. Next never blocks; callers
// wait on Notify between reads. A Cursor is not safe for concurrent use.
type Cursor struct {
	storage  *OutputStorage
	prev     *node
	notifier chan struct{}
}

// NewCursor returns a cursor positioned before the first chunk.
// The cursor subscribes to append notifications until Close.
func (s *OutputStorage) NewCursor() *Cursor {
	c := &Cursor{storage: s, prev: s.head}

	notifier, err := s.broadcaster.Subscribe()
	if err != nil {
		c.notifier = closedNotifier
	} else {
		c.notifier = notifier
	}

	return c
}

// Next returns the next unread chunk, or false if none is currently available.
func (c *Cursor) Next() ([]byte, bool) {
	next := c.prev.next.Load()
	if next == nil {
		return nil, false
	}
	c.prev = next
	return next.data, true
}

// ReadAvailable concatenates every chunk currently available.
func (c *Cursor) ReadAvailable() []byte {
	var out []byte
	for chunk, ok := c.Next(); ok; chunk, ok = c.Next() {
		out = append(out, chunk...)
	}
	return out
}

// Notify receives a value after appends and is closed once the storage stops.
// Notifications coalesce: one receive may stand for many appends.
func (c *Cursor) Notify() <-chan struct{} {
	return c.notifier
}

// Close releases the notification subscription.
func (c *Cursor) Close() {
	if c.notifier == closedNotifier {
		return
	}
	c.storage.broadcaster.Unsubscribe(c.notifier)
}
