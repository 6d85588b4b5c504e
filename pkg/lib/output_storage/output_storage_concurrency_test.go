package output_storage

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// drainUntilStopped reads through a cursor until the storage stops.
func drainUntilStopped(c *Cursor) string {
	var out []byte
	for {
		out = append(out, c.ReadAvailable()...)
		if _, ok := <-c.Notify(); !ok {
			out = append(out, c.ReadAvailable()...)
			return string(out)
		}
	}
}

func TestCursor_ConcurrentReadersWhileAppending(t *testing.T) {
	s := RunNewOutputStorage()

	const N = 300
	expected := make([]byte, 0, N*4)
	for i := 1; i <= N; i++ {
		expected = append(expected, []byte(fmt.Sprintf("%d\n", i))...)
	}

	const readers = 10
	cursors := make([]*Cursor, 0, readers)
	for i := 0; i < readers; i++ {
		cursors = append(cursors, s.NewCursor())
	}

	go func() {
		for i := 1; i <= N; i++ {
			_, _ = s.Write([]byte(fmt.Sprintf("%d\n", i)))
			time.Sleep(time.Microsecond * 200)
		}
		s.Stop()
	}()

	var wg sync.WaitGroup
	wg.Add(readers)
	outs := make([]string, readers)
	for i := 0; i < readers; i++ {
		go func() {
			defer wg.Done()
			outs[i] = drainUntilStopped(cursors[i])
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("timeout waiting for readers to finish")
	}

	for i := 0; i < readers; i++ {
		if outs[i] != string(expected) {
			t.Fatalf("reader %d mismatch: got %d bytes, want %d", i, len(outs[i]), len(expected))
		}
	}
}

func TestCursor_ConcurrentWriters(t *testing.T) {
	s := RunNewOutputStorage()
	defer s.Stop()

	c := s.NewCursor()
	defer c.Close()

	const writers, perWriter = 8, 100
	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_, _ = s.Write([]byte("x"))
			}
		}()
	}
	wg.Wait()

	if got := s.Len(); got != writers*perWriter {
		t.Fatalf("expected %d bytes, got %d", writers*perWriter, got)
	}
	cnt := 0
	for _, ok := c.Next(); ok; _, ok = c.Next() {
		cnt++
	}
	if cnt != writers*perWriter {
		t.Fatalf("expected %d chunks, got %d", writers*perWriter, cnt)
	}
}
