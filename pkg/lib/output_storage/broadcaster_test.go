package output_storage

import (
	"testing"
	"time"
)

// helper: receive with timeout
func recvWithTimeout[T any](t *testing.T, ch <-chan T, d time.Duration) (T, bool) {
	t.Helper()
	var zero T
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(d):
		return zero, false
	}
}

// helper: assert no value within duration (a closed channel counts as no value)
func assertNoRecv[T any](t *testing.T, ch <-chan T, d time.Duration) {
	t.Helper()
	if v, ok := recvWithTimeout(t, ch, d); ok {
		t.Fatalf("unexpected receive: %v", v)
	}
}

func TestBroadcaster_SingleSubscriberReceives(t *testing.T) {
	b := RunNewBroadcaster[string]()
	defer b.Stop()

	ch, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish("hello")

	if v, ok := recvWithTimeout(t, ch, 200*time.Millisecond); !ok || v != "hello" {
		t.Fatalf("expected to receive 'hello', got ok=%v val=%q", ok, v)
	}
}

func TestBroadcaster_MultipleSubscribersReceive(t *testing.T) {
	b := RunNewBroadcaster[int]()
	defer b.Stop()

	ch1, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	b.Publish(1)
	if v, ok := recvWithTimeout(t, ch1, 200*time.Millisecond); !ok || v != 1 {
		t.Fatalf("ch1 did not receive initial message, ok=%v v=%d", ok, v)
	}

	ch2, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(2)

	if v, ok := recvWithTimeout(t, ch1, 200*time.Millisecond); !ok || v != 2 {
		t.Fatalf("ch1 did not receive broadcast 2, ok=%v v=%d", ok, v)
	}
	if v, ok := recvWithTimeout(t, ch2, 200*time.Millisecond); !ok || v != 2 {
		t.Fatalf("ch2 did not receive broadcast 2, ok=%v v=%d", ok, v)
	}
}

func TestBroadcaster_SlowSubscriberGetsLatest(t *testing.T) {
	b := RunNewBroadcaster[int]()
	defer b.Stop()

	slow, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	// Pre-fill so the fan-out has to replace the stale value
	slow <- -1
	fast, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(42)

	if v, ok := recvWithTimeout(t, fast, 200*time.Millisecond); !ok || v != 42 {
		t.Fatalf("fast did not receive 42, ok=%v v=%d", ok, v)
	}

	// fast received, so the fan-out has also visited slow
	if v, ok := recvWithTimeout(t, slow, 200*time.Millisecond); !ok || v != 42 {
		t.Fatalf("slow did not receive latest 42, ok=%v v=%d", ok, v)
	}
}

func TestBroadcaster_Unsubscribe(t *testing.T) {
	b := RunNewBroadcaster[int]()
	defer b.Stop()

	a, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}
	bch, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Publish(1)
	if v, ok := recvWithTimeout(t, a, 200*time.Millisecond); !ok || v != 1 {
		t.Fatalf("subscriber 'a' did not get initial message, ok=%v v=%d", ok, v)
	}
	<-bch

	b.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Fatalf("expected unsubscribed channel to be closed")
	}

	for i := 0; i < 3; i++ {
		b.Publish(100 + i)
		if v, ok := recvWithTimeout(t, bch, 200*time.Millisecond); !ok || v != 100+i {
			t.Fatalf("subscriber 'bch' missed message %d, ok=%v v=%d", 100+i, ok, v)
		}
	}

	// Unsubscribing twice must not panic
	b.Unsubscribe(a)
}

func TestBroadcaster_StopClosesSubscribersAndRejectsNew(t *testing.T) {
	b := RunNewBroadcaster[int]()

	ch, err := b.Subscribe()
	if err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	b.Stop()
	b.Stop()
	// Publishing after Stop is ignored
	b.Publish(7)

	if !waitClosed(ch, 500*time.Millisecond) {
		t.Fatalf("subscriber channel was not closed after Stop")
	}

	if _, err := b.Subscribe(); err == nil {
		t.Fatalf("expected Subscribe after Stop to fail")
	}
}

// waitClosed drains ch until it is closed or d elapses.
func waitClosed[T any](ch <-chan T, d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return true
			}
		case <-deadline:
			return false
		}
	}
}
