package websocket

import (
	"testing"
	"time"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub()
	ch1, cancel1 := hub.Subscribe()
	ch2, cancel2 := hub.Subscribe()
	defer cancel1()
	defer cancel2()

	hub.Publish("event")

	for i, ch := range []<-chan interface{}{ch1, ch2} {
		select {
		case got := <-ch:
			if got != "event" {
				t.Errorf("subscriber %d: got %v", i, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: no event", i)
		}
	}
}

func TestHub_PublishNeverBlocks(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe()
	defer cancel()

	// Nobody reads; the buffer fills and further events drop.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			hub.Publish(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe()

	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel, got a value")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}

	// Double cancel and publish after cancel are safe.
	cancel()
	hub.Publish("late")
}
