package eventbus

import "testing"

func TestPublishReachesAllSubscribers(t *testing.T) {
	bus := New()
	defer bus.Close()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()

	bus.Publish("connected")
	if v := <-ch1; v != "connected" {
		t.Fatalf("ch1 got %v", v)
	}
	if v := <-ch2; v != "connected" {
		t.Fatalf("ch2 got %v", v)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := New()
	defer bus.Close()
	ch := bus.Subscribe()

	for i := 0; i < subBuffer+10; i++ {
		bus.Publish(i)
	}
	// The buffer holds the first subBuffer events; the rest were dropped
	// and Publish never blocked.
	if len(ch) != subBuffer {
		t.Fatalf("buffered %d events, want %d", len(ch), subBuffer)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := New()
	defer bus.Close()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	bus.Publish("late")
}

func TestCloseClosesAllChannels(t *testing.T) {
	bus := New()
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	bus.Close()
	if _, ok := <-ch1; ok {
		t.Fatal("ch1 should be closed")
	}
	if _, ok := <-ch2; ok {
		t.Fatal("ch2 should be closed")
	}
	// Subscribe after close yields an already-closed channel.
	if _, ok := <-bus.Subscribe(); ok {
		t.Fatal("post-close Subscribe should be closed")
	}
}

func TestUnsubscribeAfterClose(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Close()
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("panic on Unsubscribe after Close: %v", r)
		}
	}()
	bus.Unsubscribe(ch)
}
