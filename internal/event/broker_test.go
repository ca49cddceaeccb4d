package event

import (
	"sync"
	"testing"
)

func TestBroker_PublishInOrder(t *testing.T) {
	b := NewBroker[int]("test", nil)
	ch, cancel := b.Subscribe(10)
	defer cancel()

	for i := range 5 {
		b.Publish(i)
	}
	for want := range 5 {
		if got := <-ch; got != want {
			t.Fatalf("received %d, want %d", got, want)
		}
	}
}

func TestBroker_DropsForFullSubscriber(t *testing.T) {
	b := NewBroker[string]("test", nil)
	slow, cancelSlow := b.Subscribe(1)
	defer cancelSlow()
	fast, cancelFast := b.Subscribe(3)
	defer cancelFast()

	b.Publish("a")
	b.Publish("b")
	b.Publish("c")

	if got := <-slow; got != "a" {
		t.Errorf("slow subscriber got %q, want a", got)
	}
	select {
	case v := <-slow:
		t.Errorf("slow subscriber should have dropped later events, got %q", v)
	default:
	}
	for _, want := range []string{"a", "b", "c"} {
		if got := <-fast; got != want {
			t.Errorf("fast subscriber got %q, want %q", got, want)
		}
	}
}

func TestBroker_CancelClosesChannel(t *testing.T) {
	b := NewBroker[int]("test", nil)
	ch, cancel := b.Subscribe(1)
	cancel()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after cancel")
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}
	b.Publish(1)
}

func TestBroker_Close(t *testing.T) {
	b := NewBroker[int]("test", nil)
	ch, cancel := b.Subscribe(1)
	b.Close()
	cancel()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}
	late, _ := b.Subscribe(1)
	if _, ok := <-late; ok {
		t.Error("subscribing after Close should return a closed channel")
	}
}

func TestBroker_ConcurrentPublish(t *testing.T) {
	b := NewBroker[int]("test", nil)
	ch, cancel := b.Subscribe(1000)
	defer cancel()

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 50 {
				b.Publish(i*100 + j)
			}
		}()
	}
	wg.Wait()

	if got := len(ch); got != 500 {
		t.Errorf("received %d events, want 500", got)
	}
}
