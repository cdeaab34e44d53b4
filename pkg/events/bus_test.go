package events

import (
	"fmt"
	"testing"
	"time"
)

func TestMemoryBusPublishSubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventContractFailed, "OrderContract", "test"))

	select {
	case event := <-ch:
		if event.Type != EventContractFailed {
			t.Errorf("expected EventContractFailed, got %s", event.Type)
		}
		if event.Contract != "OrderContract" {
			t.Errorf("expected contract OrderContract, got %q", event.Contract)
		}
		if event.Data != "test" {
			t.Errorf("expected data 'test', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}
}

func TestMemoryBusFilter(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe(EventSampleWritten)
	defer bus.Unsubscribe(ch)

	bus.Publish(NewEvent(EventContractFailed, "c", "should-be-filtered"))
	bus.Publish(NewEvent(EventSampleWritten, "c", "should-arrive"))

	select {
	case event := <-ch:
		if event.Type != EventSampleWritten {
			t.Errorf("expected EventSampleWritten, got %s", event.Type)
		}
		if event.Data != "should-arrive" {
			t.Errorf("expected data 'should-arrive', got %v", event.Data)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("timed out waiting for event")
	}

	select {
	case event := <-ch:
		t.Errorf("unexpected event: %v", event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMemoryBusMultipleSubscribers(t *testing.T) {
	bus := NewMemoryBus(0)
	ch1 := bus.Subscribe()
	ch2 := bus.Subscribe()
	defer bus.Unsubscribe(ch1)
	defer bus.Unsubscribe(ch2)

	bus.Publish(NewEvent(EventContractFailed, "c", nil))

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case event := <-ch:
			if event.Type != EventContractFailed {
				t.Errorf("expected EventContractFailed, got %s", event.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestMemoryBusHistory(t *testing.T) {
	bus := NewMemoryBus(0)

	t1 := time.Now()
	bus.Publish(NewEvent(EventContractFailed, "c", "first"))
	time.Sleep(10 * time.Millisecond)
	t2 := time.Now()
	bus.Publish(NewEvent(EventSampleWritten, "c", "second"))

	all := bus.History(t1)
	if len(all) != 2 {
		t.Fatalf("expected 2 events, got %d", len(all))
	}

	since := bus.History(t2)
	if len(since) != 1 {
		t.Fatalf("expected 1 event since t2, got %d", len(since))
	}
	if since[0].Data != "second" {
		t.Errorf("expected 'second', got %v", since[0].Data)
	}
}

func TestMemoryBusHistoryLimit(t *testing.T) {
	bus := NewMemoryBus(3)
	for i := 0; i < 5; i++ {
		bus.Publish(NewEvent(EventContractFailed, "c", fmt.Sprint(i)))
	}

	history := bus.History(time.Time{})
	if len(history) != 3 {
		t.Fatalf("expected 3 events, got %d", len(history))
	}
	if history[0].Data != "2" || history[2].Data != "4" {
		t.Errorf("expected the newest events, got %v..%v", history[0].Data, history[2].Data)
	}
}

func TestMemoryBusHistoryEmpty(t *testing.T) {
	bus := NewMemoryBus(0)
	events := bus.History(time.Time{})
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d", len(events))
	}
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus(0)
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, ok := <-ch
	if ok {
		t.Error("expected channel to be closed")
	}
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventContractFailed, "OrderContract", map[string]string{"id": "x"})

	if event.Type != EventContractFailed {
		t.Errorf("expected EventContractFailed, got %s", event.Type)
	}
	if event.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}
