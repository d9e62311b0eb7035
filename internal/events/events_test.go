package events

import (
	"testing"
	"time"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.Subscribe(EventBatchProgress)

	bus.Publish(&BatchProgressEvent{
		BaseEvent: NewBase(EventBatchProgress),
		BatchID:   "batch-1",
		Progress:  42,
	})

	select {
	case received := <-ch:
		progress, ok := received.(*BatchProgressEvent)
		if !ok {
			t.Fatal("Expected BatchProgressEvent")
		}
		if progress.BatchID != "batch-1" {
			t.Errorf("Expected batch id 'batch-1', got '%s'", progress.BatchID)
		}
		if progress.Progress != 42 {
			t.Errorf("Expected progress 42, got %d", progress.Progress)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Timeout waiting for event")
	}
}

func TestEventBus_DifferentEventTypes(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	progressCh := bus.Subscribe(EventBatchProgress)
	unitsCh := bus.Subscribe(EventUnitsChanged)

	bus.Publish(&BatchProgressEvent{BaseEvent: NewBase(EventBatchProgress)})

	select {
	case <-progressCh:
	case <-time.After(100 * time.Millisecond):
		t.Error("Progress subscriber didn't receive event")
	}

	select {
	case <-unitsCh:
		t.Error("Units subscriber received wrong event type")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventBus_SubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	allCh := bus.SubscribeAll()

	bus.Publish(&BatchProgressEvent{BaseEvent: NewBase(EventBatchProgress)})
	bus.Publish(&UnitsChangedEvent{BaseEvent: NewBase(EventUnitsChanged), Count: 3})

	count := 0
	for i := 0; i < 2; i++ {
		select {
		case <-allCh:
			count++
		case <-time.After(100 * time.Millisecond):
		}
	}

	if count != 2 {
		t.Errorf("Expected to receive 2 events, got %d", count)
	}
}

func TestEventBus_NonBlocking(t *testing.T) {
	bus := NewEventBus(2)
	defer bus.Close()

	ch := bus.Subscribe(EventFileProgress)

	for i := 0; i < 10; i++ {
		bus.Publish(&FileProgressEvent{BaseEvent: NewBase(EventFileProgress), FileIndex: i})
	}

	if got := bus.GetDroppedEventCount(); got != 8 {
		t.Errorf("dropped = %d, want 8", got)
	}

	count := 0
	for {
		select {
		case <-ch:
			count++
		case <-time.After(10 * time.Millisecond):
			goto done
		}
	}
done:

	if count != 2 {
		t.Errorf("received %d events, want 2", count)
	}
}

func TestEventBus_Close(t *testing.T) {
	bus := NewEventBus(10)

	ch := bus.Subscribe(EventBatchFailed)

	bus.Close()

	_, ok := <-ch
	if ok {
		t.Error("Channel should be closed after bus.Close()")
	}

	// Publishing after close should not panic
	bus.Publish(&BatchFailedEvent{BaseEvent: NewBase(EventBatchFailed)})
}

func TestEventBus_UnsubscribeAll(t *testing.T) {
	bus := NewEventBus(10)
	defer bus.Close()

	ch := bus.SubscribeAll()
	bus.UnsubscribeAll(ch)

	if _, ok := <-ch; ok {
		t.Error("Channel should be closed after UnsubscribeAll")
	}

	// Must not panic on a removed channel
	bus.Publish(&SelectionChangedEvent{BaseEvent: NewBase(EventSelectionChanged)})
}
