package events

import (
	"testing"
	"time"
)

func TestBusFanOut(t *testing.T) {
	bus := NewBus()
	chA, cancelA := bus.Subscribe()
	chB, cancelB := bus.Subscribe()
	defer cancelA()
	defer cancelB()

	bus.Publish(TypeDetectionStarted, DetectionStarted{StationID: 1, TrackID: 2})

	for name, ch := range map[string]<-chan Event{"a": chA, "b": chB} {
		select {
		case event := <-ch:
			if event.Type != TypeDetectionStarted {
				t.Fatalf("subscriber %s got %s", name, event.Type)
			}
			payload, ok := event.Payload.(DetectionStarted)
			if !ok || payload.StationID != 1 {
				t.Fatalf("subscriber %s payload = %+v", name, event.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s never received the event", name)
		}
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	bus := NewBus()
	_, cancel := bus.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		// Overflow the subscriber buffer; extra events must be dropped.
		for i := 0; i < subscriberBuffer*4; i++ {
			bus.Publish(TypeStationDegraded, StationDegraded{StationID: int64(i)})
		}
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	bus := NewBus()
	ch, cancel := bus.Subscribe()
	cancel()

	bus.Publish(TypeDetectionFinalized, DetectionFinalized{DetectionID: 7})
	if _, ok := <-ch; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
	// Double cancel is safe.
	cancel()
}
