// Package events carries the engine's outward-facing notifications on a
// best-effort in-process bus. Publishing never blocks the pipeline; slow
// subscribers lose events rather than stalling detection.
package events

import (
	"sync"
	"time"
)

// Type names an event kind.
type Type string

const (
	TypeDetectionStarted   Type = "detection_started"
	TypeDetectionFinalized Type = "detection_finalized"
	TypeStationDegraded    Type = "station_degraded"
)

// DetectionStarted fires when a track first appears on a station.
type DetectionStarted struct {
	StationID int64
	TrackID   int64
	Title     string
	Artist    string
	At        time.Time
}

// DetectionFinalized fires when a play session closes.
type DetectionFinalized struct {
	DetectionID int64
	StationID   int64
	TrackID     int64
	Title       string
	Artist      string
	Duration    float64
	Confidence  float64
	Method      string
	At          time.Time
}

// StationDegraded fires when a station's stream stops cooperating.
type StationDegraded struct {
	StationID int64
	Name      string
	Reason    string
	At        time.Time
}

// Event is the envelope delivered to subscribers.
type Event struct {
	Type    Type
	Payload any
}

const subscriberBuffer = 16

// Bus is a fan-out channel bus. Subscribers receive buffered copies of every
// event published after they subscribed.
type Bus struct {
	mu   sync.Mutex
	subs []chan Event
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a new subscriber and returns its channel plus an
// unsubscribe function. The channel closes on unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	b.subs = append(b.subs, ch)
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			for i, sub := range b.subs {
				if sub == ch {
					b.subs = append(b.subs[:i], b.subs[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber without blocking. A full
// subscriber buffer drops the event for that subscriber only.
func (b *Bus) Publish(eventType Type, payload any) {
	b.mu.Lock()
	subs := make([]chan Event, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	event := Event{Type: eventType, Payload: payload}
	for _, sub := range subs {
		select {
		case sub <- event:
		default:
		}
	}
}
