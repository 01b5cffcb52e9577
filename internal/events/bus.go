// Package events provides an in-process event bus that fans box and channel
// state changes out to subscribers such as the WebSocket hub.
package events

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

// EventType identifies the kind of event.
type EventType string

const (
	// Box lifecycle events
	BoxConnected    EventType = "box.connected"
	BoxDisconnected EventType = "box.disconnected"
	BoxUnavailable  EventType = "box.unavailable"

	// BoxInterlockChanged is emitted when a monitored key switch changes position.
	BoxInterlockChanged EventType = "box.interlock_changed"

	// ChannelStateChanged is emitted after a confirmed set or when a refresh
	// observes different values than the cache held.
	ChannelStateChanged EventType = "channel.state_changed"
)

// AllEventTypes lists every event type the daemon emits.
var AllEventTypes = []EventType{
	BoxConnected,
	BoxDisconnected,
	BoxUnavailable,
	BoxInterlockChanged,
	ChannelStateChanged,
}

// Event is a single event emitted by a producer.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// NewEvent creates an Event, marshaling data to JSON.
// If marshaling fails the Data field is set to null.
func NewEvent(t EventType, data any) Event {
	raw, err := json.Marshal(data)
	if err != nil {
		raw = []byte("null")
	}
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		Data:      raw,
	}
}

// BoxID returns the box an event concerns. Box events carry it as "id",
// channel events as "box_id". Events without one return "".
func BoxID(e Event) string {
	var ref struct {
		ID    string `json:"id"`
		BoxID string `json:"box_id"`
	}
	if err := json.Unmarshal(e.Data, &ref); err != nil {
		return ""
	}
	if ref.BoxID != "" {
		return ref.BoxID
	}
	return ref.ID
}

// ParseEventTypes parses a comma separated list of event types. Entries may
// be a full type or a prefix ending in '.', e.g. "box." for every box event.
// An empty string yields nil, which matches everything.
func ParseEventTypes(s string) ([]EventType, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var out []EventType
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !knownTypeOrPrefix(part) {
			return nil, fmt.Errorf("unknown event type %q", part)
		}
		out = append(out, EventType(part))
	}
	return out, nil
}

func knownTypeOrPrefix(s string) bool {
	for _, t := range AllEventTypes {
		if string(t) == s || (strings.HasSuffix(s, ".") && strings.HasPrefix(string(t), s)) {
			return true
		}
	}
	return false
}

// Matches reports whether t is selected by filter. A nil filter matches all.
func Matches(filter []EventType, t EventType) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		if f == t || (strings.HasSuffix(string(f), ".") && strings.HasPrefix(string(t), string(f))) {
			return true
		}
	}
	return false
}

// SubscriberFunc is a callback invoked for each event.
// Implementations must not block; slow subscribers should buffer internally.
type SubscriberFunc func(Event)

// Bus is a synchronous fan-out event bus. Publish blocks until every
// subscriber has been called.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]SubscriberFunc
	nextID      int
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subscribers: make(map[int]SubscriberFunc),
	}
}

// Subscribe registers a callback and returns an unsubscribe function.
func (b *Bus) Subscribe(fn SubscriberFunc) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.subscribers, id)
		b.mu.Unlock()
	}
}

// Publish sends an event to all current subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]SubscriberFunc, 0, len(b.subscribers))
	for _, fn := range b.subscribers {
		subs = append(subs, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}
