package widget

import (
	"encoding/json"
	"fmt"
)

// EventType enumerates the realtime event kinds the backend emits
type EventType string

const (
	EventConnected       EventType = "connected"
	EventMerchantMessage EventType = "merchant_message"
	EventPing            EventType = "ping"
	EventPong            EventType = "pong"
)

// Event is the normalized shape every transport delivers to the engine.
// Consumers never need to know which transport produced it.
type Event struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// IsHeartbeat reports whether the event is transport liveness traffic
// that must be filtered before delivery to the message handler.
func (e Event) IsHeartbeat() bool {
	return e.Type == EventPing || e.Type == EventPong
}

// DecodeEvent parses a raw realtime payload into an Event, unwrapping the
// nested envelope some backend paths produce ({type, data:{type, data}}).
func DecodeEvent(raw []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil {
		return Event{}, fmt.Errorf("malformed realtime event: %w", err)
	}
	if event.Type == "" {
		return Event{}, fmt.Errorf("realtime event missing type")
	}

	// Unwrap one level of double-wrapping when the inner payload is
	// itself a typed envelope.
	if len(event.Data) > 0 {
		var inner Event
		if err := json.Unmarshal(event.Data, &inner); err == nil && knownEventType(inner.Type) {
			return inner, nil
		}
	}
	return event, nil
}

func knownEventType(t EventType) bool {
	switch t {
	case EventConnected, EventMerchantMessage, EventPing, EventPong:
		return true
	default:
		return false
	}
}

// MerchantMessage decodes the message payload of a merchant_message event
func (e Event) MerchantMessage() (Message, error) {
	if e.Type != EventMerchantMessage {
		return Message{}, fmt.Errorf("event %q carries no merchant message", e.Type)
	}
	var msg Message
	if err := json.Unmarshal(e.Data, &msg); err != nil {
		return Message{}, fmt.Errorf("malformed merchant message payload: %w", err)
	}
	return msg, nil
}
