// Package events defines the change-event contract between the core services
// and whatever real-time sink is wired in (the websocket hub in this repo).
// Delivery is fire-and-forget: a failed publish never rolls back the mutation
// that produced it.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types emitted by the core after successful mutations.
const (
	PatientCreated = "patient:created"
	PatientUpdated = "patient:updated"
	BedCreated     = "bed:created"
	BedUpdated     = "bed:updated"
)

// Topics group events for subscribers.
const (
	TopicPatients = "patients"
	TopicBeds     = "beds"
)

// Event is a single change notification.
type Event struct {
	Type       string          `json:"type"`
	Topic      string          `json:"topic"`
	ResourceID string          `json:"resource_id,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Publisher delivers events to subscribers.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, event Event) error

func (f PublisherFunc) Publish(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Nop returns a Publisher that discards every event.
func Nop() Publisher {
	return PublisherFunc(func(context.Context, Event) error { return nil })
}

// New builds an Event with the timestamp set and the payload JSON-encoded.
// Marshal failures yield an event without data; the notification path must
// never fail a mutation.
func New(eventType, topic, resourceID string, payload interface{}) Event {
	e := Event{
		Type:       eventType,
		Topic:      topic,
		ResourceID: resourceID,
		Timestamp:  time.Now().UTC(),
	}
	if payload != nil {
		if data, err := json.Marshal(payload); err == nil {
			e.Data = data
		}
	}
	return e
}
