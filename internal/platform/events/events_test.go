package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	e := New(PatientCreated, TopicPatients, "abc", map[string]int{"acuity": 2})

	if e.Type != PatientCreated || e.Topic != TopicPatients || e.ResourceID != "abc" {
		t.Errorf("unexpected event header: %+v", e)
	}
	if e.Timestamp.IsZero() || time.Since(e.Timestamp) > time.Minute {
		t.Errorf("expected recent timestamp, got %v", e.Timestamp)
	}

	var payload map[string]int
	if err := json.Unmarshal(e.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["acuity"] != 2 {
		t.Errorf("unexpected payload: %v", payload)
	}
}

func TestNew_NilPayload(t *testing.T) {
	e := New(BedUpdated, TopicBeds, "", nil)
	if e.Data != nil {
		t.Errorf("expected no data, got %s", e.Data)
	}
}

func TestNew_UnmarshalablePayload(t *testing.T) {
	e := New(BedUpdated, TopicBeds, "x", func() {})
	if e.Data != nil {
		t.Error("marshal failure must yield an event without data")
	}
	if e.Type != BedUpdated {
		t.Error("marshal failure must not drop the event header")
	}
}

func TestPublisherFunc(t *testing.T) {
	var got Event
	p := PublisherFunc(func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	want := New(PatientUpdated, TopicPatients, "p1", nil)
	if err := p.Publish(context.Background(), want); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got.Type != PatientUpdated || got.ResourceID != "p1" {
		t.Errorf("unexpected delivered event: %+v", got)
	}
}

func TestNop(t *testing.T) {
	if err := Nop().Publish(context.Background(), New(BedCreated, TopicBeds, "b1", nil)); err != nil {
		t.Errorf("Nop publisher must never fail, got %v", err)
	}
}
