package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names a domain event. It doubles as the AMQP message type.
type EventType string

const (
	EventUserRegistered   EventType = "user.registered"
	EventUserGoogleLinked EventType = "user.google_linked"
	EventCategoryCreated  EventType = "category.created"
	EventCategoryUpdated  EventType = "category.updated"
	EventCategoryDeleted  EventType = "category.deleted"
)

// IsValid reports whether t is a known event type.
func (t EventType) IsValid() bool {
	switch t {
	case EventUserRegistered, EventUserGoogleLinked,
		EventCategoryCreated, EventCategoryUpdated, EventCategoryDeleted:
		return true
	default:
		return false
	}
}

// Event is a lightweight notification that something changed. Consumers
// that need the full entity load it from storage by EntityID.
type Event struct {
	ID        string            `json:"id"`
	Type      EventType         `json:"type"`
	UserID    int64             `json:"user_id"`
	EntityID  int64             `json:"entity_id,omitempty"`
	Summary   string            `json:"summary,omitempty"`
	Attrs     map[string]string `json:"attrs,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// NewEvent creates an event with a fresh ID and the current time.
func NewEvent(t EventType, userID, entityID int64, summary string) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		EntityID:  entityID,
		Summary:   summary,
		Timestamp: time.Now().UTC(),
	}
}

// With sets an attribute and returns the event.
func (e *Event) With(key, value string) *Event {
	if e.Attrs == nil {
		e.Attrs = make(map[string]string)
	}
	e.Attrs[key] = value
	return e
}

func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// EventFromJSON decodes an event and rejects unknown types.
func EventFromJSON(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	if !e.Type.IsValid() {
		return nil, fmt.Errorf("unknown event type %q", e.Type)
	}
	return &e, nil
}
