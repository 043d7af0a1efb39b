package eventbus

import (
	"encoding/json"
	"time"
)

// Event types delivered to presentation surfaces
const (
	EventTypeNewError      = "NEW_ERROR"
	EventTypeBadgeUpdated  = "BADGE_UPDATED"
	EventTypeNotification  = "NOTIFICATION"
	EventTypeErrorsCleared = "ERRORS_CLEARED"
)

// Event is a single bus message. Sequence and Received are assigned by
// the bus at publish time.
type Event struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
	Sequence int64           `json:"sequence"`
	Received time.Time       `json:"received"`
}

// NewEvent builds an event with a JSON-encoded payload
func NewEvent(eventType string, payload interface{}) (*Event, error) {
	event := &Event{Type: eventType}
	if payload == nil {
		return event, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, ErrSerializeFailed(eventType, err)
	}
	event.Payload = data
	return event, nil
}

// ToJSON serializes the event for transmission
func (e *Event) ToJSON() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, ErrSerializeFailed(e.Type, err)
	}
	return data, nil
}

// Decode unmarshals the payload into v
func (e *Event) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	return json.Unmarshal(e.Payload, v)
}

// BadgePayload is carried by BADGE_UPDATED
type BadgePayload struct {
	Text  string `json:"text"`
	Color string `json:"color"`
	Hex   string `json:"hex"`
}

// NotificationPayload is carried by NOTIFICATION
type NotificationPayload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Priority string `json:"priority"`
}
