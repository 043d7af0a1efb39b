package eventbus

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorDomain identifies the component that produced an error
type ErrorDomain string

const (
	DomainEventBus   ErrorDomain = "eventbus"
	DomainPublisher  ErrorDomain = "eventbus.publisher"
	DomainSubscriber ErrorDomain = "eventbus.subscriber"
	DomainSerialize  ErrorDomain = "eventbus.serialize"
)

// ErrorCode identifies specific error conditions
type ErrorCode string

const (
	// Publisher errors (E001-E099)
	CodeNilEvent      ErrorCode = "E001"
	CodeSerializeFail ErrorCode = "E003"

	// Subscriber errors (E101-E199)
	CodeSubNotFound ErrorCode = "E101"
	CodeSubInactive ErrorCode = "E102"
	CodeChannelFull ErrorCode = "E103"
	CodeTooManySubs ErrorCode = "E105"
	CodeBusStopped  ErrorCode = "E106"
)

// EventError is a structured event bus error
type EventError struct {
	Domain    ErrorDomain            `json:"domain"`
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Operation string                 `json:"operation,omitempty"`
	Cause     error                  `json:"-"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Error formats as [DOMAIN:CODE] (operation) message
func (e *EventError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s:%s]", e.Domain, e.Code)
	if e.Operation != "" {
		fmt.Fprintf(&sb, " (%s)", e.Operation)
	}
	sb.WriteString(" " + e.Message)
	if e.Cause != nil {
		fmt.Fprintf(&sb, ": %v", e.Cause)
	}
	if hint, ok := e.Context["hint"]; ok {
		fmt.Fprintf(&sb, " (hint: %v)", hint)
	}
	return sb.String()
}

// Unwrap returns the underlying cause
func (e *EventError) Unwrap() error {
	return e.Cause
}

// WithCause sets the underlying cause
func (e *EventError) WithCause(cause error) *EventError {
	e.Cause = cause
	return e
}

// WithContext adds a key to the debugging context
func (e *EventError) WithContext(key string, value interface{}) *EventError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a structured error
func NewError(domain ErrorDomain, code ErrorCode, operation, message string) *EventError {
	return &EventError{
		Domain:    domain,
		Code:      code,
		Operation: operation,
		Message:   message,
		Timestamp: time.Now(),
	}
}

// ErrNilEvent is returned when publishing a nil event
func ErrNilEvent() *EventError {
	return NewError(DomainPublisher, CodeNilEvent, "Publish", "cannot publish nil event")
}

// ErrSerializeFailed is returned when an event payload cannot be encoded
func ErrSerializeFailed(eventType string, cause error) *EventError {
	return NewError(DomainSerialize, CodeSerializeFail, "Marshal", "failed to serialize event").
		WithContext("event_type", eventType).
		WithCause(cause)
}

// ErrSubscriberNotFound is returned for an unknown subscriber id
func ErrSubscriberNotFound(subID string) *EventError {
	return NewError(DomainSubscriber, CodeSubNotFound, "Unsubscribe", "subscriber not found").
		WithContext("subscriber_id", subID)
}

// ErrSubscriberInactive describes a subscriber reaped for inactivity
func ErrSubscriberInactive(subID string, inactive time.Duration) *EventError {
	return NewError(DomainSubscriber, CodeSubInactive, "CleanupInactive", "subscriber inactive for too long").
		WithContext("subscriber_id", subID).
		WithContext("inactive_duration", inactive.String())
}

// ErrChannelFull describes an event dropped for a slow subscriber
func ErrChannelFull(subID, eventType string) *EventError {
	return NewError(DomainSubscriber, CodeChannelFull, "Publish", "event channel buffer full, event dropped").
		WithContext("subscriber_id", subID).
		WithContext("event_type", eventType).
		WithContext("hint", "subscriber may be slow; consider increasing buffer size")
}

// ErrTooManySubscribers is returned when the subscriber limit is reached
func ErrTooManySubscribers(limit int) *EventError {
	return NewError(DomainSubscriber, CodeTooManySubs, "Subscribe", "subscriber limit reached").
		WithContext("max_subscribers", limit)
}

// ErrBusStopped is returned when subscribing to a stopped bus
func ErrBusStopped() *EventError {
	return NewError(DomainEventBus, CodeBusStopped, "Subscribe", "event bus is stopped")
}

// IsErrorCode checks if an error in the chain carries the code
func IsErrorCode(err error, code ErrorCode) bool {
	var eventErr *EventError
	if errors.As(err, &eventErr) {
		return eventErr.Code == code
	}
	return false
}

// GetCode extracts the error code, empty when err is not an EventError
func GetCode(err error) ErrorCode {
	var eventErr *EventError
	if errors.As(err, &eventErr) {
		return eventErr.Code
	}
	return ""
}
