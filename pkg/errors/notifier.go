package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// ErrNoListener is returned by a Relay when no presentation surface is
// listening. It is an expected outcome, not a failure.
var ErrNoListener = stderrors.New("no listener")

// Priority of a user-facing alert
type Priority string

const (
	PriorityLow  Priority = "low"
	PriorityHigh Priority = "high"
)

// Indicator is the host shell's always-visible badge
type Indicator interface {
	SetIndicator(text string, color Color) error
}

// Notifier shows a user-facing alert
type Notifier interface {
	Notify(title, body string, priority Priority) error
}

// ClearReason says why records left the registry
type ClearReason string

const (
	ClearedOne     ClearReason = "clear"
	ClearedAll     ClearReason = "clear_all"
	ClearedExpired ClearReason = "expired"
)

// Clearance describes records removed from the registry. IDs is only set
// for a single clear.
type Clearance struct {
	Reason    ClearReason `json:"reason"`
	IDs       []string    `json:"ids,omitempty"`
	Count     int         `json:"count"`
	Remaining int         `json:"remaining"`
}

// Relay pushes registry changes to listening presentation surfaces.
// Delivery is best-effort; ErrNoListener means nobody was listening.
type Relay interface {
	Push(rec ErrorRecord) error
	Cleared(c Clearance) error
}

// Notification is the rendered alert for a record
type Notification struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Priority Priority `json:"priority"`
}

// NotificationFor renders the alert shown for a record
func NotificationFor(rec ErrorRecord) Notification {
	priority := PriorityLow
	if rec.Level == LevelError {
		priority = PriorityHigh
	}
	return Notification{
		Title:    fmt.Sprintf("%s: %s", strings.ToUpper(string(rec.Level)), rec.Origin()),
		Body:     rec.Message,
		Priority: priority,
	}
}

// NopIndicator discards badge updates
type NopIndicator struct{}

func (NopIndicator) SetIndicator(string, Color) error { return nil }

// NopNotifier discards alerts
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, Priority) error { return nil }

// NopRelay has no listeners
type NopRelay struct{}

func (NopRelay) Push(ErrorRecord) error { return ErrNoListener }

func (NopRelay) Cleared(Clearance) error { return ErrNoListener }
