package notification

import (
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/armorclaw/errwatch/pkg/errors"
)

// Alert is a user-facing notification handed to every sender
type Alert struct {
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Priority  errors.Priority `json:"priority"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewAlert creates an alert stamped with the current time
func NewAlert(title, body string, priority errors.Priority) Alert {
	return Alert{
		Title:     title,
		Body:      body,
		Priority:  priority,
		Timestamp: time.Now(),
	}
}

// Level recovers the error level from the title prefix, e.g. "WARNING: x".
// Titles without a known prefix fall back on the priority.
func (a Alert) Level() errors.Level {
	if prefix, _, ok := strings.Cut(a.Title, ":"); ok {
		if level := errors.Level(strings.ToLower(prefix)); level.Valid() {
			return level
		}
	}
	if a.Priority == errors.PriorityHigh {
		return errors.LevelError
	}
	return errors.LevelWarning
}

// sentryLevel maps an error level onto a Sentry level
func sentryLevel(level errors.Level) sentry.Level {
	switch level {
	case errors.LevelInfo:
		return sentry.LevelInfo
	case errors.LevelWarning:
		return sentry.LevelWarning
	default:
		return sentry.LevelError
	}
}
