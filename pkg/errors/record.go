package errors

import (
	"fmt"
	"strings"
	"time"
)

// Level is the severity of a reported error, from LevelInfo up to LevelError.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	switch l {
	case LevelInfo, LevelWarning, LevelError:
		return true
	}
	return false
}

func (l Level) String() string {
	return string(l)
}

// ParseLevel converts free text into a Level. Empty or unknown input becomes
// LevelError so that malformed reports are never rejected.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "info":
		return LevelInfo
	case "warning", "warn":
		return LevelWarning
	default:
		return LevelError
	}
}

// ErrorRecord is a single reported error. Records are created by the
// ingestion path and never modified afterwards; they are passed by value.
type ErrorRecord struct {
	ID        string    `json:"id"`
	Level     Level     `json:"level"`
	Message   string    `json:"message"`
	Stack     string    `json:"stack,omitempty"`
	Context   string    `json:"context,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Age returns how long ago the record was created relative to now.
func (r ErrorRecord) Age(now time.Time) time.Duration {
	return now.Sub(r.Timestamp)
}

// Origin returns the context label, or "Error" when none was given.
func (r ErrorRecord) Origin() string {
	if r.Context == "" {
		return "Error"
	}
	return r.Context
}

// LogLine renders the record the way it is written to the process log.
// The context prefix is left out when there is none.
func (r ErrorRecord) LogLine() string {
	if r.Context == "" {
		return r.Message
	}
	return fmt.Sprintf("[%s] %s", r.Context, r.Message)
}
