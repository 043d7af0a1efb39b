package eventbus

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestEventError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *EventError
		contains []string
	}{
		{
			name:     "basic error",
			err:      &EventError{Domain: DomainPublisher, Code: CodeNilEvent, Message: "test error"},
			contains: []string{"[eventbus.publisher:E001]", "test error"},
		},
		{
			name:     "error with operation",
			err:      &EventError{Domain: DomainPublisher, Code: CodeSerializeFail, Message: "wrap failed", Operation: "Publish"},
			contains: []string{"(Publish)", "wrap failed"},
		},
		{
			name:     "error with cause",
			err:      &EventError{Domain: DomainSerialize, Code: CodeSerializeFail, Message: "serialize failed", Cause: errors.New("underlying error")},
			contains: []string{"serialize failed: underlying error"},
		},
		{
			name:     "error with hint",
			err:      ErrChannelFull("sub-1", EventTypeNewError),
			contains: []string{"hint: subscriber may be slow"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errStr := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(errStr, s) {
					t.Errorf("Error() = %q, should contain %q", errStr, s)
				}
			}
		})
	}
}

func TestEventError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrSerializeFailed(EventTypeNewError, cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is should find the cause")
	}
}

func TestIsErrorCode(t *testing.T) {
	err := ErrSubscriberNotFound("sub-x")
	wrapped := fmt.Errorf("unsubscribe: %w", err)

	if !IsErrorCode(wrapped, CodeSubNotFound) {
		t.Error("IsErrorCode should match through wrapping")
	}
	if IsErrorCode(wrapped, CodeChannelFull) {
		t.Error("IsErrorCode matched the wrong code")
	}
	if IsErrorCode(errors.New("plain"), CodeSubNotFound) {
		t.Error("IsErrorCode matched a plain error")
	}
	if GetCode(wrapped) != CodeSubNotFound {
		t.Errorf("GetCode() = %q", GetCode(wrapped))
	}
	if GetCode(nil) != "" {
		t.Error("GetCode(nil) should be empty")
	}
}

func TestErrSubscriberInactive(t *testing.T) {
	err := ErrSubscriberInactive("sub-1", 45*time.Minute)
	if err.Code != CodeSubInactive {
		t.Errorf("Code = %s", err.Code)
	}
	if err.Context["inactive_duration"] != "45m0s" {
		t.Errorf("inactive_duration = %v", err.Context["inactive_duration"])
	}
}
