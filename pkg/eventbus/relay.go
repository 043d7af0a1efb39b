package eventbus

import (
	"fmt"

	"github.com/armorclaw/errwatch/pkg/errors"
)

// Relay pushes NEW_ERROR and ERRORS_CLEARED events onto the bus. It
// satisfies errors.Relay.
type Relay struct {
	bus *EventBus
}

// NewRelay creates a relay publishing on bus
func NewRelay(bus *EventBus) *Relay {
	return &Relay{bus: bus}
}

// Push publishes the record. It returns errors.ErrNoListener when no
// subscriber received the event.
func (r *Relay) Push(rec errors.ErrorRecord) error {
	return r.publish(EventTypeNewError, rec)
}

// Cleared publishes a removal so surfaces drop the records they show
func (r *Relay) Cleared(c errors.Clearance) error {
	return r.publish(EventTypeErrorsCleared, c)
}

func (r *Relay) publish(eventType string, payload interface{}) error {
	if !r.bus.HasListener(eventType) {
		return errors.ErrNoListener
	}

	delivered, err := r.bus.PublishPayload(eventType, payload)
	if err != nil {
		return fmt.Errorf("publish %s: %w", eventType, err)
	}
	if delivered == 0 {
		return errors.ErrNoListener
	}
	return nil
}
