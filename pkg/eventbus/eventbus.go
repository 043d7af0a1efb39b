// Package eventbus distributes error events to presentation surfaces such as
// WebSocket clients. Delivery is best-effort: a subscriber whose buffer is
// full misses the event.
package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/armorclaw/errwatch/pkg/logger"
)

// EventBus manages event distribution to subscribers
type EventBus struct {
	config      Config
	subscribers map[string]*Subscriber
	mu          sync.RWMutex
	sequence    atomic.Int64
	ctx         context.Context
	cancel      context.CancelFunc
	log         *logger.Logger
}

// Subscriber represents a client subscribed to receive events
type Subscriber struct {
	ID            string
	Filter        EventFilter
	EventChannel  chan *Event
	SubscribeTime time.Time
	LastActivity  time.Time
	closed        bool
	mu            sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

// EventFilter selects which events a subscriber receives
type EventFilter struct {
	EventTypes []string // Only these event types (empty = all types)
}

// Config holds event bus configuration
type Config struct {
	BufferSize        int           // Per-subscriber channel capacity
	MaxSubscribers    int           // Maximum concurrent subscribers
	InactivityTimeout time.Duration // Remove subscribers idle this long
	CleanupInterval   time.Duration // How often idle subscribers are checked
}

// DefaultConfig returns default event bus configuration
func DefaultConfig() Config {
	return Config{
		BufferSize:        100,
		MaxSubscribers:    100,
		InactivityTimeout: 30 * time.Minute,
		CleanupInterval:   time.Minute,
	}
}

// NewEventBus creates a new event bus
func NewEventBus(config Config) *EventBus {
	defaults := DefaultConfig()
	if config.BufferSize <= 0 {
		config.BufferSize = defaults.BufferSize
	}
	if config.MaxSubscribers <= 0 {
		config.MaxSubscribers = defaults.MaxSubscribers
	}
	if config.InactivityTimeout <= 0 {
		config.InactivityTimeout = defaults.InactivityTimeout
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &EventBus{
		config:      config,
		subscribers: make(map[string]*Subscriber),
		ctx:         ctx,
		cancel:      cancel,
		log:         logger.Global().WithComponent("eventbus"),
	}
}

// Start starts the inactive subscriber cleanup
func (b *EventBus) Start() {
	go b.cleanupInactiveSubscribers()
	b.log.Info("eventbus started",
		"buffer_size", b.config.BufferSize,
		"max_subscribers", b.config.MaxSubscribers)
}

// Stop closes every subscriber and stops the cleanup loop
func (b *EventBus) Stop() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		sub.close()
		delete(b.subscribers, id)
	}

	b.log.Info("eventbus stopped")
}

// Publish delivers an event to all matching subscribers and returns how
// many received it. Subscribers with a full buffer are skipped.
func (b *EventBus) Publish(event *Event) (int, error) {
	if event == nil {
		err := ErrNilEvent()
		b.log.Warn("publish failed",
			slog.String("domain", string(err.Domain)),
			slog.String("code", string(err.Code)))
		return 0, err
	}

	event.Sequence = b.sequence.Add(1)
	event.Received = time.Now()

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	dropped := 0
	for id, sub := range b.subscribers {
		if !sub.Filter.Matches(event.Type) {
			continue
		}
		if sub.deliver(event) {
			delivered++
			continue
		}
		dropped++
		err := ErrChannelFull(id, event.Type)
		b.log.Warn("event dropped",
			slog.String("code", string(err.Code)),
			slog.String("subscriber_id", id),
			slog.String("event_type", event.Type))
	}

	b.log.Debug("event published",
		slog.String("event_type", event.Type),
		slog.Int64("sequence", event.Sequence),
		slog.Int("subscribers_notified", delivered),
		slog.Int("subscribers_dropped", dropped))

	return delivered, nil
}

// PublishPayload builds and publishes an event in one step
func (b *EventBus) PublishPayload(eventType string, payload interface{}) (int, error) {
	event, err := NewEvent(eventType, payload)
	if err != nil {
		return 0, err
	}
	return b.Publish(event)
}

// Subscribe creates a new subscription for receiving events
func (b *EventBus) Subscribe(filter EventFilter) (*Subscriber, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx.Err() != nil {
		return nil, ErrBusStopped()
	}
	if len(b.subscribers) >= b.config.MaxSubscribers {
		return nil, ErrTooManySubscribers(b.config.MaxSubscribers)
	}

	ctx, cancel := context.WithCancel(b.ctx)
	now := time.Now()
	sub := &Subscriber{
		ID:            "sub-" + uuid.NewString(),
		Filter:        filter,
		EventChannel:  make(chan *Event, b.config.BufferSize),
		SubscribeTime: now,
		LastActivity:  now,
		ctx:           ctx,
		cancel:        cancel,
	}
	b.subscribers[sub.ID] = sub

	b.log.Debug("subscriber created",
		slog.String("subscriber_id", sub.ID),
		slog.Any("event_types", filter.EventTypes))

	return sub, nil
}

// Unsubscribe removes a subscription
func (b *EventBus) Unsubscribe(subscriberID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[subscriberID]
	if !exists {
		return ErrSubscriberNotFound(subscriberID)
	}

	sub.close()
	delete(b.subscribers, subscriberID)

	b.log.Debug("subscriber removed", slog.String("subscriber_id", subscriberID))
	return nil
}

// SubscriberCount returns the number of active subscribers
func (b *EventBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// HasListener reports whether any subscriber accepts the event type
func (b *EventBus) HasListener(eventType string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if sub.Filter.Matches(eventType) {
			return true
		}
	}
	return false
}

// GetStats returns event bus statistics
func (b *EventBus) GetStats() map[string]interface{} {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return map[string]interface{}{
		"active_subscribers": len(b.subscribers),
		"max_subscribers":    b.config.MaxSubscribers,
		"buffer_size":        b.config.BufferSize,
		"last_sequence":      b.sequence.Load(),
	}
}

// cleanupInactiveSubscribers removes subscribers idle longer than the
// inactivity timeout
func (b *EventBus) cleanupInactiveSubscribers() {
	ticker := time.NewTicker(b.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return
		case <-ticker.C:
			b.removeInactive(time.Now())
		}
	}
}

func (b *EventBus) removeInactive(now time.Time) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for id, sub := range b.subscribers {
		idle := now.Sub(sub.lastActivity())
		if idle <= b.config.InactivityTimeout {
			continue
		}

		err := ErrSubscriberInactive(id, idle)
		b.log.Info("subscriber removed for inactivity",
			slog.String("code", string(err.Code)),
			slog.String("subscriber_id", id),
			slog.Duration("inactive_time", idle))

		sub.close()
		delete(b.subscribers, id)
		removed++
	}
	return removed
}

// Matches reports whether the filter accepts the event type
func (f EventFilter) Matches(eventType string) bool {
	if len(f.EventTypes) == 0 {
		return true
	}
	for _, t := range f.EventTypes {
		if t == eventType {
			return true
		}
	}
	return false
}

// Events returns the channel events are delivered on. It is closed when
// the subscription ends.
func (s *Subscriber) Events() <-chan *Event {
	return s.EventChannel
}

// Done is closed when the subscription ends
func (s *Subscriber) Done() <-chan struct{} {
	return s.ctx.Done()
}

// Touch records client activity so the subscriber is not reaped
func (s *Subscriber) Touch() {
	s.mu.Lock()
	s.LastActivity = time.Now()
	s.mu.Unlock()
}

func (s *Subscriber) lastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.LastActivity
}

// deliver performs a non-blocking send
func (s *Subscriber) deliver(event *Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	select {
	case s.EventChannel <- event:
		s.LastActivity = time.Now()
		return true
	default:
		return false
	}
}

func (s *Subscriber) close() {
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.EventChannel)
	}
}
