package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/errwatch/pkg/errors"
)

func TestEventBus_PublishSubscribe(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	sub, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	delivered, err := bus.PublishPayload(EventTypeBadgeUpdated, BadgePayload{Text: "2", Color: "red", Hex: "#FF0000"})
	require.NoError(t, err)
	assert.Equal(t, 1, delivered)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, EventTypeBadgeUpdated, ev.Type)
		assert.Equal(t, int64(1), ev.Sequence)
		assert.False(t, ev.Received.IsZero())

		var payload BadgePayload
		require.NoError(t, ev.Decode(&payload))
		assert.Equal(t, "2", payload.Text)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestEventBus_SequenceIncreases(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	sub, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := bus.PublishPayload(EventTypeErrorsCleared, nil)
		require.NoError(t, err)
	}

	var last int64
	for i := 0; i < 3; i++ {
		ev := <-sub.Events()
		assert.Greater(t, ev.Sequence, last)
		last = ev.Sequence
	}
}

func TestEventBus_Filter(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	badgeOnly, err := bus.Subscribe(EventFilter{EventTypes: []string{EventTypeBadgeUpdated}})
	require.NoError(t, err)

	assert.False(t, bus.HasListener(EventTypeNewError))
	assert.True(t, bus.HasListener(EventTypeBadgeUpdated))

	delivered, err := bus.PublishPayload(EventTypeNewError, map[string]string{"id": "x"})
	require.NoError(t, err)
	assert.Equal(t, 0, delivered)
	assert.Len(t, badgeOnly.EventChannel, 0)
}

func TestEventBus_FullBufferDrops(t *testing.T) {
	bus := NewEventBus(Config{BufferSize: 2})
	defer bus.Stop()

	sub, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	counts := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		n, err := bus.PublishPayload(EventTypeNewError, i)
		require.NoError(t, err)
		counts = append(counts, n)
	}

	assert.Equal(t, []int{1, 1, 0}, counts)
	assert.Len(t, sub.EventChannel, 2)
}

func TestEventBus_NilEvent(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	_, err := bus.Publish(nil)
	require.Error(t, err)
	assert.True(t, IsErrorCode(err, CodeNilEvent))
}

func TestEventBus_Unsubscribe(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	sub, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)
	require.Equal(t, 1, bus.SubscriberCount())

	require.NoError(t, bus.Unsubscribe(sub.ID))
	assert.Equal(t, 0, bus.SubscriberCount())

	_, open := <-sub.Events()
	assert.False(t, open, "channel closed on unsubscribe")

	select {
	case <-sub.Done():
	default:
		t.Error("Done not closed")
	}

	err = bus.Unsubscribe(sub.ID)
	assert.True(t, IsErrorCode(err, CodeSubNotFound))
}

func TestEventBus_MaxSubscribers(t *testing.T) {
	bus := NewEventBus(Config{MaxSubscribers: 1})
	defer bus.Stop()

	_, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	_, err = bus.Subscribe(EventFilter{})
	assert.True(t, IsErrorCode(err, CodeTooManySubs))
}

func TestEventBus_StopClosesSubscribers(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	sub, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	bus.Stop()

	_, open := <-sub.Events()
	assert.False(t, open)
	assert.Equal(t, 0, bus.SubscriberCount())

	_, err = bus.Subscribe(EventFilter{})
	assert.True(t, IsErrorCode(err, CodeBusStopped))
}

func TestEventBus_RemoveInactive(t *testing.T) {
	bus := NewEventBus(Config{InactivityTimeout: time.Minute})
	defer bus.Stop()

	idle, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)
	active, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	idle.mu.Lock()
	idle.LastActivity = time.Now().Add(-2 * time.Minute)
	idle.mu.Unlock()
	active.Touch()

	assert.Equal(t, 1, bus.removeInactive(time.Now()))
	assert.Equal(t, 1, bus.SubscriberCount())

	_, open := <-idle.Events()
	assert.False(t, open)
}

func TestRelay_NoListener(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	relay := NewRelay(bus)
	err := relay.Push(errors.ErrorRecord{ID: "a", Level: errors.LevelError, Message: "boom"})
	assert.ErrorIs(t, err, errors.ErrNoListener)
}

func TestRelay_Push(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	sub, err := bus.Subscribe(EventFilter{EventTypes: []string{EventTypeNewError}})
	require.NoError(t, err)

	rec := errors.ErrorRecord{
		ID:        "a",
		Level:     errors.LevelWarning,
		Message:   "slow response",
		Context:   "api",
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, NewRelay(bus).Push(rec))

	ev := <-sub.Events()
	assert.Equal(t, EventTypeNewError, ev.Type)

	var got errors.ErrorRecord
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, rec, got)
}

func TestRelay_FullBufferIsNoListener(t *testing.T) {
	bus := NewEventBus(Config{BufferSize: 1})
	defer bus.Stop()

	_, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)

	relay := NewRelay(bus)
	require.NoError(t, relay.Push(errors.ErrorRecord{ID: "1"}))
	assert.ErrorIs(t, relay.Push(errors.ErrorRecord{ID: "2"}), errors.ErrNoListener)
}

func TestRelay_Cleared(t *testing.T) {
	bus := NewEventBus(DefaultConfig())
	defer bus.Stop()

	relay := NewRelay(bus)
	assert.ErrorIs(t, relay.Cleared(errors.Clearance{Reason: errors.ClearedAll}), errors.ErrNoListener)

	sub, err := bus.Subscribe(EventFilter{EventTypes: []string{EventTypeErrorsCleared}})
	require.NoError(t, err)

	want := errors.Clearance{Reason: errors.ClearedOne, IDs: []string{"a"}, Count: 1, Remaining: 2}
	require.NoError(t, relay.Cleared(want))

	ev := <-sub.Events()
	assert.Equal(t, EventTypeErrorsCleared, ev.Type)

	var got errors.Clearance
	require.NoError(t, ev.Decode(&got))
	assert.Equal(t, want, got)
}

func TestEventBus_GetStats(t *testing.T) {
	bus := NewEventBus(Config{BufferSize: 5, MaxSubscribers: 7})
	defer bus.Stop()

	_, err := bus.Subscribe(EventFilter{})
	require.NoError(t, err)
	_, err = bus.PublishPayload(EventTypeBadgeUpdated, BadgePayload{Text: "1"})
	require.NoError(t, err)

	stats := bus.GetStats()
	assert.Equal(t, 1, stats["active_subscribers"])
	assert.Equal(t, 7, stats["max_subscribers"])
	assert.Equal(t, 5, stats["buffer_size"])
	assert.Equal(t, int64(1), stats["last_sequence"])
}
