package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/errwatch/pkg/errors"
	"github.com/armorclaw/errwatch/pkg/eventbus"
)

func TestIndicator_InitialState(t *testing.T) {
	ind := New(nil)
	state := ind.State()

	assert.Equal(t, "", state.Text)
	assert.Equal(t, errors.ColorBlue, state.Color)
	assert.Equal(t, "#0000FF", state.Hex)
	assert.Equal(t, int64(0), ind.Updates())
}

func TestIndicator_SetIndicator(t *testing.T) {
	ind := New(nil)

	require.NoError(t, ind.SetIndicator("3", errors.ColorRed))

	state := ind.State()
	assert.Equal(t, "3", state.Text)
	assert.Equal(t, errors.ColorRed, state.Color)
	assert.Equal(t, "#FF0000", state.Hex)
	assert.False(t, state.UpdatedAt.IsZero())
	assert.Equal(t, int64(1), ind.Updates())
}

func TestIndicator_PublishesBadge(t *testing.T) {
	bus := eventbus.NewEventBus(eventbus.DefaultConfig())
	defer bus.Stop()

	sub, err := bus.Subscribe(eventbus.EventFilter{EventTypes: []string{eventbus.EventTypeBadgeUpdated}})
	require.NoError(t, err)

	ind := New(bus)
	require.NoError(t, ind.SetIndicator("1", errors.ColorOrange))

	select {
	case ev := <-sub.Events():
		var payload eventbus.BadgePayload
		require.NoError(t, ev.Decode(&payload))
		assert.Equal(t, eventbus.BadgePayload{Text: "1", Color: "orange", Hex: "#FFA500"}, payload)
	case <-time.After(time.Second):
		t.Fatal("badge event not published")
	}
}

func TestIndicator_DrivenByService(t *testing.T) {
	ind := New(nil)
	svc := errors.NewService(errors.Config{Indicator: ind})

	svc.Report("a", errors.LevelError, "")
	svc.Report("b", errors.LevelError, "")
	svc.Report("c", errors.LevelInfo, "")
	assert.Equal(t, "3", ind.State().Text)
	assert.Equal(t, errors.ColorRed, ind.State().Color)

	svc.ClearAll()
	assert.Equal(t, "", ind.State().Text)
}
