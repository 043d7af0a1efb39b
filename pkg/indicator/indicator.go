// Package indicator keeps the always-visible error badge and publishes
// every change to presentation surfaces.
package indicator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/armorclaw/errwatch/pkg/errors"
	"github.com/armorclaw/errwatch/pkg/eventbus"
	"github.com/armorclaw/errwatch/pkg/logger"
)

var badgeCount = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "errwatch_badge_count",
	Help: "Number currently shown on the error badge",
})

// State is the badge as last set
type State struct {
	Text      string       `json:"text"`
	Color     errors.Color `json:"color"`
	Hex       string       `json:"hex"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Indicator stores the badge and broadcasts BADGE_UPDATED events.
// It satisfies errors.Indicator.
type Indicator struct {
	bus     *eventbus.EventBus
	mu      sync.RWMutex
	state   State
	updates int64
	log     *logger.Logger
}

// New creates an indicator. bus may be nil.
func New(bus *eventbus.EventBus) *Indicator {
	return &Indicator{
		bus: bus,
		state: State{
			Color: errors.ColorBlue,
			Hex:   errors.ColorBlue.Hex(),
		},
		log: logger.Global().WithComponent("indicator"),
	}
}

// SetIndicator records the badge and publishes it. A publish failure is
// returned after the state has been updated.
func (i *Indicator) SetIndicator(text string, color errors.Color) error {
	state := State{
		Text:      text,
		Color:     color,
		Hex:       color.Hex(),
		UpdatedAt: time.Now(),
	}

	i.mu.Lock()
	i.state = state
	i.updates++
	i.mu.Unlock()

	badgeCount.Set(float64(errors.Badge{Text: text}.Count()))
	i.log.Debug("badge updated", "text", text, "color", color)

	if i.bus == nil {
		return nil
	}
	_, err := i.bus.PublishPayload(eventbus.EventTypeBadgeUpdated, eventbus.BadgePayload{
		Text:  state.Text,
		Color: string(state.Color),
		Hex:   state.Hex,
	})
	return err
}

// State returns the current badge
func (i *Indicator) State() State {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state
}

// Updates returns how many times the badge has been set
func (i *Indicator) Updates() int64 {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.updates
}
