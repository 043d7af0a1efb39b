// Package notification delivers user-facing alerts. A Notifier fans each
// alert out to a set of senders: the event bus for presentation surfaces,
// Sentry when a DSN is configured, and the process log.
package notification

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/armorclaw/errwatch/pkg/errors"
	"github.com/armorclaw/errwatch/pkg/eventbus"
	"github.com/armorclaw/errwatch/pkg/logger"
)

// Sender delivers an alert to one destination
type Sender interface {
	Name() string
	Send(ctx context.Context, alert Alert) error
}

// Config holds notification configuration
type Config struct {
	Enabled     bool
	Timeout     time.Duration // Per-alert delivery timeout
	SentryDSN   string
	Environment string
}

// DefaultConfig returns default notification configuration
func DefaultConfig() Config {
	return Config{
		Enabled: true,
		Timeout: 5 * time.Second,
	}
}

// Notifier fans alerts out to its senders. It satisfies errors.Notifier.
type Notifier struct {
	senders []Sender
	enabled bool
	timeout time.Duration
	mu      sync.RWMutex
	log     *logger.Logger
}

// NewNotifier creates a notifier over the given senders
func NewNotifier(config Config, senders ...Sender) *Notifier {
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Notifier{
		senders: senders,
		enabled: config.Enabled,
		timeout: config.Timeout,
		log:     logger.Global().WithComponent("notification"),
	}
}

// AddSender registers another destination
func (n *Notifier) AddSender(s Sender) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.senders = append(n.senders, s)
}

// Senders returns the names of the registered senders
func (n *Notifier) Senders() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()

	names := make([]string, 0, len(n.senders))
	for _, s := range n.senders {
		names = append(names, s.Name())
	}
	return names
}

// Notify sends the alert to every sender. One failing sender does not stop
// the others; all failures are returned joined.
func (n *Notifier) Notify(title, body string, priority errors.Priority) error {
	if !n.enabled {
		return nil
	}

	n.mu.RLock()
	senders := append([]Sender(nil), n.senders...)
	n.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	alert := NewAlert(title, body, priority)
	var errs []error
	for _, s := range senders {
		if err := s.Send(ctx, alert); err != nil {
			n.log.Warn("notification delivery failed",
				slog.String("sender", s.Name()),
				slog.String("title", title),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return stderrors.Join(errs...)
}

// BusSender publishes alerts as NOTIFICATION events
type BusSender struct {
	bus *eventbus.EventBus
}

// NewBusSender creates a sender publishing on bus
func NewBusSender(bus *eventbus.EventBus) *BusSender {
	return &BusSender{bus: bus}
}

func (s *BusSender) Name() string { return "bus" }

func (s *BusSender) Send(_ context.Context, alert Alert) error {
	_, err := s.bus.PublishPayload(eventbus.EventTypeNotification, eventbus.NotificationPayload{
		Title:    alert.Title,
		Body:     alert.Body,
		Priority: string(alert.Priority),
	})
	return err
}

// SentrySender captures alerts as Sentry messages
type SentrySender struct {
	hub *sentry.Hub
}

// NewSentrySender creates a sender with its own Sentry client
func NewSentrySender(options sentry.ClientOptions) (*SentrySender, error) {
	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, fmt.Errorf("failed to create sentry client: %w", err)
	}
	return &SentrySender{hub: sentry.NewHub(client, sentry.NewScope())}, nil
}

func (s *SentrySender) Name() string { return "sentry" }

func (s *SentrySender) Send(_ context.Context, alert Alert) error {
	s.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentryLevel(alert.Level()))
		scope.SetTag("priority", string(alert.Priority))
		scope.SetContext("alert", sentry.Context{
			"title":     alert.Title,
			"body":      alert.Body,
			"timestamp": alert.Timestamp,
		})
		s.hub.CaptureMessage(alert.Title + "\n" + alert.Body)
	})
	return nil
}

// Flush waits for buffered events to be sent
func (s *SentrySender) Flush(timeout time.Duration) bool {
	return s.hub.Flush(timeout)
}

// LogSender writes alerts to the process log
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a log sender
func NewLogSender(log *logger.Logger) *LogSender {
	if log == nil {
		log = logger.Global().WithComponent("notification")
	}
	return &LogSender{log: log}
}

func (s *LogSender) Name() string { return "log" }

func (s *LogSender) Send(_ context.Context, alert Alert) error {
	level := slog.LevelInfo
	if alert.Priority == errors.PriorityHigh {
		level = slog.LevelWarn
	}
	s.log.Log(context.Background(), level, "notification",
		slog.String("title", alert.Title),
		slog.String("body", alert.Body),
		slog.String("priority", string(alert.Priority)))
	return nil
}
