package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UnknownMessage replaces an absent or empty error message
const UnknownMessage = "Unknown error"

// maxIDAttempts bounds id regeneration on a registry collision
const maxIDAttempts = 3

// Config configures the error service
type Config struct {
	// Timing
	DebounceWindow time.Duration // notification coalescing window
	ExpiryInterval time.Duration // how often the sweep runs
	Retention      time.Duration // records older than this are swept

	// Surfaces, nil selects a no-op
	Indicator Indicator
	Notifier  Notifier
	Relay     Relay

	Clock  Clock
	NewID  func() string
	Logger *slog.Logger
}

// DefaultConfig returns the default configuration
func DefaultConfig() Config {
	return Config{
		DebounceWindow: DefaultDebounceWindow,
		ExpiryInterval: DefaultExpiryInterval,
		Retention:      DefaultRetention,
	}
}

// Service owns the registry and coordinates the badge, relay, notification
// and expiry around it. One Service is created per process and shared.
type Service struct {
	retention time.Duration
	clock     Clock
	newID     func() string
	logger    *slog.Logger

	indicator Indicator
	notifier  Notifier
	relay     Relay

	registry  *Registry
	debouncer *Debouncer[ErrorRecord]
	expiry    *ExpiryScheduler

	// mu serializes each registry mutation with its badge refresh so that
	// indicator updates are applied in mutation order.
	mu    sync.Mutex
	badge Badge

	lifecycle sync.Mutex
	started   bool
}

// NewService creates a service. Timers are not armed until Start.
func NewService(cfg Config) *Service {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultRetention
	}
	if cfg.Clock == nil {
		cfg.Clock = SystemClock{}
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Indicator == nil {
		cfg.Indicator = NopIndicator{}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	if cfg.Relay == nil {
		cfg.Relay = NopRelay{}
	}

	s := &Service{
		retention: cfg.Retention,
		clock:     cfg.Clock,
		newID:     cfg.NewID,
		logger:    cfg.Logger,
		indicator: cfg.Indicator,
		notifier:  cfg.Notifier,
		relay:     cfg.Relay,
		registry:  NewRegistry(),
		badge:     ComputeBadge(nil),
	}
	s.debouncer = NewDebouncer(cfg.Clock, cfg.DebounceWindow, s.notify)
	s.expiry = NewExpiryScheduler(cfg.ExpiryInterval, func() { s.Sweep() }, cfg.Logger)
	return s
}

// Start arms the expiry schedule and publishes the initial badge. Calling
// it again while started does nothing.
func (s *Service) Start() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if s.started {
		return
	}

	s.debouncer.Reset()
	s.expiry.Start()

	s.mu.Lock()
	s.refreshBadge()
	s.mu.Unlock()

	s.started = true
	s.logger.Info("error service started",
		"debounce_window", s.debouncer.Window(),
		"expiry_interval", s.expiry.Interval(),
		"retention", s.retention,
	)
}

// Stop cancels the expiry schedule and drops any pending notification.
// Registry contents are kept.
func (s *Service) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if !s.started {
		return
	}

	s.expiry.Stop()
	s.debouncer.Stop()
	s.started = false
	s.logger.Info("error service stopped")
}

// Running reports whether Start has been called without a matching Stop
func (s *Service) Running() bool {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	return s.started
}

// Report records an error and returns the created record. cause may be an
// error, a string, a fmt.Stringer or any other value. An empty level means
// error. Report never fails and never panics outward.
func (s *Service) Report(cause any, level Level, context string) (rec ErrorRecord) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("error report failed", "panic", r, "context", context)
		}
	}()

	message, stack := describe(cause)
	if level == "" {
		level = LevelError
	} else {
		level = ParseLevel(string(level))
	}

	rec = ErrorRecord{
		Level:     level,
		Message:   message,
		Stack:     stack,
		Context:   context,
		Timestamp: s.clock.Now(),
	}

	stored, err := s.insert(rec)
	if err != nil {
		s.logger.Error("failed to store error record", "error", err)
		return stored
	}
	rec = stored

	reportedTotal.WithLabelValues(string(rec.Level)).Inc()
	s.logRecord(rec)
	s.guard("relay", func() { s.push(rec) })
	s.debouncer.Schedule(rec)

	return rec
}

// Recover reports a panic in progress as an error. Use it deferred:
//
//	defer svc.Recover("sync worker")
//
// The panic is not re-raised.
func (s *Service) Recover(context string) {
	if r := recover(); r != nil {
		s.Report(&panicError{value: r, stack: string(debug.Stack())}, LevelError, context)
	}
}

// GetAll returns a snapshot of every active record
func (s *Service) GetAll() []ErrorRecord {
	return s.registry.All()
}

// Get returns a single record
func (s *Service) Get(id string) (ErrorRecord, bool) {
	return s.registry.Get(id)
}

// Clear removes one record. An unknown id is not an error and is not
// announced.
func (s *Service) Clear(id string) bool {
	s.mu.Lock()
	removed := s.registry.Delete(id)
	s.refreshBadge()
	remaining := s.registry.Len()
	s.mu.Unlock()

	if removed {
		s.announce(Clearance{Reason: ClearedOne, IDs: []string{id}, Count: 1, Remaining: remaining})
	}
	return removed
}

// ClearAll removes every record and returns how many were removed. It is
// always announced so that surfaces resynchronise.
func (s *Service) ClearAll() int {
	s.mu.Lock()
	n := s.registry.Clear()
	s.refreshBadge()
	s.mu.Unlock()

	s.announce(Clearance{Reason: ClearedAll, Count: n})
	return n
}

// Sweep removes records older than the retention window. The badge is only
// refreshed when something was removed.
func (s *Service) Sweep() int {
	s.mu.Lock()
	n := s.registry.PurgeOlderThan(s.retention, s.clock.Now())
	if n == 0 {
		s.mu.Unlock()
		return 0
	}
	purgedTotal.Add(float64(n))
	s.refreshBadge()
	remaining := s.registry.Len()
	s.mu.Unlock()

	s.logger.Info("expired errors swept", "purged", n, "remaining", remaining)
	s.announce(Clearance{Reason: ClearedExpired, Count: n, Remaining: remaining})
	return n
}

// Badge returns the most recently computed badge
func (s *Service) Badge() Badge {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.badge
}

// Len returns the number of active records
func (s *Service) Len() int {
	return s.registry.Len()
}

// Stats returns registry statistics
func (s *Service) Stats() RegistryStats {
	return s.registry.Stats()
}

// ExpiryEntries returns the number of armed expiry schedules
func (s *Service) ExpiryEntries() int {
	return s.expiry.Entries()
}

// NotificationPending reports whether a debounced notification is armed
func (s *Service) NotificationPending() bool {
	return s.debouncer.Pending()
}

// insert assigns an id and stores the record, regenerating the id on a
// collision.
func (s *Service) insert(rec ErrorRecord) (ErrorRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		rec.ID = s.newID()
		err = s.registry.Insert(rec)
		if err == nil {
			s.refreshBadge()
			return rec, nil
		}
		if !stderrors.Is(err, ErrDuplicateID) && !stderrors.Is(err, ErrEmptyID) {
			break
		}
	}
	rec.ID = ""
	return rec, fmt.Errorf("insert after %d attempts: %w", maxIDAttempts, err)
}

// refreshBadge recomputes the badge and pushes it to the indicator.
// The caller must hold s.mu.
func (s *Service) refreshBadge() {
	records := s.registry.All()
	s.badge = ComputeBadge(records)
	activeErrors.Set(float64(len(records)))

	badge := s.badge
	s.guard("indicator", func() {
		if err := s.indicator.SetIndicator(badge.Text, badge.Color); err != nil {
			s.logger.Warn("failed to update indicator", "error", err)
		}
	})
}

func (s *Service) push(rec ErrorRecord) {
	s.countRelay(s.relay.Push(rec), "push", rec.ID)
}

// announce tells listening surfaces that records were removed
func (s *Service) announce(c Clearance) {
	s.guard("relay", func() {
		s.countRelay(s.relay.Cleared(c), string(c.Reason), "")
	})
}

func (s *Service) countRelay(err error, op, id string) {
	switch {
	case err == nil:
		relayTotal.WithLabelValues(statusDelivered).Inc()
	case stderrors.Is(err, ErrNoListener):
		relayTotal.WithLabelValues(statusNoListener).Inc()
	default:
		relayTotal.WithLabelValues(statusFailed).Inc()
		s.logger.Debug("relay failed", "op", op, "id", id, "error", err)
	}
}

// notify runs when the debounce window closes
func (s *Service) notify(rec ErrorRecord) {
	s.guard("notifier", func() {
		n := NotificationFor(rec)
		if err := s.notifier.Notify(n.Title, n.Body, n.Priority); err != nil {
			notificationsTotal.WithLabelValues(statusFailed).Inc()
			s.logger.Warn("failed to show notification", "id", rec.ID, "error", err)
			return
		}
		notificationsTotal.WithLabelValues(statusDelivered).Inc()
	})
}

func (s *Service) logRecord(rec ErrorRecord) {
	attrs := []any{"id", rec.ID, "level", rec.Level}
	switch rec.Level {
	case LevelInfo:
		s.logger.Info(rec.LogLine(), attrs...)
	case LevelWarning:
		s.logger.Warn(rec.LogLine(), attrs...)
	default:
		s.logger.Error(rec.LogLine(), attrs...)
	}
}

// guard keeps a misbehaving surface from taking down the caller
func (s *Service) guard(surface string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("surface panicked", "surface", surface, "panic", r)
		}
	}()
	fn()
}

type stackProvider interface {
	Stack() string
}

type stackTraceProvider interface {
	StackTrace() string
}

// describe extracts a message and optional stack from a reported cause
func describe(cause any) (message, stack string) {
	switch v := cause.(type) {
	case nil:
	case error:
		message = v.Error()
		var sp stackProvider
		var tp stackTraceProvider
		if stderrors.As(v, &sp) {
			stack = sp.Stack()
		} else if stderrors.As(v, &tp) {
			stack = tp.StackTrace()
		}
	case string:
		message = v
	case fmt.Stringer:
		message = v.String()
	default:
		message = fmt.Sprintf("%v", v)
	}

	if strings.TrimSpace(message) == "" {
		message = UnknownMessage
	}
	return message, stack
}

// panicError carries a recovered panic value and the stack at recovery
type panicError struct {
	value any
	stack string
}

func (p *panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return "panic: " + err.Error()
	}
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) Stack() string {
	return p.stack
}

func (p *panicError) Unwrap() error {
	err, _ := p.value.(error)
	return err
}
