package errors

import (
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultExpiryInterval is how often the expiry sweep runs
	DefaultExpiryInterval = time.Hour

	// DefaultRetention is how long a record stays before it is swept
	DefaultRetention = time.Hour
)

// ExpiryScheduler runs a sweep on a fixed repeating interval. Starting it
// more than once keeps a single schedule entry.
type ExpiryScheduler struct {
	mu       sync.Mutex
	interval time.Duration
	sweep    func()
	logger   *slog.Logger
	cron     *cron.Cron
	entry    cron.EntryID
}

// NewExpiryScheduler creates a scheduler that calls sweep every interval
func NewExpiryScheduler(interval time.Duration, sweep func(), logger *slog.Logger) *ExpiryScheduler {
	if interval <= 0 {
		interval = DefaultExpiryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpiryScheduler{
		interval: interval,
		sweep:    sweep,
		logger:   logger,
	}
}

// Start arms the repeating sweep. A second call while running is a no-op.
func (e *ExpiryScheduler) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cron != nil {
		return
	}

	log := cronLogger{e.logger}
	c := cron.New(
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	e.entry = c.Schedule(cron.Every(e.interval), cron.FuncJob(e.sweep))
	c.Start()
	e.cron = c

	e.logger.Info("expiry scheduler started", "interval", e.interval)
}

// Stop cancels the schedule. A sweep already running is not waited for.
func (e *ExpiryScheduler) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cron == nil {
		return
	}
	e.cron.Remove(e.entry)
	e.cron.Stop()
	e.cron = nil

	e.logger.Info("expiry scheduler stopped")
}

// Running reports whether the schedule is armed
func (e *ExpiryScheduler) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cron != nil
}

// Entries returns the number of active schedule entries
func (e *ExpiryScheduler) Entries() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cron == nil {
		return 0
	}
	return len(e.cron.Entries())
}

// Next returns the next scheduled firing, zero when stopped
func (e *ExpiryScheduler) Next() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cron == nil {
		return time.Time{}
	}
	return e.cron.Entry(e.entry).Next
}

// Interval returns the sweep interval
func (e *ExpiryScheduler) Interval() time.Duration {
	return e.interval
}

// cronLogger adapts slog to the cron.Logger interface
type cronLogger struct {
	*slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
