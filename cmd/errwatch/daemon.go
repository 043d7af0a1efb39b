package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"golang.org/x/sync/errgroup"

	"github.com/armorclaw/errwatch/pkg/config"
	"github.com/armorclaw/errwatch/pkg/discovery"
	"github.com/armorclaw/errwatch/pkg/errors"
	"github.com/armorclaw/errwatch/pkg/eventbus"
	api "github.com/armorclaw/errwatch/pkg/http"
	"github.com/armorclaw/errwatch/pkg/indicator"
	"github.com/armorclaw/errwatch/pkg/logger"
	"github.com/armorclaw/errwatch/pkg/notification"
	"github.com/armorclaw/errwatch/pkg/websocket"
)

const shutdownTimeout = 10 * time.Second

// daemon holds the wired components of a running errwatch
type daemon struct {
	cfg       *config.Config
	bus       *eventbus.EventBus
	indicator *indicator.Indicator
	notifier  *notification.Notifier
	sentry    *notification.SentrySender
	service   *errors.Service
	server    *api.Server
	log       *logger.Logger
}

// newDaemon wires bus, indicator, notifier and relay into the error service
func newDaemon(cfg *config.Config) (*daemon, error) {
	d := &daemon{
		cfg: cfg,
		log: logger.Global().WithComponent("errwatch"),
	}

	d.bus = eventbus.NewEventBus(eventbus.Config{
		BufferSize:        cfg.EventBus.BufferSize,
		MaxSubscribers:    cfg.EventBus.MaxSubscribers,
		InactivityTimeout: cfg.InactivityTimeout(),
		CleanupInterval:   time.Minute,
	})
	d.indicator = indicator.New(d.bus)

	senders := []notification.Sender{
		notification.NewBusSender(d.bus),
		notification.NewLogSender(nil),
	}
	if cfg.Notifications.SentryDSN != "" {
		sender, err := notification.NewSentrySender(sentry.ClientOptions{
			Dsn:         cfg.Notifications.SentryDSN,
			Environment: cfg.Notifications.Environment,
			Release:     "errwatch@" + version,
		})
		if err != nil {
			return nil, err
		}
		d.sentry = sender
		senders = append(senders, sender)
	}
	d.notifier = notification.NewNotifier(notification.Config{
		Enabled:     cfg.Notifications.Enabled,
		SentryDSN:   cfg.Notifications.SentryDSN,
		Environment: cfg.Notifications.Environment,
	}, senders...)

	d.service = errors.NewService(errors.Config{
		DebounceWindow: cfg.DebounceWindow(),
		ExpiryInterval: cfg.ExpiryInterval(),
		Retention:      cfg.Retention(),
		Indicator:      d.indicator,
		Notifier:       d.notifier,
		Relay:          eventbus.NewRelay(d.bus),
		Logger:         logger.Global().WithComponent("errors").Logger,
	})

	d.server = api.NewServer(api.ServerConfig{
		Addr:           cfg.Server.Addr,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		IngestRate:     cfg.Server.IngestRate,
		IngestBurst:    cfg.Server.IngestBurst,
		Version:        version,
		WebSocket:      websocket.DefaultConfig(),
	}, d.service, d.bus)

	return d, nil
}

// run serves until ctx is cancelled or a component fails
func (d *daemon) run(ctx context.Context) error {
	d.bus.Start()
	defer d.bus.Stop()

	d.service.Start()
	defer d.service.Stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(d.server.Start)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return d.server.Stop(shutdownCtx)
	})

	if d.cfg.Discovery.Enabled {
		g.Go(func() error {
			return d.advertise(gctx)
		})
	}

	d.log.Info("errwatch started",
		slog.String("addr", d.cfg.Server.Addr),
		slog.Duration("debounce_window", d.cfg.DebounceWindow()),
		slog.Duration("retention", d.cfg.Retention()),
		slog.Any("senders", d.notifier.Senders()))

	err := g.Wait()

	if d.sentry != nil {
		d.sentry.Flush(2 * time.Second)
	}
	d.log.Info("errwatch stopped")
	return err
}

// advertise publishes the daemon over mDNS until ctx is done. Failing to
// advertise is logged and does not stop the daemon.
func (d *daemon) advertise(ctx context.Context) error {
	port, err := listenPort(d.cfg.Server.Addr)
	if err != nil {
		d.log.Warn("discovery disabled", slog.String("error", err.Error()))
		return nil
	}

	adv, err := discovery.NewServer(discovery.ServerConfig{
		InstanceName: d.cfg.Discovery.InstanceName,
		Port:         port,
		Version:      version,
	})
	if err != nil {
		d.log.Warn("discovery disabled", slog.String("error", err.Error()))
		return nil
	}

	<-ctx.Done()
	return adv.Stop()
}

func listenPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 {
		return 0, fmt.Errorf("address %q has no fixed port", addr)
	}
	return port, nil
}

func runDaemon(cliCfg cliConfig) error {
	cfg, err := loadConfig(cliCfg)
	if err != nil {
		return err
	}
	if err := setupLogging(cfg); err != nil {
		return err
	}

	d, err := newDaemon(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return d.run(ctx)
}
