package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"CreditIntel/internal/handler/ws"
	"CreditIntel/internal/scheduler"
	"CreditIntel/pkg/config"
	xhttp "CreditIntel/pkg/http"
	pkgkafka "CreditIntel/pkg/kafka"
	applogger "CreditIntel/pkg/logger"
	"CreditIntel/pkg/queue"
)

type namedCloser struct {
	name string
	c    io.Closer
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	queue      queue.Queue
	sched      *scheduler.Scheduler
	hub        *ws.Hub
	closers    []namedCloser
}

// New creates a new App instance with all dependencies. consumer, q and
// sched may be nil when the matching feature is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	q queue.Queue,
	sched *scheduler.Scheduler,
	hub *ws.Hub,
) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		l:          l,
		httpServer: httpServer,
		consumer:   consumer,
		kh:         kh,
		queue:      q,
		sched:      sched,
		hub:        hub,
	}
}

// AddCloser registers an infrastructure client closed on shutdown, in reverse
// registration order.
func (a *App) AddCloser(name string, c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, namedCloser{name: name, c: c})
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	if err := a.start(); err != nil {
		_ = a.shutdown()
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh

	a.l.Info("shutdown signal received", applogger.String("signal", sig.String()))
	return a.shutdown()
}

func (a *App) start() error {
	if a.queue != nil {
		if err := a.queue.Start(); err != nil {
			return fmt.Errorf("start job queue: %w", err)
		}
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.sched != nil && a.cfg.Scheduler.Enabled {
		a.sched.Start()
		a.l.Info("recalculation sweep armed", applogger.String("next", a.sched.Next().String()))
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

// shutdown stops inbound traffic first, then background workers, then
// infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	a.l.Info("shutting down...")
	var errs []error
	record := func(what string, err error) {
		if err != nil {
			a.l.Warn(what+" stop error", applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", what, err))
		}
	}

	if a.httpServer != nil {
		record("http server", a.httpServer.Stop(ctx))
	}
	if a.hub != nil {
		record("websocket hub", a.hub.Close())
	}
	if a.sched != nil {
		record("scheduler", a.sched.Stop(ctx))
	}
	if a.consumer != nil {
		record("kafka consumer", a.consumer.Stop(ctx))
	}
	if a.queue != nil {
		record("job queue", a.queue.Stop(ctx))
	}

	a.l.RemoveCollector()
	for i := len(a.closers) - 1; i >= 0; i-- {
		record(a.closers[i].name, a.closers[i].c.Close())
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}
