package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"FinSqueeze/pkg/config"
	xhttp "FinSqueeze/pkg/http"
	pkgkafka "FinSqueeze/pkg/kafka"
	applogger "FinSqueeze/pkg/logger"
	"FinSqueeze/pkg/queue"
)

// Runner is a background loop bound to the app context, such as a websocket feed.
type Runner interface {
	Run(ctx context.Context) error
}

type closer struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg      *config.Config
	logger   *applogger.Logger
	server   *xhttp.Server
	consumer *pkgkafka.Consumer
	handlers []pkgkafka.MessageHandler
	jobs     queue.Publisher
	runners  map[string]Runner
	closers  []closer
}

// Option configures App.
type Option func(*App)

// WithConsumer starts c with the given handlers. A nil consumer is ignored.
func WithConsumer(c *pkgkafka.Consumer, handlers ...pkgkafka.MessageHandler) Option {
	return func(a *App) {
		if c == nil {
			return
		}
		a.consumer = c
		a.handlers = append(a.handlers, handlers...)
	}
}

// WithJobs attaches the job queue. Queues exposing Start/Stop are started and drained with the app.
func WithJobs(q queue.Publisher) Option {
	return func(a *App) { a.jobs = q }
}

func WithRunner(name string, r Runner) Option {
	return func(a *App) {
		if r != nil {
			a.runners[name] = r
		}
	}
}

// WithCloser registers fn to run after everything else has stopped, in reverse order.
func WithCloser(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.closers = append(a.closers, closer{name: name, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, logger *applogger.Logger, server *xhttp.Server, opts ...Option) *App {
	if logger == nil {
		logger = applogger.Nop()
	}
	a := &App{cfg: cfg, logger: logger, server: server, runners: map[string]Runner{}}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout+5*time.Second)
	defer cancel()
	return a.Shutdown(shutdownCtx)
}

// Start launches every component without blocking.
func (a *App) Start(ctx context.Context) error {
	if s, ok := a.jobs.(interface{ Start() error }); ok {
		if err := s.Start(); err != nil {
			return err
		}
		a.logger.Info("job queue started")
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		topics := make([]string, 0, len(a.handlers))
		for _, h := range a.handlers {
			a.consumer.RegisterHandler(h)
			topics = append(topics, h.Topic())
		}
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.logger.Info("kafka consumer started", applogger.Strings("topics", topics))
	}

	for name, r := range a.runners {
		go func(name string, r Runner) {
			if err := r.Run(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("runner stopped", applogger.String("runner", name), applogger.Error(err))
			}
		}(name, r)
		a.logger.Info("runner started", applogger.String("runner", name))
	}

	if a.server != nil {
		if err := a.server.Start(); err != nil {
			a.logger.Error("http server start error", applogger.Error(err))
			return err
		}
	}
	return nil
}

// Shutdown stops intake first (HTTP, consumer), then drains jobs, then closes clients.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down...")

	if a.server != nil {
		if err := a.server.Stop(ctx); err != nil {
			a.logger.Error("http shutdown error", applogger.Error(err))
		}
	}

	if a.consumer != nil && len(a.handlers) > 0 {
		if err := a.consumer.Stop(ctx); err != nil {
			a.logger.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if s, ok := a.jobs.(interface{ Stop(context.Context) error }); ok {
		if err := s.Stop(ctx); err != nil {
			a.logger.Warn("job queue stop error", applogger.Error(err))
		}
	}

	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.fn(); err != nil {
			a.logger.Warn("close error", applogger.String("component", c.name), applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
