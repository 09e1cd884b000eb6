package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/nats-io/nats-server/v2/server"

	"github.com/c360studio/contentmesh/config"
	"github.com/c360studio/contentmesh/dispatch"
	"github.com/c360studio/contentmesh/envelope"
	"github.com/c360studio/contentmesh/gateway"
	"github.com/c360studio/contentmesh/llm"
	"github.com/c360studio/contentmesh/notify"
	"github.com/c360studio/contentmesh/resolve"
	"github.com/c360studio/contentmesh/task"
)

// App is the main application that wires together all components.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	profile *gateway.Profile

	client     *llm.Client
	primary    *resolve.Primary
	normalizer *task.Normalizer
	metrics    *dispatch.Metrics

	// Built once events are up, since the dispatcher holds the publisher.
	dispatcher *dispatch.Dispatcher

	// NATS
	embeddedServer *server.Server
	publisher      *notify.Publisher

	// HTTP
	httpServer *http.Server
	listener   net.Listener
	errs       chan error
}

// NewApp creates a new application instance. No network resources are
// acquired until Start or DispatchOnce.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	profile, err := cfg.Profile()
	if err != nil {
		return nil, err
	}
	registry, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("build generation registry: %w", err)
	}

	client := llm.NewClient(cfg.LLMConfig(), llm.WithLogger(logger))
	if !client.Available() {
		logger.Warn("Primary provider unavailable, every request will use fallback output",
			"provider", cfg.Provider.Name,
			"credential_env", cfg.Provider.CredentialEnv)
	}

	app := &App{
		cfg:        cfg,
		logger:     logger,
		profile:    profile,
		client:     client,
		primary:    resolve.NewPrimary(client, registry, resolve.WithLogger(logger)),
		normalizer: task.NewNormalizer(cfg.Limits.MaxWordCount),
		errs:       make(chan error, 1),
	}
	if cfg.MetricsEnabled() {
		app.metrics = dispatch.NewMetrics()
	}
	return app, nil
}

// AIAvailable reports whether the primary provider can be attempted.
func (a *App) AIAvailable() bool {
	return a.client.Available()
}

// Addr returns the bound listen address once started.
func (a *App) Addr() string {
	if a.listener == nil {
		return a.cfg.ListenAddr()
	}
	return a.listener.Addr().String()
}

// Errors reports a failure of the HTTP server after Start.
func (a *App) Errors() <-chan error {
	return a.errs
}

// Start brings up events, the dispatcher and the HTTP listener.
func (a *App) Start(ctx context.Context) error {
	if err := a.prepare(ctx); err != nil {
		return err
	}

	srv := gateway.NewServer(a.profile, a.dispatcher, gateway.ServiceInfo{
		Version:       a.cfg.Service.Version,
		Provider:      a.client.Config().Provider,
		Model:         a.client.Model(),
		AIAvailable:   a.client.Available(),
		MaxTargetSize: a.normalizer.MaxTargetSize(),
	}, a.gatewayOptions()...)

	ln, err := net.Listen("tcp", a.cfg.ListenAddr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.ListenAddr(), err)
	}
	a.listener = ln
	a.httpServer = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.errs <- err
		}
	}()
	return nil
}

func (a *App) gatewayOptions() []gateway.Option {
	opts := []gateway.Option{gateway.WithLogger(a.logger)}
	if a.metrics != nil {
		opts = append(opts, gateway.WithMetricsHandler(a.metrics.Handler()))
	}
	return opts
}

// DispatchOnce runs a single payload through the chain without HTTP.
func (a *App) DispatchOnce(ctx context.Context, kind task.Kind, payload map[string]any) (*envelope.Envelope, error) {
	if err := a.prepare(ctx); err != nil {
		return nil, err
	}
	return a.dispatcher.Dispatch(ctx, kind, payload), nil
}

func (a *App) prepare(ctx context.Context) error {
	if a.dispatcher != nil {
		return nil
	}
	if err := a.startEvents(ctx); err != nil {
		return fmt.Errorf("start events: %w", err)
	}

	opts := []dispatch.Option{
		dispatch.WithNormalizer(a.normalizer),
		dispatch.WithFallback(resolve.NewFallback(resolve.WithLogger(a.logger))),
		dispatch.WithAssembler(envelope.NewAssembler(envelope.WithLogger(a.logger))),
		dispatch.WithLogger(a.logger),
	}
	if a.metrics != nil {
		opts = append(opts, dispatch.WithMetrics(a.metrics))
	}
	if a.publisher != nil {
		opts = append(opts, dispatch.WithPublisher(a.publisher))
	}
	a.dispatcher = dispatch.New(a.profile.Name, a.primary, opts...)
	return nil
}

// startEvents connects the outcome publisher, starting an embedded NATS
// server first when configured.
func (a *App) startEvents(_ context.Context) error {
	if !a.cfg.EventsEnabled() {
		return nil
	}

	url := a.cfg.Events.NATSURL
	if url == "" {
		a.logger.Info("Starting embedded NATS server")
		ns, err := server.NewServer(&server.Options{
			Port:   -1, // Random available port
			NoLog:  true,
			NoSigs: true,
		})
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return errors.New("embedded NATS server failed to start")
		}
		a.embeddedServer = ns
		url = ns.ClientURL()
	}

	pub, err := notify.Connect(url, a.cfg.Events.SubjectPrefix)
	if err != nil {
		return err
	}
	a.publisher = pub
	a.logger.Info("Publishing dispatch outcomes", "url", url, "prefix", a.cfg.Events.SubjectPrefix)
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	if a.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := a.httpServer.Shutdown(ctx); err != nil {
			a.logger.Error("HTTP shutdown failed", "error", err)
		}
		cancel()
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Warn("Failed to drain NATS connection", "error", err)
		}
	}

	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
}
