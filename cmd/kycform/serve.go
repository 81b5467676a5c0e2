package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/gabrielmiguelok/kycform/client"
	"github.com/gabrielmiguelok/kycform/internal/application"
	"github.com/gabrielmiguelok/kycform/internal/config"
	"github.com/gabrielmiguelok/kycform/internal/web"
	"github.com/gabrielmiguelok/kycform/pkg/health"
	"github.com/gabrielmiguelok/kycform/pkg/logging"
	"github.com/gabrielmiguelok/kycform/pkg/metrics"
	"github.com/gabrielmiguelok/kycform/pkg/router"
	"github.com/gabrielmiguelok/kycform/pkg/shutdown"
	"github.com/gabrielmiguelok/kycform/pkg/state"
	"github.com/gabrielmiguelok/kycform/pkg/tracing"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the form over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().String("addr", ":8080", "Listen address")
	return cmd
}

// app is the assembled HTTP stack.
type app struct {
	handler http.Handler
	router  *router.Router
	store   state.Store
	logger  logging.Logger
}

// newApp wires the store, router and form from cfg.
func newApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*app, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	m := metrics.Nop()
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics.Namespace)
	}
	tracer := tracing.NewTracer("kycform")

	r := router.New(
		router.WithLogger(logger),
		router.WithMetrics(m),
		router.WithTracer(tracer),
		router.WithSessionStore(state.NewSessionStore(store, state.WithTTL(cfg.State.TTL))),
		router.WithTransportConfig(cfg.TransportSettings()),
		router.WithWebSocketConfig(cfg.WebSocketSettings()),
		router.WithMaxSessions(cfg.Server.MaxSessions),
		router.WithConnectionsPerIP(cfg.Server.MaxConnectionsPerIP),
		router.WithEventRate(cfg.Server.EventRate, cfg.Server.EventBurst),
	)
	r.Use(router.DefaultStack(logger, tracer)...)

	submitter := application.Instrument(
		application.NewSimulatedSubmitter(cfg.Submission.Delay),
		logger.With(logging.String("component", "submitter")),
		m,
		tracer,
	)
	r.Live("/", web.Factory(web.Deps{
		Submitter:     submitter,
		Logger:        logger.With(logging.String("component", web.ComponentName)),
		Metrics:       m,
		SubmitTimeout: cfg.Submission.Timeout,
		ScriptPath:    client.ScriptURL("/_live"),

		PersistSensitive: inProcess(store),
	}))

	r.Handle("/assets/*", http.StripPrefix("/assets/", web.AssetsHandler()))
	r.Handle("/_live/*", http.StripPrefix("/_live/", client.Handler()))

	checker := health.NewChecker(version)
	checker.AddCriticalCheck("state_store", health.PingCheck(store), 0)
	checker.AddCheck("sessions", health.CapacityCheck(r.Sessions().Count, cfg.Server.MaxSessions), 0)
	r.Handle("/healthz", checker.LivenessHandler())
	r.Handle("/readyz", checker.ReadinessHandler())

	if cfg.Metrics.Enabled {
		r.Handle("/metrics", m.Handler())
	}

	return &app{handler: r, router: r, store: store, logger: logger}, nil
}

func openStore(ctx context.Context, cfg *config.Config) (state.Store, error) {
	switch cfg.State.Backend {
	case "redis":
		store, err := state.NewRedisStore(ctx, cfg.RedisSettings())
		if err != nil {
			return nil, fmt.Errorf("open redis store: %w", err)
		}
		return store, nil
	default:
		return state.NewMemoryStore(), nil
	}
}

// inProcess reports whether snapshots stay in this process's memory.
func inProcess(store state.Store) bool {
	_, ok := store.(*state.MemoryStore)
	return ok
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.NewZapLogger(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	logging.SetDefault(logger)

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           a.handler,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	sh := shutdown.NewHandler(&shutdown.Config{
		Timeout: cfg.Server.ShutdownTimeout,
		Logger:  logger,
	})
	sh.RegisterFunc("http", shutdown.PriorityHTTP, srv.Shutdown)
	sh.RegisterFunc("live", shutdown.PriorityLive, a.router.Shutdown)
	sh.Register(shutdown.CloseableHook("state_store", shutdown.PriorityStore, a.store))
	sh.RegisterFunc("logger", shutdown.PriorityTelemetry, func(context.Context) error {
		// Syncing a console logger on stderr fails on some platforms.
		_ = logger.Sync()
		return nil
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening",
			logging.String("addr", cfg.Server.Addr),
			logging.String("state_backend", cfg.State.Backend),
			logging.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := sh.Wait(gctx)
		if errors.Is(err, shutdown.ErrAlreadyClosed) {
			return nil
		}
		return err
	})
	return g.Wait()
}
