package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/catalog-admin/internal/catalog"
	"github.com/xenking/catalog-admin/internal/console"
	"github.com/xenking/catalog-admin/internal/session"
	"github.com/xenking/catalog-admin/internal/workspace"
	"github.com/xenking/catalog-admin/pkg/health"
	"github.com/xenking/catalog-admin/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the console.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("catalog", cfg.Remote.BaseURL),
	)

	client, err := catalog.NewClient(catalog.Config{
		BaseURL:        cfg.Remote.BaseURL,
		APIPath:        cfg.Remote.APIPath,
		Timeout:        cfg.Remote.Timeout,
		MeterProvider:  m.MeterProvider(),
		TracerProvider: m.TracerProvider(),
	})
	if err != nil {
		return errors.Wrap(err, "create catalog client")
	}

	sessions, err := session.NewStore(session.Config{
		HashKey:  []byte(cfg.Session.HashKey),
		BlockKey: []byte(cfg.Session.BlockKey),
		Secure:   cfg.Session.Secure,
	})
	if err != nil {
		return errors.Wrap(err, "create session store")
	}
	if cfg.Session.HashKey == "" {
		lg.Warn("No session hash key configured, sessions end on restart")
	}

	healthSvc := newHealth(cfg.Readiness, client)
	healthSvc.Start(ctx, cfg.Readiness.Interval)
	healthSvc.SetReady(true)

	workspaces := workspace.NewRegistry(client)
	workspaces.StartEviction(ctx, cfg.Workspace.EvictInterval)

	router, err := console.NewRouter(console.Options{
		Auth:       client,
		Sessions:   sessions,
		Workspaces: workspaces,
		SignInThrottle: httpmiddleware.ThrottleWithSweep(ctx, httpmiddleware.ThrottleConfig{
			Max:    cfg.SignInLimit.Max,
			Window: cfg.SignInLimit.Window,
		}),
		Middlewares: []httpmiddleware.Middleware{
			httpmiddleware.LogRequests(console.RoutePattern),
			httpmiddleware.Labeler(console.RoutePattern),
		},
	})
	if err != nil {
		return errors.Wrap(err, "create console router")
	}

	// Mux: health endpoints + console routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// Writes wait on the catalog service.
		WriteTimeout:   cfg.Remote.Timeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("catalog-admin", m),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHealth registers the liveness checks and the catalog readiness check.
// It does not start polling.
func newHealth(cfg ReadinessConfig, catalog health.Pinger) *health.Health {
	h := health.New()
	h.AddReadinessCheck("catalog", 5*time.Second, health.PingCheck(catalog),
		health.WithThresholds(cfg.Failures, cfg.Successes))
	h.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	h.AddLivenessCheck("gc", time.Second, health.GCMaxPauseCheck(time.Second))
	return h
}

func signInThrottle(cfg SignInLimitConfig) httpmiddleware.ThrottleConfig {
	tc := httpmiddleware.ThrottleConfig{
		Max:    cfg.Max,
		Window: cfg.Window,
	}
	if cfg.TrustProxy {
		tc.KeyFunc = httpmiddleware.ForwardedIP
	}
	return tc
}
