package devserverapp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"smart-fleet/internal/devserver"
	"smart-fleet/internal/general/config"
	"smart-fleet/internal/general/jwt"
	"smart-fleet/internal/general/logger"
	"smart-fleet/internal/general/metrics"
	"smart-fleet/internal/general/websocket"

	"golang.org/x/crypto/bcrypt"
)

// Run serves the in-process backend with seeded data and blocks until ctx is cancelled.
// simulate overrides devserver.simulate_interval when non-negative.
func Run(ctx context.Context, simulate time.Duration, maxConcurrent int) error {
	logger := logger.New("fleet-devserver")
	ctx = logger.WithRequestID(ctx, "startup-001")

	cfg, err := config.Load(config.DefaultPath)
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}
	if simulate < 0 {
		simulate = cfg.DevServer.SimulateInterval
	}

	// tokens signed here are what the client presents on REST and STOMP
	jwtManager := jwt.NewManager(cfg.DevServer.SecretKey, 2*time.Hour)

	store := devserver.NewStore(bcrypt.DefaultCost)
	if err := devserver.Seed(store); err != nil {
		logger.Error(ctx, "seed_failed", "Failed to seed the dev store", err, nil)
		return err
	}

	broker := websocket.NewBroker(logger, websocket.WithAuth(jwtManager, false))
	server := devserver.NewServer(store, jwtManager, broker, logger)

	go func() {
		if err := metrics.StartMetricsServer(ctx, cfg.Metrics.Port); err != nil {
			logger.Error(ctx, "metrics_server_failed", "Metrics listener stopped", err, map[string]any{"port": cfg.Metrics.Port})
		}
	}()
	go server.Simulate(ctx, simulate)

	logger.Info(ctx, "service_started",
		fmt.Sprintf("Dev server started on port %d", cfg.DevServer.Port),
		map[string]any{
			"port":           cfg.DevServer.Port,
			"max_concurrent": maxConcurrent,
			"simulate":       simulate.String(),
			"seed_users":     []string{devserver.SeedAdmin, devserver.SeedDriver, devserver.SeedDriverNoTruck},
		},
	)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.DevServer.Port),
		Handler:           withConcurrencyLimit(maxConcurrent, server.Router()),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		// websocket sessions are hijacked, so Shutdown does not wait for them
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
		logger.Info(ctx, "service_stopped", "Dev server stopped", nil)
		return nil
	case err := <-errCh:
		if err != nil {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.DevServer.Port})
		}
		return err
	}
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// Long-lived websocket sessions hold a slot for their whole lifetime.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
