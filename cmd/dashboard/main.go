package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/ryanbastic/go-dashboard/internal/api"
	"github.com/ryanbastic/go-dashboard/internal/auth"
	"github.com/ryanbastic/go-dashboard/internal/circuitbreaker"
	"github.com/ryanbastic/go-dashboard/internal/config"
	"github.com/ryanbastic/go-dashboard/internal/favicon"
	"github.com/ryanbastic/go-dashboard/internal/metrics"
	"github.com/ryanbastic/go-dashboard/internal/storage"
	"github.com/ryanbastic/go-dashboard/internal/weather"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg := config.Load()

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}
	logger.Info("connected to database")

	if err := storage.RunMigrations(ctx, pool); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	logger.Info("migrations complete")

	prometheus.MustRegister(metrics.NewPoolCollector(map[string]*pgxpool.Pool{"primary": pool}))

	var provider weather.Provider = weather.StaticProvider{}
	if cfg.WeatherAPIURL != "" {
		provider = weather.NewHTTPProvider(cfg.WeatherAPIURL, cfg.WeatherAPIKey, cfg.WeatherTimeout, cfg.WeatherRateLimit)
		logger.Info("weather provider configured", "url", cfg.WeatherAPIURL, "rate_limit", cfg.WeatherRateLimit)
	} else {
		logger.Warn("WEATHER_API_URL not set, serving static weather")
	}
	breaker := circuitbreaker.New(cfg.BreakerMaxFailures, cfg.BreakerResetTimeout,
		circuitbreaker.WithFailurePredicate(weather.IsProviderFailure),
		circuitbreaker.WithStateChange(func(from, to circuitbreaker.State) {
			metrics.ObserveBreaker("weather", to)
			logger.Warn("weather circuit breaker state changed", "from", from.String(), "to", to.String())
		}),
	)

	handler := api.NewServer(logger, api.Deps{
		Store:    storage.NewPostgresStore(pool, cfg.QueryTimeout),
		Verifier: auth.NewVerifier(cfg.JWTSecret, cfg.JWTAudience),
		Weather:  weather.NewGuarded(provider, breaker),
		Favicons: favicon.NewResolver(cfg.FaviconService),
		Backends: map[string]api.Pinger{"postgres": pool},
		Breakers: map[string]*circuitbreaker.Breaker{"weather": breaker},
	})
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
