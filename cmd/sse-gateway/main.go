package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/aishgopalia-innov/sse-poc/internal/auth"
	"github.com/aishgopalia-innov/sse-poc/internal/config"
	"github.com/aishgopalia-innov/sse-poc/internal/limits"
	"github.com/aishgopalia-innov/sse-poc/internal/logging"
	"github.com/aishgopalia-innov/sse-poc/internal/metrics"
	"github.com/aishgopalia-innov/sse-poc/internal/platform"
	"github.com/aishgopalia-innov/sse-poc/internal/session"
	"github.com/aishgopalia-innov/sse-poc/internal/transport"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// Bootstrap logger until the configured one exists.
	bootstrap := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(&bootstrap)
	if err != nil {
		bootstrap.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logger := logging.NewLogger(cfg.LogLevel, cfg.LogFormat)
	cfg.LogConfig(logger)

	metricsRegistry := metrics.NewRegistry()
	registry := session.NewRegistry(cfg.SendQueueSize, logger)

	serviceTokens, err := cfg.ServiceTokenMap()
	if err != nil {
		logger.Fatal().Err(err).Msg("Invalid service token configuration")
	}
	serviceAuth := auth.NewTokenAuthenticator(serviceTokens)

	var resolver auth.PrincipalResolver
	if cfg.JWTSecret != "" {
		resolver = auth.NewJWTResolver(cfg.JWTSecret)
		logger.Info().Msg("Subscriber auth: JWT bearer tokens")
	} else {
		userWorkspaces, err := cfg.UserWorkspaceMap()
		if err != nil {
			logger.Fatal().Err(err).Msg("Invalid user workspace configuration")
		}
		resolver = &auth.HeaderResolver{UserWorkspaces: userWorkspaces}
		logger.Info().Msg("Subscriber auth: X-User-Id header")
	}

	var rateLimiter *limits.ConnectionRateLimiter
	if cfg.ConnRateLimitEnabled {
		rateLimiter = limits.NewConnectionRateLimiter(limits.RateLimiterConfig{
			IPBurst:     cfg.ConnRateIPBurst,
			IPRate:      cfg.ConnRateIPRate,
			GlobalBurst: cfg.ConnRateGlobalBurst,
			GlobalRate:  cfg.ConnRateGlobalRate,
			Logger:      logger,
			OnReject: func(scope string) {
				metricsRegistry.Connections.RateLimited.WithLabelValues(scope).Inc()
			},
		})
	}

	monitor := platform.NewSystemMonitor()
	monitor.Start(5 * time.Second)

	server := transport.NewServer(cfg, logger, registry, resolver, serviceAuth, metricsRegistry, rateLimiter, monitor)
	if err := server.Start(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to start gateway")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info().Str("signal", sig.String()).Msg("Shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Shutdown did not complete cleanly")
		os.Exit(1)
	}
}
