// Package app wires the store, services and observability stack shared by
// the signal server and the reconciler binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"camrelay/internal/core/ports"
	"camrelay/internal/core/services"
	"camrelay/internal/infrastructure/monitoring"
	"camrelay/internal/infrastructure/repositories"
	"camrelay/pkg/config"
	"camrelay/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

type App struct {
	Config  *config.Config
	Logger  *zap.SugaredLogger
	Factory *repositories.RepositoryFactory
	Repos   *repositories.Repositories
	Metrics *monitoring.PrometheusCollector
	Health  *monitoring.HealthChecker
	Tracer  *tracing.TracerProvider

	Pairing    ports.PairingService
	Sessions   ports.SessionService
	Candidates ports.CandidateService
	Presence   ports.PresenceService
	Accounts   ports.AccountService
	Auth       services.AuthService
	Reconciler *services.ReconcilerService
}

// New connects the store and builds every service.
func New(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*App, error) {
	tp, err := tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		JaegerURL:   cfg.Tracing.JaegerEndpoint,
		SampleRate:  cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := monitoring.NewPrometheusCollector(registry)

	factory := repositories.NewRepositoryFactory(ctx, cfg, logger)
	repos := factory.Create()

	health := monitoring.NewHealthChecker(logger)
	health.AddStoreCheck(factory.HealthCheck, 30*time.Second, 2*time.Second)
	health.AddRepositoryCheck(repos.Cameras, 30*time.Second, 2*time.Second)

	pairing := services.NewPairingService(repos.Cameras, repos.Links, metrics, logger)

	return &App{
		Config:  cfg,
		Logger:  logger,
		Factory: factory,
		Repos:   repos,
		Metrics: metrics,
		Health:  health,
		Tracer:  tp,

		Pairing:    pairing,
		Sessions:   services.NewSessionService(repos.Sessions, metrics, logger),
		Candidates: services.NewCandidateService(repos.Candidates, metrics),
		Presence:   services.NewPresenceService(repos.Cameras, pairing, cfg.Presence.ReachableTimeout, logger),
		Accounts:   services.NewAccountService(repos.Cameras, repos.Links, repos.Sessions, logger),
		Auth: services.NewAuthService(
			cfg.Auth.JWTSecret,
			cfg.Auth.Issuer,
			cfg.Auth.AccessTokenTTL,
			repos.Cameras,
			repos.Links,
			repos.Sessions,
		),
		Reconciler: services.NewReconcilerService(repos.Cameras, repos.Sessions, ReconcilerConfig(cfg), metrics, logger),
	}, nil
}

// ReconcilerConfig maps the per-sweep timeouts from cfg.
func ReconcilerConfig(cfg *config.Config) services.ReconcilerConfig {
	rc := services.DefaultReconcilerConfig()
	if t := cfg.Reconciler.StaleOffers.Timeout; t > 0 {
		rc.StaleOfferTimeout = t
	}
	if t := cfg.Reconciler.Heartbeats.Timeout; t > 0 {
		rc.HeartbeatTimeout = t
	}
	if t := cfg.Reconciler.Orphans.Timeout; t > 0 {
		rc.OrphanTimeout = t
	}
	if t := cfg.Reconciler.Reap.Timeout; t > 0 {
		rc.ReapTimeout = t
	}
	return rc
}

// Close flushes traces and releases the store connection.
func (a *App) Close(ctx context.Context) {
	if err := a.Tracer.Shutdown(ctx); err != nil {
		a.Logger.Warnw("failed to flush traces", "error", err)
	}
	if err := a.Factory.Close(); err != nil {
		a.Logger.Warnw("failed to close store", "error", err)
	}
}
