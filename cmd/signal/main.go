package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"camrelay/internal/app"
	httphandlers "camrelay/internal/handlers/http"
	wsignal "camrelay/internal/infrastructure/signal"
	"camrelay/pkg/config"
	"camrelay/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Must("info").Fatal("failed to load config", zap.Error(err))
	}

	zapLogger := logger.Must(cfg.Logging.Level, cfg.Logging.Format)
	defer func() { _ = zapLogger.Sync() }()
	log := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to initialise", "error", err)
	}
	defer a.Close(context.Background())

	a.Health.StartBackgroundChecks(ctx)

	feeds := wsignal.NewWebSocketServer(wsignal.Services{
		Sessions:   a.Sessions,
		Candidates: a.Candidates,
		Presence:   a.Presence,
		Pairing:    a.Pairing,
		Auth:       a.Auth,
	}, cfg, a.Metrics, log)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httphandlers.NewRouter(httphandlers.Dependencies{
		Config:     cfg,
		Pairing:    a.Pairing,
		Sessions:   a.Sessions,
		Candidates: a.Candidates,
		Presence:   a.Presence,
		Accounts:   a.Accounts,
		Auth:       a.Auth,
		Feeds:      feeds,
		Health:     a.Health,
		Metrics:    a.Metrics,
		Logger:     zapLogger,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Infow("camrelay signal server listening",
			"address", cfg.Server.Address,
			"store", a.Factory.Backend(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorw("graceful shutdown failed", "error", err)
	}
}
