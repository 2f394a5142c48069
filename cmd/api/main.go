package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"sportclub/internal/config"
	"sportclub/internal/database"
	"sportclub/internal/database/migrate"
	"sportclub/internal/jobs"
	"sportclub/internal/logging"
	"sportclub/internal/notification"
	"sportclub/internal/server"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("connect database")
	}
	if err := migrate.Run(db); err != nil {
		logging.Fatal().Err(err).Msg("migrate")
	}

	var notifier notification.Dispatcher = notification.NewLogDispatcher()
	var webhook *notification.WebhookDispatcher
	if cfg.NotifyWebhookURL != "" {
		webhook = notification.NewWebhookDispatcher(cfg.NotifyWebhookURL, cfg.NotifyTimeout)
		notifier = webhook
	}

	app := server.New(cfg, db, server.WithNotifier(notifier))

	scheduler, err := jobs.New(cfg.Location, cfg.RolloverCron, app.Quotas, app.Limiter)
	if err != nil {
		logging.Fatal().Err(err).Msg("schedule jobs")
	}
	scheduler.Start()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error().Err(err).Msg("shutdown server")
		}
		scheduler.Stop(shutdownCtx)
	}()

	logging.Info().
		Str("addr", cfg.HTTPAddr).
		Str("env", cfg.AppEnv).
		Str("timezone", cfg.Location.String()).
		Bool("webhook", webhook != nil).
		Msg("sportclub api listening")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.Fatal().Err(err).Msg("serve")
	}

	// In-flight webhook posts finish before exit.
	if webhook != nil {
		webhook.Wait()
	}
	logging.Info().Msg("stopped")
}
