package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"garmentstudio/internal/httpui"
	"garmentstudio/internal/infra"
	"garmentstudio/internal/observability"
	"garmentstudio/internal/session"
	"garmentstudio/internal/submit"
	"garmentstudio/internal/webhook"
)

func main() {
	// Load .env (optional)
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	sessions := session.NewStore(session.NewMemoryStorage(), cfg.SessionTTL)
	metrics := observability.NewMetrics("garmentstudio")

	client := webhook.NewClient(webhook.Options{
		SubmitURL: cfg.SubmitWebhookURL,
		AuthURL:   cfg.AuthWebhookURL,
		Logger:    &logger,
	})

	controller := submit.NewController(submit.Options{
		Service:         client,
		Logger:          &logger,
		Metrics:         metrics,
		RateLimitWindow: cfg.RateLimitWindow,
		SoftNoticeDelay: cfg.SoftNoticeDelay,
		PollInterval:    cfg.PollInterval,
		PollMaxAttempts: cfg.PollMaxAttempts,
	})

	ui := httpui.New(cfg, logger, sessions, client, controller, metrics)
	server := infra.NewHTTPServer(cfg, ui.Router())

	// Start async
	go func() {
		logger.Info().Msgf("studio UI listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != os.ErrClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	controller.Cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
