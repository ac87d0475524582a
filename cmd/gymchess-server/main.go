package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"gymchess/bots"
	"gymchess/config"
	"gymchess/dispatch"
	"gymchess/logging"
	"gymchess/server"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.Setup(cfg.Logs.Style, cfg.Logs.Level)
	gin.SetMode(gin.ReleaseMode)

	policy := bots.NewPolicy(cfg.Tiers()...)
	d := dispatch.New(policy, dispatch.WithDelay(cfg.Bot.ThinkDelay), dispatch.WithLogger(logger))
	router := server.NewRouter(server.NewHandler(d, policy, logger))

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: router,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
		close(serverErrCh)
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	logger.Info().Str("addr", cfg.HTTPAddr).Msg("gymchess server listening")
	var runErr error
	select {
	case <-sigCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err, ok := <-serverErrCh:
		if ok {
			runErr = err
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn().Err(err).Msg("graceful shutdown failed")
		if closeErr := srv.Close(); closeErr != nil && !errors.Is(closeErr, http.ErrServerClosed) {
			logger.Error().Err(closeErr).Msg("forced close failed")
		}
	}
	if err := d.Close(); err != nil {
		logger.Warn().Err(err).Msg("dispatcher close")
	}
	if runErr != nil {
		logger.Fatal().Err(runErr).Msg("server error")
	}
}
