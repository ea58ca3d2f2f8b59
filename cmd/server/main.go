package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"olympiad-tracker/internal/app"
	"olympiad-tracker/internal/config"
	"olympiad-tracker/internal/http/router"
	"olympiad-tracker/internal/logging"
)

func main() {
	configPath := os.Getenv("CONFIG_FILE")
	if configPath == "" {
		configPath = "config/app.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v, using defaults", err)
		cfg = config.Default()
		if err := cfg.ApplyEnv(); err != nil {
			log.Fatalf("Invalid environment: %v", err)
		}
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to initialize")
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.WithError(err).Error("shutdown")
		}
	}()

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router.Setup(a),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.WithField("signal", sig.String()).Info("shutting down")
	case err := <-errCh:
		logger.WithError(err).Error("server failed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}
