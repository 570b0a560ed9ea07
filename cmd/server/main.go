package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/config"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/logger"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/search"
	"github.com/rayli0224/FB-Marketplace-Deal-Finder/internal/server"
)

func main() {
	config.LoadConfig()

	log := logger.New(logger.FromConfig(config.AppConfig.LogLevel, config.AppConfig.LogFormat))

	log.Info("starting deal finder gateway",
		"port", config.AppConfig.Port,
		"producer", config.AppConfig.ProducerBaseURL,
		"debug", config.AppConfig.DebugMode)

	client := search.NewClient(config.AppConfig.ProducerBaseURL, log.WithComponent("producer-client"))
	controller := search.NewController(client, config.AppConfig, log)

	srv := &http.Server{
		Addr:              ":" + config.AppConfig.Port,
		Handler:           server.New(config.AppConfig, controller, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	// Stop any in-flight run first so the producer gets its cancel
	// notification before we stop serving.
	controller.Cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(config.AppConfig.ServerShutdownTimeoutSeconds)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("server stopped")
}
