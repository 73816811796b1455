package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/perry/email-evolve/internal/api"
	"github.com/perry/email-evolve/internal/config"
	"github.com/perry/email-evolve/internal/core"
	"github.com/perry/email-evolve/internal/di"
)

const shutdownTimeout = 30 * time.Second

func main() {
	container, err := di.BuildContainer()
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		fmt.Printf("Application error: %v\n", err)
		os.Exit(1)
	}
}

// run starts the API server and blocks until shutdown
func run(
	logger *zap.Logger,
	server *api.Server,
	store core.Store,
	cfg config.APIConfig,
) error {
	defer logger.Sync()
	defer store.Close()
	defer server.Close()

	srv := &http.Server{
		Addr:    cfg.ListenAddress,
		Handler: server.Handler(),
	}

	go func() {
		logger.Info("API server starting", zap.String("address", cfg.ListenAddress))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("API server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("Shutdown complete")
	return nil
}
