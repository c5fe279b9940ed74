package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"vitalink/health-client/internal/config"
	"vitalink/health-client/internal/logging"
	"vitalink/health-client/internal/mockapi"
)

// mockserver runs the in-memory mock of the backend API for local
// development, seeded with one demo account (demo@vitalink.test / demo1234).
func main() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("FATAL: Could not load config: %v", err)
	}

	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		log.Fatalf("FATAL: Could not build logger: %v", err)
	}

	server := mockapi.NewServer(cfg.Mock.JWTSecret, cfg.Mock.AccessTTL, cfg.Mock.RefreshTTL, logger)
	userID, err := server.SeedUser("demo@vitalink.test", "demo1234")
	if err != nil {
		log.Fatalf("FATAL: Could not seed demo user: %v", err)
	}
	logger.Infof("seeded demo user demo@vitalink.test (%s)", userID)

	httpServer := &http.Server{
		Addr:         cfg.Mock.Address,
		Handler:      server.Engine(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Infof("mock backend listening on %s", cfg.Mock.Address)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("FATAL: ListenAndServe: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Infof("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("FATAL: Server forced to shutdown: %v", err)
	}
}
