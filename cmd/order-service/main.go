package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/labtrace/lims/internal/orders"
	"github.com/labtrace/lims/pkg/config"
	"github.com/labtrace/lims/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	// Initialize Order Service
	service := orders.New(cfg, logger)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8084"
	}

	// Start service in a goroutine
	go func() {
		logger.Infof("Starting Order Service on port %s", port)
		if err := service.Start(":" + port); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start Order Service: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down Order Service...")
	if err := service.Stop(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
	logger.Info("Order Service stopped")
}
