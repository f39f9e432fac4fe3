// sparkreport server exposes time-bucketed count and sum reports over HTTP,
// ready to be drawn as sparklines.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/1broseidon/sparkreport/internal/api"
	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/internal/metrics"
	"github.com/1broseidon/sparkreport/internal/report"
	"github.com/1broseidon/sparkreport/internal/storage"
)

func main() {
	// Parse command line flags
	configPath := flag.String("config", "config.yml", "Path to configuration file")
	envFile := flag.String("env", ".env", "Optional .env file loaded before configuration")
	flag.Parse()

	// Environment overrides are read by viper, so .env comes first
	_ = godotenv.Load(*envFile)

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize logger
	logger, err := logging.InitLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Create Prometheus registry
	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(promRegistry)
	m.RecordConfigLoad()

	logger.ConfigEvent(logging.EventConfigLoaded, "Configuration loaded", map[string]interface{}{
		"path":    *configPath,
		"backend": cfg.Storage.Backend,
		"models":  len(cfg.Models),
	})

	// Open the data source
	ctx := context.Background()
	store, err := storage.NewStore(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	source := storage.Instrument(store, m)

	// Register reports from configuration
	reports := report.NewRegistry(source, report.DefaultsFromConfig(cfg.Reporting), logger, m)
	if err := reports.LoadModels(cfg.Models); err != nil {
		logger.WithError(err).Fatal("Failed to register reports")
	}

	server := api.NewServer(cfg, logger, promRegistry, reports, source)

	// Start server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	logger.WithFields(map[string]interface{}{
		"backend": string(store.Capabilities().Backend),
		"reports": reports.Len(),
	}).Info("sparkreport started successfully")

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down sparkreport...")

	// Gracefully shutdown the server
	if err := server.Stop(); err != nil {
		logger.WithError(err).Error("Failed to shutdown server gracefully")
	}

	// Close the source last so in-flight reports can finish
	if err := store.Close(); err != nil {
		logger.WithError(err).Error("Failed to close storage")
	}

	logger.Info("sparkreport stopped")
}
