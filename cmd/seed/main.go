// seed writes YAML fixture records to a schemaless storage backend so reports
// have data to show.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	"github.com/1broseidon/sparkreport/internal/config"
	"github.com/1broseidon/sparkreport/internal/fixtures"
	"github.com/1broseidon/sparkreport/internal/logging"
	"github.com/1broseidon/sparkreport/internal/storage"
)

func main() {
	configPath := flag.String("config", "config.yml", "Path to configuration file")
	fixturePath := flag.String("fixture", "fixtures.yml", "Path to YAML fixture file")
	envFile := flag.String("env", ".env", "Optional .env file loaded before configuration")
	flag.Parse()

	_ = godotenv.Load(*envFile)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.InitLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
		Fields: cfg.Logging.Fields,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	logger = logger.WithComponent(logging.ComponentSeed)

	fixture, err := fixtures.Load(*fixturePath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load fixture")
	}

	ctx := context.Background()
	store, err := storage.NewStore(ctx, &cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize storage")
	}
	defer store.Close()

	writer, err := fixtures.Target(store)
	if err != nil {
		logger.WithError(err).Error("Choose a persistent backend such as badger or redis")
		store.Close()
		os.Exit(1)
	}

	start := time.Now()
	stored, err := fixtures.Apply(ctx, writer, fixture.Expand(start))
	if err != nil {
		logger.WithError(err).Error("Seeding stopped early")
	}

	modelNames := make([]string, 0, len(stored))
	total := 0
	for model, n := range stored {
		modelNames = append(modelNames, model)
		total += n
	}
	sort.Strings(modelNames)

	for _, model := range modelNames {
		fmt.Printf("%-20s %s records\n", model, humanize.Comma(int64(stored[model])))
	}
	fmt.Printf("Seeded %s records into %s in %s\n",
		humanize.Comma(int64(total)), store.Capabilities().Backend, time.Since(start).Round(time.Millisecond))

	if err != nil {
		store.Close()
		os.Exit(1)
	}
}
