package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"homes-scraper/browser"
	"homes-scraper/config"
	"homes-scraper/models"
	"homes-scraper/scraper"
	"homes-scraper/services"
	"homes-scraper/storage"
	"homes-scraper/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("=== Listing Scraping System starting ===")
	logger.Info("Config — engine: %s | strategy: %s | max pages: %d | checkpoint every %d | failure limit: %d",
		cfg.BrowserEngine, cfg.VisitStrategy, cfg.MaxPages, cfg.CheckpointInterval, cfg.FailureThreshold())

	entries, err := loadEntries(cfg)
	if err != nil {
		logger.Error("Failed to load searches: %v", err)
		os.Exit(1)
	}

	writer, pgWriter, err := buildWriters(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to set up output: %v", err)
		os.Exit(1)
	}
	defer writer.Close()

	launch, err := browser.NewLauncher(cfg.BrowserEngine, browser.Options{
		Headless:   cfg.Headless,
		ChromeBin:  cfg.ChromeBin,
		NavTimeout: cfg.NavTimeout,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to set up browser: %v", err)
		os.Exit(1)
	}

	controller := scraper.NewController(cfg, launch, writer, logger)
	results, runErr := controller.RunQueue(ctx, entries)
	if runErr != nil {
		logger.Error("Some sessions failed: %v", runErr)
	}

	var (
		reports []*models.SessionReport
		records []*models.ListingRecord
	)
	for _, res := range results {
		reports = append(reports, res.Report)
		records = append(records, res.Records...)
	}

	if pgWriter != nil {
		if stored, err := pgWriter.FetchAll(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to fetch records from PostgreSQL for insights: %v", err)
		} else {
			records = stored
		}
	}

	cleaner := services.NewCleaner(logger)
	insightSvc := services.NewInsightService(logger)
	insightSvc.Print(os.Stdout, insightSvc.Generate(reports, cleaner.Clean(records)))

	fmt.Printf("  Done. Output → %s\n\n", cfg.OutputDir)
	if runErr != nil {
		os.Exit(1)
	}
}

func loadEntries(cfg *config.Config) ([]config.SearchEntry, error) {
	if cfg.QueueFile != "" {
		return config.LoadQueue(cfg.QueueFile, cfg.TargetCount)
	}
	return cfg.SingleEntry()
}

// buildWriters wires every enabled output backend behind one RecordWriter.
func buildWriters(ctx context.Context, cfg *config.Config, logger *utils.Logger) (storage.RecordWriter, *storage.PostgresWriter, error) {
	var writers []storage.RecordWriter
	for _, format := range cfg.OutputFormats {
		switch format {
		case "csv":
			w, err := storage.NewCSVWriter(cfg.OutputDir)
			if err != nil {
				return nil, nil, err
			}
			writers = append(writers, w)
		case "json":
			w, err := storage.NewJSONWriter(cfg.OutputDir)
			if err != nil {
				return nil, nil, err
			}
			writers = append(writers, w)
		}
	}

	var pgWriter *storage.PostgresWriter
	if cfg.PostgresEnabled {
		w, err := storage.NewPostgresWriter(ctx, cfg.DSN(), logger)
		if err != nil {
			logger.Error("Make sure PostgreSQL is running and POSTGRES_* is set")
			return nil, nil, err
		}
		pgWriter = w
		writers = append(writers, w)
	}

	if cfg.ElasticEnabled {
		w, err := storage.NewElasticWriter(ctx, cfg.ElasticAddress, cfg.ElasticUsername,
			cfg.ElasticPassword, cfg.ElasticIndex, cfg.ElasticInsecure, logger)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, w)
	}

	return storage.NewMultiWriter(writers...), pgWriter, nil
}
