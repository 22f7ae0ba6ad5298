package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"surveycli/internal/config"
	apierrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
	"surveycli/internal/services"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "config file path (defaults to config.yaml discovery)")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// Optional .env overlay for local development; a missing file is fine
	_ = godotenv.Load()

	if err := run(*configPath); err != nil {
		slog.Error("Aggregation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("failed to initialize paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create required directories: %w", err)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Route file logging into the executable-relative logs directory
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath("aggregate.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "aggregate_cli")

	logger.Info("Starting aggregation run",
		slog.String("source", cfg.Source.Name),
		slog.String("output", cfg.Output.Name),
		slog.String("storage_backend", cfg.Storage.Backend))

	// One trace ID spans every log line of the run
	ctx := infrastructure.EnsureTraceID(context.Background())

	store, err := storage.OpenStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage backend: %w", err)
	}
	defer closeStore(store, logger)

	service, err := services.NewSurveyService(cfg, store, nil, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize survey service: %w", err)
	}

	summary, err := service.Aggregate(ctx)
	if err != nil {
		return describeRunError(err, cfg)
	}

	logger.Info("Aggregation run complete",
		slog.String("run_id", summary.RunID),
		slog.String("source", summary.Source),
		slog.String("output", summary.Output),
		slog.Int("row_count", summary.RowCount),
		slog.Int("column_count", summary.ColumnCount),
		slog.Duration("duration", summary.Duration))

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// describeRunError turns pipeline errors into actionable messages
func describeRunError(err error, cfg *config.Config) error {
	if apierrors.IsSourceNotFound(err) {
		return fmt.Errorf("source table %q does not exist in the %s backend: %w",
			cfg.Source.Name, cfg.Storage.Backend, err)
	}
	if apierrors.IsSchemaMismatch(err) {
		return fmt.Errorf("source table %q has rows that disagree with its header; nothing was written: %w",
			cfg.Source.Name, err)
	}
	return err
}

func closeStore(store storage.TableStore, logger *slog.Logger) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			infrastructure.WithError(logger, err).Warn("Failed to close storage backend")
		}
	}
}
