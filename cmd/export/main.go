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
		slog.Error("Export failed", slog.String("error", err.Error()))
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
		cfg.Logging.FilePath = paths.GetLogPath("export.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "export_cli")

	logger.Info("Starting CSV export",
		slog.String("output", cfg.Output.Name),
		slog.String("export_dir", cfg.GetExportDir()),
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

	result, err := service.Export(ctx)
	if err != nil {
		return describeExportError(err, cfg)
	}

	logger.Info("Export complete",
		slog.String("name", result.Name),
		slog.String("path", result.Path),
		slog.Int64("size_bytes", result.Size))

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// describeExportError turns export errors into actionable messages
func describeExportError(err error, cfg *config.Config) error {
	if apierrors.IsAggregatedTableNotFound(err) {
		return fmt.Errorf("aggregated table %q does not exist yet; run the aggregate command first: %w",
			cfg.Output.Name, err)
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
