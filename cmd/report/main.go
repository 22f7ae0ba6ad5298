package main

import (
	"context"
	"errors"
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
	topN := flag.Int("top", 0, "frequency table rows per question (defaults to report.top_n)")
	format := flag.String("format", services.ReportFormatText, "output format: json | text | markdown | html")
	outPath := flag.String("out", "", "write the report to a file instead of stdout")
	save := flag.Bool("save", false, "also persist a markdown artifact next to the CSV exports")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	// Optional .env overlay for local development; a missing file is fine
	_ = godotenv.Load()

	if err := run(*configPath, *topN, *format, *outPath, *save); err != nil {
		slog.Error("Report generation failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(configPath string, topN int, format, outPath string, save bool) error {
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

	// The rendered document owns stdout; logs move to stderr
	if cfg.Logging.Output == "stdout" || cfg.Logging.Output == "both" {
		cfg.Logging.Output = "stderr"
	}
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath("report.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "report_cli")

	topN = resolveTopN(topN, cfg.Report.TopN)

	logger.Info("Generating statistics report",
		slog.String("output", cfg.Output.Name),
		slog.Int("top_n", topN),
		slog.String("format", format))

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

	doc, err := service.RenderedReport(ctx, topN, format)
	if err != nil {
		return describeReportError(err, cfg)
	}

	if outPath != "" {
		if err := os.WriteFile(outPath, doc.Body, 0644); err != nil {
			return fmt.Errorf("failed to write report file: %w", err)
		}
		logger.Info("Report written", slog.String("path", outPath))
	} else {
		if _, err := os.Stdout.Write(doc.Body); err != nil {
			return fmt.Errorf("failed to write report to stdout: %w", err)
		}
	}

	if save {
		_, artifactPath, err := service.SaveReportMarkdown(ctx, topN)
		if err != nil {
			return fmt.Errorf("failed to save markdown artifact: %w", err)
		}
		logger.Info("Markdown artifact saved", slog.String("path", artifactPath))
	}

	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// resolveTopN prefers the flag when set, then the configured default
func resolveTopN(flagValue, configValue int) int {
	if flagValue > 0 {
		return flagValue
	}
	if configValue > 0 {
		return configValue
	}
	return config.DefaultTopN
}

// describeReportError turns report errors into actionable messages
func describeReportError(err error, cfg *config.Config) error {
	if apierrors.IsAggregatedTableNotFound(err) {
		return fmt.Errorf("aggregated table %q does not exist yet; run the aggregate command first: %w",
			cfg.Output.Name, err)
	}
	if errors.Is(err, services.ErrUnknownReportFormat) {
		return fmt.Errorf("unknown format; use one of json, text, markdown, html: %w", err)
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
