package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"surveycli/internal/config"
	apierrors "surveycli/internal/errors"
	"surveycli/internal/infrastructure"
	"surveycli/internal/services"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts"
	"surveycli/pkg/contracts/domain"
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
		slog.Error("Audit failed", slog.String("error", err.Error()))
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

	// The audit table owns stdout; logs move to stderr
	if cfg.Logging.Output == "stdout" || cfg.Logging.Output == "both" {
		cfg.Logging.Output = "stderr"
	}
	if !filepath.IsAbs(cfg.Logging.FilePath) {
		cfg.Logging.FilePath = paths.GetLogPath("audit.log")
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}
	logger = infrastructure.WithComponent(logger, "audit_cli")

	logger.Info("Auditing aggregated table",
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

	report, err := service.Audit(ctx)
	if err != nil {
		if apierrors.IsAggregatedTableNotFound(err) {
			return fmt.Errorf("aggregated table %q does not exist yet; run the aggregate command first: %w",
				cfg.Output.Name, err)
		}
		return err
	}

	fmt.Print(formatAudit(report))
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFrom(path)
	}
	return config.Load()
}

// formatAudit renders the audit report as a plain text table
func formatAudit(report domain.AuditReport) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Audit: %s\n", report.Table)
	fmt.Fprintf(&b, "Rows: %d  Columns: %d  Duplicate rows: %d\n",
		report.RowCount, report.ColumnCount, report.DuplicateRows)
	fmt.Fprintf(&b, "Generated: %s\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "%-32s %9s %9s %9s  %s\n", "Column", "Non-empty", "Complete", "Distinct", "Flags")
	for _, col := range report.Columns {
		fmt.Fprintf(&b, "%-32s %9d %8.1f%% %9d  %s\n",
			col.Header, col.NonEmpty, col.Completeness, col.Distinct, columnFlags(col))
	}

	return b.String()
}

// columnFlags names the data-quality signals raised for a column
func columnFlags(col domain.ColumnAudit) string {
	var flags []string
	if col.Constant {
		flags = append(flags, "constant")
	}
	if col.HighCardinality {
		flags = append(flags, "high-cardinality")
	}
	return strings.Join(flags, ", ")
}

func closeStore(store storage.TableStore, logger *slog.Logger) {
	if closer, ok := store.(io.Closer); ok {
		if err := closer.Close(); err != nil {
			infrastructure.WithError(logger, err).Warn("Failed to close storage backend")
		}
	}
}
