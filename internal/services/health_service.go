package services

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"time"

	"surveycli/internal/config"
	apperrors "surveycli/internal/errors"
	"surveycli/internal/storage"
	"surveycli/pkg/contracts"
)

// HealthService backs the health endpoints with live storage and
// runtime state.
type HealthService struct {
	version   string
	buildTime string
	buildID   string
	cfg       *config.Config
	store     storage.TableStore
	startTime time.Time
	logger    *slog.Logger
}

// HealthStatus is the wire shape shared by the health probes
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Runtime   map[string]interface{} `json:"runtime,omitempty"`
	Services  map[string]interface{} `json:"services,omitempty"`
}

// ServiceHealth reports one dependency inside a readiness answer
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemStats is the operational snapshot served by the stats endpoint
type SystemStats struct {
	UptimeSeconds  float64 `json:"uptime_seconds"`
	StorageBackend string  `json:"storage_backend"`
	SourceRows     int     `json:"source_rows"`
	AggregateRows  int     `json:"aggregate_rows"`
	Goroutines     int     `json:"goroutines"`
	GoVersion      string  `json:"go_version"`
	OS             string  `json:"os"`
	Arch           string  `json:"arch"`
}

// NewHealthService builds a health service without build metadata
func NewHealthService(version string, cfg *config.Config, store storage.TableStore, logger *slog.Logger) *HealthService {
	return NewHealthServiceWithBuildInfo(version, "", "", cfg, store, logger)
}

// NewHealthServiceWithBuildInfo also stamps the running build so
// deployments can be told apart
func NewHealthServiceWithBuildInfo(version, buildTime, buildID string, cfg *config.Config, store storage.TableStore, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Info("health service ready",
		slog.String("version", version),
		slog.String("build_id", buildID))

	return &HealthService{
		version:   version,
		buildTime: buildTime,
		buildID:   buildID,
		cfg:       cfg,
		store:     store,
		startTime: time.Now(),
		logger:    logger,
	}
}

// HealthCheck answers the basic probe; it never consults storage
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	hs.logger.DebugContext(ctx, "health probe answered",
		slog.String("uptime", time.Since(hs.startTime).String()))

	return HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   hs.version,
	}
}

// ReadinessCheck returns readiness status. The service is ready when the
// storage backend answers and the artifact directories are writable.
func (hs *HealthService) ReadinessCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ready",
		Timestamp: time.Now(),
		Version:   hs.version,
		Services:  make(map[string]interface{}),
	}

	status.Services["storage"] = hs.checkStorageHealth(ctx)
	status.Services["export_dir"] = hs.checkDirHealth(hs.cfg.GetExportDir())
	status.Services["report_dir"] = hs.checkDirHealth(hs.cfg.GetReportDir())

	for _, service := range status.Services {
		if sh, ok := service.(ServiceHealth); ok && sh.Status != "ready" {
			status.Status = "not_ready"
			break
		}
	}

	return status
}

// LivenessCheck reports process vitals without touching dependencies
func (hs *HealthService) LivenessCheck(ctx context.Context) HealthStatus {
	return HealthStatus{
		Status:    "alive",
		Timestamp: time.Now(),
		Version:   hs.version,
		Runtime: map[string]interface{}{
			"uptime":     time.Since(hs.startTime).Seconds(),
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}
}

// Version describes the running binary and the contract versions it
// speaks
func (hs *HealthService) Version() map[string]interface{} {
	result := map[string]interface{}{
		"version":      hs.version,
		"go_version":   runtime.Version(),
		"os":           runtime.GOOS,
		"arch":         runtime.GOARCH,
		"uptime":       time.Since(hs.startTime).Seconds(),
		"start_time":   hs.startTime.Format(time.RFC3339),
		"current_time": time.Now().Format(time.RFC3339),
	}

	if hs.buildTime != "" {
		result["build_time"] = hs.buildTime
	}
	if hs.buildID != "" {
		result["build_id"] = hs.buildID
	}

	result["api_version"] = contracts.APIVersion
	result["data_format"] = contracts.DataFormatVersion

	return result
}

// SystemStats returns system statistics. Row counts come from live reads
// of the source and aggregate tables; a table that does not exist yet
// counts as zero rows.
func (hs *HealthService) SystemStats(ctx context.Context) (SystemStats, error) {
	sourceRows, err := hs.countRows(ctx, hs.cfg.Source.Name)
	if err != nil {
		return SystemStats{}, err
	}

	aggregateRows, err := hs.countRows(ctx, hs.cfg.Output.Name)
	if err != nil {
		return SystemStats{}, err
	}

	return SystemStats{
		UptimeSeconds:  time.Since(hs.startTime).Seconds(),
		StorageBackend: hs.cfg.Storage.Backend,
		SourceRows:     sourceRows,
		AggregateRows:  aggregateRows,
		Goroutines:     runtime.NumGoroutine(),
		GoVersion:      runtime.Version(),
		OS:             runtime.GOOS,
		Arch:           runtime.GOARCH,
	}, nil
}

// GetDetailedHealth bundles every probe into one document for operators
func (hs *HealthService) GetDetailedHealth(ctx context.Context) map[string]interface{} {
	stats, _ := hs.SystemStats(ctx)

	return map[string]interface{}{
		"health":    hs.HealthCheck(ctx),
		"readiness": hs.ReadinessCheck(ctx),
		"liveness":  hs.LivenessCheck(ctx),
		"stats":     stats,
	}
}

func (hs *HealthService) countRows(ctx context.Context, name string) (int, error) {
	table, err := hs.store.ReadTable(ctx, name)
	if err != nil {
		if apperrors.IsSourceNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	return table.RowCount(), nil
}

// checkStorageHealth probes the backend with a source read. A missing
// source table still means the backend answered, so it stays ready.
func (hs *HealthService) checkStorageHealth(ctx context.Context) ServiceHealth {
	_, err := hs.store.ReadTable(ctx, hs.cfg.Source.Name)
	if err != nil && !apperrors.IsSourceNotFound(err) {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("storage backend %s: %v", hs.cfg.Storage.Backend, err),
		}
	}

	message := "storage backend is reachable"
	if apperrors.IsSourceNotFound(err) {
		message = "storage backend is reachable, no responses yet"
	}

	return ServiceHealth{
		Status:  "ready",
		Message: message,
	}
}

// checkDirHealth verifies an artifact directory can be created
func (hs *HealthService) checkDirHealth(dir string) ServiceHealth {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ServiceHealth{
			Status:  "not_ready",
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}

	return ServiceHealth{
		Status:  "ready",
		Message: "directory is writable",
	}
}
