package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveycli/internal/config"
	"surveycli/internal/shared/testutil"
	"surveycli/internal/storage"
)

func newHealthService(t *testing.T) (*HealthService, *storage.MemoryStore, *config.Config) {
	t.Helper()

	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)
	store := storage.NewMemoryStore()
	return NewHealthService("1.2.3", cfg, store, logger), store, cfg
}

func TestHealthService_HealthCheck(t *testing.T) {
	hs, _, _ := newHealthService(t)

	status := hs.HealthCheck(context.Background())

	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "1.2.3", status.Version)
	assert.False(t, status.Timestamp.IsZero())
}

func TestHealthService_ReadinessCheck(t *testing.T) {
	hs, _, _ := newHealthService(t)

	status := hs.ReadinessCheck(context.Background())

	assert.Equal(t, "ready", status.Status)
	require.Contains(t, status.Services, "storage")
	require.Contains(t, status.Services, "export_dir")
	require.Contains(t, status.Services, "report_dir")

	sh, ok := status.Services["storage"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "ready", sh.Status)
	assert.Contains(t, sh.Message, "no responses yet")
}

func TestHealthService_ReadinessCheckWithResponses(t *testing.T) {
	hs, store, _ := newHealthService(t)
	seedResponses(t, store)

	status := hs.ReadinessCheck(context.Background())

	sh, ok := status.Services["storage"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "ready", sh.Status)
	assert.NotContains(t, sh.Message, "no responses yet")
}

func TestHealthService_ReadinessCheckUnwritableExportDir(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)

	// A file where the export directory should be makes MkdirAll fail.
	blocked := filepath.Join(t.TempDir(), "blocked")
	require.NoError(t, os.WriteFile(blocked, []byte("x"), 0o644))
	cfg.Export.Dir = blocked

	hs := NewHealthService("1.2.3", cfg, storage.NewMemoryStore(), logger)
	status := hs.ReadinessCheck(context.Background())

	assert.Equal(t, "not_ready", status.Status)
	sh, ok := status.Services["export_dir"].(ServiceHealth)
	require.True(t, ok)
	assert.Equal(t, "not_ready", sh.Status)
}

func TestHealthService_LivenessCheck(t *testing.T) {
	hs, _, _ := newHealthService(t)

	status := hs.LivenessCheck(context.Background())

	assert.Equal(t, "alive", status.Status)
	require.NotNil(t, status.Runtime)
	assert.Contains(t, status.Runtime, "uptime")
	assert.Contains(t, status.Runtime, "go_version")
	assert.Contains(t, status.Runtime, "goroutines")
}

func TestHealthService_Version(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)

	hs := NewHealthServiceWithBuildInfo("1.2.3", "2025-06-01T00:00:00Z", "abc123", cfg, storage.NewMemoryStore(), logger)
	info := hs.Version()

	assert.Equal(t, "1.2.3", info["version"])
	assert.Equal(t, "2025-06-01T00:00:00Z", info["build_time"])
	assert.Equal(t, "abc123", info["build_id"])
	assert.Contains(t, info, "go_version")
	assert.Contains(t, info, "start_time")
}

func TestHealthService_VersionOmitsEmptyBuildInfo(t *testing.T) {
	hs, _, _ := newHealthService(t)

	info := hs.Version()

	assert.NotContains(t, info, "build_time")
	assert.NotContains(t, info, "build_id")
}

func TestHealthService_SystemStats(t *testing.T) {
	hs, store, cfg := newHealthService(t)
	seedResponses(t, store)

	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cfg.Storage.Backend, stats.StorageBackend)
	assert.Equal(t, 6, stats.SourceRows)
	assert.Equal(t, 0, stats.AggregateRows)
	assert.Positive(t, stats.Goroutines)
	assert.NotEmpty(t, stats.GoVersion)
}

func TestHealthService_SystemStatsAfterAggregation(t *testing.T) {
	logger, _ := testutil.NewTestLogger(t)
	cfg := testConfig(t)
	store := storage.NewMemoryStore()

	svc, err := NewSurveyService(cfg, store, nil, logger)
	require.NoError(t, err)
	seedResponses(t, store)
	_, err = svc.Aggregate(context.Background())
	require.NoError(t, err)

	hs := NewHealthService("1.2.3", cfg, store, logger)
	stats, err := hs.SystemStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 6, stats.SourceRows)
	assert.Equal(t, 6, stats.AggregateRows)
}

func TestHealthService_GetDetailedHealth(t *testing.T) {
	hs, _, _ := newHealthService(t)

	detail := hs.GetDetailedHealth(context.Background())

	assert.Contains(t, detail, "health")
	assert.Contains(t, detail, "readiness")
	assert.Contains(t, detail, "liveness")
	assert.Contains(t, detail, "stats")
}
