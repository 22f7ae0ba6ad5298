package integration

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveycli/internal/config"
)

// TestPathConsistencyAcrossComponents verifies that every component that
// resolves artifact locations lands in the same executable-relative tree
func TestPathConsistencyAcrossComponents(t *testing.T) {
	paths, err := config.GetPaths()
	require.NoError(t, err)

	t.Run("config dir resolution matches centralized paths", func(t *testing.T) {
		cfg := config.Default()

		assert.Equal(t, paths.ExportsDir, cfg.GetExportDir())
		assert.Equal(t, paths.ReportsDir, cfg.GetReportDir())
		assert.Equal(t, paths.WorkbookFile, cfg.GetWorkbookPath())
		assert.Equal(t, paths.CredentialsFile, cfg.GetCredentialsFile())
	})

	t.Run("artifact helpers stay inside their directories", func(t *testing.T) {
		exportPath := paths.GetExportPath("aggregate_2025-07-01.csv")
		assert.Equal(t, paths.ExportsDir, filepath.Dir(exportPath))

		reportPath := paths.GetReportPath("statistics.md")
		assert.Equal(t, paths.ReportsDir, filepath.Dir(reportPath))

		logPath := paths.GetLogPath("web.log")
		assert.Equal(t, paths.LogsDir, filepath.Dir(logPath))
	})

	t.Run("absolute config values are respected", func(t *testing.T) {
		cfg := config.Default()
		abs := t.TempDir()
		cfg.Export.Dir = abs

		assert.Equal(t, abs, cfg.GetExportDir())
	})
}

// TestCrossComponentFileSharing verifies an artifact written through one
// path helper is visible through the other resolution route
func TestCrossComponentFileSharing(t *testing.T) {
	paths, err := config.GetPaths()
	require.NoError(t, err)
	require.NoError(t, paths.EnsureDirectories())

	name := "sharing_probe.csv"
	full := paths.GetExportPath(name)
	require.NoError(t, os.WriteFile(full, []byte("Question,Answer\n"), 0644))
	defer os.Remove(full)

	cfg := config.Default()
	fromConfig := filepath.Join(cfg.GetExportDir(), name)

	assert.True(t, config.FileExists(fromConfig))
	assert.Equal(t, full, fromConfig)
}

// TestPathResolutionFromDifferentWorkingDirectories verifies paths stay
// anchored to the executable, not the working directory
func TestPathResolutionFromDifferentWorkingDirectories(t *testing.T) {
	before, err := config.GetPaths()
	require.NoError(t, err)

	originalWD, err := os.Getwd()
	require.NoError(t, err)
	defer func() {
		require.NoError(t, os.Chdir(originalWD))
	}()

	require.NoError(t, os.Chdir(t.TempDir()))

	after, err := config.GetPaths()
	require.NoError(t, err)

	assert.Equal(t, before.ExecutableDir, after.ExecutableDir)
	assert.Equal(t, before.ExportsDir, after.ExportsDir)
	assert.Equal(t, before.ReportsDir, after.ReportsDir)
	assert.Equal(t, before.LogsDir, after.LogsDir)
}

// TestConcurrentPathAccess verifies GetPaths is safe under concurrent use
func TestConcurrentPathAccess(t *testing.T) {
	const goroutines = 20

	results := make([]*config.Paths, goroutines)
	errs := make([]error, goroutines)

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], errs[idx] = config.GetPaths()
		}(i)
	}
	wg.Wait()

	for i := 0; i < goroutines; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, results[0].ExecutableDir, results[i].ExecutableDir)
		assert.Equal(t, results[0].ExportsDir, results[i].ExportsDir)
	}
}

// TestPathNormalization verifies resolved paths are absolute and clean
func TestPathNormalization(t *testing.T) {
	paths, err := config.GetPaths()
	require.NoError(t, err)

	for label, dir := range map[string]string{
		"data":    paths.DataDir,
		"exports": paths.ExportsDir,
		"reports": paths.ReportsDir,
		"logs":    paths.LogsDir,
	} {
		assert.True(t, filepath.IsAbs(dir), "%s directory should be absolute: %s", label, dir)
		assert.NotContains(t, dir, "..", "%s directory should be clean: %s", label, dir)
	}

	t.Run("helpers join without separator artifacts", func(t *testing.T) {
		p := paths.GetExportPath("file.csv")
		assert.False(t, strings.Contains(p, string(filepath.Separator)+string(filepath.Separator)))
		assert.True(t, strings.HasSuffix(p, "file.csv"))
	})
}
