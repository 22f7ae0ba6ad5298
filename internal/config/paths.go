package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Paths is the single authority for where artifacts live on disk. The
// CLI binaries and the web service all resolve files through it, so a
// deployment stays one executable-relative tree no matter which working
// directory it was launched from.
type Paths struct {
	ExecutableDir string
	DataDir       string
	ExportsDir    string
	ReportsDir    string
	LogsDir       string

	// Files expected next to the binary
	ConfigFile      string
	PolicyFile      string
	CredentialsFile string

	// Workbook backing the storage layer
	WorkbookFile string
}

var (
	pathsOnce sync.Once
	pathsVal  *Paths
	pathsErr  error
)

// GetPaths resolves the executable-relative layout once and hands the
// shared result to every subsequent caller. The executable location
// cannot change mid-process, so there is nothing to refresh.
func GetPaths() (*Paths, error) {
	pathsOnce.Do(func() {
		pathsVal, pathsErr = resolvePaths()
	})
	return pathsVal, pathsErr
}

func resolvePaths() (*Paths, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("resolve executable: %w", err)
	}

	// A symlinked binary anchors to its real location
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return nil, fmt.Errorf("resolve executable symlinks: %w", err)
	}

	exeDir := filepath.Dir(exe)

	// Everything hangs off the executable directory, which keeps the
	// layout identical between dev/ and dist/:
	//
	//	dist/
	//	├── config.yaml
	//	├── policy.yaml
	//	├── credentials.json   (Sheets service account, optional)
	//	├── data/
	//	│   ├── survey.xlsx    (workbook storage backend)
	//	│   ├── exports/       (CSV artifacts)
	//	│   └── reports/       (rendered statistics reports)
	//	└── logs/
	dataDir := filepath.Join(exeDir, "data")

	return &Paths{
		ExecutableDir: exeDir,
		DataDir:       dataDir,
		ExportsDir:    filepath.Join(dataDir, "exports"),
		ReportsDir:    filepath.Join(dataDir, "reports"),
		LogsDir:       filepath.Join(exeDir, "logs"),

		ConfigFile:      filepath.Join(exeDir, "config.yaml"),
		PolicyFile:      filepath.Join(exeDir, "policy.yaml"),
		CredentialsFile: filepath.Join(exeDir, "credentials.json"),

		WorkbookFile: filepath.Join(dataDir, "survey.xlsx"),
	}, nil
}

// EnsureDirectories creates the artifact tree. Every binary calls this
// at startup; MkdirAll tolerates directories that already exist.
func (p *Paths) EnsureDirectories() error {
	for _, dir := range []string{p.DataDir, p.ExportsDir, p.ReportsDir, p.LogsDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	slog.Debug("artifact directories ready", slog.String("data_dir", p.DataDir))
	return nil
}

// GetRelativePath anchors a relative subpath to the executable directory.
func (p *Paths) GetRelativePath(subpath string) string {
	return filepath.Join(p.ExecutableDir, subpath)
}

// FileExists reports whether path exists. Stat errors other than
// not-exist count as existing.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return !os.IsNotExist(err)
}

// GetExportPath returns the location for a CSV artifact.
func (p *Paths) GetExportPath(filename string) string {
	return filepath.Join(p.ExportsDir, filename)
}

// GetReportPath returns the location for a rendered report file.
func (p *Paths) GetReportPath(filename string) string {
	return filepath.Join(p.ReportsDir, filename)
}

// GetLogPath returns the location for a log file.
func (p *Paths) GetLogPath(filename string) string {
	return filepath.Join(p.LogsDir, filename)
}

// GetCredentialsPath returns the Google Sheets credentials location and
// records whether the file is actually present, so a missing service
// account shows up in the log before the first Sheets call fails.
func (p *Paths) GetCredentialsPath() string {
	slog.Debug("credentials path resolved",
		slog.String("path", p.CredentialsFile), slog.Bool("exists", FileExists(p.CredentialsFile)))
	return p.CredentialsFile
}

// LogPathResolution emits a debug record of how a path was resolved.
// Logged at startup so misplaced data files are diagnosable from the
// log alone.
func LogPathResolution(label, path string) {
	wd, _ := os.Getwd()
	abs, _ := filepath.Abs(path)

	slog.Debug("path resolution",
		slog.String("label", label),
		slog.Group("paths", slog.String("configured", path), slog.String("absolute", abs)),
		slog.String("working_dir", wd),
		slog.Bool("file_exists", FileExists(path)))
}
