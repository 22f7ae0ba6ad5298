// Package contracts carries the version identifiers shared by the HTTP
// API, the storage layer and the CLI binaries.
package contracts

import (
	"fmt"
	"runtime"
)

// DataFormatVersion tracks the aggregated-table layout; bump it when
// columns change meaning so stored workbooks can be told apart from
// current ones.
const (
	Version           = "0.3.0"
	DataFormatVersion = "v1"
	APIVersion        = "v1"
)

// Populated via -ldflags "-X surveycli/pkg/contracts.BuildTime=..." in
// release builds; source builds report unknown.
var (
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// VersionInfo is the build fingerprint reported by the version endpoint
// and the -version flag
type VersionInfo struct {
	Version      string `json:"version"`
	BuildTime    string `json:"build_time"`
	GitCommit    string `json:"git_commit"`
	GoVersion    string `json:"go_version"`
	OS           string `json:"os"`
	Architecture string `json:"architecture"`
	DataFormat   string `json:"data_format"`
	APIVersion   string `json:"api_version"`
}

// GetVersionInfo collects the build fingerprint of the running binary
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		Version:      Version,
		BuildTime:    BuildTime,
		GitCommit:    GitCommit,
		GoVersion:    runtime.Version(),
		OS:           runtime.GOOS,
		Architecture: runtime.GOARCH,
		DataFormat:   DataFormatVersion,
		APIVersion:   APIVersion,
	}
}

// GetFullVersionString renders the fingerprint as a single line
func GetFullVersionString() string {
	info := GetVersionInfo()
	return fmt.Sprintf("Survey Aggregation Service v%s (built: %s, commit: %s, go: %s, os: %s/%s)",
		info.Version, info.BuildTime, info.GitCommit,
		info.GoVersion, info.OS, info.Architecture)
}
