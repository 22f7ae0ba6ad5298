package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"surveycli/pkg/contracts/domain"
)

// Config represents the complete application configuration
type Config struct {
	HTTP          HTTPConfig          `yaml:"http" envconfig:"HTTP"`
	Security      SecurityConfig      `yaml:"security" envconfig:"SECURITY"`
	Logging       LoggingConfig       `yaml:"logging" envconfig:"LOGGING"`
	Source        SourceConfig        `yaml:"source" envconfig:"SOURCE"`
	Output        OutputConfig        `yaml:"output" envconfig:"OUTPUT"`
	Policy        PolicyConfig        `yaml:"policy" envconfig:"POLICY"`
	Storage       StorageConfig       `yaml:"storage" envconfig:"STORAGE"`
	Export        ExportConfig        `yaml:"export" envconfig:"EXPORT"`
	Report        ReportConfig        `yaml:"report" envconfig:"REPORT"`
	Observability ObservabilityConfig `yaml:"observability" envconfig:"OBSERVABILITY"`
}

// HTTPConfig contains HTTP server configuration
type HTTPConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	EnableCORS     bool            `yaml:"enable_cors" envconfig:"ENABLE_CORS"`
	WebhookSecret  string          `yaml:"webhook_secret" envconfig:"WEBHOOK_SECRET"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
}

// RateLimitConfig throttles the response webhook route
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"min=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"omitempty,oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"omitempty,oneof=stdout stderr file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// SourceConfig names the table the pipeline reads responses from
type SourceConfig struct {
	Name string `yaml:"name" envconfig:"NAME" validate:"required"`
}

// OutputConfig names the table the pipeline writes the aggregate to
type OutputConfig struct {
	Name string `yaml:"name" envconfig:"NAME" validate:"required"`
}

// PolicyConfig carries the column policy applied between source and
// output, either inline or via an external YAML file
type PolicyConfig struct {
	File    string            `yaml:"file" envconfig:"FILE"`
	Exclude []string          `yaml:"exclude" envconfig:"EXCLUDE"`
	Rename  map[string]string `yaml:"rename" envconfig:"RENAME"`
}

// StorageConfig selects and configures the table storage backend
type StorageConfig struct {
	Backend  string                `yaml:"backend" envconfig:"BACKEND" validate:"omitempty,oneof=memory xlsx sheets postgres"`
	XLSX     XLSXStorageConfig     `yaml:"xlsx" envconfig:"XLSX"`
	Sheets   SheetsStorageConfig   `yaml:"sheets" envconfig:"SHEETS"`
	Postgres PostgresStorageConfig `yaml:"postgres" envconfig:"POSTGRES"`
}

// XLSXStorageConfig configures the workbook-file backend
type XLSXStorageConfig struct {
	Path string `yaml:"path" envconfig:"PATH"`
}

// SheetsStorageConfig configures the Google Sheets backend
type SheetsStorageConfig struct {
	SpreadsheetID   string `yaml:"spreadsheet_id" envconfig:"SPREADSHEET_ID"`
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

// PostgresStorageConfig configures the Postgres snapshot backend
type PostgresStorageConfig struct {
	DSN             string        `yaml:"dsn" envconfig:"DSN"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME"`
}

// ExportConfig configures CSV artifact output
type ExportConfig struct {
	Dir        string `yaml:"dir" envconfig:"DIR"`
	BaseName   string `yaml:"base_name" envconfig:"BASE_NAME" validate:"required"`
	IncludeBOM *bool  `yaml:"include_bom" envconfig:"INCLUDE_BOM"`
	CRLF       bool   `yaml:"crlf" envconfig:"CRLF"`
}

// ReportConfig configures statistics report generation
type ReportConfig struct {
	TopN        int      `yaml:"top_n" envconfig:"TOP_N" validate:"min=1,max=100"`
	Multiselect []string `yaml:"multiselect" envconfig:"MULTISELECT"`
	Dir         string   `yaml:"dir" envconfig:"DIR"`
}

// ObservabilityConfig configures tracing and metrics export
type ObservabilityConfig struct {
	EnableTracing  bool    `yaml:"enable_tracing" envconfig:"ENABLE_TRACING"`
	EnableMetrics  bool    `yaml:"enable_metrics" envconfig:"ENABLE_METRICS"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"omitempty,oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"omitempty,oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"min=0,max=1"`
}

// Load loads configuration with the standard precedence:
// environment variables override the config file, the config file
// overrides built-in defaults.
func Load() (*Config, error) {
	return LoadFrom(getConfigFilePath())
}

// LoadFrom is Load with an explicit config file path. An empty path
// skips the file layer.
func LoadFrom(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := applyFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Environment variables win over file values. Fields without a
	// SURVEY_* variable set are left untouched.
	if err := envconfig.Process("SURVEY", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyFile overlays YAML file values onto cfg
func applyFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", filePath, err)
	}

	return nil
}

// Validate normalizes the configuration, then reports every problem it
// finds rather than stopping at the first.
func (c *Config) Validate() error {
	c.normalize()

	var problems []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("config validation failed: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
		}
	}

	if c.Source.Name != "" && c.Source.Name == c.Output.Name {
		problems = append(problems, "output.name must differ from source.name")
	}
	if c.Storage.Backend == "sheets" && c.Storage.Sheets.SpreadsheetID == "" {
		problems = append(problems, "storage.sheets.spreadsheet_id required for the sheets backend")
	}
	if c.Storage.Backend == "postgres" && c.Storage.Postgres.DSN == "" {
		problems = append(problems, "storage.postgres.dsn required for the postgres backend")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(problems, "; "))
	}

	return nil
}

// normalize fills safe defaults for fields the file and environment
// left empty instead of failing startup
func (c *Config) normalize() {
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "both"
	}
	if c.Logging.FilePath == "" {
		c.Logging.FilePath = filepath.Join(DefaultLogsDir, "app.log")
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	if c.Report.TopN == 0 {
		c.Report.TopN = DefaultTopN
	}
}

// LoadPolicy resolves the column policy for projection. A configured
// policy file takes precedence over the inline policy section; with
// neither present the identity policy is returned.
func (c *Config) LoadPolicy() (domain.ColumnPolicy, error) {
	if c.Policy.File == "" {
		return domain.ColumnPolicy{
			Exclude: c.Policy.Exclude,
			Rename:  c.Policy.Rename,
		}, nil
	}

	path := c.Policy.File
	if !filepath.IsAbs(path) {
		if paths, err := GetPaths(); err == nil && !FileExists(path) {
			path = paths.GetRelativePath(path)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.ColumnPolicy{}, fmt.Errorf("reading policy file %s: %w", path, err)
	}

	var policy domain.ColumnPolicy
	if err := yaml.Unmarshal(data, &policy); err != nil {
		return domain.ColumnPolicy{}, fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	return policy, nil
}

// IncludeBOM reports whether CSV artifacts get the UTF-8 byte order
// mark. Unset means yes; spreadsheet tools that misdetect encoding are
// the reason this export exists.
func (c *Config) IncludeBOM() bool {
	if c.Export.IncludeBOM == nil {
		return true
	}
	return *c.Export.IncludeBOM
}

// GetExportDir returns the resolved export directory path
func (c *Config) GetExportDir() string {
	return c.resolveDir(c.Export.Dir, DefaultExportsDir)
}

// GetReportDir returns the resolved report artifact directory path
func (c *Config) GetReportDir() string {
	return c.resolveDir(c.Report.Dir, DefaultReportsDir)
}

// GetWorkbookPath returns the resolved XLSX workbook path
func (c *Config) GetWorkbookPath() string {
	path := c.Storage.XLSX.Path
	if path == "" {
		path = DefaultWorkbookFile
	}
	if filepath.IsAbs(path) {
		return path
	}
	if paths, err := GetPaths(); err == nil {
		return paths.GetRelativePath(path)
	}
	return path
}

// GetCredentialsFile returns the Sheets credentials path, falling back
// to the executable-relative default when the config leaves it empty
func (c *Config) GetCredentialsFile() string {
	if c.Storage.Sheets.CredentialsFile != "" {
		return c.Storage.Sheets.CredentialsFile
	}
	if paths, err := GetPaths(); err == nil {
		return paths.GetCredentialsPath()
	}
	return "credentials.json"
}

func (c *Config) resolveDir(dir, fallback string) string {
	if dir == "" {
		dir = fallback
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	if paths, err := GetPaths(); err == nil {
		return paths.GetRelativePath(dir)
	}
	return dir
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
	}

	if paths, err := GetPaths(); err == nil {
		locations = append([]string{paths.ConfigFile}, locations...)
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns the built-in default configuration
func Default() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20, // 1MB
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			EnableCORS:     true,
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     DefaultWebhookRPS,
				Burst:   DefaultWebhookBurst,
			},
		},
		Logging: LoggingConfig{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			Output:   "both",
			FilePath: filepath.Join(DefaultLogsDir, "app.log"),
		},
		Source: SourceConfig{Name: DefaultSourceName},
		Output: OutputConfig{Name: DefaultOutputName},
		Storage: StorageConfig{
			Backend: "memory",
			XLSX: XLSXStorageConfig{
				Path: DefaultWorkbookFile,
			},
			Postgres: PostgresStorageConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 30 * time.Minute,
			},
		},
		Export: ExportConfig{
			Dir:      DefaultExportsDir,
			BaseName: DefaultExportBaseName,
		},
		Report: ReportConfig{
			TopN: DefaultTopN,
			Dir:  DefaultReportsDir,
		},
		Observability: ObservabilityConfig{
			EnableTracing:  true,
			EnableMetrics:  true,
			TraceExporter:  "stdout",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
