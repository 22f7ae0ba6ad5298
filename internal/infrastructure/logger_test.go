package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"surveycli/internal/config"
)

// initFileLogger builds a fresh file-backed logger for one test
func initFileLogger(t *testing.T, level, format string) (*slog.Logger, string) {
	t.Helper()
	ResetLoggerForTesting()
	t.Cleanup(func() { ResetLoggerForTesting() })

	logFile := filepath.Join(t.TempDir(), "test.log")
	logger, err := InitializeLogger(config.LoggingConfig{
		Level:    level,
		Format:   format,
		Output:   "file",
		FilePath: logFile,
	})
	if err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	return logger, logFile
}

// lastLogEntry closes the log file and decodes its final JSON line
func lastLogEntry(t *testing.T, logFile string) map[string]interface{} {
	t.Helper()
	CloseLogFile()

	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(content)), "\n")

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &entry); err != nil {
		t.Fatalf("Log output is not valid JSON: %v", err)
	}
	return entry
}

func TestInitializeLogger(t *testing.T) {
	logger, logFile := initFileLogger(t, "info", "json")

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}

	logger.Info("aggregation run complete", "rows", 6)

	entry := lastLogEntry(t, logFile)
	if entry["msg"] != "aggregation run complete" {
		t.Errorf("Expected msg='aggregation run complete', got %v", entry["msg"])
	}
	if entry["rows"] != float64(6) {
		t.Errorf("Expected rows=6, got %v", entry["rows"])
	}
	if entry["level"] != "INFO" {
		t.Errorf("Expected level='INFO', got %v", entry["level"])
	}
}

func TestTraceIDInjection(t *testing.T) {
	_, logFile := initFileLogger(t, "debug", "json")

	// The handler injects trace_id from the context on its own
	ctx := WithTraceID(context.Background(), "test-trace-123")
	GetLogger().InfoContext(ctx, "test with trace")

	entry := lastLogEntry(t, logFile)
	if entry["trace_id"] != "test-trace-123" {
		t.Errorf("Expected trace_id='test-trace-123', got %v", entry["trace_id"])
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"error", "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			logger, logFile := initFileLogger(t, tt.level, "json")

			switch tt.level {
			case "debug":
				logger.Debug("test debug")
			case "info":
				logger.Info("test info")
			case "warn":
				logger.Warn("test warn")
			case "error":
				logger.Error("test error")
			}

			entry := lastLogEntry(t, logFile)
			if entry["level"] != tt.expected {
				t.Errorf("Expected level=%s, got %v", tt.expected, entry["level"])
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	logger, logFile := initFileLogger(t, "info", "text")

	logger.Info("export written", "artifact", "aggregate.csv")

	CloseLogFile()
	content, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	if json.Valid(content) {
		t.Error("Text format should not produce JSON output")
	}
	line := string(content)
	if !strings.Contains(line, "export written") || !strings.Contains(line, "artifact=aggregate.csv") {
		t.Errorf("Text output missing expected fields: %s", line)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := ContextWithTraceID(context.Background())
	traceID := GetTraceID(ctx)
	if traceID == "" {
		t.Fatal("Expected trace ID to be generated")
	}

	// EnsureTraceID keeps an existing trace ID
	if got := GetTraceID(EnsureTraceID(ctx)); got != traceID {
		t.Errorf("EnsureTraceID changed existing trace ID: %v", got)
	}

	// EnsureTraceID adds one when missing
	if GetTraceID(EnsureTraceID(context.Background())) == "" {
		t.Error("EnsureTraceID did not add trace ID")
	}
}

func TestLoggerHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithComponent(logger, "pipeline").Info("test message")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log JSON: %v", err)
	}
	if entry["component"] != "pipeline" {
		t.Errorf("Expected component='pipeline', got %v", entry["component"])
	}

	buf.Reset()
	WithError(logger, os.ErrNotExist).Info("error test")

	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log JSON: %v", err)
	}
	if !strings.Contains(entry["error"].(string), "file does not exist") {
		t.Errorf("Expected error to contain 'file does not exist', got %v", entry["error"])
	}

	if got := WithError(logger, nil); got != logger {
		t.Error("WithError with nil error should return the original logger")
	}
}
