package logging

import (
	"bytes"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("test-component")
	require.NotNil(t, logger)
	assert.Equal(t, "test-component", logger.Data["component"])

	// Same component returns the cached entry
	assert.Same(t, logger, NewLogger("test-component"))
}

func TestLoggerOutput(t *testing.T) {
	var buf bytes.Buffer

	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&TextFormatter{Config: FormatConfig{}})

	entry := logger.WithField("component", "store")
	entry.WithField("key", ":acctID").Info("Var written")

	output := buf.String()
	assert.Contains(t, output, "[INFO]")
	assert.Contains(t, output, "[store]")
	assert.Contains(t, output, "Var written")
	assert.Contains(t, output, "key=:acctID")
}

func TestTextFormatter(t *testing.T) {
	tests := []struct {
		name    string
		config  FormatConfig
		entry   *logrus.Entry
		want    []string
		notWant []string
	}{
		{
			name:   "default format",
			config: FormatConfig{},
			entry: &logrus.Entry{
				Level:   logrus.InfoLevel,
				Message: "test message",
				Data: logrus.Fields{
					"component": "test-component",
					"key1":      "value1",
				},
			},
			want: []string{"[INFO]", "[test-component]", "test message", "key1=value1"},
		},
		{
			name: "simple format",
			config: FormatConfig{
				DisableTimestamp: true,
				DisableComponent: true,
			},
			entry: &logrus.Entry{
				Level:   logrus.WarnLevel,
				Message: "warning message",
				Data: logrus.Fields{
					"component": "test-component",
				},
			},
			want:    []string{"[WARN]", "warning message"},
			notWant: []string{"[test-component]"},
		},
		{
			name:   "caller information with function name",
			config: FormatConfig{},
			entry: func() *logrus.Entry {
				logger := logrus.New()
				logger.SetReportCaller(true)
				return &logrus.Entry{
					Logger:  logger,
					Level:   logrus.InfoLevel,
					Message: "test message with caller",
					Data: logrus.Fields{
						"component": "test-component",
					},
					Caller: &runtime.Frame{
						File:     "/path/to/file.go",
						Line:     42,
						Function: "github.com/example/package.TestFunction",
					},
				}
			}(),
			want: []string{"[INFO]", "[test-component]", "test message with caller", "[file.go:42 package.TestFunction]"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			formatter := &TextFormatter{Config: tt.config}
			output, err := formatter.Format(tt.entry)
			require.NoError(t, err)

			for _, want := range tt.want {
				assert.Contains(t, string(output), want)
			}
			for _, notWant := range tt.notWant {
				assert.NotContains(t, string(output), notWant)
			}
		})
	}
}

func TestFormatterSortsFields(t *testing.T) {
	formatter := &TextFormatter{Config: FormatConfig{DisableTimestamp: true}}
	output, err := formatter.Format(&logrus.Entry{
		Level:   logrus.InfoLevel,
		Message: "m",
		Data:    logrus.Fields{"zeta": 1, "alpha": 2, "mid": 3},
	})
	require.NoError(t, err)

	s := string(output)
	assert.Less(t, strings.Index(s, "alpha="), strings.Index(s, "mid="))
	assert.Less(t, strings.Index(s, "mid="), strings.Index(s, "zeta="))
}

func TestConfigure(t *testing.T) {
	t.Run("level from config", func(t *testing.T) {
		t.Setenv("PRODTRACK_LOG_LEVEL", "")
		logger := Configure(logrus.New(), Config{Level: "warn", Format: FormatConfig{StructuredToStderr: "never"}})
		assert.Equal(t, logrus.WarnLevel, logger.GetLevel())
	})

	t.Run("environment overrides config", func(t *testing.T) {
		t.Setenv("PRODTRACK_LOG_LEVEL", "debug")
		logger := Configure(logrus.New(), Config{Level: "error"})
		assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
	})

	t.Run("invalid level falls back to info", func(t *testing.T) {
		t.Setenv("PRODTRACK_LOG_LEVEL", "chatty")
		logger := Configure(logrus.New(), Config{})
		assert.Equal(t, logrus.InfoLevel, logger.GetLevel())
	})

	t.Run("json preset", func(t *testing.T) {
		logger := Configure(logrus.New(), Config{Format: FormatConfig{Preset: "json"}})
		_, ok := logger.Formatter.(*logrus.JSONFormatter)
		assert.True(t, ok)
	})

	t.Run("file sink", func(t *testing.T) {
		t.Setenv("PRODTRACK_LOG_LEVEL", "info")
		path := filepath.Join(t.TempDir(), "logs", "bus.log")
		logger := Configure(logrus.New(), Config{
			File:   FileSinkConfig{Enabled: true, Path: path},
			Format: FormatConfig{StructuredToStderr: "never"},
		})
		logger.Info("written to file")
		assert.FileExists(t, path)
	})
}

func TestPrettyTable(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrettyLogger().WithWriter(&buf)
	p.Table([]string{"PAGE", "CALLS"}, [][]string{{"ingredients", "3"}, {"batches", "12"}})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "ingredients")
	assert.Contains(t, lines[2], "12")
}

func TestAddOutputTapsLoggers(t *testing.T) {
	t.Setenv("PRODTRACK_LOG_LEVEL", "info")
	logger := Configure(logrus.New(), Config{Format: FormatConfig{StructuredToStderr: "never"}})

	var buf bytes.Buffer
	remove := AddOutput(&buf)
	logger.Info("tapped record")
	assert.Contains(t, buf.String(), "tapped record")

	remove()
	remove()
	logger.Info("after removal")
	assert.NotContains(t, buf.String(), "after removal")
}
