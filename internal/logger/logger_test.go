package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"productservice/internal/models"
	"productservice/internal/version"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVersion = version.Info{
	Version:    "1.2.3",
	GitCommit:  "abc1234",
	BuildDate:  "2026-02-21T10:00:00Z",
	InstanceID: "instance-a",
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "invalid", input: "invalid", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestNew_JSONCarriesGlobalFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "json", slog.LevelInfo, testVersion)

	logger.Info("bucket consumed", "bucket_key", "ip:10.0.0.1")

	var record map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "bucket consumed", record["msg"])
	assert.Equal(t, "ip:10.0.0.1", record["bucket_key"])
	assert.Equal(t, "1.2.3", record["version"])
	assert.Equal(t, "abc1234", record["git_commit"])
	assert.Equal(t, "instance-a", record["instance_id"])
}

func TestNew_TextFormatAndLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelWarn, testVersion)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	assert.NotContains(t, output, "should not appear")
	assert.Contains(t, output, "should appear")
	assert.Contains(t, output, "instance_id=instance-a")
}

func TestSetupStdStreams(t *testing.T) {
	for _, output := range []string{"stdout", "stderr"} {
		t.Run(output, func(t *testing.T) {
			logger, closer, err := Setup(models.LoggingConfig{Level: "info", Format: "json", Output: output}, testVersion)
			require.NoError(t, err)
			assert.Nil(t, closer)
			assert.NotNil(t, logger)
		})
	}
}

func TestSetupFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "test.log")

	logger, closer, err := Setup(models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}, testVersion)
	require.NoError(t, err)
	require.NotNil(t, closer)
	defer closer.Close()

	logger.Info("test message", "key", "value")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "test message"))
	assert.True(t, strings.Contains(string(data), "value"))
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LoggingConfig
	}{
		{name: "file missing path", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file"}},
		{name: "file in missing directory", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/nonexistent/directory/test.log"}},
		{name: "invalid level", cfg: models.LoggingConfig{Level: "invalid", Format: "json", Output: "stdout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Setup(tt.cfg, testVersion)
			assert.Error(t, err)
		})
	}
}
