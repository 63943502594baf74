package config

import (
	"os"
	"path/filepath"
	"productservice/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_WithValidConfigFile(t *testing.T) {
	tempDir := t.TempDir()
	configFile := filepath.Join(tempDir, "test_config.yaml")

	configContent := `
server:
  port: 8081
  host: "localhost"
  read_timeout: 15s

storage:
  type: "json"
  path: "./data/test.json"

security:
  jwt_secret: "test-secret"
  user_header: "X-Authenticated-User"

redis:
  addr: "redis:6379"
  db: 2

rate_limit:
  enabled: true
  fail_open: false
  store_timeout: 100ms
  default_retry_after: 30s
  tiers:
    strict:
      - capacity: 5
        period: 10s
    bulk:
      - capacity: 1000
        period: 1m

cache:
  enabled: true
  type: "memory"
  ttl: 10m

invalidation:
  type: "memory"
  channel: "catalogue-events"

logging:
  level: "debug"
  format: "text"
  output: "stdout"
`

	err := os.WriteFile(configFile, []byte(configContent), 0644)
	require.NoError(t, err)

	config, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, 8081, config.Server.Port)
	assert.Equal(t, "localhost", config.Server.Host)
	assert.Equal(t, 15*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout, "unset keys keep defaults")

	assert.Equal(t, models.StorageTypeJSON, config.Storage.Type)
	assert.Equal(t, "test-secret", config.Security.JWTSecret)
	assert.Equal(t, "X-Authenticated-User", config.Security.UserHeader)

	assert.Equal(t, "redis:6379", config.Redis.Addr)
	assert.Equal(t, 2, config.Redis.DB)

	assert.False(t, config.RateLimit.FailOpen)
	assert.Equal(t, 100*time.Millisecond, config.RateLimit.StoreTimeout)
	assert.Equal(t, 30*time.Second, config.RateLimit.DefaultRetryAfter)
	assert.Equal(t, []models.BandwidthConfig{{Capacity: 5, Period: 10 * time.Second}}, config.RateLimit.Tiers["strict"])
	assert.Equal(t, []models.BandwidthConfig{{Capacity: 1000, Period: time.Minute}}, config.RateLimit.Tiers["bulk"])
	assert.Len(t, config.RateLimit.Tiers["default"], 2, "default tier survives a partial tiers section")

	assert.Equal(t, models.BackendMemory, config.Cache.Type)
	assert.Equal(t, 10*time.Minute, config.Cache.TTL)
	assert.Equal(t, "catalogue-events", config.Invalidation.Channel)
	assert.Equal(t, "debug", config.Logging.Level)
}

func TestLoad_WithDefaults(t *testing.T) {
	config, err := Load("")
	require.NoError(t, err)

	defaults := models.NewDefaultConfig()
	assert.Equal(t, defaults.Server.Port, config.Server.Port)
	assert.Equal(t, defaults.RateLimit.Tiers, config.RateLimit.Tiers)
	assert.Equal(t, defaults.Invalidation.Channel, config.Invalidation.Channel)
}

func TestLoad_WithEnvironmentVariables(t *testing.T) {
	t.Setenv("PRODUCTSERVICE_PORT", "9999")
	t.Setenv("PRODUCTSERVICE_HOST", "127.0.0.1")
	t.Setenv("PRODUCTSERVICE_STORAGE_TYPE", "memory")
	t.Setenv("PRODUCTSERVICE_REDIS_ADDR", "cache.internal:6380")
	t.Setenv("PRODUCTSERVICE_RATE_LIMIT_FAIL_OPEN", "false")
	t.Setenv("PRODUCTSERVICE_RATE_LIMIT_STORE_TIMEOUT", "50ms")
	t.Setenv("PRODUCTSERVICE_RATE_LIMIT_TIER_STRICT", "5/10s, 50/1h")
	t.Setenv("PRODUCTSERVICE_CACHE_TTL", "30m")
	t.Setenv("PRODUCTSERVICE_INVALIDATION_CHANNEL", "events")
	t.Setenv("PRODUCTSERVICE_LOG_LEVEL", "warn")
	t.Setenv("PRODUCTSERVICE_METRICS_PORT", "not-a-number")

	config, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9999, config.Server.Port)
	assert.Equal(t, "127.0.0.1", config.Server.Host)
	assert.Equal(t, "cache.internal:6380", config.Redis.Addr)
	assert.False(t, config.RateLimit.FailOpen)
	assert.Equal(t, 50*time.Millisecond, config.RateLimit.StoreTimeout)
	assert.Equal(t, []models.BandwidthConfig{
		{Capacity: 5, Period: 10 * time.Second},
		{Capacity: 50, Period: time.Hour},
	}, config.RateLimit.Tiers["strict"])
	assert.Equal(t, 30*time.Minute, config.Cache.TTL)
	assert.Equal(t, "events", config.Invalidation.Channel)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, 9090, config.Metrics.Port, "malformed values are ignored")
}

func TestLoad_InvalidTierEnvironment(t *testing.T) {
	t.Setenv("PRODUCTSERVICE_RATE_LIMIT_TIER_DEFAULT", "lots/1m")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRODUCTSERVICE_RATE_LIMIT_TIER_DEFAULT")
}

func TestLoad_NonExistentFile(t *testing.T) {
	_, err := Load("/non/existent/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file not found")
}

func TestLoad_InvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("server:\n  port: [unclosed"), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML config")
}

func TestLoad_InvalidConfiguration(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "bad.yaml")
	content := `
rate_limit:
  tiers:
    default:
      - capacity: 0
        period: 1m
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	_, err := Load(configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
	assert.Contains(t, err.Error(), "capacity must be positive")
}

func TestLoad_DeprecatedKeysStillLoad(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "old.yaml")
	content := `
cache:
  redis:
    addr: "old:6379"
  memory:
    cleanup_interval: 5m
    max_size: 50
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	config, err := Load(configFile)
	require.NoError(t, err)
	assert.Equal(t, "localhost:6379", config.Redis.Addr)
	assert.Equal(t, 50, config.Cache.Memory.MaxSize)
}

func TestParseBandwidths(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected []models.BandwidthConfig
		wantErr  bool
	}{
		{
			name:     "single",
			value:    "10/1m",
			expected: []models.BandwidthConfig{{Capacity: 10, Period: time.Minute}},
		},
		{
			name:  "multiple with spaces",
			value: " 100/1m , 1000/1h ",
			expected: []models.BandwidthConfig{
				{Capacity: 100, Period: time.Minute},
				{Capacity: 1000, Period: time.Hour},
			},
		},
		{name: "missing slash", value: "100", wantErr: true},
		{name: "bad period", value: "100/fortnight", wantErr: true},
		{name: "empty", value: " , ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBandwidths(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestSaveExample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, SaveExample(path))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "change-me", config.Security.JWTSecret)
	assert.Len(t, config.RateLimit.Tiers, 2)
}
