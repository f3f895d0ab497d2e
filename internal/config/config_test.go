package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/quake-harvester/internal/catalog"
	"github.com/ethpandaops/quake-harvester/internal/harvester"
	"github.com/ethpandaops/quake-harvester/internal/sink"
)

func validServer() ServerConfig {
	return ServerConfig{
		Host:            "localhost",
		Port:            8080,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: 5 * time.Second,
		LogLevel:        "info",
	}
}

func validRedis() RedisConfig {
	return RedisConfig{
		Address:     "localhost:6379",
		DialTimeout: 5 * time.Second,
		PoolSize:    10,
	}
}

func validLeader() LeaderConfig {
	return LeaderConfig{
		Enabled:       true,
		LockKey:       "quake:leader",
		LockTTL:       10 * time.Second,
		RenewInterval: 3 * time.Second,
		RetryInterval: 5 * time.Second,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *Config
		expectError bool
		errorMsg    string
	}{
		{
			name: "minimal standalone config",
			config: &Config{
				Server: validServer(),
			},
			expectError: false,
		},
		{
			name: "leader election with redis",
			config: &Config{
				Server: validServer(),
				Redis:  validRedis(),
				Leader: validLeader(),
			},
			expectError: false,
		},
		{
			name: "invalid port negative",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: -1},
			},
			expectError: true,
			errorMsg:    "invalid server port",
		},
		{
			name: "invalid port too high",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 99999},
			},
			expectError: true,
			errorMsg:    "invalid server port",
		},
		{
			name: "missing host",
			config: &Config{
				Server: ServerConfig{Port: 8080},
			},
			expectError: true,
			errorMsg:    "server host cannot be empty",
		},
		{
			name: "zero read timeout",
			config: &Config{
				Server: ServerConfig{Host: "localhost", Port: 8080, WriteTimeout: time.Second},
			},
			expectError: true,
			errorMsg:    "read_timeout must be positive",
		},
		{
			name: "invalid log level",
			config: &Config{
				Server: func() ServerConfig {
					s := validServer()
					s.LogLevel = "loud"

					return s
				}(),
			},
			expectError: true,
			errorMsg:    "invalid log level",
		},
		{
			name: "leader election requires redis",
			config: &Config{
				Server: validServer(),
				Leader: validLeader(),
			},
			expectError: true,
			errorMsg:    "redis.address is required",
		},
		{
			name: "redis sink requires redis",
			config: &Config{
				Server: validServer(),
				Sink:   sink.Config{Type: sink.TypeRedis},
			},
			expectError: true,
			errorMsg:    "redis.address is required",
		},
		{
			name: "leader renew must beat ttl",
			config: &Config{
				Server: validServer(),
				Redis:  validRedis(),
				Leader: func() LeaderConfig {
					l := validLeader()
					l.RenewInterval = l.LockTTL

					return l
				}(),
			},
			expectError: true,
			errorMsg:    "renew_interval must be shorter",
		},
		{
			name: "catalog errors are prefixed",
			config: &Config{
				Server:  validServer(),
				Catalog: catalog.Config{BaseURL: "ftp://earthquake.usgs.gov"},
			},
			expectError: true,
			errorMsg:    "catalog: base_url",
		},
		{
			name: "harvester errors are prefixed",
			config: &Config{
				Server:    validServer(),
				Harvester: harvester.Config{Mode: "sometimes"},
			},
			expectError: true,
			errorMsg:    "harvester: mode",
		},
		{
			name: "sink errors are prefixed",
			config: &Config{
				Server: validServer(),
				Sink:   sink.Config{Type: sink.TypeKafka},
			},
			expectError: true,
			errorMsg:    "sink: kafka.brokers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)

				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_AppliesDefaults(t *testing.T) {
	cfg := &Config{Server: validServer()}
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.NeedsRedis())
	assert.Equal(t, catalog.DefaultBaseURL, cfg.Catalog.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Catalog.RequestTimeout)
	assert.Equal(t, harvester.ModeDemand, cfg.Harvester.Mode)
	assert.Equal(t, harvester.DefaultStartTime, cfg.Harvester.StartTime)
	assert.Equal(t, sink.TypeLog, cfg.Sink.Type)
}

func TestConfig_Load(t *testing.T) {
	tests := []struct {
		name        string
		yamlContent string
		expectError bool
		errorMsg    string
		validate    func(t *testing.T, cfg *Config)
	}{
		{
			name: "valid YAML file",
			yamlContent: `
server:
  host: localhost
  port: 8080
  read_timeout: 1s
  write_timeout: 1s
  shutdown_timeout: 5s
  log_level: debug
redis:
  address: localhost:6379
  dial_timeout: 5s
  pool_size: 10
leader:
  enabled: true
  lock_key: quake:leader
  lock_ttl: 10s
  renew_interval: 3s
  retry_interval: 5s
catalog:
  base_url: https://earthquake.usgs.gov/fdsnws/event/1
  request_timeout: 20s
  params:
    minmagnitude: "2.5"
harvester:
  mode: scheduled
  start_time: 2025-03-01T00:00:00Z
  poll_interval: 30s
  min_fetch_interval: 2m
  safety_cap: 0
sink:
  type: redis
  redis:
    stream: quakes
    max_len: 10000
`,
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()

				require.NoError(t, cfg.Validate())

				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, "debug", cfg.Server.LogLevel)
				assert.True(t, cfg.Leader.Enabled)
				assert.True(t, cfg.NeedsRedis())
				assert.Equal(t, 20*time.Second, cfg.Catalog.RequestTimeout)
				assert.Equal(t, map[string]string{"minmagnitude": "2.5"}, cfg.Catalog.Params)
				assert.Equal(t, harvester.ModeScheduled, cfg.Harvester.Mode)
				assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), cfg.Harvester.StartTime.UTC())
				assert.Equal(t, 30*time.Second, cfg.Harvester.PollInterval)
				assert.Equal(t, 2*time.Minute, cfg.Harvester.MinFetchInterval)
				require.NotNil(t, cfg.Harvester.SafetyCap)
				assert.Equal(t, 0, *cfg.Harvester.SafetyCap, "explicit zero disables the cap")
				assert.Equal(t, "quakes", cfg.Sink.Redis.Stream)
				assert.Equal(t, int64(10000), cfg.Sink.Redis.MaxLen)
			},
		},
		{
			name:        "invalid YAML syntax",
			yamlContent: "invalid: yaml: content:",
			expectError: true,
			errorMsg:    "failed to parse config",
		},
		{
			name:        "empty file",
			yamlContent: "",
			expectError: false,
			validate: func(t *testing.T, cfg *Config) {
				t.Helper()

				// Empty file loads but config won't validate
				assert.NotNil(t, cfg)
				require.Error(t, cfg.Validate())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			configPath := filepath.Join(tmpDir, "config.yaml")

			err := os.WriteFile(configPath, []byte(tt.yamlContent), 0600)
			require.NoError(t, err)

			cfg, err := Load(configPath)

			if tt.expectError {
				require.Error(t, err)

				if tt.errorMsg != "" {
					assert.Contains(t, err.Error(), tt.errorMsg)
				}

				return
			}

			require.NoError(t, err)

			if tt.validate != nil {
				tt.validate(t, cfg)
			}
		})
	}
}

func TestConfig_Load_NonExistentFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}
